package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the profile of the authenticated principal as the auth server
// reports it. Immutable except via the Manager's UpdateUser merge.
type User struct {
	ID    string   `json:"id"`
	Aud   string   `json:"aud,omitempty"`
	Role  UserRole `json:"role"`
	Email string   `json:"email,omitempty"`
	Phone string   `json:"phone,omitempty"`

	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	LastSignInAt     *time.Time `json:"last_sign_in_at,omitempty"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`

	IsAnonymous bool `json:"is_anonymous,omitempty"`

	UserMetadata UserMetadata `json:"user_metadata"`
	AppMetadata  *AppMetadata `json:"app_metadata,omitempty"`
}

// UserMetadata carries the profile fields users (or OAuth providers) control.
type UserMetadata struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Name      string `json:"name,omitempty"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

// AppMetadata carries server-controlled provider bookkeeping.
type AppMetadata struct {
	Provider     string             `json:"provider,omitempty"`
	Providers    []string           `json:"providers,omitempty"`
	ProviderData *OAuthProviderData `json:"oauth_provider_data,omitempty"`
}

// OAuthProviderData is the raw identity the OAuth provider reported.
type OAuthProviderData struct {
	ProviderID       string `json:"provider_id,omitempty"`
	ProviderUsername string `json:"provider_username,omitempty"`
	ProviderAvatar   string `json:"provider_avatar,omitempty"`
}

// AdminUser extends User with fields only the admin listing exposes.
type AdminUser struct {
	User
	SignInCount int        `json:"sign_in_count,omitempty"`
	BannedUntil *time.Time `json:"banned_until,omitempty"`
}

// TokenPair is the credential set issued by the auth server. ExpiresAt is a
// local hint computed when the pair is adopted; the server does not always
// send one.
type TokenPair struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	TokenType    string     `json:"token_type"`
	User         *User      `json:"user,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Credentials is the password-grant payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupData is the signup payload.
type SignupData struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserPatch is a shallow merge applied by UpdateUser and the admin update
// endpoint. Only non-nil fields are applied.
type UserPatch struct {
	Email        *string       `json:"email,omitempty"`
	Phone        *string       `json:"phone,omitempty"`
	Role         *UserRole     `json:"role,omitempty"`
	UserMetadata *UserMetadata `json:"user_metadata,omitempty"`
	AppMetadata  *AppMetadata  `json:"app_metadata,omitempty"`
}

// UUID parses the user ID as a UUID.
func (u *User) UUID() (uuid.UUID, error) {
	return uuid.Parse(u.ID)
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName resolves a human-readable name, falling back through metadata
// fields the way different providers populate them.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	m := u.UserMetadata

	if v := strings.TrimSpace(m.FullName); v != "" {
		return v
	}
	if v := strings.TrimSpace(m.Name); v != "" {
		return v
	}

	first := strings.TrimSpace(m.FirstName)
	last := strings.TrimSpace(m.LastName)
	if first != "" && last != "" {
		return first + " " + last
	}
	if first != "" {
		return first
	}

	if v := strings.TrimSpace(m.Username); v != "" {
		return v
	}

	if u.Email != "" {
		if local, _, found := strings.Cut(u.Email, "@"); found && local != "" {
			return local
		}
	}

	return ""
}

// AvatarURL resolves the avatar, preferring the canonical field.
func (u *User) AvatarURL() string {
	if u == nil {
		return ""
	}
	if v := strings.TrimSpace(u.UserMetadata.AvatarURL); v != "" {
		return v
	}
	if v := strings.TrimSpace(u.UserMetadata.Picture); v != "" {
		return v
	}
	if u.AppMetadata != nil && u.AppMetadata.ProviderData != nil {
		return strings.TrimSpace(u.AppMetadata.ProviderData.ProviderAvatar)
	}
	return ""
}

// ProviderName returns the primary auth provider, defaulting to "email".
func (u *User) ProviderName() string {
	if u == nil || u.AppMetadata == nil {
		return "email"
	}
	if u.AppMetadata.Provider != "" {
		return u.AppMetadata.Provider
	}
	if len(u.AppMetadata.Providers) > 0 {
		return u.AppMetadata.Providers[0]
	}
	return "email"
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.CreatedAt = cloneTime(u.CreatedAt)
	out.UpdatedAt = cloneTime(u.UpdatedAt)
	out.LastSignInAt = cloneTime(u.LastSignInAt)
	out.EmailConfirmedAt = cloneTime(u.EmailConfirmedAt)
	out.ConfirmedAt = cloneTime(u.ConfirmedAt)
	if u.AppMetadata != nil {
		app := *u.AppMetadata
		app.Providers = append([]string(nil), u.AppMetadata.Providers...)
		if u.AppMetadata.ProviderData != nil {
			pd := *u.AppMetadata.ProviderData
			app.ProviderData = &pd
		}
		out.AppMetadata = &app
	}
	return &out
}

// Apply merges the patch into the user, replacing only set fields.
func (u *User) Apply(patch UserPatch) {
	if u == nil {
		return
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.UserMetadata != nil {
		u.UserMetadata = *patch.UserMetadata
	}
	if patch.AppMetadata != nil {
		app := *patch.AppMetadata
		u.AppMetadata = &app
	}
}

// Clone returns a deep copy.
func (t *TokenPair) Clone() *TokenPair {
	if t == nil {
		return nil
	}
	out := *t
	out.User = t.User.Clone()
	out.ExpiresAt = cloneTime(t.ExpiresAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
