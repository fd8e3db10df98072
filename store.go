package session

import (
	"context"
	"encoding/json"
	"sync"
)

// Storage slot names shared by every Store implementation.
const (
	SlotAccessToken  = "auth_access_token"
	SlotRefreshToken = "auth_refresh_token"
	SlotUser         = "auth_user"
)

// MemoryStore is the in-process Store. It keeps the same three raw string
// slots a durable backend persists, so corrupt-record handling can be
// exercised in tests by seeding invalid JSON.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: map[string]string{}}
}

// Seed writes a raw slot value directly, bypassing serialization.
func (s *MemoryStore) Seed(slot, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = value
}

func (s *MemoryStore) SaveTokens(_ context.Context, tokens *TokenPair) error {
	if tokens == nil {
		return nil
	}

	serialized, err := EncodeUserRecord(tokens.User)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[SlotAccessToken] = tokens.AccessToken
	s.slots[SlotRefreshToken] = tokens.RefreshToken
	s.slots[SlotUser] = serialized
	return nil
}

func (s *MemoryStore) AccessToken(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[SlotAccessToken], nil
}

func (s *MemoryStore) RefreshToken(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[SlotRefreshToken], nil
}

func (s *MemoryStore) User(_ context.Context) (*User, error) {
	s.mu.Lock()
	raw := s.slots[SlotUser]
	s.mu.Unlock()

	return DecodeUserRecord(raw)
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, SlotAccessToken)
	delete(s.slots, SlotRefreshToken)
	delete(s.slots, SlotUser)
	return nil
}

// EncodeUserRecord serializes a user snapshot for the user slot.
func EncodeUserRecord(user *User) (string, error) {
	if user == nil {
		return "", nil
	}
	serialized, err := json.Marshal(user)
	if err != nil {
		return "", ErrStorageCorrupt
	}
	return string(serialized), nil
}

// DecodeUserRecord deserializes a persisted user snapshot. A corrupt record
// is treated as absent, not as a failure.
func DecodeUserRecord(raw string) (*User, error) {
	if raw == "" {
		return nil, nil
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, nil
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// MemoryTransient is the per-tab provider marker holder.
type MemoryTransient struct {
	mu       sync.Mutex
	provider string
}

var _ TransientStore = (*MemoryTransient)(nil)

func NewMemoryTransient() *MemoryTransient {
	return &MemoryTransient{}
}

func (t *MemoryTransient) SetProvider(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.provider = provider
}

func (t *MemoryTransient) Provider() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.provider
}

func (t *MemoryTransient) ClearProvider() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.provider = ""
}
