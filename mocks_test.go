package session_test

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-session"
	"github.com/stretchr/testify/mock"
)

// MockAPI implements session.API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) Signup(ctx context.Context, data session.SignupData) (*session.TokenPair, error) {
	args := m.Called(ctx, data)
	tokens, _ := args.Get(0).(*session.TokenPair)
	return tokens, args.Error(1)
}

func (m *MockAPI) Login(ctx context.Context, creds session.Credentials) (*session.TokenPair, error) {
	args := m.Called(ctx, creds)
	tokens, _ := args.Get(0).(*session.TokenPair)
	return tokens, args.Error(1)
}

func (m *MockAPI) Logout(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

func (m *MockAPI) User(ctx context.Context, accessToken string) (*session.User, error) {
	args := m.Called(ctx, accessToken)
	user, _ := args.Get(0).(*session.User)
	return user, args.Error(1)
}

func (m *MockAPI) RefreshToken(ctx context.Context, refreshToken string) (*session.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	tokens, _ := args.Get(0).(*session.TokenPair)
	return tokens, args.Error(1)
}

func (m *MockAPI) AuthorizeURL(provider string) string {
	args := m.Called(provider)
	return args.String(0)
}

func (m *MockAPI) ExchangeCode(ctx context.Context, code, provider string) (*session.TokenPair, error) {
	args := m.Called(ctx, code, provider)
	tokens, _ := args.Get(0).(*session.TokenPair)
	return tokens, args.Error(1)
}

// MockAdminAPI implements session.API plus session.AdminAPI
type MockAdminAPI struct {
	MockAPI
}

func (m *MockAdminAPI) Users(ctx context.Context, accessToken string) ([]*session.AdminUser, error) {
	args := m.Called(ctx, accessToken)
	users, _ := args.Get(0).([]*session.AdminUser)
	return users, args.Error(1)
}

func (m *MockAdminAPI) UpdateUser(ctx context.Context, id string, patch session.UserPatch, accessToken string) (*session.User, error) {
	args := m.Called(ctx, id, patch, accessToken)
	user, _ := args.Get(0).(*session.User)
	return user, args.Error(1)
}

// manualScheduler lets tests drive monitor ticks explicitly.
type manualScheduler struct {
	mu     sync.Mutex
	tick   func()
	starts int
	stops  int
}

func (s *manualScheduler) Every(_ time.Duration, tick func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	s.tick = tick
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stops++
	}
}

func (s *manualScheduler) Tick() {
	s.mu.Lock()
	tick := s.tick
	s.mu.Unlock()
	if tick != nil {
		tick()
	}
}

func (s *manualScheduler) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *manualScheduler) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// recordingNavigator captures host navigation instructions.
type recordingNavigator struct {
	mu       sync.Mutex
	replaced []string
	assigned []string
}

func (n *recordingNavigator) Replace(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replaced = append(n.replaced, url)
}

func (n *recordingNavigator) Assign(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, url)
}

func (n *recordingNavigator) Replaced() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replaced...)
}

func (n *recordingNavigator) Assigned() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.assigned...)
}

func testUser() *session.User {
	return &session.User{
		ID:    "5f8b2a0e-7c1d-4a33-9b61-2f9d1f1b8a01",
		Aud:   "authenticated",
		Role:  session.RoleAuthenticated,
		Email: "ada@example.com",
		UserMetadata: session.UserMetadata{
			FirstName: "Ada",
			LastName:  "Lovelace",
		},
	}
}

func testTokens(user *session.User) *session.TokenPair {
	return &session.TokenPair{
		AccessToken:  "access-token-1",
		RefreshToken: "refresh-token-1",
		ExpiresIn:    3600,
		TokenType:    "bearer",
		User:         user,
	}
}

func validCredentials() session.Credentials {
	return session.Credentials{
		Email:    "ada@example.com",
		Password: "correct-horse",
	}
}
