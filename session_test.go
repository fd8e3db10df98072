package session_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, store *session.MemoryStore, tokens *session.TokenPair) {
	t.Helper()
	require.NoError(t, store.SaveTokens(context.Background(), tokens))
}

func TestBootstrapWithEmptyStoreEndsAnonymous(t *testing.T) {
	api := &MockAPI{}
	m := session.New(api)

	assert.True(t, m.IsLoading())

	m.Bootstrap(context.Background(), "")

	assert.False(t, m.IsLoading())
	assert.False(t, m.IsAuthenticated())
	api.AssertNotCalled(t, "User", mock.Anything, mock.Anything)
}

func TestBootstrapRestoresCachedSession(t *testing.T) {
	api := &MockAPI{}
	store := session.NewMemoryStore()
	scheduler := &manualScheduler{}
	user := testUser()

	seedStore(t, store, testTokens(user))

	api.On("User", mock.Anything, "access-token-1").
		Return(user, nil).Once()

	m := session.New(api,
		session.WithStore(store),
		session.WithScheduler(scheduler),
	)

	m.Bootstrap(context.Background(), "https://app.example.com/home")

	assert.True(t, m.IsAuthenticated())
	assert.False(t, m.IsLoading())
	assert.Equal(t, user.Email, m.CurrentUser().Email)
	assert.Equal(t, 1, scheduler.Starts())

	api.AssertExpectations(t)
}

func TestBootstrapFallsBackToRefreshWhenTokenRejected(t *testing.T) {
	api := &MockAPI{}
	store := session.NewMemoryStore()
	user := testUser()

	seedStore(t, store, testTokens(user))

	rotated := &session.TokenPair{
		AccessToken:  "access-token-2",
		RefreshToken: "refresh-token-2",
		ExpiresIn:    3600,
		TokenType:    "bearer",
		User:         user,
	}

	api.On("User", mock.Anything, "access-token-1").
		Return(nil, session.ErrAuthenticationFailed).Once()
	api.On("RefreshToken", mock.Anything, "refresh-token-1").
		Return(rotated, nil).Once()

	m := session.New(api, session.WithStore(store))
	m.Bootstrap(context.Background(), "")

	assert.True(t, m.IsAuthenticated())

	access, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-token-2", access)

	api.AssertExpectations(t)
}

func TestBootstrapClearsWhenRejectedWithoutRefreshToken(t *testing.T) {
	api := &MockAPI{}
	store := session.NewMemoryStore()
	user := testUser()

	tokens := testTokens(user)
	tokens.RefreshToken = ""
	seedStore(t, store, tokens)

	api.On("User", mock.Anything, "access-token-1").
		Return(nil, session.ErrAuthenticationFailed).Once()

	m := session.New(api, session.WithStore(store))
	m.Bootstrap(context.Background(), "")

	assert.False(t, m.IsAuthenticated())
	assert.False(t, m.IsLoading())

	access, err := store.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, access)
}

func TestBootstrapPublishesErrorWhenRefreshFails(t *testing.T) {
	api := &MockAPI{}
	store := session.NewMemoryStore()

	seedStore(t, store, testTokens(testUser()))

	api.On("User", mock.Anything, mock.Anything).
		Return(nil, session.ErrAuthenticationFailed).Once()
	api.On("RefreshToken", mock.Anything, "refresh-token-1").
		Return(nil, session.ErrNetwork).Once()

	m := session.New(api, session.WithStore(store))

	var events []session.ErrorEvent
	m.OnError(func(e session.ErrorEvent) { events = append(events, e) })

	m.Bootstrap(context.Background(), "")

	assert.False(t, m.IsAuthenticated())
	require.Len(t, events, 1)
	assert.True(t, session.IsSessionExpiredError(events[0].Err))
	assert.NotEmpty(t, events[0].Message)
}

func TestBootstrapTreatsCorruptUserRecordAsAbsent(t *testing.T) {
	api := &MockAPI{}
	store := session.NewMemoryStore()
	store.Seed(session.SlotAccessToken, "access-token-1")
	store.Seed(session.SlotUser, "{not json")

	m := session.New(api, session.WithStore(store))
	m.Bootstrap(context.Background(), "")

	assert.False(t, m.IsAuthenticated())
	assert.False(t, m.IsLoading())
	api.AssertNotCalled(t, "User", mock.Anything, mock.Anything)
}

func TestBootstrapRunsOnce(t *testing.T) {
	api := &MockAPI{}
	store := session.NewMemoryStore()
	user := testUser()

	seedStore(t, store, testTokens(user))

	api.On("User", mock.Anything, "access-token-1").
		Return(user, nil).Once()

	m := session.New(api, session.WithStore(store))
	m.Bootstrap(context.Background(), "")
	m.Bootstrap(context.Background(), "")

	api.AssertNumberOfCalls(t, "User", 1)
}

func TestBootstrapResolvesCallbackWithoutPriorSession(t *testing.T) {
	api := &MockAPI{}
	user := testUser()

	api.On("User", mock.Anything, "tok123").
		Return(user, nil).Once()

	m := session.New(api)
	m.Bootstrap(context.Background(), "https://app.example.com/callback#access_token=tok123&refresh_token=ref456&expires_in=7200")

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, session.DefaultHomePath, m.State().RedirectTo)

	api.AssertExpectations(t)
}
