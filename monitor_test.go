package session_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMonitorSkipsLiveToken(t *testing.T) {
	api := &MockAPI{}
	scheduler := &manualScheduler{}

	api.On("Login", mock.Anything, mock.Anything).
		Return(testTokens(testUser()), nil).Once()

	m := session.New(api,
		session.WithScheduler(scheduler),
		session.WithExpiryPolicy(session.StaticExpiry(false)),
	)

	require.NoError(t, m.Login(context.Background(), validCredentials()))
	scheduler.Tick()

	assert.True(t, m.IsAuthenticated())
	api.AssertNotCalled(t, "RefreshToken", mock.Anything, mock.Anything)
}

func TestMonitorRefreshesStaleToken(t *testing.T) {
	api := &MockAPI{}
	scheduler := &manualScheduler{}
	user := testUser()

	rotated := &session.TokenPair{
		AccessToken:  "access-token-2",
		RefreshToken: "refresh-token-2",
		ExpiresIn:    3600,
		TokenType:    "bearer",
		User:         user,
	}

	api.On("Login", mock.Anything, mock.Anything).
		Return(testTokens(user), nil).Once()
	api.On("RefreshToken", mock.Anything, "refresh-token-1").
		Return(rotated, nil).Once()

	m := session.New(api,
		session.WithScheduler(scheduler),
		session.WithExpiryPolicy(session.StaticExpiry(true)),
	)

	require.NoError(t, m.Login(context.Background(), validCredentials()))
	scheduler.Tick()

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "access-token-2", m.State().Tokens.AccessToken)

	api.AssertExpectations(t)
}

func TestMonitorClearsSessionWithoutRefreshToken(t *testing.T) {
	api := &MockAPI{}
	scheduler := &manualScheduler{}

	tokens := testTokens(testUser())
	tokens.RefreshToken = ""

	api.On("Login", mock.Anything, mock.Anything).
		Return(tokens, nil).Once()

	m := session.New(api,
		session.WithScheduler(scheduler),
		session.WithExpiryPolicy(session.StaticExpiry(true)),
	)

	var events []session.ErrorEvent
	m.OnError(func(e session.ErrorEvent) { events = append(events, e) })

	require.NoError(t, m.Login(context.Background(), validCredentials()))
	scheduler.Tick()

	assert.False(t, m.IsAuthenticated())
	require.Len(t, events, 1)
	assert.True(t, session.IsSessionExpiredError(events[0].Err))
}

func TestMonitorEmitsErrorOnFailedRefresh(t *testing.T) {
	api := &MockAPI{}
	scheduler := &manualScheduler{}

	api.On("Login", mock.Anything, mock.Anything).
		Return(testTokens(testUser()), nil).Once()
	api.On("RefreshToken", mock.Anything, "refresh-token-1").
		Return(nil, session.ErrNetwork).Once()

	m := session.New(api,
		session.WithScheduler(scheduler),
		session.WithExpiryPolicy(session.StaticExpiry(true)),
	)

	var events []session.ErrorEvent
	m.OnError(func(e session.ErrorEvent) { events = append(events, e) })

	require.NoError(t, m.Login(context.Background(), validCredentials()))
	scheduler.Tick()

	assert.False(t, m.IsAuthenticated())
	require.Len(t, events, 1)
	assert.True(t, session.IsSessionExpiredError(events[0].Err))
}

func TestMonitorTickAfterLogoutIsNoop(t *testing.T) {
	api := &MockAPI{}
	scheduler := &manualScheduler{}

	api.On("Login", mock.Anything, mock.Anything).
		Return(testTokens(testUser()), nil).Once()
	api.On("Logout", mock.Anything, mock.Anything).Return(nil).Once()

	m := session.New(api,
		session.WithScheduler(scheduler),
		session.WithExpiryPolicy(session.StaticExpiry(true)),
	)

	require.NoError(t, m.Login(context.Background(), validCredentials()))
	require.NoError(t, m.Logout(context.Background()))

	// The stale tick fires anyway; with no tokens held it must do nothing.
	scheduler.Tick()

	api.AssertNotCalled(t, "RefreshToken", mock.Anything, mock.Anything)
}

func TestMonitorRestartsAcrossSessions(t *testing.T) {
	api := &MockAPI{}
	scheduler := &manualScheduler{}

	api.On("Login", mock.Anything, mock.Anything).
		Return(testTokens(testUser()), nil).Twice()
	api.On("Logout", mock.Anything, mock.Anything).Return(nil).Once()

	m := session.New(api, session.WithScheduler(scheduler))

	require.NoError(t, m.Login(context.Background(), validCredentials()))
	require.NoError(t, m.Logout(context.Background()))
	require.NoError(t, m.Login(context.Background(), validCredentials()))

	assert.Equal(t, 2, scheduler.Starts())
	assert.Equal(t, 1, scheduler.Stops())
}

func TestMonitorRefreshReplacesTimer(t *testing.T) {
	api := &MockAPI{}
	scheduler := &manualScheduler{}
	user := testUser()

	api.On("Login", mock.Anything, mock.Anything).
		Return(testTokens(user), nil).Once()
	api.On("RefreshToken", mock.Anything, "refresh-token-1").
		Return(&session.TokenPair{
			AccessToken:  "access-token-2",
			RefreshToken: "refresh-token-2",
			ExpiresIn:    3600,
			TokenType:    "bearer",
			User:         user,
		}, nil).Once()

	m := session.New(api, session.WithScheduler(scheduler))

	require.NoError(t, m.Login(context.Background(), validCredentials()))
	require.NoError(t, m.Refresh(context.Background()))

	// Adopting the rotated pair restarts the monitor, stopping the old one.
	assert.Equal(t, 2, scheduler.Starts())
	assert.Equal(t, 1, scheduler.Stops())
}
