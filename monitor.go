package session

import "context"

// The liveness monitor is a recurring check that refreshes or invalidates
// the session when the access token is judged stale. It is started whenever
// a session becomes Authenticated and stopped on the next Anonymous
// transition; starting always stops the previous timer first, so at most one
// is ever active.

// startMonitorLocked replaces any running monitor. Caller holds m.mu.
func (m *Manager) startMonitorLocked() {
	m.stopMonitorLocked()
	m.stopMonitor = m.scheduler.Every(m.checkInterval, m.checkToken)
}

// stopMonitorLocked stops the running monitor, if any. Caller holds m.mu.
func (m *Manager) stopMonitorLocked() {
	if m.stopMonitor != nil {
		m.stopMonitor()
		m.stopMonitor = nil
	}
}

// checkToken is one monitor tick. A tick that overlaps a manual refresh may
// issue a redundant network call; the session ends up holding whichever
// response lands last.
func (m *Manager) checkToken() {
	ctx := context.Background()

	m.mu.Lock()
	tokens := m.state.Tokens.Clone()
	epoch := m.epoch
	now := m.now()
	m.mu.Unlock()

	if tokens == nil {
		return
	}

	if !m.expiry.IsExpired(tokens, now) {
		return
	}

	m.logger.Debug("access token stale, refreshing")

	if tokens.RefreshToken == "" {
		if err := m.clearSession(ctx); err != nil {
			m.logger.Warn("failed to clear session: %v", err)
		}
		m.emitError(ErrSessionExpired.Clone().WithMetadata(map[string]any{
			"reason": "no refresh token available",
		}))
		return
	}

	if err := m.refreshWith(ctx, tokens.RefreshToken, epoch); err != nil {
		m.emitError(err)
	}
}
