package trading

import (
	"context"
	"log/slog"
	"time"
)

// StartJanitor launches the fixed-interval sweep that expires idle
// invites and sessions. It stops when ctx is cancelled.
func (m *Manager) StartJanitor(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// sweep cancels every session past its class-specific timeout. Unanswered
// invites lapse fastest; active negotiations get the idle timeout; the
// hard age ceiling fires regardless of activity so a pair cannot hold
// their trading slots forever.
func (m *Manager) sweep() {
	now := m.now()
	for _, s := range m.store.Snapshot() {
		m.mu.Lock()
		live, ok := m.store.Get(s.Key)
		if !ok || live != s || live.Terminal() {
			m.mu.Unlock()
			continue
		}

		var reason string
		switch {
		case live.State == StatePendingInvite && now.Sub(live.CreatedAt) > m.cfg.InviteTimeout:
			reason = "invite_timeout"
		case live.State != StatePendingInvite && now.Sub(live.LastUpdate) > m.cfg.IdleTimeout:
			reason = "idle_timeout"
		case now.Sub(live.CreatedAt) > m.cfg.MaxSessionAge:
			reason = "max_age"
		}
		if reason == "" {
			m.mu.Unlock()
			continue
		}

		m.terminate(live, StateCancelled)
		m.mu.Unlock()

		slog.Info("Trade expired",
			slog.String("type", "trade"),
			slog.String("key", live.Key),
			slog.String("reason", reason))
		if m.notifier != nil {
			m.notifier.TradeExpired(live)
		}
	}
}
