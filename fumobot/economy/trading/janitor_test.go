package trading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// An unanswered invite lapses after the invite timeout and releases both
// trading slots, so both parties can start fresh trades.
func TestSweepExpiresUnansweredInvite(t *testing.T) {
	m := newTestManager(newFakeStore())
	notifier := &recordingNotifier{}
	m.SetNotifier(notifier)

	s, err := m.Propose("alice", "Alice", "bob", "Bob", false)
	require.NoError(t, err)

	base := m.now()
	m.now = func() time.Time { return base.Add(m.cfg.InviteTimeout / 2) }
	m.sweep()
	_, ok := m.Session(s.Key)
	require.True(t, ok, "invite should survive half the timeout")

	m.now = func() time.Time { return base.Add(m.cfg.InviteTimeout + time.Second) }
	m.sweep()
	_, ok = m.Session(s.Key)
	require.False(t, ok)
	require.Equal(t, []string{s.Key}, notifier.expired)

	_, err = m.Propose("alice", "Alice", "carol", "Carol", false)
	require.NoError(t, err)
	_, err = m.Propose("bob", "Bob", "dave", "Dave", false)
	require.NoError(t, err)
}

func TestSweepExpiresIdleSession(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	base := m.now()
	m.now = func() time.Time { return base.Add(m.cfg.IdleTimeout + time.Second) }
	m.sweep()

	_, ok := m.Session(s.Key)
	require.False(t, ok)
}

// Activity keeps resetting the idle clock, but the hard age ceiling fires
// regardless.
func TestSweepEnforcesMaxSessionAge(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	base := s.CreatedAt
	elapsed := time.Duration(0)
	m.now = func() time.Time { return base.Add(elapsed) }

	step := m.cfg.IdleTimeout / 2
	for elapsed <= m.cfg.MaxSessionAge {
		elapsed += step
		// Touch the session so the idle timeout never triggers.
		_, err := m.ToggleAccept(s.Key, "alice", 0)
		if err != nil {
			break
		}
		m.sweep()
	}

	_, ok := m.Session(s.Key)
	require.False(t, ok)
}

// The invite timeout applies only to pending invites, not to accepted
// sessions.
func TestSweepInviteTimeoutIgnoresActiveSessions(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	base := m.now()
	m.now = func() time.Time { return base.Add(m.cfg.InviteTimeout + time.Second) }
	m.sweep()

	_, ok := m.Session(s.Key)
	require.True(t, ok)
}
