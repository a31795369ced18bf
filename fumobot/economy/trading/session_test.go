package trading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want string
	}{
		{name: "sorted input", a: "100", b: "200", want: "100:200"},
		{name: "reversed input", a: "200", b: "100", want: "100:200"},
		{name: "lexicographic not numeric", a: "9", b: "10", want: "10:9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SessionKey(tt.a, tt.b))
		})
	}
}

func TestSessionKeyOrderIndependent(t *testing.T) {
	require.Equal(t, SessionKey("alice", "bob"), SessionKey("bob", "alice"))
}

func TestResetConsentClearsBothSides(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	s.SideA.Accepted = true
	s.SideB.Accepted = true
	s.State = StateBothAccepted
	s.SideA.Confirmed = true

	s.resetConsent()

	require.False(t, s.SideA.Accepted)
	require.False(t, s.SideB.Accepted)
	require.False(t, s.SideA.Confirmed)
	require.False(t, s.SideB.Confirmed)
	require.Equal(t, StateActive, s.State)
}

func TestSideAndOther(t *testing.T) {
	m := newTestManager(newFakeStore())
	s := activeSession(m)

	require.Equal(t, "alice", s.Side("alice").UserID)
	require.Equal(t, "bob", s.Other("alice").UserID)
	require.Nil(t, s.Side("mallory"))
	require.Nil(t, s.Other("mallory"))
}
