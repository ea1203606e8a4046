package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecidePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  Decision
	}{
		{
			name:  "anonymous with quota",
			state: State{FreeUsesRemaining: 3},
			want:  Allow,
		},
		{
			name:  "anonymous exhausted",
			state: State{FreeUsesRemaining: 0},
			want:  RequireRegistration,
		},
		{
			name: "anonymous exhausted ignores subscription flag",
			// SubscriptionActive is meaningless without Authenticated and
			// must not change the outcome.
			state: State{SubscriptionActive: true, FreeUsesRemaining: 0},
			want:  RequireRegistration,
		},
		{
			name:  "authenticated with quota",
			state: State{Authenticated: true, FreeUsesRemaining: 1},
			want:  Allow,
		},
		{
			name:  "authenticated exhausted goes to subscription, not registration",
			state: State{Authenticated: true, FreeUsesRemaining: 0},
			want:  RequireSubscription,
		},
		{
			name:  "subscriber with zero quota",
			state: State{Authenticated: true, SubscriptionActive: true, FreeUsesRemaining: 0},
			want:  Allow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.state, ActionSendMessage))
		})
	}
}

func TestDecideStartFeatureIsFree(t *testing.T) {
	// Arming a feature never consumes quota, so even an exhausted anonymous
	// visitor may arm one; the denial happens at submission.
	exhausted := State{FreeUsesRemaining: 0}
	assert.Equal(t, Allow, Decide(exhausted, ActionStartFeature))
	assert.Equal(t, RequireRegistration, Decide(exhausted, ActionSendMessage))
}

func TestDecideSubscriberAlwaysAllowed(t *testing.T) {
	for _, free := range []int{-5, 0, 1, 100} {
		s := State{Authenticated: true, SubscriptionActive: true, FreeUsesRemaining: free}
		assert.Equal(t, Allow, Decide(s, ActionSendMessage), "free=%d", free)
	}
}

func TestDecideIsIdempotent(t *testing.T) {
	s := State{Authenticated: true, FreeUsesRemaining: 0}
	first := Decide(s, ActionSendMessage)
	second := Decide(s, ActionSendMessage)
	assert.Equal(t, first, second)
	// The state value itself is untouched.
	assert.Equal(t, 0, s.FreeUsesRemaining)
}

func TestWithFreeUsesClampsNegative(t *testing.T) {
	s := NewState().WithFreeUses(-2)
	assert.Equal(t, 0, s.FreeUsesRemaining)
	assert.Equal(t, RequireRegistration, Decide(s, ActionSendMessage))

	s = NewState().WithFreeUses(2)
	assert.Equal(t, 2, s.FreeUsesRemaining)
}

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	assert.False(t, s.Authenticated)
	assert.False(t, s.SubscriptionActive)
	assert.Equal(t, DefaultFreeUses, s.FreeUsesRemaining)
}
