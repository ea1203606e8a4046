// Package entitlement holds the tier model and the pure admission gate that
// decides whether a chat or feature action may proceed.
package entitlement

// DefaultFreeUses is the trial budget granted to every new visitor and account.
const DefaultFreeUses = 3

// State is an immutable snapshot of a caller's entitlement tier. It is always
// replaced wholesale after a probe, login, register, logout or successful
// dispatch; callers never patch individual fields.
type State struct {
	Authenticated      bool
	SubscriptionActive bool
	FreeUsesRemaining  int
}

// NewState returns the default state for a fresh, unauthenticated visitor.
func NewState() State {
	return State{FreeUsesRemaining: DefaultFreeUses}
}

// WithFreeUses returns a copy of the state with the remaining quota replaced by
// a server-reported value. Negative values are clamped to zero so a bad
// upstream count can never unlock extra uses or underflow the budget.
func (s State) WithFreeUses(n int) State {
	s.FreeUsesRemaining = ClampUses(n)
	return s
}

// ClampUses normalises a quota value adopted from storage or a response body.
func ClampUses(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Action identifies what the caller is attempting.
type Action int

const (
	// ActionStartFeature arms a feature on the input surface. It has no
	// backend cost and never consumes quota.
	ActionStartFeature Action = iota
	// ActionSendMessage submits text for generation, either to a feature
	// endpoint or to the generic chat. This is the gated, quota-consuming
	// action.
	ActionSendMessage
)

// Decision is the outcome of the admission gate.
type Decision int

const (
	Allow Decision = iota
	RequireRegistration
	RequireSubscription
)

// String returns a stable identifier for logging.
func (d Decision) String() string {
	switch d {
	case RequireRegistration:
		return "require_registration"
	case RequireSubscription:
		return "require_subscription"
	default:
		return "allow"
	}
}

// Decide is the admission gate. It is a pure function: no side effects, no
// quota mutation, and the same state always yields the same decision.
//
// The precedence is fixed and ordered. An anonymous visitor out of trial uses
// is asked to register; an authenticated user out of trial uses who never
// subscribed already has an account, so they are sent to the subscription flow
// instead. The two branches are mutually exclusive on Authenticated.
func Decide(s State, a Action) Decision {
	if a == ActionStartFeature {
		// Arming a feature is free; only submission is gated.
		return Allow
	}
	if !s.Authenticated && s.FreeUsesRemaining <= 0 {
		return RequireRegistration
	}
	if s.Authenticated && !s.SubscriptionActive && s.FreeUsesRemaining <= 0 {
		return RequireSubscription
	}
	return Allow
}
