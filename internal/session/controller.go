// Package session orchestrates one user submission end to end: refresh the
// entitlement snapshot, run the admission gate, dispatch to the assistant and
// adopt the server-confirmed quota.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/viajai/server/internal/assistant"
	"github.com/viajai/server/internal/catalog"
	"github.com/viajai/server/internal/conversation"
	"github.com/viajai/server/internal/entitlement"
	"github.com/viajai/server/internal/quota"
	"github.com/viajai/server/internal/store"
	logx "github.com/viajai/server/pkg/logger"
)

var (
	// ErrEmptyInput rejects blank submissions before the gate runs.
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy rejects a submission while another one is in flight for the
	// same session. Submissions are never interleaved.
	ErrBusy = errors.New("submission already in flight")
	// ErrRegistrationRequired is the gate denial for anonymous visitors out
	// of trial uses.
	ErrRegistrationRequired = errors.New("registration required")
	// ErrSubscriptionRequired is the gate denial for authenticated users out
	// of trial uses.
	ErrSubscriptionRequired = errors.New("subscription required")
)

// Identity is the resolved caller of one submission.
type Identity struct {
	// SessionID keys the conversation history and the in-flight guard.
	SessionID string
	// User is nil for anonymous visitors.
	User *store.User
	// ClientIP keys the anonymous trial quota.
	ClientIP string
}

// Result is a successful dispatch outcome. State is the wholesale-replaced
// entitlement snapshot after any quota consumption.
type Result struct {
	Feature  string
	Response string
	State    entitlement.State
}

// Controller runs the submission flow. One instance serves all sessions; each
// session processes at most one submission at a time.
type Controller struct {
	gen     assistant.Generator
	history *conversation.History
	users   *store.Store
	anon    *quota.AnonStore
	timeout time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewController wires the submission flow. A non-positive timeout disables the
// dispatch deadline.
func NewController(gen assistant.Generator, history *conversation.History, users *store.Store, anon *quota.AnonStore, timeout time.Duration) *Controller {
	return &Controller{
		gen:      gen,
		history:  history,
		users:    users,
		anon:     anon,
		timeout:  timeout,
		inflight: make(map[string]struct{}),
	}
}

// StateFor builds the caller's current entitlement snapshot: the account row
// for authenticated users, the per-IP trial counter for everyone else.
func (c *Controller) StateFor(ctx context.Context, id Identity) (entitlement.State, error) {
	if id.User != nil {
		return id.User.State(time.Now()), nil
	}

	remaining, err := c.anon.Remaining(ctx, id.ClientIP)
	if err != nil {
		return entitlement.State{}, err
	}
	return entitlement.NewState().WithFreeUses(remaining), nil
}

// Submit routes free text through the armed feature's payload builder and
// dispatches it. An empty feature id routes to the generic chat.
func (c *Controller) Submit(ctx context.Context, id Identity, featureID, rawText string) (*Result, error) {
	query := strings.TrimSpace(rawText)
	if query == "" {
		return nil, ErrEmptyInput
	}

	desc := catalog.Resolve(featureID)
	return c.dispatch(ctx, id, desc, desc.BuildPayload(rawText), query)
}

// SubmitPayload dispatches an already-structured feature payload, as sent by
// clients that build the wire shape themselves.
func (c *Controller) SubmitPayload(ctx context.Context, id Identity, featureID string, payload map[string]string) (*Result, error) {
	desc := catalog.Resolve(featureID)

	query := strings.TrimSpace(payload[desc.Fields[0]])
	if query == "" {
		return nil, ErrEmptyInput
	}
	return c.dispatch(ctx, id, desc, payload, query)
}

func (c *Controller) dispatch(ctx context.Context, id Identity, desc catalog.Descriptor, payload map[string]string, query string) (*Result, error) {
	if !c.acquire(id.SessionID) {
		return nil, ErrBusy
	}
	defer c.release(id.SessionID)

	state, err := c.StateFor(ctx, id)
	if err != nil {
		return nil, err
	}

	switch entitlement.Decide(state, entitlement.ActionSendMessage) {
	case entitlement.RequireRegistration:
		return nil, ErrRegistrationRequired
	case entitlement.RequireSubscription:
		return nil, ErrSubscriptionRequired
	}

	prompt := desc.Prompt(payload)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.history.SaveUser(ctx, id.SessionID, prompt); err != nil {
		return nil, err
	}

	messages, err := c.history.BuildContext(ctx, id.SessionID, desc.System)
	if err != nil {
		return nil, err
	}

	response, err := c.gen.Generate(ctx, messages)
	if err != nil {
		// Dispatch failed: no usage recorded, no quota consumed.
		return nil, err
	}

	newState := c.confirm(ctx, id, state, desc.ID, query, response)

	if err := c.history.SaveResponse(ctx, id.SessionID, response); err != nil {
		logx.Warn().Err(err).Str("sessionID", id.SessionID).Msg("failed to save assistant response")
	}

	logx.Info().
		Str("feature", desc.ID).
		Bool("authenticated", state.Authenticated).
		Int("free_uses_remaining", newState.FreeUsesRemaining).
		Msg("dispatch completed")

	return &Result{Feature: desc.ID, Response: response, State: newState}, nil
}

// confirm records usage and consumes one trial use after a successful
// dispatch. Subscribers keep their snapshot untouched; this is the only path
// that moves the quota.
func (c *Controller) confirm(ctx context.Context, id Identity, state entitlement.State, feature, query, response string) entitlement.State {
	if id.User != nil {
		if err := c.users.RecordUsage(ctx, id.User.ID, feature, query, response); err != nil {
			logx.Warn().Err(err).Int64("userID", id.User.ID).Msg("failed to record usage")
		}
	}

	if state.SubscriptionActive {
		return state
	}

	var (
		remaining int
		err       error
	)
	if id.User != nil {
		remaining, err = c.users.ConsumeFreeUse(ctx, id.User.ID)
	} else {
		remaining, err = c.anon.Consume(ctx, id.ClientIP)
	}
	if err != nil {
		logx.Error().Err(err).Msg("failed to consume trial use")
		return state
	}
	return state.WithFreeUses(remaining)
}

func (c *Controller) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[sessionID]; busy {
		return false
	}
	c.inflight[sessionID] = struct{}{}
	return true
}

func (c *Controller) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}
