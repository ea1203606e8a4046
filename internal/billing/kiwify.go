// Package billing processes Kiwify webhook events. Checkout itself happens on
// Kiwify's side; this package only reacts to the signed notifications that
// activate or revoke subscriptions.
package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/viajai/server/internal/store"
	logx "github.com/viajai/server/pkg/logger"
)

// SubscriptionDuration is how long one paid cycle lasts.
const SubscriptionDuration = 30 * 24 * time.Hour

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "X-Kiwify-Signature"

// ErrInvalidSignature rejects unverified webhook deliveries.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// event is the subset of the Kiwify payload the service acts on.
type event struct {
	Event    string `json:"event"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// activating and deactivating map Kiwify event names to subscription moves.
// Pending-payment events (boleto/pix generated, abandoned cart) are
// acknowledged without touching state.
var (
	activating = map[string]bool{
		"order.paid":           true,
		"compra.aprovada":      true,
		"subscription.renewed": true,
	}
	deactivating = map[string]bool{
		"subscription.canceled": true,
		"subscription.refunded": true,
		"compra.recusada":       true,
		"assinatura.atrasada":   true,
		"chargeback":            true,
	}
)

// VerifySignature checks the HMAC-SHA256 hex signature over the raw body in
// constant time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Webhook applies verified billing events to the user store.
type Webhook struct {
	users  *store.Store
	secret string
}

// NewWebhook returns a handler bound to the shared webhook secret.
func NewWebhook(users *store.Store, secret string) *Webhook {
	return &Webhook{users: users, secret: secret}
}

// Handle verifies and applies one delivery. Unknown events and unknown
// customers are acknowledged so Kiwify stops redelivering them.
func (w *Webhook) Handle(ctx context.Context, payload []byte, signature string) error {
	if !VerifySignature(w.secret, payload, signature) {
		return ErrInvalidSignature
	}

	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	email := ev.Customer.Email
	if email == "" {
		logx.Warn().Str("event", ev.Event).Msg("webhook event without customer email")
		return nil
	}

	var err error
	switch {
	case activating[ev.Event]:
		err = w.users.ActivateSubscription(ctx, email, SubscriptionDuration)
	case deactivating[ev.Event]:
		err = w.users.DeactivateSubscription(ctx, email)
	default:
		logx.Debug().Str("event", ev.Event).Msg("ignoring webhook event")
		return nil
	}

	if errors.Is(err, store.ErrNotFound) {
		logx.Warn().Str("event", ev.Event).Str("email", email).Msg("webhook for unknown user")
		return nil
	}
	if err != nil {
		return err
	}

	logx.Info().Str("event", ev.Event).Str("email", email).Msg("subscription updated")
	return nil
}
