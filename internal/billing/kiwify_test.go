package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viajai/server/internal/store"
)

const testSecret = "webhook-secret"

func sign(t *testing.T, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func setupWebhook(t *testing.T) (*Webhook, *store.Store) {
	t.Helper()

	users, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })

	return NewWebhook(users, testSecret), users
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"order.paid"}`)

	assert.True(t, VerifySignature(testSecret, payload, sign(t, payload)))
	assert.False(t, VerifySignature(testSecret, payload, "deadbeef"))
	assert.False(t, VerifySignature(testSecret, payload, ""))
	assert.False(t, VerifySignature("other-secret", payload, sign(t, payload)))
}

func TestHandleRejectsBadSignature(t *testing.T) {
	w, _ := setupWebhook(t)

	err := w.Handle(context.Background(), []byte(`{}`), "bogus")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestHandleActivatesSubscription(t *testing.T) {
	w, users := setupWebhook(t)
	ctx := context.Background()

	_, err := users.CreateUser(ctx, "ana@example.com", "hash", "")
	require.NoError(t, err)

	payload := []byte(`{"event":"order.paid","customer":{"email":"ana@example.com"}}`)
	require.NoError(t, w.Handle(ctx, payload, sign(t, payload)))

	u, err := users.UserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, u.SubscriptionActive(time.Now()))
	// One paid cycle lasts 30 days.
	assert.WithinDuration(t, time.Now().Add(SubscriptionDuration), *u.SubscriptionEnd, time.Minute)
}

func TestHandleDeactivationEvents(t *testing.T) {
	for _, ev := range []string{"subscription.canceled", "compra.recusada", "chargeback"} {
		t.Run(ev, func(t *testing.T) {
			w, users := setupWebhook(t)
			ctx := context.Background()

			_, err := users.CreateUser(ctx, "ana@example.com", "hash", "")
			require.NoError(t, err)
			require.NoError(t, users.ActivateSubscription(ctx, "ana@example.com", SubscriptionDuration))

			payload := []byte(`{"event":"` + ev + `","customer":{"email":"ana@example.com"}}`)
			require.NoError(t, w.Handle(ctx, payload, sign(t, payload)))

			u, err := users.UserByEmail(ctx, "ana@example.com")
			require.NoError(t, err)
			assert.False(t, u.SubscriptionActive(time.Now()))
		})
	}
}

func TestHandleAcknowledgesPendingAndUnknown(t *testing.T) {
	w, users := setupWebhook(t)
	ctx := context.Background()

	_, err := users.CreateUser(ctx, "ana@example.com", "hash", "")
	require.NoError(t, err)

	// Pending payment: acknowledged, no state change.
	payload := []byte(`{"event":"pix.gerado","customer":{"email":"ana@example.com"}}`)
	require.NoError(t, w.Handle(ctx, payload, sign(t, payload)))
	u, err := users.UserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.False(t, u.SubscriptionActive(time.Now()))

	// Unknown customer: acknowledged so the delivery is not retried forever.
	payload = []byte(`{"event":"order.paid","customer":{"email":"missing@example.com"}}`)
	require.NoError(t, w.Handle(ctx, payload, sign(t, payload)))
}
