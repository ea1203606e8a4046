package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateUserDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "ana@example.com", "hash", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, 3, u.FreeUsesRemaining)
	assert.False(t, u.SubscriptionActive(time.Now()))
	assert.Nil(t, u.LastLogin)

	state := u.State(time.Now())
	assert.True(t, state.Authenticated)
	assert.False(t, state.SubscriptionActive)
	assert.Equal(t, 3, state.FreeUsesRemaining)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "ana@example.com", "hash", "")
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, "ana@example.com", "other", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserLookups(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "ana@example.com", "hash", "")
	require.NoError(t, err)

	byEmail, err := s.UserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := s.UserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", byID.Email)

	_, err = s.UserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeFreeUse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "ana@example.com", "hash", "")
	require.NoError(t, err)

	for want := 2; want >= 0; want-- {
		n, err := s.ConsumeFreeUse(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// At zero the counter stays put; it never goes negative.
	n, err := s.ConsumeFreeUse(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSubscriptionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, "ana@example.com", "hash", "")
	require.NoError(t, err)

	require.NoError(t, s.ActivateSubscription(ctx, "ana@example.com", 30*24*time.Hour))
	u, err := s.UserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.True(t, u.SubscriptionActive(time.Now()))
	assert.True(t, u.State(time.Now()).SubscriptionActive)

	require.NoError(t, s.DeactivateSubscription(ctx, "ana@example.com"))
	u, err = s.UserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.False(t, u.SubscriptionActive(time.Now()))

	assert.ErrorIs(t, s.ActivateSubscription(ctx, "missing@example.com", time.Hour), ErrNotFound)
}

func TestUsageHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "ana@example.com", "hash", "")
	require.NoError(t, err)

	require.NoError(t, s.RecordUsage(ctx, u.ID, "precos", "Lisboa", "resposta"))
	require.NoError(t, s.RecordUsage(ctx, u.ID, "chat", "oi", "olá"))

	entries, err := s.RecentUsage(ctx, u.ID, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "chat", entries[0].Feature)
	assert.Equal(t, "precos", entries[1].Feature)
	assert.Equal(t, "Lisboa", entries[1].Query)
}
