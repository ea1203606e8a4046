package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*miniredis.Miniredis, *Repo) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRepo(client, time.Hour)
}

func TestRepoRoundTrip(t *testing.T) {
	_, repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AddMessage(ctx, "sid-1", schema.UserMessage("oi")))
	require.NoError(t, repo.AddMessage(ctx, "sid-1", schema.AssistantMessage("olá!", nil)))

	msgs, err := repo.LoadHistory(ctx, "sid-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Equal(t, "oi", msgs[0].Content)
	assert.Equal(t, schema.Assistant, msgs[1].Role)

	// Sessions are isolated.
	msgs, err = repo.LoadHistory(ctx, "sid-2")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRepoClearHistory(t *testing.T) {
	_, repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AddMessage(ctx, "sid-1", schema.UserMessage("oi")))
	require.NoError(t, repo.ClearHistory(ctx, "sid-1"))

	msgs, err := repo.LoadHistory(ctx, "sid-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistoryExpiry(t *testing.T) {
	mr, repo := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AddMessage(ctx, "sid-1", schema.UserMessage("oi")))
	mr.FastForward(2 * time.Hour)

	msgs, err := repo.LoadHistory(ctx, "sid-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBuildContextCapsTurns(t *testing.T) {
	_, repo := setupRepo(t)
	ctx := context.Background()
	h := NewHistory(repo, 4)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.SaveUser(ctx, "sid-1", "pergunta"))
		require.NoError(t, h.SaveResponse(ctx, "sid-1", "resposta"))
	}

	msgs, err := h.BuildContext(ctx, "sid-1", "persona")
	require.NoError(t, err)
	// System message plus the trailing window.
	require.Len(t, msgs, 5)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "persona", msgs[0].Content)
	assert.Equal(t, schema.Assistant, msgs[len(msgs)-1].Role)
}
