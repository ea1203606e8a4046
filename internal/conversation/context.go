package conversation

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// History layers context building on top of the repository: the assistant sees
// the feature's system message followed by the most recent turns.
type History struct {
	repo     *Repo
	maxTurns int
}

// NewHistory caps the model context at maxTurns stored messages.
func NewHistory(repo *Repo, maxTurns int) *History {
	return &History{repo: repo, maxTurns: maxTurns}
}

// SaveUser appends the user's prompt to the session history.
func (h *History) SaveUser(ctx context.Context, sessionID, prompt string) error {
	return h.repo.AddMessage(ctx, sessionID, schema.UserMessage(prompt))
}

// SaveResponse appends the assistant's reply to the session history.
func (h *History) SaveResponse(ctx context.Context, sessionID, content string) error {
	return h.repo.AddMessage(ctx, sessionID, schema.AssistantMessage(content, nil))
}

// BuildContext returns the message list for one generation: system message
// first, then the trailing window of stored history.
func (h *History) BuildContext(ctx context.Context, sessionID, systemPrompt string) ([]*schema.Message, error) {
	stored, err := h.repo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, len(stored)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, trimTail(stored, h.maxTurns)...)
	return messages, nil
}

// Clear drops the session's history.
func (h *History) Clear(ctx context.Context, sessionID string) error {
	return h.repo.ClearHistory(ctx, sessionID)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
