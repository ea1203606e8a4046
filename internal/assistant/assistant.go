// Package assistant wraps the text-generation backend. The rest of the
// service treats it as opaque: messages in, travel content out.
package assistant

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Generator produces one assistant reply for a prepared message context.
type Generator interface {
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
}
