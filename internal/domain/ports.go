package domain

import (
	"context"
	"time"
)

// AIClient produces the next assistant reply for a conversation.
// The last turn of conv is the new user turn.
type AIClient interface {
	Reply(ctx context.Context, conv Conversation) (string, error)
}

// SessionStore persists conversations keyed by identity.
type SessionStore interface {
	// Load returns the stored conversation, or an empty one when none exists.
	Load(ctx context.Context, id Identity) (Conversation, error)
	// Save replaces the stored conversation for id.
	Save(ctx context.Context, id Identity, conv Conversation) error
	// Expire removes the conversation for id. Unknown identities are ignored.
	Expire(ctx context.Context, id Identity) error
	// Sweep removes conversations last saved before cutoff and reports how many.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}
