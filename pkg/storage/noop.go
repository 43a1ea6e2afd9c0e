package storage

import "github.com/spindleworks/spindle/pkg/chat"

// Noop satisfies the required adapter tier without storing anything.
// Used for ephemeral sessions where persistence is disabled.
type Noop struct{}

// NewNoop creates a no-op adapter.
func NewNoop() *Noop {
	return &Noop{}
}

// ListThreads implements chat.Adapter.
func (*Noop) ListThreads(userID string) ([]chat.ThreadMeta, error) {
	return []chat.ThreadMeta{}, nil
}

// LoadMessages implements chat.Adapter.
func (*Noop) LoadMessages(userID, threadID string) ([]chat.Message, error) {
	return []chat.Message{}, nil
}

// PersistMessages implements chat.Adapter.
func (*Noop) PersistMessages(userID, threadID string, messages []chat.Message) error {
	return nil
}

var _ chat.Adapter = (*Noop)(nil)
