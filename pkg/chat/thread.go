package chat

import "time"

// DefaultThreadID names the thread that always exists and cannot be
// deleted.
const DefaultThreadID = "default"

// Thread is an independently addressable, ordered message sequence.
type Thread struct {
	ID         string    `json:"id"`
	Messages   []Message `json:"messages"`
	LastLoaded time.Time `json:"-"`
}

// ThreadMeta is the listing record for a thread.
type ThreadMeta struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastMessage string    `json:"last_message,omitempty"`
}
