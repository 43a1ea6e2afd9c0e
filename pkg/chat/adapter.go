package chat

// Adapter is the required persistence surface a storage backend must
// provide. All methods are batch-oriented; userID may be empty, in which
// case the backend applies its default user scope.
type Adapter interface {
	ListThreads(userID string) ([]ThreadMeta, error)
	LoadMessages(userID, threadID string) ([]Message, error)
	PersistMessages(userID, threadID string, messages []Message) error
}

// MessageAdapter is the optional incremental tier. Backends that
// implement it receive per-message writes instead of whole-thread
// rewrites.
type MessageAdapter interface {
	PersistMessage(userID, threadID string, msg Message) error
	UpdateMessage(userID, threadID string, msg Message) error
	DeleteMessage(userID, threadID, messageID string) error
}

// ThreadAdapter is the optional thread-metadata tier.
type ThreadAdapter interface {
	CreateThread(userID string, meta ThreadMeta) error
	DeleteThread(userID, threadID string) error
	UpdateThread(userID string, meta ThreadMeta) error
}
