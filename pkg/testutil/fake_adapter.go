package testutil

import (
	"sync"

	"github.com/spindleworks/spindle/pkg/chat"
)

// FakeAdapter implements all three storage adapter tiers in memory for
// testing. Every method records its call count and can be configured to
// fail on demand.
type FakeAdapter struct {
	mu      sync.Mutex
	threads map[string][]chat.Message
	metas   map[string]chat.ThreadMeta
	order   []string
	calls   map[string]int
	errors  map[string]error
}

// NewFakeAdapter creates an empty fake adapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		threads: make(map[string][]chat.Message),
		metas:   make(map[string]chat.ThreadMeta),
		calls:   make(map[string]int),
		errors:  make(map[string]error),
	}
}

// Seed installs a thread with messages without counting as a call.
func (f *FakeAdapter) Seed(meta chat.ThreadMeta, messages ...chat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.metas[meta.ID]; !ok {
		f.order = append(f.order, meta.ID)
	}
	f.metas[meta.ID] = meta
	f.threads[meta.ID] = append([]chat.Message{}, messages...)
}

// SetError configures a method (by name, e.g. "LoadMessages") to return
// the given error until cleared with a nil err.
func (f *FakeAdapter) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errors, method)
		return
	}
	f.errors[method] = err
}

// CallCount returns how many times a method was invoked.
func (f *FakeAdapter) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// StoredMessages returns the messages recorded for a thread.
func (f *FakeAdapter) StoredMessages(threadID string) []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Message{}, f.threads[threadID]...)
}

// StoredMeta returns the listing record for a thread.
func (f *FakeAdapter) StoredMeta(threadID string) (chat.ThreadMeta, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.metas[threadID]
	return m, ok
}

func (f *FakeAdapter) track(method string) error {
	f.calls[method]++
	return f.errors[method]
}

// ListThreads implements chat.Adapter.
func (f *FakeAdapter) ListThreads(userID string) ([]chat.ThreadMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("ListThreads"); err != nil {
		return nil, err
	}
	metas := make([]chat.ThreadMeta, 0, len(f.order))
	for _, id := range f.order {
		metas = append(metas, f.metas[id])
	}
	return metas, nil
}

// LoadMessages implements chat.Adapter.
func (f *FakeAdapter) LoadMessages(userID, threadID string) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("LoadMessages"); err != nil {
		return nil, err
	}
	return append([]chat.Message{}, f.threads[threadID]...), nil
}

// PersistMessages implements chat.Adapter.
func (f *FakeAdapter) PersistMessages(userID, threadID string, messages []chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("PersistMessages"); err != nil {
		return err
	}
	f.ensureThread(threadID)
	f.threads[threadID] = append([]chat.Message{}, messages...)
	return nil
}

// PersistMessage implements chat.MessageAdapter.
func (f *FakeAdapter) PersistMessage(userID, threadID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("PersistMessage"); err != nil {
		return err
	}
	f.ensureThread(threadID)
	f.threads[threadID] = append(f.threads[threadID], msg)
	return nil
}

// UpdateMessage implements chat.MessageAdapter.
func (f *FakeAdapter) UpdateMessage(userID, threadID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("UpdateMessage"); err != nil {
		return err
	}
	msgs := f.threads[threadID]
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i] = msg
			return nil
		}
	}
	return nil
}

// DeleteMessage implements chat.MessageAdapter.
func (f *FakeAdapter) DeleteMessage(userID, threadID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("DeleteMessage"); err != nil {
		return err
	}
	msgs := f.threads[threadID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			f.threads[threadID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return nil
}

// CreateThread implements chat.ThreadAdapter.
func (f *FakeAdapter) CreateThread(userID string, meta chat.ThreadMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("CreateThread"); err != nil {
		return err
	}
	if _, ok := f.metas[meta.ID]; !ok {
		f.order = append(f.order, meta.ID)
	}
	f.metas[meta.ID] = meta
	f.ensureThread(meta.ID)
	return nil
}

// DeleteThread implements chat.ThreadAdapter.
func (f *FakeAdapter) DeleteThread(userID, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("DeleteThread"); err != nil {
		return err
	}
	delete(f.metas, threadID)
	delete(f.threads, threadID)
	for i, id := range f.order {
		if id == threadID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

// UpdateThread implements chat.ThreadAdapter.
func (f *FakeAdapter) UpdateThread(userID string, meta chat.ThreadMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.track("UpdateThread"); err != nil {
		return err
	}
	if _, ok := f.metas[meta.ID]; !ok {
		f.order = append(f.order, meta.ID)
	}
	f.metas[meta.ID] = meta
	return nil
}

func (f *FakeAdapter) ensureThread(threadID string) {
	if _, ok := f.threads[threadID]; !ok {
		f.threads[threadID] = make([]chat.Message, 0)
	}
}

// BatchAdapter narrows a FakeAdapter to the base tier so tests can
// exercise the full-rewrite fallback path.
type BatchAdapter struct {
	fake *FakeAdapter
}

// NewBatchAdapter wraps a fake adapter, exposing only batch persistence.
func NewBatchAdapter(fake *FakeAdapter) *BatchAdapter {
	return &BatchAdapter{fake: fake}
}

// ListThreads implements chat.Adapter.
func (b *BatchAdapter) ListThreads(userID string) ([]chat.ThreadMeta, error) {
	return b.fake.ListThreads(userID)
}

// LoadMessages implements chat.Adapter.
func (b *BatchAdapter) LoadMessages(userID, threadID string) ([]chat.Message, error) {
	return b.fake.LoadMessages(userID, threadID)
}

// PersistMessages implements chat.Adapter.
func (b *BatchAdapter) PersistMessages(userID, threadID string, messages []chat.Message) error {
	return b.fake.PersistMessages(userID, threadID, messages)
}

var (
	_ chat.Adapter        = (*FakeAdapter)(nil)
	_ chat.MessageAdapter = (*FakeAdapter)(nil)
	_ chat.ThreadAdapter  = (*FakeAdapter)(nil)
	_ chat.Adapter        = (*BatchAdapter)(nil)
)
