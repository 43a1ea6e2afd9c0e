package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spindleworks/spindle/pkg/logger"
)

// Options configures a Store.
type Options struct {
	UserID       string
	DefaultTitle string
	AutoTitle    bool
	TitleLimit   int
}

// Store holds all threads and their messages, tracks the currently
// selected thread, and writes through to an optional storage adapter.
// In-memory state is the source of truth: adapter failures are logged
// and never surfaced to callers.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	metas   map[string]*ThreadMeta
	current string
	adapter Adapter
	opts    Options
	subs    []storeSub
	nextSub int
	log     *logger.ComponentLogger
}

// NewStore creates a Store with a selected default thread and no
// adapter.
func NewStore(opts Options) *Store {
	if opts.DefaultTitle == "" {
		opts.DefaultTitle = "New Conversation"
	}
	if opts.TitleLimit <= 0 {
		opts.TitleLimit = 48
	}
	s := &Store{
		threads: make(map[string]*Thread),
		metas:   make(map[string]*ThreadMeta),
		opts:    opts,
		log:     logger.WithComponent("chat_store"),
	}
	s.mu.Lock()
	s.ensureThreadLocked(DefaultThreadID)
	s.current = DefaultThreadID
	s.mu.Unlock()
	return s
}

// ensureThreadLocked fetches or creates a thread and its meta. Callers
// must hold the write lock.
func (s *Store) ensureThreadLocked(id string) (*Thread, bool) {
	if t, ok := s.threads[id]; ok {
		return t, false
	}
	t := &Thread{ID: id, Messages: make([]Message, 0)}
	s.threads[id] = t
	if _, ok := s.metas[id]; !ok {
		s.metas[id] = &ThreadMeta{ID: id, Title: s.opts.DefaultTitle, UpdatedAt: time.Now()}
	}
	return t, true
}

// resolveThreadLocked maps an empty thread id to the current selection.
func (s *Store) resolveThreadLocked(threadID string) string {
	if threadID != "" {
		return threadID
	}
	if s.current != "" {
		return s.current
	}
	return DefaultThreadID
}

// CreateThread creates a thread, generating an id when none is given.
// Creating an existing thread is a no-op. Returns the thread id.
func (s *Store) CreateThread(id string) string {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	_, created := s.ensureThreadLocked(id)
	var meta ThreadMeta
	if created {
		meta = *s.metas[id]
	}
	adapter := s.adapter
	userID := s.opts.UserID
	s.mu.Unlock()

	if created {
		s.log.Debug("created thread %s", id)
		if ta, ok := adapter.(ThreadAdapter); ok {
			if err := ta.CreateThread(userID, meta); err != nil {
				s.log.Warn("failed to persist thread %s: %v", id, err)
			}
		}
		s.notify(OpThreadCreated, id, nil)
	}
	return id
}

// SwitchThread selects a thread, creating it if needed and hydrating its
// messages from the adapter on first visit.
func (s *Store) SwitchThread(id string) {
	if id == "" {
		id = DefaultThreadID
	}
	s.CreateThread(id)

	s.mu.Lock()
	s.current = id
	t := s.threads[id]
	needLoad := t.LastLoaded.IsZero() && len(t.Messages) == 0 && s.adapter != nil
	snap := make([]Message, len(t.Messages))
	copy(snap, t.Messages)
	adapter := s.adapter
	userID := s.opts.UserID
	s.mu.Unlock()

	s.log.Debug("switched to thread %s", id)
	s.notify(OpThreadSwitched, id, snap)
	if needLoad {
		s.hydrate(adapter, userID, id)
	}
}

// DeleteThread removes a thread and its metadata. The default thread and
// the currently selected thread are protected: deleting them logs a
// warning and returns false without mutating anything.
func (s *Store) DeleteThread(id string) bool {
	s.mu.Lock()
	if id == DefaultThreadID || id == s.current {
		s.mu.Unlock()
		s.log.Warn("refusing to delete protected thread %s", id)
		return false
	}
	_, hasThread := s.threads[id]
	_, hasMeta := s.metas[id]
	if !hasThread && !hasMeta {
		s.mu.Unlock()
		s.log.Warn("cannot delete unknown thread %s", id)
		return false
	}
	delete(s.threads, id)
	delete(s.metas, id)
	adapter := s.adapter
	userID := s.opts.UserID
	s.mu.Unlock()

	if ta, ok := adapter.(ThreadAdapter); ok {
		if err := ta.DeleteThread(userID, id); err != nil {
			s.log.Warn("failed to delete thread %s from storage: %v", id, err)
		}
	}
	s.notify(OpThreadDeleted, id, nil)
	return true
}

// CurrentThreadID returns the selected thread's id.
func (s *Store) CurrentThreadID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// GetAllThreadIDs returns every known thread id in sorted order.
func (s *Store) GetAllThreadIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.metas))
	for id := range s.metas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetThread returns a copy of a thread; an empty id means the current
// thread.
func (s *Store) GetThread(id string) (Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == "" {
		id = s.resolveThreadLocked("")
	}
	t, ok := s.threads[id]
	if !ok {
		return Thread{}, false
	}
	out := *t
	out.Messages = make([]Message, len(t.Messages))
	copy(out.Messages, t.Messages)
	return out, true
}

// GetThreadMetas returns listing records for all threads, most recently
// updated first.
func (s *Store) GetThreadMetas() []ThreadMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]ThreadMeta, 0, len(s.metas))
	for _, meta := range s.metas {
		metas = append(metas, *meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas
}

// SetAdapter swaps the persistence backend and rehydrates: thread
// metadata is listed, a thread is auto-selected (first listed, else a
// fresh default thread), and the selection's messages are loaded. Every
// failure along the way is logged, never returned; an empty store is an
// acceptable degraded state.
func (s *Store) SetAdapter(a Adapter) {
	s.mu.Lock()
	s.adapter = a
	s.threads = make(map[string]*Thread)
	s.metas = make(map[string]*ThreadMeta)
	s.current = ""
	userID := s.opts.UserID
	s.mu.Unlock()

	if a == nil {
		s.mu.Lock()
		s.ensureThreadLocked(DefaultThreadID)
		s.current = DefaultThreadID
		s.mu.Unlock()
		s.notify(OpAdapterSet, DefaultThreadID, nil)
		return
	}

	metas, err := a.ListThreads(userID)
	if err != nil {
		s.log.Warn("failed to list threads: %v", err)
		metas = nil
	}

	s.mu.Lock()
	for i := range metas {
		meta := metas[i]
		s.metas[meta.ID] = &meta
		s.threads[meta.ID] = &Thread{ID: meta.ID, Messages: make([]Message, 0)}
	}
	var selected string
	var createdMeta *ThreadMeta
	if len(metas) > 0 {
		selected = metas[0].ID
	} else {
		s.ensureThreadLocked(DefaultThreadID)
		selected = DefaultThreadID
		meta := *s.metas[DefaultThreadID]
		createdMeta = &meta
	}
	s.current = selected
	s.mu.Unlock()

	s.log.Info("adapter set, selected thread %s (%d listed)", selected, len(metas))

	if createdMeta != nil {
		if ta, ok := a.(ThreadAdapter); ok {
			if err := ta.CreateThread(userID, *createdMeta); err != nil {
				s.log.Warn("failed to persist default thread: %v", err)
			}
		}
	}

	s.notify(OpAdapterSet, selected, nil)
	s.hydrate(a, userID, selected)
}

// hydrate loads a thread's messages from the adapter, replacing the
// in-memory copy. Failures are logged and leave the thread empty.
func (s *Store) hydrate(adapter Adapter, userID, threadID string) {
	msgs, err := adapter.LoadMessages(userID, threadID)
	if err != nil {
		s.log.Warn("failed to load messages for thread %s: %v", threadID, err)
		return
	}
	if msgs == nil {
		msgs = make([]Message, 0)
	}

	s.mu.Lock()
	if t, ok := s.threads[threadID]; ok {
		t.Messages = msgs
		t.LastLoaded = time.Now()
	}
	s.mu.Unlock()
	s.log.Debug("hydrated thread %s with %d messages", threadID, len(msgs))

	snap := make([]Message, len(msgs))
	copy(snap, msgs)
	s.notify(OpThreadHydrated, threadID, snap)
}

// touchMetaLocked refreshes a thread's listing record from its current
// messages. Callers must hold the write lock.
func (s *Store) touchMetaLocked(id string) {
	meta, ok := s.metas[id]
	if !ok {
		meta = &ThreadMeta{ID: id, Title: s.opts.DefaultTitle}
		s.metas[id] = meta
	}
	meta.UpdatedAt = time.Now()

	t, ok := s.threads[id]
	if !ok {
		return
	}
	meta.LastMessage = ""
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Content != "" {
			meta.LastMessage = truncate(t.Messages[i].Content, s.opts.TitleLimit)
			break
		}
	}
	if s.opts.AutoTitle && meta.Title == s.opts.DefaultTitle {
		for _, m := range t.Messages {
			if m.IsUser() && m.Content != "" {
				meta.Title = truncate(m.Content, s.opts.TitleLimit)
				break
			}
		}
	}
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
