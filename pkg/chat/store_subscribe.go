package chat

// Change describes a store mutation delivered to observers. Messages is
// a snapshot of the affected thread after the change; observers must not
// mutate it.
type Change struct {
	Op       string
	ThreadID string
	Messages []Message
}

const (
	OpMessageAdded    = "message.added"
	OpMessageUpdated  = "message.updated"
	OpMessageDeleted  = "message.deleted"
	OpMessagesCleared = "messages.cleared"
	OpThreadCreated   = "thread.created"
	OpThreadDeleted   = "thread.deleted"
	OpThreadSwitched  = "thread.switched"
	OpThreadHydrated  = "thread.hydrated"
	OpAdapterSet      = "adapter.set"
)

type storeSub struct {
	id int
	fn func(Change)
}

// Subscribe registers an observer for store changes and returns an
// unsubscribe function. Observers are invoked synchronously after the
// mutation is applied; calling back into the store is allowed.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, storeSub{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// notify fans a change out to observers outside the lock.
func (s *Store) notify(op, threadID string, msgs []Message) {
	s.mu.RLock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, sub := range s.subs {
		fns = append(fns, sub.fn)
	}
	s.mu.RUnlock()

	if len(fns) == 0 {
		return
	}
	change := Change{Op: op, ThreadID: threadID, Messages: msgs}
	for _, fn := range fns {
		fn(change)
	}
}
