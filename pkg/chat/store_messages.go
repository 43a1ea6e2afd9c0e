package chat

import (
	"time"

	"github.com/google/uuid"
)

// AddMessage appends a message to a thread, creating the thread when it
// does not exist. An empty threadID targets the current thread. The
// stored message (with generated id and timestamp, if absent) is
// returned.
func (s *Store) AddMessage(msg Message, persist bool, threadID string) Message {
	s.mu.Lock()
	id := s.resolveThreadLocked(threadID)
	t, _ := s.ensureThreadLocked(id)
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Type == "" {
		msg.Type = TypeText
	}
	t.Messages = append(t.Messages, msg)
	s.touchMetaLocked(id)
	adapter, userID, batch, meta := s.persistStateLocked(id)
	s.mu.Unlock()

	if persist {
		s.persistNew(adapter, userID, id, msg, batch)
		s.persistMeta(adapter, userID, meta)
	}
	s.notify(OpMessageAdded, id, batch)
	return msg
}

// AppendToLatest extends the latest message in a thread when that message
// is an assistant-authored plain text message; otherwise it starts a new
// assistant message. This lets a stream of chunks coalesce into one
// growing message instead of one message per fragment.
func (s *Store) AppendToLatest(content string, persist bool, threadID string) Message {
	s.mu.Lock()
	id := s.resolveThreadLocked(threadID)
	t, _ := s.ensureThreadLocked(id)

	var msg Message
	extended := false
	if n := len(t.Messages); n > 0 {
		last := &t.Messages[n-1]
		if last.IsAssistant() && last.IsPlainText() {
			last.Content += content
			msg = *last
			extended = true
		}
	}
	if !extended {
		msg = NewAssistantMessage(content)
		t.Messages = append(t.Messages, msg)
	}
	s.touchMetaLocked(id)
	adapter, userID, batch, meta := s.persistStateLocked(id)
	s.mu.Unlock()

	if persist {
		if extended {
			s.persistUpdate(adapter, userID, id, msg, batch)
		} else {
			s.persistNew(adapter, userID, id, msg, batch)
		}
		s.persistMeta(adapter, userID, meta)
	}
	if extended {
		s.notify(OpMessageUpdated, id, batch)
	} else {
		s.notify(OpMessageAdded, id, batch)
	}
	return msg
}

// UpdateMessage applies mutate to a message in place. The message id is
// preserved across the mutation. Returns false when the thread or
// message does not exist.
func (s *Store) UpdateMessage(messageID string, mutate func(*Message), persist bool, threadID string) bool {
	s.mu.Lock()
	id := s.resolveThreadLocked(threadID)
	t, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("cannot update message in unknown thread %s", id)
		return false
	}
	idx := indexOfMessage(t.Messages, messageID)
	if idx < 0 {
		s.mu.Unlock()
		s.log.Warn("cannot update unknown message %s in thread %s", messageID, id)
		return false
	}
	mutate(&t.Messages[idx])
	t.Messages[idx].ID = messageID
	msg := t.Messages[idx]
	s.touchMetaLocked(id)
	adapter, userID, batch, meta := s.persistStateLocked(id)
	s.mu.Unlock()

	if persist {
		s.persistUpdate(adapter, userID, id, msg, batch)
		s.persistMeta(adapter, userID, meta)
	}
	s.notify(OpMessageUpdated, id, batch)
	return true
}

// DeleteMessage removes a message from a thread. Returns false when the
// thread or message does not exist.
func (s *Store) DeleteMessage(messageID string, persist bool, threadID string) bool {
	s.mu.Lock()
	id := s.resolveThreadLocked(threadID)
	t, ok := s.threads[id]
	if !ok {
		s.mu.Unlock()
		s.log.Warn("cannot delete message from unknown thread %s", id)
		return false
	}
	idx := indexOfMessage(t.Messages, messageID)
	if idx < 0 {
		s.mu.Unlock()
		s.log.Warn("cannot delete unknown message %s in thread %s", messageID, id)
		return false
	}
	t.Messages = append(t.Messages[:idx], t.Messages[idx+1:]...)
	s.touchMetaLocked(id)
	adapter, userID, batch, meta := s.persistStateLocked(id)
	s.mu.Unlock()

	if persist {
		s.persistRemove(adapter, userID, id, messageID, batch)
		s.persistMeta(adapter, userID, meta)
	}
	s.notify(OpMessageDeleted, id, batch)
	return true
}

// ClearMessages empties a thread, keeping the thread itself.
func (s *Store) ClearMessages(persist bool, threadID string) {
	s.mu.Lock()
	id := s.resolveThreadLocked(threadID)
	t, _ := s.ensureThreadLocked(id)
	t.Messages = make([]Message, 0)
	s.touchMetaLocked(id)
	adapter, userID, batch, meta := s.persistStateLocked(id)
	s.mu.Unlock()

	if persist {
		s.persistBatch(adapter, userID, id, batch)
		s.persistMeta(adapter, userID, meta)
	}
	s.notify(OpMessagesCleared, id, batch)
}

// PersistThread writes a thread's full message list and listing record
// through the adapter. Streamed chunks accumulate in memory only, so
// callers invoke this once a stream completes to make the coalesced
// message durable.
func (s *Store) PersistThread(threadID string) {
	s.mu.RLock()
	id := s.resolveThreadLocked(threadID)
	adapter, userID, batch, meta := s.persistStateLocked(id)
	s.mu.RUnlock()

	s.persistBatch(adapter, userID, id, batch)
	s.persistMeta(adapter, userID, meta)
}

// Messages returns the current thread's messages. This is the flat
// convenience view that always mirrors the selected thread.
func (s *Store) Messages() []Message {
	return s.GetThreadMessages("")
}

// GetThreadMessages returns a copy of a thread's messages; an empty id
// means the current thread. Unknown threads yield an empty slice.
func (s *Store) GetThreadMessages(threadID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.resolveThreadLocked(threadID)
	t, ok := s.threads[id]
	if !ok {
		return []Message{}
	}
	msgs := make([]Message, len(t.Messages))
	copy(msgs, t.Messages)
	return msgs
}

// GetMessageByID finds a message in a thread.
func (s *Store) GetMessageByID(messageID string, threadID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.resolveThreadLocked(threadID)
	t, ok := s.threads[id]
	if !ok {
		return Message{}, false
	}
	idx := indexOfMessage(t.Messages, messageID)
	if idx < 0 {
		return Message{}, false
	}
	return t.Messages[idx], true
}

// GetMessagesByRole filters a thread's messages by role.
func (s *Store) GetMessagesByRole(role string, threadID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id := s.resolveThreadLocked(threadID)
	t, ok := s.threads[id]
	if !ok {
		return []Message{}
	}
	msgs := make([]Message, 0)
	for _, m := range t.Messages {
		if m.Role == role {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func indexOfMessage(msgs []Message, messageID string) int {
	for i := range msgs {
		if msgs[i].ID == messageID {
			return i
		}
	}
	return -1
}

// persistStateLocked snapshots everything a write-through needs so the
// adapter call can happen outside the lock.
func (s *Store) persistStateLocked(id string) (Adapter, string, []Message, ThreadMeta) {
	var batch []Message
	if t, ok := s.threads[id]; ok {
		batch = make([]Message, len(t.Messages))
		copy(batch, t.Messages)
	}
	var meta ThreadMeta
	if m, ok := s.metas[id]; ok {
		meta = *m
	}
	return s.adapter, s.opts.UserID, batch, meta
}

// persistNew writes a newly added message through the adapter, using the
// incremental tier when available.
func (s *Store) persistNew(adapter Adapter, userID, threadID string, msg Message, batch []Message) {
	if adapter == nil {
		return
	}
	if ma, ok := adapter.(MessageAdapter); ok {
		if err := ma.PersistMessage(userID, threadID, msg); err != nil {
			s.log.Warn("failed to persist message %s in thread %s: %v", msg.ID, threadID, err)
		}
		return
	}
	s.persistBatch(adapter, userID, threadID, batch)
}

// persistUpdate writes an updated message through the adapter, using the
// incremental tier when available.
func (s *Store) persistUpdate(adapter Adapter, userID, threadID string, msg Message, batch []Message) {
	if adapter == nil {
		return
	}
	if ma, ok := adapter.(MessageAdapter); ok {
		if err := ma.UpdateMessage(userID, threadID, msg); err != nil {
			s.log.Warn("failed to update message %s in thread %s: %v", msg.ID, threadID, err)
		}
		return
	}
	s.persistBatch(adapter, userID, threadID, batch)
}

// persistRemove deletes a message through the adapter, using the
// incremental tier when available.
func (s *Store) persistRemove(adapter Adapter, userID, threadID, messageID string, batch []Message) {
	if adapter == nil {
		return
	}
	if ma, ok := adapter.(MessageAdapter); ok {
		if err := ma.DeleteMessage(userID, threadID, messageID); err != nil {
			s.log.Warn("failed to delete message %s in thread %s: %v", messageID, threadID, err)
		}
		return
	}
	s.persistBatch(adapter, userID, threadID, batch)
}

// persistBatch rewrites a thread's full message list.
func (s *Store) persistBatch(adapter Adapter, userID, threadID string, batch []Message) {
	if adapter == nil {
		return
	}
	if err := adapter.PersistMessages(userID, threadID, batch); err != nil {
		s.log.Warn("failed to persist thread %s: %v", threadID, err)
	}
}

// persistMeta refreshes the thread's listing record when the backend
// supports the thread tier.
func (s *Store) persistMeta(adapter Adapter, userID string, meta ThreadMeta) {
	if meta.ID == "" {
		return
	}
	if ta, ok := adapter.(ThreadAdapter); ok {
		if err := ta.UpdateThread(userID, meta); err != nil {
			s.log.Warn("failed to update thread meta %s: %v", meta.ID, err)
		}
	}
}
