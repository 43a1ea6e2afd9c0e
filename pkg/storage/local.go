// Package storage provides persistence backends for the chat store. Each
// backend implements the adapter tiers declared in pkg/chat; the store
// discovers extra capability by interface assertion.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/logger"
)

// Local persists threads as JSON files under a directory. One file holds
// the thread listing per user, one file per thread holds its messages.
type Local struct {
	dir    string
	prefix string
	log    *logger.ComponentLogger
}

// NewLocal creates a file-backed adapter rooted at dir. Files are named
// {prefix}-threads-{user}.json and {prefix}-thread-{user}-{thread}.json.
func NewLocal(dir, prefix string) *Local {
	if prefix == "" {
		prefix = "spindle"
	}
	return &Local{
		dir:    dir,
		prefix: prefix,
		log:    logger.WithComponent("storage_local"),
	}
}

// ListThreads implements chat.Adapter. A missing listing file means no
// threads, not an error.
func (l *Local) ListThreads(userID string) ([]chat.ThreadMeta, error) {
	metas := make([]chat.ThreadMeta, 0)
	if err := l.readJSON(l.listingPath(userID), &metas); err != nil {
		return nil, err
	}
	return metas, nil
}

// LoadMessages implements chat.Adapter.
func (l *Local) LoadMessages(userID, threadID string) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0)
	if err := l.readJSON(l.threadPath(userID, threadID), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// PersistMessages implements chat.Adapter.
func (l *Local) PersistMessages(userID, threadID string, messages []chat.Message) error {
	if messages == nil {
		messages = make([]chat.Message, 0)
	}
	return l.writeJSON(l.threadPath(userID, threadID), messages)
}

// PersistMessage implements chat.MessageAdapter.
func (l *Local) PersistMessage(userID, threadID string, msg chat.Message) error {
	msgs, err := l.LoadMessages(userID, threadID)
	if err != nil {
		return err
	}
	msgs = append(msgs, msg)
	return l.writeJSON(l.threadPath(userID, threadID), msgs)
}

// UpdateMessage implements chat.MessageAdapter. An unknown message id is
// appended so repeated write-throughs converge.
func (l *Local) UpdateMessage(userID, threadID string, msg chat.Message) error {
	msgs, err := l.LoadMessages(userID, threadID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		msgs = append(msgs, msg)
	}
	return l.writeJSON(l.threadPath(userID, threadID), msgs)
}

// DeleteMessage implements chat.MessageAdapter.
func (l *Local) DeleteMessage(userID, threadID, messageID string) error {
	msgs, err := l.LoadMessages(userID, threadID)
	if err != nil {
		return err
	}
	kept := msgs[:0]
	for _, m := range msgs {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	return l.writeJSON(l.threadPath(userID, threadID), kept)
}

// CreateThread implements chat.ThreadAdapter.
func (l *Local) CreateThread(userID string, meta chat.ThreadMeta) error {
	return l.upsertMeta(userID, meta)
}

// UpdateThread implements chat.ThreadAdapter.
func (l *Local) UpdateThread(userID string, meta chat.ThreadMeta) error {
	return l.upsertMeta(userID, meta)
}

// DeleteThread implements chat.ThreadAdapter.
func (l *Local) DeleteThread(userID, threadID string) error {
	metas, err := l.ListThreads(userID)
	if err != nil {
		return err
	}
	kept := metas[:0]
	for _, m := range metas {
		if m.ID != threadID {
			kept = append(kept, m)
		}
	}
	if err := l.writeJSON(l.listingPath(userID), kept); err != nil {
		return err
	}
	if err := os.Remove(l.threadPath(userID, threadID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove thread file: %w", err)
	}
	return nil
}

func (l *Local) upsertMeta(userID string, meta chat.ThreadMeta) error {
	metas, err := l.ListThreads(userID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range metas {
		if metas[i].ID == meta.ID {
			metas[i] = meta
			replaced = true
			break
		}
	}
	if !replaced {
		metas = append(metas, meta)
	}
	return l.writeJSON(l.listingPath(userID), metas)
}

func (l *Local) listingPath(userID string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-threads-%s.json", l.prefix, segment(userID)))
}

func (l *Local) threadPath(userID, threadID string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s-thread-%s-%s.json", l.prefix, segment(userID), segment(threadID)))
}

// segment makes an identifier safe to embed in a file name.
func segment(id string) string {
	if id == "" {
		return "default"
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(id)
}

// readJSON decodes a file into v. A missing file leaves v untouched and
// returns nil.
func (l *Local) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON writes v atomically: temp file in the same directory, then
// rename over the target.
func (l *Local) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		// Rename can fail across filesystems; fall back to a direct write.
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
	}
	l.log.Debug("wrote %s (%d bytes)", filepath.Base(path), len(data))
	return nil
}

var (
	_ chat.Adapter        = (*Local)(nil)
	_ chat.MessageAdapter = (*Local)(nil)
	_ chat.ThreadAdapter  = (*Local)(nil)
)
