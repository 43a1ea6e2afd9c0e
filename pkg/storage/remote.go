package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spindleworks/spindle/pkg/chat"
	"github.com/spindleworks/spindle/pkg/logger"
)

// RemoteOptions configures a Remote adapter.
type RemoteOptions struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Remote persists threads against an HTTP backend rooted at
// {baseURL}/threads. The server is expected to speak JSON:
//
//	GET    /threads                      list thread metadata
//	POST   /threads                      create a thread (meta body)
//	PUT    /threads/{id}                 update a thread (meta body)
//	DELETE /threads/{id}                 delete a thread
//	GET    /threads/{id}/messages        load messages
//	PUT    /threads/{id}/messages        replace all messages
//	POST   /threads/{id}/messages        append one message
//	PUT    /threads/{id}/messages/{mid}  update one message
//	DELETE /threads/{id}/messages/{mid}  delete one message
//
// The user id travels in the X-User-ID header.
type Remote struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *logger.ComponentLogger
}

// NewRemote creates an HTTP-backed adapter.
func NewRemote(opts RemoteOptions) *Remote {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.WithComponent("storage_remote"),
	}
}

// ListThreads implements chat.Adapter.
func (r *Remote) ListThreads(userID string) ([]chat.ThreadMeta, error) {
	metas := make([]chat.ThreadMeta, 0)
	if err := r.do(http.MethodGet, "/threads", userID, nil, &metas); err != nil {
		return nil, err
	}
	return metas, nil
}

// LoadMessages implements chat.Adapter.
func (r *Remote) LoadMessages(userID, threadID string) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0)
	if err := r.do(http.MethodGet, r.messagesPath(threadID), userID, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// PersistMessages implements chat.Adapter.
func (r *Remote) PersistMessages(userID, threadID string, messages []chat.Message) error {
	if messages == nil {
		messages = make([]chat.Message, 0)
	}
	return r.do(http.MethodPut, r.messagesPath(threadID), userID, messages, nil)
}

// PersistMessage implements chat.MessageAdapter.
func (r *Remote) PersistMessage(userID, threadID string, msg chat.Message) error {
	return r.do(http.MethodPost, r.messagesPath(threadID), userID, msg, nil)
}

// UpdateMessage implements chat.MessageAdapter.
func (r *Remote) UpdateMessage(userID, threadID string, msg chat.Message) error {
	return r.do(http.MethodPut, r.messagePath(threadID, msg.ID), userID, msg, nil)
}

// DeleteMessage implements chat.MessageAdapter.
func (r *Remote) DeleteMessage(userID, threadID, messageID string) error {
	return r.do(http.MethodDelete, r.messagePath(threadID, messageID), userID, nil, nil)
}

// CreateThread implements chat.ThreadAdapter.
func (r *Remote) CreateThread(userID string, meta chat.ThreadMeta) error {
	return r.do(http.MethodPost, "/threads", userID, meta, nil)
}

// UpdateThread implements chat.ThreadAdapter.
func (r *Remote) UpdateThread(userID string, meta chat.ThreadMeta) error {
	return r.do(http.MethodPut, r.threadPath(meta.ID), userID, meta, nil)
}

// DeleteThread implements chat.ThreadAdapter.
func (r *Remote) DeleteThread(userID, threadID string) error {
	return r.do(http.MethodDelete, r.threadPath(threadID), userID, nil, nil)
}

func (r *Remote) threadPath(threadID string) string {
	return "/threads/" + url.PathEscape(threadID)
}

func (r *Remote) messagesPath(threadID string) string {
	return r.threadPath(threadID) + "/messages"
}

func (r *Remote) messagePath(threadID, messageID string) string {
	return r.messagesPath(threadID) + "/" + url.PathEscape(messageID)
}

// do runs one JSON request. A nil out skips response decoding.
func (r *Remote) do(method, path, userID string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, r.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(detail) > 0 {
			return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
		}
		return fmt.Errorf("%s %s failed with status %d", method, path, resp.StatusCode)
	}

	r.log.Debug("%s %s -> %d", method, path, resp.StatusCode)
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

var (
	_ chat.Adapter        = (*Remote)(nil)
	_ chat.MessageAdapter = (*Remote)(nil)
	_ chat.ThreadAdapter  = (*Remote)(nil)
)
