package storage

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleworks/spindle/pkg/chat"
)

type recordedRequest struct {
	method string
	path   string
	user   string
	auth   string
	body   []byte
}

// newRecordingServer captures every request and replies with the queued
// response bodies (empty queue -> 204).
func newRecordingServer(t *testing.T, responses ...string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	idx := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			user:   r.Header.Get("X-User-ID"),
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		if idx < len(responses) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(responses[idx]))
			idx++
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestRemoteListThreads(t *testing.T) {
	srv, requests := newRecordingServer(t, `[{"id":"t1","title":"First"},{"id":"t2","title":"Second"}]`)
	remote := NewRemote(RemoteOptions{BaseURL: srv.URL, Token: "secret"})

	metas, err := remote.ListThreads("alice")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "t1", metas[0].ID)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/threads", req.path)
	assert.Equal(t, "alice", req.user)
	assert.Equal(t, "Bearer secret", req.auth)
}

func TestRemoteLoadMessages(t *testing.T) {
	srv, requests := newRecordingServer(t, `[{"id":"m1","role":"user","type":"text","content":"hi","created_at":"2026-01-02T15:04:05Z"}]`)
	remote := NewRemote(RemoteOptions{BaseURL: srv.URL + "/"})

	msgs, err := remote.LoadMessages("alice", "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)

	req := (*requests)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/threads/t1/messages", req.path)
	assert.Empty(t, req.auth)
}

func TestRemotePersistMessages(t *testing.T) {
	srv, requests := newRecordingServer(t)
	remote := NewRemote(RemoteOptions{BaseURL: srv.URL})

	msgs := []chat.Message{chat.NewUserMessage("hello")}
	require.NoError(t, remote.PersistMessages("alice", "t1", msgs))

	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/threads/t1/messages", req.path)

	var sent []chat.Message
	require.NoError(t, json.Unmarshal(req.body, &sent))
	require.Len(t, sent, 1)
	assert.Equal(t, "hello", sent[0].Content)
}

func TestRemoteIncrementalMessages(t *testing.T) {
	srv, requests := newRecordingServer(t)
	remote := NewRemote(RemoteOptions{BaseURL: srv.URL})

	msg := chat.NewAssistantMessage("chunked")
	require.NoError(t, remote.PersistMessage("alice", "t1", msg))
	require.NoError(t, remote.UpdateMessage("alice", "t1", msg))
	require.NoError(t, remote.DeleteMessage("alice", "t1", msg.ID))

	require.Len(t, *requests, 3)
	assert.Equal(t, http.MethodPost, (*requests)[0].method)
	assert.Equal(t, "/threads/t1/messages", (*requests)[0].path)
	assert.Equal(t, http.MethodPut, (*requests)[1].method)
	assert.Equal(t, "/threads/t1/messages/"+msg.ID, (*requests)[1].path)
	assert.Equal(t, http.MethodDelete, (*requests)[2].method)
	assert.Equal(t, "/threads/t1/messages/"+msg.ID, (*requests)[2].path)
}

func TestRemoteThreadLifecycle(t *testing.T) {
	srv, requests := newRecordingServer(t)
	remote := NewRemote(RemoteOptions{BaseURL: srv.URL})

	meta := chat.ThreadMeta{ID: "t1", Title: "First"}
	require.NoError(t, remote.CreateThread("alice", meta))
	require.NoError(t, remote.UpdateThread("alice", meta))
	require.NoError(t, remote.DeleteThread("alice", "t1"))

	require.Len(t, *requests, 3)
	assert.Equal(t, http.MethodPost, (*requests)[0].method)
	assert.Equal(t, "/threads", (*requests)[0].path)
	assert.Equal(t, http.MethodPut, (*requests)[1].method)
	assert.Equal(t, "/threads/t1", (*requests)[1].path)
	assert.Equal(t, http.MethodDelete, (*requests)[2].method)
	assert.Equal(t, "/threads/t1", (*requests)[2].path)
}

func TestRemoteNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "thread not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	remote := NewRemote(RemoteOptions{BaseURL: srv.URL})

	_, err := remote.LoadMessages("alice", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "thread not found")
}

func TestRemoteServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	remote := NewRemote(RemoteOptions{BaseURL: srv.URL, Timeout: time.Second})

	_, err := remote.ListThreads("alice")
	require.Error(t, err)
}

func TestRemoteDecodeFailure(t *testing.T) {
	srv, _ := newRecordingServer(t, `not json`)
	remote := NewRemote(RemoteOptions{BaseURL: srv.URL})

	_, err := remote.ListThreads("alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestRemoteWithStore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /threads", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]chat.ThreadMeta{{ID: "remote-1", Title: "Remote"}})
	})
	mux.HandleFunc("GET /threads/remote-1/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]chat.Message{chat.NewUserMessage("from server")})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := chat.NewStore(chat.Options{UserID: "alice"})
	store.SetAdapter(NewRemote(RemoteOptions{BaseURL: srv.URL}))

	assert.Equal(t, "remote-1", store.CurrentThreadID())
	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "from server", msgs[0].Content)
}
