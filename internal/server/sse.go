package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/idgen"
	"github.com/zyrolabs/zyro/internal/realtime"
)

var errStreamClosed = errors.New("sse: stream closed")

// sseTransport adapts an SSE response to realtime.Transport. SSE is
// one-way: the client never sends frames, so a successful keepalive
// write counts as liveness and client disconnects surface through the
// request context instead of a read loop.
type sseTransport struct {
	mu      sync.Mutex
	closed  bool
	w       http.ResponseWriter
	flusher http.Flusher
	touch   func()
}

func (t *sseTransport) WriteEnvelope(env *events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprintf(t.w, "event:%s\ndata:%s\n\n", env.Topic(), data); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

func (t *sseTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errStreamClosed
	}
	if _, err := fmt.Fprint(t.w, ":keepalive\n\n"); err != nil {
		return err
	}
	t.flusher.Flush()
	if t.touch != nil {
		t.touch()
	}
	return nil
}

// Close marks the stream closed. Taking the write lock means an
// in-flight write finishes before Close returns, and the closed flag
// keeps any later write off the ResponseWriter; the handler is free to
// return the moment the session reports closed.
func (t *sseTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// handleEventStream handles GET /v1/events/stream. Subscriptions are
// fixed at connect time via the projects query parameter; clients that
// need to change subscriptions use the websocket endpoint.
func (s *ZyroServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var projects []string
	for _, p := range strings.Split(r.URL.Query().Get("projects"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			projects = append(projects, p)
		}
	}
	if len(projects) == 0 {
		writeError(w, http.StatusBadRequest, "projects query parameter is required")
		return
	}

	var userID string
	if s.identity != nil {
		var err error
		userID, err = s.identity.CurrentUser(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
	}

	// Authorization is checked up front: subscriptions are fixed for the
	// life of the stream, and a denied project must be reportable before
	// the response status is committed.
	var allowed []string
	for _, pid := range projects {
		if s.authorizeRead(r, userID, pid) {
			allowed = append(allowed, pid)
		} else {
			slog.Debug("sse: subscription denied", "user_id", userID, "project_id", pid)
		}
	}
	if len(allowed) == 0 {
		writeError(w, http.StatusForbidden, "no readable projects in subscription list")
		return
	}

	connID, err := idgen.GenerateWithPrefix("conn-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create connection")
		return
	}

	transport := &sseTransport{w: w, flusher: flusher}
	done := make(chan struct{})
	sess := realtime.NewSession(connID, userID, transport, s.sessionCfg, func(closed *realtime.Session) {
		s.registry.UnsubscribeAll(closed.ID)
		close(done)
	})
	transport.touch = sess.Touch

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Open before subscribing: the broker treats delivery to a
	// not-yet-open session as a dead connection.
	sess.Open()
	for _, pid := range allowed {
		_ = s.registry.Subscribe(sess, pid, nil)
	}
	slog.Info("sse: stream open", "connection_id", connID, "projects", len(allowed))

	select {
	case <-r.Context().Done():
		sess.Close()
		<-done
	case <-done:
	}
	slog.Info("sse: stream closed", "connection_id", connID)
}
