package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/idgen"
	"github.com/zyrolabs/zyro/internal/realtime"
)

// wsWriteTimeout bounds a single frame write to a client.
const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browsers send an Origin header; token auth is what gates the
	// connection, so cross-origin dashboards are allowed.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsControl is an inbound client control message.
type wsControl struct {
	Op        string `json:"op"` // "subscribe" or "unsubscribe"
	ProjectID string `json:"project_id"`
}

// wsReply is an outbound non-envelope frame: subscription acks and
// client-visible errors.
type wsReply struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// wsEventFrame wraps an envelope for delivery.
type wsEventFrame struct {
	Type  string           `json:"type"`
	Event *events.Envelope `json:"event"`
}

// wsTransport adapts a websocket connection to realtime.Transport.
// gorilla permits one concurrent writer, so every write (session
// envelopes, pings, and control acks from the read loop) goes through
// one mutex.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) WriteEnvelope(env *events.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return t.conn.WriteJSON(wsEventFrame{Type: "event", Event: env})
}

func (t *wsTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}

func (t *wsTransport) writeReply(reply wsReply) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = t.conn.WriteJSON(reply)
}

// handleRealtime handles GET /v1/realtime: upgrade, then serve the
// session until the client goes away or the session is torn down.
func (s *ZyroServer) handleRealtime(w http.ResponseWriter, r *http.Request) {
	var userID string
	if s.identity != nil {
		var err error
		userID, err = s.identity.CurrentUser(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}

	connID, err := idgen.GenerateWithPrefix("conn-")
	if err != nil {
		_ = conn.Close()
		return
	}

	transport := &wsTransport{conn: conn}
	sess := realtime.NewSession(connID, userID, transport, s.sessionCfg, func(closed *realtime.Session) {
		s.registry.UnsubscribeAll(closed.ID)
	})
	sess.Open()

	slog.Info("realtime: connection open", "connection_id", connID, "user_id", userID)

	conn.SetPongHandler(func(string) error {
		sess.Touch()
		return nil
	})

	// Read loop: control messages are processed one at a time, in
	// arrival order.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		sess.Touch()

		var ctl wsControl
		if err := json.Unmarshal(data, &ctl); err != nil {
			transport.writeReply(wsReply{Type: "error", Error: "invalid control message"})
			continue
		}
		s.handleControl(r, sess, transport, ctl)
	}

	sess.Close()
	slog.Info("realtime: connection closed", "connection_id", connID)
}

func (s *ZyroServer) handleControl(r *http.Request, sess *realtime.Session, transport *wsTransport, ctl wsControl) {
	if ctl.ProjectID == "" {
		transport.writeReply(wsReply{Type: "error", Error: "project_id is required"})
		return
	}

	switch ctl.Op {
	case "subscribe":
		err := s.registry.Subscribe(sess, ctl.ProjectID, func() bool {
			return s.authorizeRead(r, sess.UserID, ctl.ProjectID)
		})
		if errors.Is(err, realtime.ErrAuthorizationDenied) {
			transport.writeReply(wsReply{
				Type:      "error",
				ProjectID: ctl.ProjectID,
				Error:     "authorization_denied",
			})
			return
		}
		if errors.Is(err, realtime.ErrSessionClosed) {
			// The session was torn down mid-request; the read loop is
			// about to exit, so there is nobody to ack.
			return
		}
		transport.writeReply(wsReply{Type: "subscribed", ProjectID: ctl.ProjectID})
	case "unsubscribe":
		s.registry.Unsubscribe(sess.ID, ctl.ProjectID)
		transport.writeReply(wsReply{Type: "unsubscribed", ProjectID: ctl.ProjectID})
	default:
		transport.writeReply(wsReply{Type: "error", Error: "unknown op"})
	}
}

// authorizeRead checks project read access for a subscription. Without
// an identity layer every subscription is allowed.
func (s *ZyroServer) authorizeRead(r *http.Request, userID, projectID string) bool {
	if s.identity == nil {
		return true
	}
	ok, err := s.identity.CanReadProject(r.Context(), userID, projectID)
	if err != nil {
		slog.Warn("authorization check failed",
			"user_id", userID, "project_id", projectID, "error", err)
		return false
	}
	return ok
}
