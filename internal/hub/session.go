package hub

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"driftpad/internal/protocol"
)

// outboundBuffer bounds how many snapshots may queue for one session before
// it is considered too slow and dropped.
const outboundBuffer = 16

// Session is the per-connection actor. It keeps no note state between
// connections: everything it sends is read from the store at send time.
type Session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan protocol.Envelope
}

func newSession(h *Hub, conn *websocket.Conn) *Session {
	return &Session{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan protocol.Envelope, outboundBuffer),
	}
}

// run sends the connecting client its point-in-time snapshot, registers the
// session for broadcasts, then pumps messages until the connection drops.
// The snapshot is queued before registration so no broadcast can be ordered
// ahead of it: a client never observes a snapshot older than one it already
// applied from the same stream.
func (s *Session) run(ctx context.Context) {
	snapshot, err := s.hub.store.GetAll(ctx)
	if err != nil {
		slog.Error("failed to read snapshot for new session", "client", s.id, "err", err)
		_ = s.conn.Close()
		return
	}
	s.send <- protocol.ServerUpdate(snapshot)

	s.hub.register(s)
	slog.Info("session connected", "client", s.id)

	go s.writePump()
	s.readPump(ctx)
}

func (s *Session) readPump(ctx context.Context) {
	defer s.hub.unregister(s)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("read failed", "client", s.id, "err", err)
			}
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			slog.Warn("rejected message", "client", s.id, "err", err)
			continue
		}
		if env.Type != protocol.TypeSyncNotes {
			continue
		}
		s.hub.HandleBatch(ctx, s.id, env.Notes)
	}
}

func (s *Session) writePump() {
	for env := range s.send {
		if err := s.conn.WriteJSON(env); err != nil {
			slog.Warn("write failed", "client", s.id, "err", err)
			_ = s.conn.Close()
			return
		}
	}
}
