// Package ws serves the live connection endpoints: conversation-scoped chat
// sessions and identity-scoped notification sessions.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/forumhq/comms/internal/bus"
	"github.com/forumhq/comms/internal/errs"
	"github.com/forumhq/comms/internal/model"
	"github.com/forumhq/comms/internal/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound event buffer per session.
	sendBuffer = 256
)

// inboundPayload is the client frame: a required message field.
type inboundPayload struct {
	Message string `json:"message"`
}

// errorPayload is echoed to the offending client only, never broadcast.
type errorPayload struct {
	Error string `json:"error"`
}

// Session is one live client connection. It authenticates before joining,
// binds to exactly one group for its lifetime, relays inbound messages to the
// conversation service and outbound group events to the client. Lifecycle is
// strictly connect, join, pump, leave; a new connection needs a new session.
type Session struct {
	id       string
	log      *zap.Logger
	conn     *websocket.Conn
	registry bus.Registry
	group    string
	identity model.Identity

	// Set for conversation-scoped sessions only; identity-scoped sessions
	// have no inbound message path.
	conversations  service.ConversationService
	conversationID uuid.UUID

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(log *zap.Logger, conn *websocket.Conn, registry bus.Registry, group string, identity model.Identity) *Session {
	return &Session{
		id:       uuid.Must(uuid.NewV4()).String(),
		log:      log,
		conn:     conn,
		registry: registry,
		group:    group,
		identity: identity,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

// ID uniquely identifies this session within the process.
func (s *Session) ID() string { return s.id }

// Deliver queues one event for the client. It never blocks the publisher: a
// closed session or a full buffer fails fast and the registry logs and moves
// on. Safe to call concurrently with the session's own receive processing.
func (s *Session) Deliver(event []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}
	select {
	case s.send <- event:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Run joins the session's group and pumps until the client disconnects or a
// send fails. Leaving the group is guaranteed on every exit path.
func (s *Session) Run(ctx context.Context) {
	s.registry.Join(ctx, s.group, s)
	defer func() {
		s.registry.Leave(context.WithoutCancel(ctx), s.group, s)
		s.close()
	}()

	go s.writePump()
	s.readPump(ctx)
}

// close tears the connection down exactly once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// readPump processes inbound frames one at a time until the connection drops.
func (s *Session) readPump(ctx context.Context) {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read", zap.String("group", s.group), zap.Error(err))
			}
			return
		}
		s.handleInbound(ctx, data)
	}
}

// handleInbound validates one client frame and forwards it to the
// conversation store. Malformed frames are reported back to this client only
// and never end the session.
func (s *Session) handleInbound(ctx context.Context, data []byte) {
	var in inboundPayload
	if err := json.Unmarshal(data, &in); err != nil {
		s.replyError("invalid payload: not valid JSON")
		return
	}
	if in.Message == "" {
		s.replyError("invalid payload: missing 'message' field")
		return
	}
	if s.conversations == nil {
		s.replyError("this endpoint does not accept messages")
		return
	}

	if _, err := s.conversations.Append(ctx, s.conversationID, s.identity, in.Message); err != nil {
		switch {
		case errors.Is(err, errs.ErrConversationNotFound):
			s.replyError("conversation not found")
		default:
			s.log.Error("append message",
				zap.String("conversation", s.conversationID.String()),
				zap.Error(err),
			)
			s.replyError("failed to send message")
		}
	}
}

// replyError sends an error frame to this client only.
func (s *Session) replyError(msg string) {
	payload, err := json.Marshal(errorPayload{Error: msg})
	if err != nil {
		return
	}
	if err := s.Deliver(payload); err != nil {
		s.log.Warn("error reply dropped", zap.String("group", s.group), zap.Error(err))
	}
}

// writePump drains the send buffer to the peer and keeps the connection
// alive with pings. A write failure closes the session.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case event := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, event); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
