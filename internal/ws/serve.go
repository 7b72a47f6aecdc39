package ws

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/forumhq/comms/internal/auth"
	"github.com/forumhq/comms/internal/bus"
	"github.com/forumhq/comms/internal/limiter"
	"github.com/forumhq/comms/internal/model"
	"github.com/forumhq/comms/internal/service"
)

// Handler upgrades authenticated HTTP requests to live sessions. Credentials
// are checked before the upgrade so rejected clients get a plain HTTP status
// instead of a dropped socket.
type Handler struct {
	log           *zap.Logger
	registry      bus.Registry
	conversations service.ConversationService
	verifier      *auth.Verifier
	throttle      limiter.Limiter

	upgrader websocket.Upgrader
}

// NewHandler wires the live endpoints. throttle may be nil to disable
// connect throttling.
func NewHandler(log *zap.Logger, registry bus.Registry, conversations service.ConversationService, verifier *auth.Verifier, throttle limiter.Limiter) *Handler {
	return &Handler{
		log:           log,
		registry:      registry,
		conversations: conversations,
		verifier:      verifier,
		throttle:      throttle,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeConversation handles GET /ws/communications/{conversation_id}?token=...
// The session joins the conversation group and may send messages.
func (h *Handler) ServeConversation(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.FromString(chi.URLParam(r, "conversation_id"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	identity, ok := h.authenticate(w, r, "/ws/communications")
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	sess := newSession(h.log, conn, h.registry, bus.ConversationGroup(convID.String()), identity)
	sess.conversations = h.conversations
	sess.conversationID = convID

	// The request context dies when this handler returns; the session
	// outlives it on the hijacked connection.
	go sess.Run(context.Background())
}

// ServeNotifications handles GET /ws/notifications/{user_id}?token=...
// The token identity must match the path; sessions are receive-only.
func (h *Handler) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	identity, ok := h.authenticate(w, r, "/ws/notifications")
	if !ok {
		return
	}
	if identity.ID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	sess := newSession(h.log, conn, h.registry, bus.IdentityGroup(userID), identity)
	go sess.Run(context.Background())
}

// authenticate verifies the token query parameter and applies connect
// throttling per (endpoint, client IP). On failure it writes the HTTP
// response itself and returns ok=false.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, endpoint string) (model.Identity, bool) {
	ctx := r.Context()
	ipHash := limiter.HashIP(r.RemoteAddr)

	if h.throttle != nil {
		allowed, retryAfter, err := h.throttle.Allow(ctx, endpoint, ipHash)
		if err != nil {
			h.log.Error("throttle check", zap.String("endpoint", endpoint), zap.Error(err))
		} else if !allowed {
			h.log.Warn("connect throttled",
				zap.String("endpoint", endpoint),
				zap.Duration("retry_after", retryAfter),
			)
			http.Error(w, "too many failed attempts", http.StatusTooManyRequests)
			return model.Identity{}, false
		}
	}

	identity, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		if h.throttle != nil {
			if _, _, terr := h.throttle.Failure(ctx, endpoint, ipHash); terr != nil {
				h.log.Error("throttle record", zap.String("endpoint", endpoint), zap.Error(terr))
			}
		}
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return model.Identity{}, false
	}

	if h.throttle != nil {
		if err := h.throttle.Success(ctx, endpoint, ipHash); err != nil {
			h.log.Error("throttle reset", zap.String("endpoint", endpoint), zap.Error(err))
		}
	}
	return identity, true
}
