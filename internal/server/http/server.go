// Package httpserver exposes the REST boundary for conversations and
// notifications.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/forumhq/comms/internal/auth"
	"github.com/forumhq/comms/internal/errs"
	"github.com/forumhq/comms/internal/model"
	"github.com/forumhq/comms/internal/service"
)

// Server holds the REST handlers over the application services.
type Server struct {
	log           *zap.Logger
	conversations service.ConversationService
	notifications service.NotificationService
	verifier      *auth.Verifier
}

// New constructs the REST server.
func New(log *zap.Logger, conversations service.ConversationService, notifications service.NotificationService, verifier *auth.Verifier) *Server {
	return &Server{
		log:           log,
		conversations: conversations,
		notifications: notifications,
		verifier:      verifier,
	}
}

// Router builds the API route tree with logging, recovery and auth applied.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))

	r.Route("/api", func(r chi.Router) {
		r.Use(Auth(s.verifier))
		r.Post("/conversations", s.createConversation)
		r.Get("/conversations/{conversation_id}/messages", s.listMessages)
		r.Post("/messages", s.sendMessage)
		r.Get("/notifications", s.listNotifications)
		r.Post("/notifications/{notification_id}/read", s.markNotificationRead)
	})
	return r
}

type createConversationRequest struct {
	// Pointer distinguishes a missing key from an empty list.
	Participants *[]model.Identity `json:"participants"`
}

type createConversationResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromCtx(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "Empty request body")
		return
	}
	var req createConversationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Empty request body")
		return
	}
	if req.Participants == nil {
		writeError(w, http.StatusBadRequest, "Missing 'participants' key in request body")
		return
	}
	if len(*req.Participants) == 0 {
		writeError(w, http.StatusBadRequest, "'participants' empty in request body")
		return
	}

	conv, err := s.conversations.Create(r.Context(), identity, *req.Participants)
	if err != nil {
		if errors.Is(err, errs.ErrEmptyParticipants) {
			writeError(w, http.StatusBadRequest, "'participants' empty in request body")
			return
		}
		s.log.Error("create conversation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	writeJSON(w, http.StatusCreated, createConversationResponse{
		Message:        "Conversation created successfully!",
		ConversationID: conv.ID.String(),
	})
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromCtx(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "Empty request body")
		return
	}
	var req sendMessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Empty request body")
		return
	}
	if req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "Missing 'conversation_id' key in request body")
		return
	}
	convID, err := uuid.FromString(req.ConversationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Missing 'text' key in request body")
		return
	}

	if _, err := s.conversations.Append(r.Context(), convID, identity, req.Text); err != nil {
		if errors.Is(err, errs.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error("send message", zap.String("conversation", convID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, "Message sent successfully!")
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.FromString(chi.URLParam(r, "conversation_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	msgs, err := s.conversations.ListMessages(r.Context(), convID)
	if err != nil {
		if errors.Is(err, errs.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.log.Error("list messages", zap.String("conversation", convID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}
	if msgs == nil {
		msgs = []string{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

type notificationResponse struct {
	ID        string        `json:"id"`
	Message   model.Message `json:"message"`
	IsRead    bool          `json:"is_read"`
	CreatedAt time.Time     `json:"created_at"`
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromCtx(r.Context())

	ns, err := s.notifications.ListForRecipient(r.Context(), identity.ID)
	if err != nil {
		s.log.Error("list notifications", zap.String("recipient", identity.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationResponse{
			ID:        n.ID.String(),
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "notification_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.notifications.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Notification not found")
			return
		}
		s.log.Error("mark notification read", zap.String("id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
