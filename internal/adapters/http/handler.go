package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/PabloGalante/chat-relay/internal/app/conversation"
	"github.com/PabloGalante/chat-relay/internal/domain"
	"github.com/PabloGalante/chat-relay/internal/observability"
)

const maxBodyBytes = 1 << 20

// User-facing replies. Error causes are logged, never returned.
const (
	msgEmptyInput       = "Please enter a message."
	msgInvalidBody      = "Invalid request body."
	msgMethodNotAllowed = "Method not allowed"
	msgUpstream         = "Error: Could not connect to the AI. Please check the server."
	msgInternal         = "Something went wrong. Please try again."
)

type Options struct {
	Identity   IdentityConfig
	CORSOrigin string
}

type Server struct {
	svc *conversation.Service
}

func NewServer(svc *conversation.Service, opts Options) http.Handler {
	s := &Server{svc: svc}
	ids := newIdentityIssuer(opts.Identity)

	api := http.NewServeMux()
	api.HandleFunc("/api/chat", s.handleChat)
	api.HandleFunc("/api/conversation", s.handleConversation)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	mux.Handle("/api/", ids.withIdentity(api))

	middlewares := []func(http.Handler) http.Handler{withRecover, withLogging}
	if opts.CORSOrigin != "" {
		middlewares = append(middlewares, withCORS(opts.CORSOrigin))
	}
	middlewares = append(middlewares, withRequestID)

	return chainMiddlewares(mux, middlewares...)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type chatRequest struct {
	UserInput string `json:"user_input"`
}

type replyResponse struct {
	Reply string `json:"reply"`
}

type turnResponse struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type conversationResponse struct {
	Turns []turnResponse `json:"turns"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeReply(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeReply(w, http.StatusInternalServerError, msgInternal)
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.LoggerFromContext(r.Context()).Warn("invalid chat body", "error", err)
		writeReply(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	out, err := s.svc.SendMessage(r.Context(), conversation.SendMessageInput{
		Identity: id,
		Text:     req.UserInput,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, replyResponse{Reply: out.Reply})
}

// /api/conversation
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeReply(w, http.StatusInternalServerError, msgInternal)
		return
	}

	switch r.Method {
	case http.MethodGet:
		conv, err := s.svc.History(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toConversationResponse(conv))

	case http.MethodDelete:
		if err := s.svc.Reset(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeReply(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}
}

func toConversationResponse(conv domain.Conversation) conversationResponse {
	out := conversationResponse{Turns: make([]turnResponse, 0, len(conv))}
	for _, t := range conv {
		out.Turns = append(out.Turns, turnResponse{Role: string(t.Speaker), Text: t.Text})
	}
	return out
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

// writeError maps the domain error taxonomy to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := observability.LoggerFromContext(r.Context())

	switch {
	case errors.Is(err, domain.ErrValidation):
		writeReply(w, http.StatusBadRequest, msgEmptyInput)
	case errors.Is(err, domain.ErrUpstream):
		log.Error("ai service error", "error", err)
		writeReply(w, http.StatusInternalServerError, msgUpstream)
	default:
		log.Error("internal error", "error", err)
		writeReply(w, http.StatusInternalServerError, msgInternal)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeReply(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, replyResponse{Reply: msg})
}
