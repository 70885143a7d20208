package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sereno-app/sereno/internal/companion"
	"github.com/sereno-app/sereno/internal/config"
	"github.com/sereno-app/sereno/internal/observability"
	"github.com/sereno-app/sereno/internal/store"
)

// Companion produces one chat reply per request. Implemented by
// companion.Orchestrator.
type Companion interface {
	Respond(ctx context.Context, req companion.ChatRequest) (companion.ChatReply, error)
}

type Server struct {
	cfg       config.Config
	companion Companion
	store     store.Store
	metrics   *observability.Metrics
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, comp Companion, st store.Store, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		companion: comp,
		store:     st,
		metrics:   metrics,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Post("/v1/events", s.handleCreateEvent)

	return r
}

// corsMiddleware attaches CORS headers to every response and answers
// preflight requests directly, so mobile webviews and browser clients can
// call the API from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.companion == nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "companion not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.companion == nil {
		// Misconfiguration is never described to clients.
		s.observeChat(http.StatusInternalServerError)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var req companion.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.observeChat(http.StatusBadRequest)
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be valid JSON")
		return
	}

	reply, err := s.companion.Respond(r.Context(), req)
	if err != nil {
		var verr *companion.ValidationError
		if errors.As(err, &verr) {
			s.observeChat(http.StatusBadRequest)
			respondError(w, http.StatusBadRequest, "invalid_request", verr.Error())
			return
		}
		var unavailable *companion.UnavailableError
		if errors.As(err, &unavailable) {
			s.observeChat(http.StatusServiceUnavailable)
			resp := unavailableResponse{Error: companion.UnavailableMessage()}
			if s.cfg.Debug {
				resp.Debug = unavailable.Detail
			}
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		s.logger.Error("chat request failed", zap.Error(err))
		s.observeChat(http.StatusInternalServerError)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	s.observeChat(http.StatusOK)
	respondJSON(w, http.StatusOK, reply)
}

type createEventRequest struct {
	UserID  string          `json:"userId"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "userId is required")
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "type is required")
		return
	}

	e := store.Event{
		UserID:  strings.TrimSpace(req.UserID),
		Type:    strings.TrimSpace(req.Type),
		Payload: req.Payload,
	}
	if err := s.store.SaveEvent(r.Context(), e); err != nil {
		s.logger.Error("event save failed", zap.String("user_id", e.UserID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"status": "recorded"})
}

func (s *Server) observeChat(status int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ChatRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// unavailableResponse carries the friendly outage message; Debug is only
// populated when the server runs in debug mode.
type unavailableResponse struct {
	Error string `json:"error"`
	Debug string `json:"debug,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
