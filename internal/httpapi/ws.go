package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sereno-app/sereno/internal/companion"
)

const (
	wsReadLimit     = 1 << 20
	wsReadDeadline  = 120 * time.Second
	wsWriteDeadline = 10 * time.Second
)

type wsClientMessage struct {
	Message string               `json:"message"`
	History []companion.ChatTurn `json:"history,omitempty"`
}

type wsServerMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Model string `json:"model,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleChatWS serves a persistent chat connection. Each inbound text frame
// is one chat turn; replies are written back on the same connection in order.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query parameter userId is required")
		return
	}
	if s.companion == nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.ActiveWSConnections.Inc()
		defer s.metrics.ActiveWSConnections.Dec()
	}
	s.logger.Info("chat ws connected", zap.String("user_id", userID))

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("chat ws closed", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		reply, err := s.companion.Respond(r.Context(), companion.ChatRequest{
			Message: msg.Message,
			History: msg.History,
			UserID:  userID,
		})
		out := wsServerMessage{Type: "reply", Text: reply.Text, Model: reply.Model}
		if err != nil {
			out = s.wsErrorMessage(err)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}

func (s *Server) wsErrorMessage(err error) wsServerMessage {
	var verr *companion.ValidationError
	if errors.As(err, &verr) {
		return wsServerMessage{Type: "error", Error: verr.Error()}
	}
	var unavailable *companion.UnavailableError
	if errors.As(err, &unavailable) {
		return wsServerMessage{Type: "error", Error: companion.UnavailableMessage()}
	}
	s.logger.Error("chat ws turn failed", zap.Error(err))
	return wsServerMessage{Type: "error", Error: "internal server error"}
}
