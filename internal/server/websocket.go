package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/legalchat/internal/models"
	"github.com/raphaelgruber/legalchat/internal/service"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsWriteWait  = 10 * time.Second
)

// Frame is one server-to-client WebSocket message.
type Frame struct {
	Type     string           `json:"type"` // "response", "duplicate", "error"
	Response *models.Response `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// handleWebSocket reads inbound messages from the socket and answers each
// with one frame. Messages on one socket are handled in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var in models.Inbound
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		frame := s.answer(r, in)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Server) answer(r *http.Request, in models.Inbound) Frame {
	if !s.firstDelivery(r.Context(), in.MessageID) {
		return Frame{Type: "duplicate"}
	}
	resp, err := s.engine.HandleMessage(r.Context(), in)
	if errors.Is(err, service.ErrInvalidInbound) {
		return Frame{Type: "error", Error: err.Error()}
	}
	if err != nil {
		s.logger.Error("handle message", "conversation", in.Identity, "error", err)
		return Frame{Type: "error", Error: "failed to handle message"}
	}
	return Frame{Type: "response", Response: &resp}
}
