package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/raphaelgruber/legalchat/internal/models"
	"github.com/raphaelgruber/legalchat/internal/service"
)

const signatureHeader = "X-Hub-Signature-256"

// handleVerify answers the subscription handshake of the messaging platform.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, token, challenge := q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge")
	if mode == "" || token == "" {
		writeError(w, http.StatusBadRequest, "missing parameters")
		return
	}
	if mode != "subscribe" || s.opts.VerifyToken == "" || !hmac.Equal([]byte(token), []byte(s.opts.VerifyToken)) {
		s.logger.Warn("webhook verification failed", "mode", mode)
		writeError(w, http.StatusForbidden, "verification failed")
		return
	}
	s.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// ValidSignature checks a "sha256=<hex>" HMAC of body under secret.
func ValidSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	if s.opts.AppSecret != "" && !ValidSignature(s.opts.AppSecret, body, r.Header.Get(signatureHeader)) {
		s.logger.Warn("invalid payload signature", "remote", r.RemoteAddr)
		writeError(w, http.StatusForbidden, "invalid signature")
		return
	}

	var in models.Inbound
	if err := json.Unmarshal(body, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if !s.firstDelivery(r.Context(), in.MessageID) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	resp, err := s.engine.HandleMessage(r.Context(), in)
	if errors.Is(err, service.ErrInvalidInbound) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("handle message", "conversation", in.Identity, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to handle message")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
