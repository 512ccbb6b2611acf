package api

import (
	"io"
	"log/slog"
	"net/http"
)

// verifyHandler answers Meta's webhook subscription handshake.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" {
		slog.Warn("Server.verifyHandler: incomplete verification request", "hasMode", mode != "", "hasToken", token != "")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || s.cfg.VerifyToken == "" || token != s.cfg.VerifyToken {
		slog.Warn("Server.verifyHandler: verification refused", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	slog.Info("Server.verifyHandler: webhook verified")
	writeText(w, http.StatusOK, challenge)
}

// webhookHandler accepts Cloud API deliveries. Meta retries anything but a 200, so every
// delivery is acknowledged, including ones that cannot be parsed.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		slog.Warn("Server.webhookHandler: failed to read body", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	events, err := ParseCloudWebhook(body)
	if err != nil {
		slog.Warn("Server.webhookHandler: malformed payload", "error", err, "bytes", len(body))
		w.WriteHeader(http.StatusOK)
		return
	}
	if len(events) == 0 {
		slog.Debug("Server.webhookHandler: delivery without messages")
	}
	s.dispatch(r, events)
	w.WriteHeader(http.StatusOK)
}
