// Package server exposes the conversation engine over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/legalchat/internal/dedup"
	"github.com/raphaelgruber/legalchat/internal/metrics"
	"github.com/raphaelgruber/legalchat/internal/models"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

// Engine handles inbound messages.
type Engine interface {
	HandleMessage(ctx context.Context, in models.Inbound) (models.Response, error)
	Conversation(ctx context.Context, id models.ConversationID) (*models.ConversationState, error)
}

// Options configures the transport surface.
type Options struct {
	// VerifyToken answers the webhook subscription handshake.
	VerifyToken string
	// AppSecret signs inbound payloads. Empty disables the signature check.
	AppSecret string
	Dedup     dedup.Tracker
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// Server wraps the engine with HTTP handlers and lifecycle management.
type Server struct {
	engine   Engine
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a server.
func New(engine Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	return &Server{
		engine: engine,
		opts:   opts,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed, logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /webhook", s.handleVerify)
	mux.HandleFunc("POST /v1/messages", s.handleMessage)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)
	mux.HandleFunc("GET /v1/conversations/{id}", s.handleConversation)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return LoggingMiddleware(s.logger, mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // research can take minutes
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := models.ConversationID(r.PathValue("id"))
	c, err := s.engine.Conversation(r.Context(), id)
	if err != nil {
		s.logger.Error("load conversation", "conversation", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Metrics.Snapshot())
}

// firstDelivery reports whether a message ID has not been processed yet.
// Tracker failures let the message through.
func (s *Server) firstDelivery(ctx context.Context, messageID string) bool {
	if messageID == "" || s.opts.Dedup == nil {
		return true
	}
	isNew, err := s.opts.Dedup.MarkIfNew(ctx, messageID)
	if err != nil {
		s.logger.Warn("dedup check failed, processing message", "message_id", messageID, "error", err)
		return true
	}
	if !isNew {
		s.logger.Info("duplicate message ignored", "message_id", messageID)
		s.opts.Metrics.Count(metrics.GroupFallback, "duplicate")
	}
	return isNew
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
