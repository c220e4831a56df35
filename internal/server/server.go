package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/config"
	"github.com/groundbreak/groundbreak-server-go/internal/session"
)

// Server is the WebSocket front of the game server.
type Server struct {
	logger   *zap.Logger
	cfg      config.ServerConfig
	hub      *Hub
	upgrader websocket.Upgrader
	http     *http.Server

	// baseCtx outlives individual requests; connection read loops hang off
	// it, not the upgrade request's context.
	baseCtx context.Context
}

// NewServer wires the HTTP surface over the session manager.
func NewServer(cfg config.ServerConfig, manager *session.Manager, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger: logger,
		cfg:    cfg,
		hub:    NewHub(manager, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	s.http = &http.Server{
		Addr:    cfg.WebSocket.Address,
		Handler: mux,
	}
	return s
}

// Start serves until the context ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("websocket server listening", zap.String("address", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("shutting down websocket server")
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.register <- client

	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go client.writePump()
	go client.readPump(ctx)
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"games":  s.hub.manager.Count(),
	})
}

// AttachSession exposes session attachment for callers that create games
// outside the WebSocket surface.
func (s *Server) AttachSession(sess *session.GameSession) {
	s.hub.attachSession(sess)
}
