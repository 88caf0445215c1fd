package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Server struct {
	handlers Handlers
	srv      *http.Server
}

func New(handlers Handlers) *Server {
	return &Server{handlers: handlers}
}

// Start - starts the REST server.
func (that *Server) Start(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /leaderboard", that.handlers.Leaderboard)
	mux.HandleFunc("GET /profile/{username}", that.handlers.Profile)
	mux.HandleFunc("GET /profile/{username}/recent", that.handlers.RecentGames)
	mux.HandleFunc("GET /health", that.handlers.Health)
	mux.HandleFunc("/ping", that.handlers.Ping)

	that.srv = &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := that.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) Shutdown(ctx context.Context) error {
	if that.srv == nil {
		return nil
	}

	if err := that.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
