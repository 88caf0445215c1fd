package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/repository"
)

const (
	leaderboardSize = 10
	recentGames     = 3
)

type Handlers interface {
	Leaderboard(w http.ResponseWriter, r *http.Request)
	Profile(w http.ResponseWriter, r *http.Request)
	RecentGames(w http.ResponseWriter, r *http.Request)
	Health(w http.ResponseWriter, r *http.Request)
	Ping(w http.ResponseWriter, _ *http.Request)
}

type statsReader interface {
	Profile(ctx context.Context, username string) (*repository.Profile, error)
	Top(ctx context.Context, limit int) ([]repository.LeaderboardEntry, error)
}

type gamesReader interface {
	RecentByUsername(ctx context.Context, username string, limit int) ([]repository.GameRecord, error)
}

type gameCounter interface {
	ActiveGames() int
	QueueLength() int
}

type pinger interface {
	Ping(ctx context.Context) error
}

type handlers struct {
	logger *slog.Logger
	stats  statsReader
	games  gamesReader
	counts gameCounter
	db     pinger
}

func NewHandlers(logger *slog.Logger, stats statsReader, games gamesReader, counts gameCounter, db pinger) Handlers {
	return &handlers{
		logger: logger.With("component", "rest"),
		stats:  stats,
		games:  games,
		counts: counts,
		db:     db,
	}
}

func (that *handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := that.stats.Top(r.Context(), leaderboardSize)
	if err != nil {
		that.logger.Error("failed to fetch leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
		return
	}

	if entries == nil {
		entries = []repository.LeaderboardEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

func (that *handlers) Profile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	profile, err := that.stats.Profile(r.Context(), username)
	if errors.Is(err, apperror.ErrNotFound) {
		// a player with no recorded games still has a profile
		writeJSON(w, http.StatusOK, repository.Profile{Username: username})
		return
	}
	if err != nil {
		that.logger.Error("failed to fetch profile", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

type recentGame struct {
	Opponent string `json:"opponent"`
	Result   string `json:"result"`
	Date     string `json:"date"`
}

func (that *handlers) RecentGames(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	records, err := that.games.RecentByUsername(r.Context(), username, recentGames)
	if err != nil {
		that.logger.Error("failed to fetch recent games", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch recent games")
		return
	}

	recent := make([]recentGame, 0, len(records))
	for _, record := range records {
		opponent := record.Player2
		if opponent == username {
			opponent = record.Player1
		}

		result := "Loss"
		switch {
		case record.IsDraw:
			result = "Draw"
		case record.Winner == username:
			result = "Win"
		}

		recent = append(recent, recentGame{
			Opponent: opponent,
			Result:   result,
			Date:     record.CreatedAt.Format("2006-01-02"),
		})
	}

	writeJSON(w, http.StatusOK, recent)
}

func (that *handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := that.db.Ping(r.Context()); err != nil {
		that.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"database":     "connected",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"activeGames":  that.counts.ActiveGames(),
		"waitingQueue": that.counts.QueueLength(),
	})
}

func (that *handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
