package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

var ErrInvalidTimestamps = errors.New("invalid game timestamps")

// AnalyticsWorker derives offline metrics from the game event stream: every
// event lands in the raw log, and GAME_ENDED additionally produces a duration
// row and per-user win/loss/draw counters. One transaction per event.
type AnalyticsWorker struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func NewAnalyticsWorker(logger *slog.Logger, pool *pgxpool.Pool) *AnalyticsWorker {
	return &AnalyticsWorker{
		logger: logger.With("component", "analytics"),
		pool:   pool,
	}
}

func (that *AnalyticsWorker) Process(ctx context.Context, event *GameEvent) error {
	tx, err := that.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint: errcheck // rollback after commit is a no-op

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `INSERT INTO game_events_log (event_type, game_id, payload) VALUES ($1, $2, $3)`
	if _, err = tx.Exec(ctx, query, event.EventType, event.GameID, string(payload)); err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}

	if event.EventType == TypeGameEnded {
		if err = that.recordGameMetrics(ctx, tx, event); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (that *AnalyticsWorker) recordGameMetrics(ctx context.Context, tx pgx.Tx, event *GameEvent) error {
	if event.StartedAt.IsZero() || event.EndedAt.IsZero() || !event.EndedAt.After(event.StartedAt) {
		return fmt.Errorf("%w: game %s", ErrInvalidTimestamps, event.GameID)
	}

	duration := int(event.EndedAt.Sub(event.StartedAt).Seconds())

	query := `INSERT INTO game_metrics (game_id, duration_seconds, played_at) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, query, event.GameID, duration, event.EndedAt); err != nil {
		return fmt.Errorf("failed to insert game metrics: %w", err)
	}

	for _, username := range []string{event.Player1, event.Player2} {
		if username == "" || username == entity.BotName {
			continue
		}

		win := !event.IsDraw && username == event.Winner
		loss := !event.IsDraw && username != event.Winner

		query = `
			INSERT INTO user_metrics (username, games_played, wins, losses, draws)
			VALUES ($1, 1, $2, $3, $4)
			ON CONFLICT (username)
			DO UPDATE SET
				games_played = user_metrics.games_played + 1,
				wins = user_metrics.wins + EXCLUDED.wins,
				losses = user_metrics.losses + EXCLUDED.losses,
				draws = user_metrics.draws + EXCLUDED.draws`

		if _, err := tx.Exec(ctx, query, username, boolToInt(win), boolToInt(loss), boolToInt(event.IsDraw)); err != nil {
			return fmt.Errorf("failed to update user metrics for %s: %w", username, err)
		}
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
