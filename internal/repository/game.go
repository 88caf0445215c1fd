package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

// GameRecord is one finished game as persisted.
type GameRecord struct {
	GameID    string
	Player1   string
	Player2   string
	Winner    string
	IsDraw    bool
	CreatedAt time.Time
}

type GameRepository interface {
	Insert(ctx context.Context, game *entity.Game) error
	RecentByUsername(ctx context.Context, username string, limit int) ([]GameRecord, error)
}

type dbGame struct {
	pool *pgxpool.Pool
}

func NewGameRepository(pool *pgxpool.Pool) GameRepository {
	return &dbGame{
		pool: pool,
	}
}

func (that *dbGame) Insert(ctx context.Context, game *entity.Game) error {
	query := `INSERT INTO games (game_id, player1, player2, winner, is_draw) VALUES ($1, $2, $3, $4, $5)`

	var player2 string
	if game.Players[1] != nil {
		player2 = game.Players[1].Username
	}

	_, err := that.pool.Exec(ctx, query, game.ID, game.Players[0].Username, player2, game.Winner, game.IsDraw)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}

	return nil
}

func (that *dbGame) RecentByUsername(ctx context.Context, username string, limit int) ([]GameRecord, error) {
	query := `
		SELECT game_id, player1, player2, COALESCE(winner, ''), is_draw, created_at
		FROM games
		WHERE player1 = $1 OR player2 = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := that.pool.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent games: %w", err)
	}
	defer rows.Close()

	var records []GameRecord
	for rows.Next() {
		var record GameRecord
		if err = rows.Scan(&record.GameID, &record.Player1, &record.Player2, &record.Winner, &record.IsDraw, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game records: %w", err)
	}

	return records, nil
}
