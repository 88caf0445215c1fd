package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStorage struct {
	Pool *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, url string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &PostgresStorage{Pool: pool}, nil
}

// Init - creates the result and analytics tables if they don't exist yet.
func (that *PostgresStorage) Init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(50) PRIMARY KEY,
			wins INTEGER DEFAULT 0,
			total_games INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id SERIAL PRIMARY KEY,
			game_id VARCHAR(50) UNIQUE NOT NULL,
			player1 VARCHAR(50) NOT NULL,
			player2 VARCHAR(50),
			winner VARCHAR(50),
			is_draw BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_events_log (
			id SERIAL PRIMARY KEY,
			event_type TEXT,
			game_id TEXT,
			payload JSONB,
			created_at TIMESTAMP DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS game_metrics (
			game_id TEXT,
			duration_seconds INT,
			played_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_metrics (
			username TEXT PRIMARY KEY,
			games_played INT DEFAULT 0,
			wins INT DEFAULT 0,
			losses INT DEFAULT 0,
			draws INT DEFAULT 0
		)`,
	}

	for _, query := range queries {
		if _, err := that.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("can't create table: %w", err)
		}
	}

	return nil
}

func (that *PostgresStorage) Close() {
	that.Pool.Close()
}
