package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
)

const (
	leaderboardCacheKey = "leaderboard:top"
	leaderboardCacheTTL = 30 * time.Second
)

type Profile struct {
	Username   string `json:"username"`
	Wins       int    `json:"wins"`
	TotalGames int    `json:"totalGames"`
}

type LeaderboardEntry struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}

type StatsRepository interface {
	Increment(ctx context.Context, username string, wins, played int) error
	Profile(ctx context.Context, username string) (*Profile, error)
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// dbStats keeps aggregate stats in Postgres and caches the leaderboard in
// Redis for a short TTL; every increment drops the cached list.
type dbStats struct {
	pool  *pgxpool.Pool
	cache *redis.Client
}

func NewStatsRepository(pool *pgxpool.Pool, cache *redis.Client) StatsRepository {
	return &dbStats{
		pool:  pool,
		cache: cache,
	}
}

func (that *dbStats) Increment(ctx context.Context, username string, wins, played int) error {
	query := `
		INSERT INTO users (username, wins, total_games)
		VALUES ($1, $2, $3)
		ON CONFLICT (username)
		DO UPDATE SET
			wins = users.wins + EXCLUDED.wins,
			total_games = users.total_games + EXCLUDED.total_games`

	if _, err := that.pool.Exec(ctx, query, username, wins, played); err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	if that.cache != nil {
		// stale top-10 is acceptable, a failed invalidation is not fatal
		that.cache.Del(ctx, leaderboardCacheKey)
	}

	return nil
}

func (that *dbStats) Profile(ctx context.Context, username string) (*Profile, error) {
	query := `SELECT wins, total_games FROM users WHERE username = $1`

	profile := &Profile{Username: username}

	err := that.pool.QueryRow(ctx, query, username).Scan(&profile.Wins, &profile.TotalGames)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	return profile, nil
}

func (that *dbStats) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if entries, ok := that.cachedTop(ctx); ok {
		return entries, nil
	}

	query := `SELECT username, wins FROM users ORDER BY wins DESC LIMIT $1`

	rows, err := that.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var entry LeaderboardEntry
		if err = rows.Scan(&entry.Username, &entry.Wins); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	that.cacheTop(ctx, entries)

	return entries, nil
}

func (that *dbStats) cachedTop(ctx context.Context) ([]LeaderboardEntry, bool) {
	if that.cache == nil {
		return nil, false
	}

	data, err := that.cache.Get(ctx, leaderboardCacheKey).Result()
	if err != nil {
		return nil, false
	}

	var entries []LeaderboardEntry
	if err = json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, false
	}

	return entries, true
}

func (that *dbStats) cacheTop(ctx context.Context, entries []LeaderboardEntry) {
	if that.cache == nil {
		return
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return
	}

	that.cache.Set(ctx, leaderboardCacheKey, data, leaderboardCacheTTL)
}
