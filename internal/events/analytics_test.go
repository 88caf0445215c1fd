package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/connectfour-backend/testing/suite"
)

func TestAnalyticsWorker_Process(t *testing.T) {
	ctx, st := suite.NewPostgres(t)

	worker := NewAnalyticsWorker(st.Logger, st.Pool)

	t.Run("every event lands in the raw log", func(t *testing.T) {
		// Given: a move event
		idx, col := 0, 3
		event := &GameEvent{
			EventType:   TypeMoveMade,
			GameID:      "game_log",
			PlayerIndex: &idx,
			Column:      &col,
			Timestamp:   time.Now(),
		}

		// When: the worker processes it
		require.NoError(t, worker.Process(ctx, event))

		// Then: the raw log has the row
		var count int
		err := st.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM game_events_log WHERE game_id = $1 AND event_type = $2`,
			"game_log", TypeMoveMade).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("game end produces duration and user metrics", func(t *testing.T) {
		// Given: a finished game alice won against bob
		started := time.Now().Add(-90 * time.Second)
		event := &GameEvent{
			EventType: TypeGameEnded,
			GameID:    "game_end",
			Player1:   "alice",
			Player2:   "bob",
			Winner:    "alice",
			StartedAt: started,
			EndedAt:   started.Add(90 * time.Second),
			Timestamp: time.Now(),
		}

		// When: the worker processes it
		require.NoError(t, worker.Process(ctx, event))

		// Then: the game duration is recorded
		var duration int
		err := st.Pool.QueryRow(ctx,
			`SELECT duration_seconds FROM game_metrics WHERE game_id = $1`, "game_end").Scan(&duration)
		require.NoError(t, err)
		assert.Equal(t, 90, duration)

		// Then: the winner and loser counters both move
		var wins, losses, played int
		err = st.Pool.QueryRow(ctx,
			`SELECT wins, losses, games_played FROM user_metrics WHERE username = $1`, "alice").
			Scan(&wins, &losses, &played)
		require.NoError(t, err)
		assert.Equal(t, 1, wins)
		assert.Equal(t, 0, losses)
		assert.Equal(t, 1, played)

		err = st.Pool.QueryRow(ctx,
			`SELECT wins, losses, games_played FROM user_metrics WHERE username = $1`, "bob").
			Scan(&wins, &losses, &played)
		require.NoError(t, err)
		assert.Equal(t, 0, wins)
		assert.Equal(t, 1, losses)
		assert.Equal(t, 1, played)
	})

	t.Run("bot games only count the human", func(t *testing.T) {
		// Given: a bot game the human lost
		started := time.Now().Add(-time.Minute)
		event := &GameEvent{
			EventType: TypeGameEnded,
			GameID:    "game_vs_bot",
			Player1:   "carol",
			Player2:   "Bot",
			Winner:    "Bot",
			StartedAt: started,
			EndedAt:   started.Add(30 * time.Second),
			Timestamp: time.Now(),
		}

		require.NoError(t, worker.Process(ctx, event))

		// Then: the bot has no metrics row
		var count int
		err := st.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM user_metrics WHERE username = $1`, "Bot").Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)

		var losses int
		err = st.Pool.QueryRow(ctx,
			`SELECT losses FROM user_metrics WHERE username = $1`, "carol").Scan(&losses)
		require.NoError(t, err)
		assert.Equal(t, 1, losses)
	})

	t.Run("broken timestamps roll the whole event back", func(t *testing.T) {
		// Given: a game end with no start time
		event := &GameEvent{
			EventType: TypeGameEnded,
			GameID:    "game_broken",
			Player1:   "alice",
			Player2:   "bob",
			EndedAt:   time.Now(),
			Timestamp: time.Now(),
		}

		// When: the worker processes it
		err := worker.Process(ctx, event)

		// Then: the event is rejected and not even the raw log keeps it
		require.ErrorIs(t, err, ErrInvalidTimestamps)

		var count int
		scanErr := st.Pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM game_events_log WHERE game_id = $1`, "game_broken").Scan(&count)
		require.NoError(t, scanErr)
		assert.Zero(t, count)
	})
}
