package session

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/events"
	"github.com/rocketscienceinc/connectfour-backend/internal/service"
)

const waitTimeout = 2 * time.Second

type notifierCall struct {
	connID  string
	event   string
	payload any
}

// fakeNotifier records every delivered event; Broadcast records one call per
// target connection.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (that *fakeNotifier) Unicast(connID, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.calls = append(that.calls, notifierCall{connID: connID, event: event, payload: payload})
}

func (that *fakeNotifier) Broadcast(connIDs []string, event string, payload any) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, connID := range connIDs {
		that.calls = append(that.calls, notifierCall{connID: connID, event: event, payload: payload})
	}
}

func (that *fakeNotifier) count(connID, event string) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	n := 0
	for _, call := range that.calls {
		if call.connID == connID && call.event == event {
			n++
		}
	}

	return n
}

func (that *fakeNotifier) last(connID, event string) (any, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i := len(that.calls) - 1; i >= 0; i-- {
		if that.calls[i].connID == connID && that.calls[i].event == event {
			return that.calls[i].payload, true
		}
	}

	return nil, false
}

type fakeRecorder struct {
	mu    sync.Mutex
	games []*entity.Game
}

func (that *fakeRecorder) Record(_ context.Context, game *entity.Game) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.games = append(that.games, game)
}

func (that *fakeRecorder) recorded() []*entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]*entity.Game(nil), that.games...)
}

type fakePending struct {
	mu      sync.Mutex
	pending map[string]string
}

func newFakePending() *fakePending {
	return &fakePending{pending: make(map[string]string)}
}

func (that *fakePending) SetPending(username, gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.pending[username] = gameID
}

func (that *fakePending) ClearPending(username string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.pending, username)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("condition never met: %s", msg)
}

type sessionFixture struct {
	session  *Session
	game     *entity.Game
	notifier *fakeNotifier
	recorder *fakeRecorder
	finished chan string
}

func newFixture(t *testing.T, game *entity.Game, cfg Config) *sessionFixture {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	finished := make(chan string, 1)

	sess := New(logger, game, service.NewBotService(), notifier, recorder, events.NopPublisher{},
		newFakePending(), cfg, func(gameID string) {
			finished <- gameID
		})

	t.Cleanup(sess.Close)

	return &sessionFixture{
		session:  sess,
		game:     game,
		notifier: notifier,
		recorder: recorder,
		finished: finished,
	}
}

func newHumanGame(t *testing.T) *entity.Game {
	t.Helper()

	game := entity.NewGame("game_1", &entity.Player{Username: "alice", ConnectionID: "conn-a"})
	require.NoError(t, game.Start(&entity.Player{Username: "bob", ConnectionID: "conn-b"}))

	return game
}

func TestSession_MakeMove(t *testing.T) {
	t.Run("legal move broadcasts and flips the turn", func(t *testing.T) {
		// Given: a running two-player game
		fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: time.Minute})

		// When: the creator moves
		require.NoError(t, fx.session.MakeMove("conn-a", 3))

		// Then: both players hear about the move
		assert.Equal(t, 1, fx.notifier.count("conn-a", EventMoveMade))
		assert.Equal(t, 1, fx.notifier.count("conn-b", EventMoveMade))

		payload, ok := fx.notifier.last("conn-b", EventMoveMade)
		require.True(t, ok)
		move, ok := payload.(MoveMadePayload)
		require.True(t, ok)
		assert.Equal(t, entity.Rows-1, move.Row)
		assert.Equal(t, 3, move.Col)
		assert.Equal(t, entity.ColorBlue, move.Color)
		assert.Equal(t, 1, move.CurrentTurn)
	})

	t.Run("error when it is not the caller's turn", func(t *testing.T) {
		fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: time.Minute})

		// When: the opponent moves out of turn
		err := fx.session.MakeMove("conn-b", 0)

		// Then: the move is rejected and the board untouched
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)

		snapshot, snapErr := fx.session.Snapshot()
		require.NoError(t, snapErr)
		assert.Equal(t, entity.Board{}, snapshot.Board)
	})

	t.Run("error for an unknown connection", func(t *testing.T) {
		fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: time.Minute})

		err := fx.session.MakeMove("conn-stranger", 0)
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("winning move finishes and records the game", func(t *testing.T) {
		// Given: a game where blue is about to complete a vertical four
		game := newHumanGame(t)
		fx := newFixture(t, game, Config{ForfeitWindow: time.Minute})

		for i := 0; i < 3; i++ {
			require.NoError(t, fx.session.MakeMove("conn-a", 0))
			require.NoError(t, fx.session.MakeMove("conn-b", 1))
		}

		// When: blue completes the run
		require.NoError(t, fx.session.MakeMove("conn-a", 0))

		// Then: both players get gameOver with the winner
		payload, ok := fx.notifier.last("conn-b", EventGameOver)
		require.True(t, ok)
		over, ok := payload.(GameOverPayload)
		require.True(t, ok)
		assert.Equal(t, "alice", over.Winner)
		assert.False(t, over.Draw)
		assert.Empty(t, over.Reason)

		// Then: the result is recorded and the session unregisters itself
		waitFor(t, func() bool { return len(fx.recorder.recorded()) == 1 }, "result recorded")
		assert.Equal(t, "game_1", <-fx.finished)

		// Then: further moves report the game as finished
		err := fx.session.MakeMove("conn-b", 2)
		require.ErrorIs(t, err, apperror.ErrGameFinished)

		// Then: rejoin can no longer resurrect the game
		err = fx.session.Rejoin("conn-a2", "alice")
		require.ErrorIs(t, err, apperror.ErrGameFinished)
	})

	t.Run("filling the board without a win ends in a draw", func(t *testing.T) {
		// Given: a game one move away from a full, winless board
		game := newHumanGame(t)
		game.Board = nearDrawBoard()
		fx := newFixture(t, game, Config{ForfeitWindow: time.Minute})

		// When: the last cell is filled
		require.NoError(t, fx.session.MakeMove("conn-a", 6))

		// Then: both players get a draw, no winner
		payload, ok := fx.notifier.last("conn-a", EventGameOver)
		require.True(t, ok)
		over, ok := payload.(GameOverPayload)
		require.True(t, ok)
		assert.True(t, over.Draw)
		assert.Empty(t, over.Winner)

		waitFor(t, func() bool { return len(fx.recorder.recorded()) == 1 }, "result recorded")
		assert.True(t, fx.recorder.recorded()[0].IsDraw)
	})
}

// nearDrawBoard fills every cell but the top of column 6 with a pattern that
// contains no four in a row on any axis.
func nearDrawBoard() entity.Board {
	colors := [2]string{entity.ColorBlue, entity.ColorGreen}

	var board entity.Board
	for col := 0; col < entity.Cols; col++ {
		for row := 0; row < entity.Rows; row++ {
			board[row][col] = colors[(row+col/2)%2]
		}
	}

	board[0][6] = entity.EmptyCell

	return board
}

func TestSession_BotGame(t *testing.T) {
	// Given: a game against the bot with a short thinking delay
	game := entity.NewGame("game_bot", &entity.Player{Username: "alice", ConnectionID: "conn-a"})
	require.NoError(t, game.Start(entity.NewBotPlayer()))

	fx := newFixture(t, game, Config{ForfeitWindow: time.Minute, BotDelay: 10 * time.Millisecond})

	// When: the human moves
	require.NoError(t, fx.session.MakeMove("conn-a", 3))

	// Then: the bot answers after its delay and hands the turn back
	waitFor(t, func() bool { return fx.notifier.count("conn-a", EventMoveMade) >= 2 }, "bot reply")

	snapshot, err := fx.session.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.CurrentTurn)

	// When: the human tries to move during the bot's turn
	require.NoError(t, fx.session.MakeMove("conn-a", 4))
	err = fx.session.MakeMove("conn-a", 4)
	require.Error(t, err)
}

func TestSession_DisconnectAndForfeit(t *testing.T) {
	t.Run("disconnect notifies the opponent and forfeits after the window", func(t *testing.T) {
		// Given: a running game with a short forfeit window
		fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: 50 * time.Millisecond})

		// When: the creator's connection drops
		fx.session.HandleDisconnect("conn-a")

		// Then: the opponent is told how long to wait
		waitFor(t, func() bool { return fx.notifier.count("conn-b", EventOpponentDisconnected) == 1 }, "disconnect notice")

		payload, _ := fx.notifier.last("conn-b", EventOpponentDisconnected)
		notice, ok := payload.(OpponentDisconnectedPayload)
		require.True(t, ok)
		assert.Equal(t, "alice", notice.Username)
		assert.Equal(t, 0, notice.WaitSeconds) // sub-second window rounds down

		// Then: the game forfeits to the player who stayed
		waitFor(t, func() bool { return fx.notifier.count("conn-b", EventGameOver) == 1 }, "forfeit")

		overPayload, _ := fx.notifier.last("conn-b", EventGameOver)
		over, ok := overPayload.(GameOverPayload)
		require.True(t, ok)
		assert.Equal(t, "bob", over.Winner)
		assert.Equal(t, ReasonForfeit, over.Reason)

		waitFor(t, func() bool { return len(fx.recorder.recorded()) == 1 }, "result recorded")
	})

	t.Run("rejoin within the window cancels the forfeit", func(t *testing.T) {
		// Given: a disconnected creator
		fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: 80 * time.Millisecond})
		fx.session.HandleDisconnect("conn-a")

		waitFor(t, func() bool { return fx.notifier.count("conn-b", EventOpponentDisconnected) == 1 }, "disconnect notice")

		// When: the creator comes back on a fresh connection before the deadline
		require.NoError(t, fx.session.Rejoin("conn-a2", "alice"))

		// Then: the returning player gets the full state
		payload, ok := fx.notifier.last("conn-a2", EventRejoinSuccess)
		require.True(t, ok)
		state, ok := payload.(RejoinSuccessPayload)
		require.True(t, ok)
		assert.Equal(t, "game_1", state.GameID)
		assert.Equal(t, 0, state.CurrentTurn)

		// Then: the opponent hears about the reconnect
		assert.Equal(t, 1, fx.notifier.count("conn-b", EventOpponentReconnected))

		// Then: the forfeit never fires and play continues on the new connection
		time.Sleep(150 * time.Millisecond)
		assert.Zero(t, fx.notifier.count("conn-b", EventGameOver))
		require.NoError(t, fx.session.MakeMove("conn-a2", 0))
	})

	t.Run("second disconnect rearms the window for the other player", func(t *testing.T) {
		// Given: alice disconnected, rejoined, then bob disconnects
		fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: 60 * time.Millisecond})
		fx.session.HandleDisconnect("conn-a")
		require.NoError(t, fx.session.Rejoin("conn-a2", "alice"))

		fx.session.HandleDisconnect("conn-b")

		// Then: the forfeit goes against bob, not alice
		waitFor(t, func() bool { return fx.notifier.count("conn-a2", EventGameOver) == 1 }, "forfeit")

		payload, _ := fx.notifier.last("conn-a2", EventGameOver)
		over, ok := payload.(GameOverPayload)
		require.True(t, ok)
		assert.Equal(t, "alice", over.Winner)
	})

	t.Run("disconnect of an unknown connection is ignored", func(t *testing.T) {
		fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: 30 * time.Millisecond})

		fx.session.HandleDisconnect("conn-stranger")

		time.Sleep(80 * time.Millisecond)
		assert.Zero(t, fx.notifier.count("conn-a", EventGameOver))
		assert.Zero(t, fx.notifier.count("conn-b", EventGameOver))
	})
}

func TestSession_JoinFriend(t *testing.T) {
	t.Run("second player starts the game", func(t *testing.T) {
		// Given: a waiting friend game
		game := entity.NewGame("game_f", &entity.Player{Username: "alice", ConnectionID: "conn-a"})
		game.FriendGame = true
		fx := newFixture(t, game, Config{ForfeitWindow: time.Minute})

		// When: the friend joins
		require.NoError(t, fx.session.JoinFriend("conn-b", "bob"))

		// Then: both players get gameStart and the friend-specific event
		assert.Equal(t, 1, fx.notifier.count("conn-a", EventGameStart))
		assert.Equal(t, 1, fx.notifier.count("conn-b", EventGameStart))
		assert.Equal(t, 1, fx.notifier.count("conn-b", EventFriendGameStarted))

		// Then: the creator moves first
		snapshot, err := fx.session.Snapshot()
		require.NoError(t, err)
		assert.True(t, snapshot.IsPlaying())
		assert.Equal(t, 0, snapshot.CurrentTurn)
	})

	t.Run("error when the game already started", func(t *testing.T) {
		fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: time.Minute})

		err := fx.session.JoinFriend("conn-c", "carol")
		require.ErrorIs(t, err, apperror.ErrGameFull)
	})

	t.Run("abandoned waiting game stops without a result", func(t *testing.T) {
		// Given: a waiting friend game whose creator disconnects
		game := entity.NewGame("game_f2", &entity.Player{Username: "alice", ConnectionID: "conn-a"})
		game.FriendGame = true
		fx := newFixture(t, game, Config{ForfeitWindow: 40 * time.Millisecond})

		// When: the creator never comes back
		fx.session.HandleDisconnect("conn-a")

		// Then: the session unregisters without recording a result
		waitFor(t, func() bool {
			select {
			case id := <-fx.finished:
				assert.Equal(t, "game_f2", id)
				return true
			default:
				return false
			}
		}, "session stopped")

		assert.Empty(t, fx.recorder.recorded())
	})
}

func TestSession_MoveDuringDisconnect(t *testing.T) {
	// Given: bob disconnected but still within the grace window
	fx := newFixture(t, newHumanGame(t), Config{ForfeitWindow: time.Minute})
	fx.session.HandleDisconnect("conn-b")

	waitFor(t, func() bool { return fx.notifier.count("conn-a", EventOpponentDisconnected) == 1 }, "disconnect notice")

	// When: alice keeps playing
	require.NoError(t, fx.session.MakeMove("conn-a", 0))

	// Then: bob's old connection gets nothing and the turn moves to bob
	assert.Zero(t, fx.notifier.count("conn-b", EventMoveMade))

	snapshot, err := fx.session.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.CurrentTurn)

	// When: bob rejoins, the board he receives includes alice's move
	require.NoError(t, fx.session.Rejoin("conn-b2", "bob"))

	payload, ok := fx.notifier.last("conn-b2", EventRejoinSuccess)
	require.True(t, ok)
	state, ok := payload.(RejoinSuccessPayload)
	require.True(t, ok)
	assert.Equal(t, entity.ColorBlue, state.Board[entity.Rows-1][0])
	assert.Equal(t, 1, state.CurrentTurn)
}
