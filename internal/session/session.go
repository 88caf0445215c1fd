package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/events"
	"github.com/rocketscienceinc/connectfour-backend/internal/service"
)

const cmdBufferSize = 16

// EventPublisher is the best-effort analytics stream. Publish must never
// block gameplay or return an error into it.
type EventPublisher interface {
	Publish(event events.GameEvent)
}

// ResultRecorder persists a finished game. Failures are handled (logged)
// by the implementation; they never reach the session.
type ResultRecorder interface {
	Record(ctx context.Context, game *entity.Game)
}

// rejoinIndex is the registry's pending-disconnect bookkeeping.
type rejoinIndex interface {
	SetPending(username, gameID string)
	ClearPending(username string)
}

type Config struct {
	ForfeitWindow time.Duration
	BotDelay      time.Duration
}

// Session owns one game for its lifetime. Every mutation - moves, rejoins,
// disconnects, timer firings - runs as a command on the session's single
// goroutine, so the board and turn pointer are never touched concurrently.
// Different sessions run fully in parallel.
type Session struct {
	logger *slog.Logger
	game   *entity.Game

	bot      service.BotService
	notifier Notifier
	results  ResultRecorder
	events   EventPublisher
	pending  rejoinIndex
	cfg      Config

	cmds   chan func()
	closed chan struct{}

	forfeitTimer *time.Timer
	botTimer     *time.Timer
	disconnected string // username of the player the live forfeit timer is armed against

	onFinished func(gameID string)
}

// New - creates the session and starts its command loop. onFinished runs once
// after the game reaches finished (or is abandoned) and the loop is stopping.
func New(logger *slog.Logger, game *entity.Game, bot service.BotService, notifier Notifier,
	results ResultRecorder, publisher EventPublisher, pending rejoinIndex, cfg Config,
	onFinished func(gameID string),
) *Session {
	that := &Session{
		logger:     logger.With("component", "session", "gameID", game.ID),
		game:       game,
		bot:        bot,
		notifier:   notifier,
		results:    results,
		events:     publisher,
		pending:    pending,
		cfg:        cfg,
		cmds:       make(chan func(), cmdBufferSize),
		closed:     make(chan struct{}),
		onFinished: onFinished,
	}

	go that.run()

	return that
}

func (that *Session) run() {
	for {
		select {
		case cmd := <-that.cmds:
			cmd()
		case <-that.closed:
			return
		}
	}
}

// post - hands a command to the loop; dropped if the session already closed.
func (that *Session) post(cmd func()) {
	select {
	case that.cmds <- cmd:
	case <-that.closed:
	}
}

// do - runs a command on the loop and waits for its result. A session that
// closes before the command runs reports the game as finished.
func (that *Session) do(cmd func() error) error {
	done := make(chan error, 1)

	select {
	case that.cmds <- func() { done <- cmd() }:
	case <-that.closed:
		return apperror.ErrGameFinished
	}

	select {
	case err := <-done:
		return err
	case <-that.closed:
		select {
		case err := <-done:
			return err
		default:
			return apperror.ErrGameFinished
		}
	}
}

// MakeMove - applies a move for the player bound to connID. Legality errors
// leave the game untouched.
func (that *Session) MakeMove(connID string, col int) error {
	return that.do(func() error {
		return that.makeMove(connID, col)
	})
}

// JoinFriend - seats the second player of a waiting friend game and starts it.
func (that *Session) JoinFriend(connID, username string) error {
	return that.do(func() error {
		return that.joinFriend(connID, username)
	})
}

// Rejoin - rebinds a disconnected player's seat to a new connection.
func (that *Session) Rejoin(connID, username string) error {
	return that.do(func() error {
		return that.rejoin(connID, username)
	})
}

// HandleDisconnect - marks the seat bound to connID as disconnected and arms
// the forfeit timer. A no-op for finished games and unknown connections.
func (that *Session) HandleDisconnect(connID string) {
	that.post(func() {
		that.handleDisconnect(connID)
	})
}

// Snapshot - returns a copy of the game safe to read outside the loop.
func (that *Session) Snapshot() (*entity.Game, error) {
	var snapshot *entity.Game

	err := that.do(func() error {
		snapshot = that.snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Close - abandons the session without declaring a result. Used on shutdown
// and when a corrupt game state is detected.
func (that *Session) Close() {
	that.post(func() {
		that.stop()
	})
}

func (that *Session) makeMove(connID string, col int) error {
	if err := that.game.ConfirmPlayingState(); err != nil {
		return err
	}

	mover := that.game.CurrentPlayer()
	if mover.IsBot() || mover.ConnectionID != connID {
		return apperror.ErrNotYourTurn
	}

	moverIdx := that.game.CurrentTurn

	row, err := that.game.ApplyMove(col)
	if err != nil {
		return err
	}

	that.publishMove(moverIdx, col)

	if that.game.IsFinished() {
		that.finish("")
		return nil
	}

	that.notifier.Broadcast(that.connectedIDs(), EventMoveMade, MoveMadePayload{
		Row:         row,
		Col:         col,
		Color:       mover.Color,
		CurrentTurn: that.game.CurrentTurn,
	})

	if that.game.CurrentPlayer().IsBot() {
		that.armBotTimer()
	}

	return nil
}

func (that *Session) botMove() {
	if !that.game.IsPlaying() || !that.game.CurrentPlayer().IsBot() {
		return
	}

	botPlayer := that.game.CurrentPlayer()
	opponent := that.game.Opponent(that.game.CurrentTurn)
	moverIdx := that.game.CurrentTurn

	col, err := that.bot.ChooseMove(&that.game.Board, botPlayer.Color, opponent.Color)
	if err != nil {
		// a full board is detected as a draw on the previous move, so this
		// indicates a corrupt session
		that.logger.Error("bot has no legal move, abandoning session", "error", err)
		that.stop()
		return
	}

	row, err := that.game.ApplyMove(col)
	if err != nil {
		that.logger.Error("bot move rejected, abandoning session", "column", col, "error", err)
		that.stop()
		return
	}

	that.publishMove(moverIdx, col)

	if that.game.IsFinished() {
		that.finish("")
		return
	}

	that.notifier.Broadcast(that.connectedIDs(), EventMoveMade, MoveMadePayload{
		Row:         row,
		Col:         col,
		Color:       botPlayer.Color,
		CurrentTurn: that.game.CurrentTurn,
	})
}

func (that *Session) joinFriend(connID, username string) error {
	if that.game.IsFinished() {
		return apperror.ErrGameFinished
	}

	opponent := &entity.Player{Username: username, ConnectionID: connID}
	if err := that.game.Start(opponent); err != nil {
		return err
	}

	ids := that.connectedIDs()
	that.notifier.Broadcast(ids, EventGameStart, GameStartPayload{
		GameID:  that.game.ID,
		Players: that.playersCopy(),
		Board:   that.game.Board,
	})
	that.notifier.Broadcast(ids, EventFriendGameStarted, FriendGameStartedPayload{
		Players: that.playersCopy(),
	})

	that.events.Publish(events.GameEvent{
		EventType: events.TypeGameStarted,
		GameID:    that.game.ID,
		Players:   that.playersCopy(),
		StartedAt: that.game.StartedAt,
		Timestamp: time.Now(),
	})

	return nil
}

func (that *Session) rejoin(connID, username string) error {
	if that.game.IsFinished() {
		return apperror.ErrGameFinished
	}

	idx, ok := that.game.PlayerIndexByUsername(username)
	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownPlayer, username)
	}

	player := that.game.Players[idx]
	player.ConnectionID = connID
	player.DisconnectedAt = nil

	if that.disconnected == username {
		that.cancelForfeitTimer()
	}

	that.pending.ClearPending(username)

	that.notifier.Unicast(connID, EventRejoinSuccess, RejoinSuccessPayload{
		Board:       that.game.Board,
		Players:     that.playersCopy(),
		CurrentTurn: that.game.CurrentTurn,
		GameID:      that.game.ID,
	})

	opponent := that.game.Opponent(idx)
	if opponent != nil && !opponent.IsBot() && opponent.IsConnected() {
		that.notifier.Unicast(opponent.ConnectionID, EventOpponentReconnected, OpponentReconnectedPayload{
			Username: username,
		})
	}

	return nil
}

func (that *Session) handleDisconnect(connID string) {
	if that.game.IsFinished() {
		return
	}

	idx, ok := that.game.PlayerIndexByConnection(connID)
	if !ok {
		// the bot has no connection, nothing to do
		return
	}

	player := that.game.Players[idx]
	now := time.Now()
	player.ConnectionID = ""
	player.DisconnectedAt = &now

	that.pending.SetPending(player.Username, that.game.ID)

	opponent := that.game.Opponent(idx)
	if opponent != nil && !opponent.IsBot() && opponent.IsConnected() {
		that.notifier.Unicast(opponent.ConnectionID, EventOpponentDisconnected, OpponentDisconnectedPayload{
			Username:    player.Username,
			WaitSeconds: int(that.cfg.ForfeitWindow.Seconds()),
		})
	}

	// replace, never stack: at most one live forfeit timer per session
	that.cancelForfeitTimer()
	that.disconnected = player.Username

	username := player.Username
	that.forfeitTimer = time.AfterFunc(that.cfg.ForfeitWindow, func() {
		that.post(func() {
			that.forfeitFired(username)
		})
	})
}

func (that *Session) forfeitFired(username string) {
	if that.game.IsFinished() || that.disconnected != username {
		return
	}

	idx, ok := that.game.PlayerIndexByUsername(username)
	if !ok || that.game.Players[idx].DisconnectedAt == nil {
		return
	}

	if !that.game.IsPlaying() {
		// a waiting friend game whose creator never came back
		that.logger.Info("abandoning unstarted game after disconnect")
		that.stop()
		return
	}

	that.game.ForfeitTo(1 - idx)
	that.finish(ReasonForfeit)
}

func (that *Session) finish(reason string) {
	that.notifier.Broadcast(that.connectedIDs(), EventGameOver, GameOverPayload{
		Winner: that.game.Winner,
		Draw:   that.game.IsDraw,
		Board:  that.game.Board,
		Reason: reason,
	})

	event := events.GameEvent{
		EventType: events.TypeGameEnded,
		GameID:    that.game.ID,
		Player1:   that.game.Players[0].Username,
		Winner:    that.game.Winner,
		IsDraw:    that.game.IsDraw,
		StartedAt: that.game.StartedAt,
		EndedAt:   time.Now(),
		Timestamp: time.Now(),
	}
	if that.game.Players[1] != nil {
		event.Player2 = that.game.Players[1].Username
	}
	that.events.Publish(event)

	finished := that.snapshot()
	go that.results.Record(context.Background(), finished)

	that.logger.Info("game finished", "winner", that.game.Winner, "draw", that.game.IsDraw, "reason", reason)

	that.stop()
}

// stop - cancels timers, unregisters the session and ends the loop. Queued
// commands are dropped; their callers observe the game as finished.
func (that *Session) stop() {
	select {
	case <-that.closed:
		return
	default:
	}

	that.cancelForfeitTimer()

	if that.botTimer != nil {
		that.botTimer.Stop()
		that.botTimer = nil
	}

	for _, player := range that.game.Players {
		if player != nil && !player.IsBot() {
			that.pending.ClearPending(player.Username)
		}
	}

	if that.onFinished != nil {
		that.onFinished(that.game.ID)
	}

	close(that.closed)
}

func (that *Session) armBotTimer() {
	if that.botTimer != nil {
		that.botTimer.Stop()
	}

	that.botTimer = time.AfterFunc(that.cfg.BotDelay, func() {
		that.post(func() {
			that.botMove()
		})
	})
}

func (that *Session) cancelForfeitTimer() {
	if that.forfeitTimer != nil {
		that.forfeitTimer.Stop()
		that.forfeitTimer = nil
	}
	that.disconnected = ""
}

func (that *Session) publishMove(playerIdx, col int) {
	idx := playerIdx
	column := col

	that.events.Publish(events.GameEvent{
		EventType:   events.TypeMoveMade,
		GameID:      that.game.ID,
		PlayerIndex: &idx,
		Column:      &column,
		Timestamp:   time.Now(),
	})
}

func (that *Session) connectedIDs() []string {
	ids := make([]string, 0, 2)
	for _, player := range that.game.Players {
		if player != nil && !player.IsBot() && player.ConnectionID != "" {
			ids = append(ids, player.ConnectionID)
		}
	}

	return ids
}

func (that *Session) playersCopy() []*entity.Player {
	players := make([]*entity.Player, 0, 2)
	for _, player := range that.game.Players {
		if player == nil {
			continue
		}
		clone := *player
		players = append(players, &clone)
	}

	return players
}

func (that *Session) snapshot() *entity.Game {
	clone := *that.game
	for i, player := range that.game.Players {
		if player != nil {
			playerClone := *player
			clone.Players[i] = &playerClone
		}
	}

	return &clone
}
