package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/config"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/events"
	"github.com/rocketscienceinc/connectfour-backend/internal/pkg"
	"github.com/rocketscienceinc/connectfour-backend/internal/service"
	"github.com/rocketscienceinc/connectfour-backend/internal/session"
)

var ErrUsernameRequired = fmt.Errorf("username is required")

// GameManager is the facade the transports talk to. It owns the registry and
// the matchmaker, creates sessions and routes protocol events to the session
// that owns the game.
type GameManager struct {
	logger     *slog.Logger
	registry   *session.Registry
	matchmaker *session.Matchmaker

	bot     service.BotService
	results session.ResultRecorder
	events  session.EventPublisher
	cfg     config.Game

	notifier session.Notifier
}

func NewGameManager(logger *slog.Logger, registry *session.Registry, bot service.BotService,
	results session.ResultRecorder, publisher session.EventPublisher, cfg config.Game,
) *GameManager {
	that := &GameManager{
		logger:   logger.With("component", "game-manager"),
		registry: registry,
		bot:      bot,
		results:  results,
		events:   publisher,
		cfg:      cfg,
	}

	that.matchmaker = session.NewMatchmaker(logger, cfg.QueueTimeout, that.startMatchedGame)

	return that
}

// SetNotifier - binds the gateway. Must be called before any protocol event
// is dispatched; kept out of the constructor because the gateway needs the
// manager first.
func (that *GameManager) SetNotifier(notifier session.Notifier) {
	that.notifier = notifier
}

// JoinQueue - puts a player into matchmaking.
func (that *GameManager) JoinQueue(username, connID string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}

	that.notifier.Unicast(connID, session.EventWaiting, session.WaitingPayload{Message: "Searching opponent..."})
	that.matchmaker.Enqueue(username, connID)

	return nil
}

// CreateFriendGame - creates a waiting game owned by the creator and returns
// its snapshot so the gateway can answer with friendGameCreated.
func (that *GameManager) CreateFriendGame(username, connID string) (*entity.Game, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}

	creator := &entity.Player{Username: username, ConnectionID: connID}
	game := entity.NewGame(pkg.GenerateGameID(), creator)
	game.FriendGame = true

	sess := that.newSession(game)
	that.registry.Add(game.ID, sess, connID)

	that.logger.Info("friend game created", "gameID", game.ID, "creator", username)

	return sess.Snapshot()
}

// JoinFriendGame - seats the second player of a waiting friend game.
func (that *GameManager) JoinFriendGame(gameID, username, connID string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}

	sess, ok := that.registry.Get(gameID)
	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}

	if err := sess.JoinFriend(connID, username); err != nil {
		return fmt.Errorf("failed to join friend game: %w", err)
	}

	that.registry.BindConnection(connID, gameID)

	return nil
}

// MakeMove - routes a move to the owning session.
func (that *GameManager) MakeMove(gameID, connID string, col int) error {
	sess, ok := that.registry.Get(gameID)
	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
	}

	return sess.MakeMove(connID, col)
}

// Rejoin - rebinds a disconnected player to their game within the grace
// window. Finished and unknown games are rejected, never resurrected.
func (that *GameManager) Rejoin(gameID, username, connID string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}

	sess, ok := that.registry.Get(gameID)
	if !ok {
		// a stale game id from the client still resolves if the player has a
		// pending disconnect on record
		pendingID, pending := that.registry.PendingGame(username)
		if !pending {
			return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
		}

		if sess, ok = that.registry.Get(pendingID); !ok {
			return fmt.Errorf("%w: %s", apperror.ErrGameNotFound, gameID)
		}
		gameID = pendingID
	}

	if err := sess.Rejoin(connID, username); err != nil {
		return fmt.Errorf("failed to rejoin: %w", err)
	}

	that.registry.BindConnection(connID, gameID)

	return nil
}

// CheckGameExists - answers whether a game id is known and joinable.
func (that *GameManager) CheckGameExists(gameID string) session.GameExistsPayload {
	sess, ok := that.registry.Get(gameID)
	if !ok {
		return session.GameExistsPayload{Message: "game not found"}
	}

	snapshot, err := sess.Snapshot()
	if err != nil {
		return session.GameExistsPayload{Message: "game already finished"}
	}

	payload := session.GameExistsPayload{Exists: true, CanJoin: snapshot.IsWaiting()}
	if !payload.CanJoin {
		payload.Message = "game already started"
	}

	return payload
}

// HandleDisconnect - called by the gateway when a connection dies: removes a
// queued entry and notifies the owning session, if any.
func (that *GameManager) HandleDisconnect(connID string) {
	if that.matchmaker.Remove(connID) {
		that.logger.Info("removed queued player after disconnect")
	}

	if sess, ok := that.registry.ByConnection(connID); ok {
		sess.HandleDisconnect(connID)
	}

	that.registry.UnbindConnection(connID)
}

// ActiveGames and QueueLength feed the health endpoint.
func (that *GameManager) ActiveGames() int {
	return that.registry.ActiveCount()
}

func (that *GameManager) QueueLength() int {
	return that.matchmaker.Len()
}

// startMatchedGame - called by the matchmaker with the two paired players, or
// with p2 nil for a bot pairing. The session is announced before being added
// to the registry, so no command can interleave with the start broadcast.
func (that *GameManager) startMatchedGame(p1, p2 *entity.Player) {
	game := entity.NewGame(pkg.GenerateGameID(), p1)

	withBot := p2 == nil
	if withBot {
		p2 = entity.NewBotPlayer()
	}

	if err := game.Start(p2); err != nil {
		that.logger.Error("failed to start matched game", "error", err)
		return
	}

	if withBot {
		that.notifier.Unicast(p1.ConnectionID, session.EventMatched, session.MatchedPayload{
			Opponent: entity.BotName,
			GameID:   game.ID,
		})
	}

	connIDs := []string{p1.ConnectionID}
	if !p2.IsBot() {
		connIDs = append(connIDs, p2.ConnectionID)
	}

	that.notifier.Broadcast(connIDs, session.EventGameStart, session.GameStartPayload{
		GameID:  game.ID,
		Players: []*entity.Player{p1, p2},
		Board:   game.Board,
	})

	that.events.Publish(events.GameEvent{
		EventType: events.TypeGameStarted,
		GameID:    game.ID,
		Players:   []*entity.Player{p1, p2},
		StartedAt: game.StartedAt,
		Timestamp: time.Now(),
	})

	sess := that.newSession(game)
	that.registry.Add(game.ID, sess, connIDs...)

	that.logger.Info("game started", "gameID", game.ID, "player1", p1.Username, "player2", p2.Username)
}

func (that *GameManager) newSession(game *entity.Game) *session.Session {
	cfg := session.Config{
		ForfeitWindow: that.cfg.ForfeitWindow,
		BotDelay:      that.cfg.BotDelay,
	}

	return session.New(that.logger, game, that.bot, that.notifier, that.results, that.events,
		that.registry, cfg, that.registry.Remove)
}
