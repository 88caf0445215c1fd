package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/session"
)

func (that *Server) handleJoinQueue(connID string, payload json.RawMessage) error {
	var req JoinQueuePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := that.manager.JoinQueue(req.Username, connID); err != nil {
		return fmt.Errorf("failed to join queue: %w", err)
	}

	return nil
}

func (that *Server) handleCreateFriendGame(connID string, payload json.RawMessage) error {
	var req CreateFriendGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	game, err := that.manager.CreateFriendGame(req.Username, connID)
	if err != nil {
		return fmt.Errorf("failed to create friend game: %w", err)
	}

	players := make([]*entity.Player, 0, 2)
	for _, player := range game.Players {
		if player != nil {
			players = append(players, player)
		}
	}

	that.Unicast(connID, session.EventFriendGameCreated, session.FriendGameCreatedPayload{
		GameID:  game.ID,
		Players: players,
	})

	return nil
}

func (that *Server) handleJoinFriendGame(connID string, payload json.RawMessage) error {
	var req JoinFriendGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := that.manager.JoinFriendGame(req.GameID, req.Username, connID); err != nil {
		// tell the joiner why, the same shape checkGameExists answers with
		that.Unicast(connID, session.EventGameExists, that.manager.CheckGameExists(req.GameID))
		return fmt.Errorf("failed to join friend game: %w", err)
	}

	return nil
}

func (that *Server) handleMakeMove(connID string, payload json.RawMessage) error {
	var req MakeMovePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := that.manager.MakeMove(req.GameID, connID, req.Col); err != nil {
		if isMoveRejection(err) {
			that.Unicast(connID, session.EventInvalidMove, session.InvalidMovePayload{Message: err.Error()})
			return nil
		}
		return fmt.Errorf("failed to make move: %w", err)
	}

	return nil
}

func (that *Server) handleRejoin(connID string, payload json.RawMessage) error {
	var req RejoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := that.manager.Rejoin(req.GameID, req.Username, connID); err != nil {
		return fmt.Errorf("failed to rejoin: %w", err)
	}

	return nil
}

func (that *Server) handleCheckGameExists(connID string, payload json.RawMessage) error {
	var req CheckGameExistsPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	that.Unicast(connID, session.EventGameExists, that.manager.CheckGameExists(req.GameID))

	return nil
}

// isMoveRejection reports whether the error is an expected rule violation
// that should bounce back to the mover instead of being logged as a failure.
func isMoveRejection(err error) bool {
	return errors.Is(err, apperror.ErrInvalidColumn) ||
		errors.Is(err, apperror.ErrColumnFull) ||
		errors.Is(err, apperror.ErrNotYourTurn) ||
		errors.Is(err, apperror.ErrGameFinished) ||
		errors.Is(err, apperror.ErrGameNotStarted) ||
		errors.Is(err, apperror.ErrGameNotFound)
}
