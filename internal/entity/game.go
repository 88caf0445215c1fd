package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Game is one match between two player slots, from creation to finish.
// Slot 0 is always the creator (blue), slot 1 the opponent (green).
type Game struct {
	ID          string     `json:"gameId"`
	Board       Board      `json:"board"`
	Players     [2]*Player `json:"players"`
	CurrentTurn int        `json:"currentTurn"`
	Status      string     `json:"status"`
	Winner      string     `json:"winner,omitempty"`
	IsDraw      bool       `json:"isDraw,omitempty"`
	FriendGame  bool       `json:"-"`
	CreatedAt   time.Time  `json:"-"`
	StartedAt   time.Time  `json:"-"`
}

// NewGame - creates a waiting game with only the creator seated.
func NewGame(id string, creator *Player) *Game {
	creator.Color = ColorBlue

	game := &Game{
		ID:        id,
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}
	game.Players[0] = creator

	return game
}

// Start - seats the opponent and moves the game to playing. The board resets
// to empty and the creator moves first.
func (that *Game) Start(opponent *Player) error {
	if !that.IsWaiting() {
		return fmt.Errorf("%w: status %s", apperror.ErrGameFull, that.Status)
	}

	opponent.Color = ColorGreen
	that.Players[1] = opponent

	that.Board = Board{}
	that.CurrentTurn = 0
	that.Status = StatusPlaying
	that.StartedAt = time.Now()

	return nil
}

// ApplyMove - drops the current player's color into col. On a win the mover
// becomes the winner; on a full board with no win the game is a draw; in both
// cases the game finishes. Otherwise the turn flips. The turn never flips on
// a rejected move.
func (that *Game) ApplyMove(col int) (int, error) {
	if err := that.ConfirmPlayingState(); err != nil {
		return -1, err
	}

	mover := that.Players[that.CurrentTurn]

	row, err := that.Board.DropRow(col)
	if err != nil {
		return -1, err
	}

	that.Board[row][col] = mover.Color

	switch {
	case that.Board.HasWinAt(row, col, mover.Color):
		that.Winner = mover.Username
		that.Status = StatusFinished
	case that.Board.IsFull():
		that.IsDraw = true
		that.Status = StatusFinished
	default:
		that.CurrentTurn = 1 - that.CurrentTurn
	}

	return row, nil
}

// ForfeitTo - finishes the game with the given slot declared winner.
func (that *Game) ForfeitTo(winnerIdx int) {
	that.Winner = that.Players[winnerIdx].Username
	that.Status = StatusFinished
}

func (that *Game) CurrentPlayer() *Player {
	return that.Players[that.CurrentTurn]
}

func (that *Game) Opponent(idx int) *Player {
	return that.Players[1-idx]
}

// PlayerIndexByConnection - finds the seat bound to the connection id.
func (that *Game) PlayerIndexByConnection(connID string) (int, bool) {
	for i, player := range that.Players {
		if player != nil && !player.IsBot() && player.ConnectionID == connID {
			return i, true
		}
	}

	return -1, false
}

// PlayerIndexByUsername - finds the seat of the named player.
func (that *Game) PlayerIndexByUsername(username string) (int, bool) {
	for i, player := range that.Players {
		if player != nil && player.Username == username {
			return i, true
		}
	}

	return -1, false
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) ConfirmPlayingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	default:
		return nil
	}
}
