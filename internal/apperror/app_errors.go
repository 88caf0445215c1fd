package apperror

import "errors"

var (
	ErrGameFinished   = errors.New("game is already finished")
	ErrGameNotStarted = errors.New("game is not started")
	ErrGameNotFound   = errors.New("game not found")
	ErrGameFull       = errors.New("game already has two players")
	ErrNotYourTurn    = errors.New("it's not your turn")
	ErrColumnFull     = errors.New("column is full")
	ErrInvalidColumn  = errors.New("invalid column index")
	ErrUnknownPlayer  = errors.New("player is not part of this game")
	ErrNotFound       = errors.New("not found")
)
