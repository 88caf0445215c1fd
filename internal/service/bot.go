package service

import (
	"errors"
	"math/rand"

	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

type BotService interface {
	ChooseMove(board *entity.Board, botColor, opponentColor string) (int, error)
}

type botService struct{}

func NewBotService() BotService {
	return &botService{}
}

// ChooseMove - picks a column for the bot: an immediate win if one exists,
// otherwise a block of the opponent's immediate win, otherwise a random legal
// column. Ties in the first two steps resolve to the lowest column.
func (that *botService) ChooseMove(board *entity.Board, botColor, opponentColor string) (int, error) {
	legal := board.LegalColumns()
	if len(legal) == 0 {
		return -1, ErrNoAvailableMoves
	}

	for _, col := range legal {
		if board.WouldWin(col, botColor) {
			return col, nil
		}
	}

	for _, col := range legal {
		if board.WouldWin(col, opponentColor) {
			return col, nil
		}
	}

	return legal[rand.Intn(len(legal))], nil //nolint: gosec // it's ok
}
