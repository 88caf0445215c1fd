package entity

import (
	"fmt"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
)

const (
	Rows      = 6
	Cols      = 7
	WinLength = 4
)

const (
	EmptyCell  = ""
	ColorBlue  = "blue"
	ColorGreen = "green"
)

// Board is a 6x7 grid indexed [row][col], row 0 at the top.
// Occupied cells in a column are always contiguous from the bottom row upward.
type Board [Rows][Cols]string

// axes checked by HasWinAt: horizontal, vertical and both diagonals.
var winAxes = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

// DropRow - returns the lowest empty row of the column, scanning from the bottom.
func (that *Board) DropRow(col int) (int, error) {
	if col < 0 || col >= Cols {
		return -1, fmt.Errorf("%w: %d", apperror.ErrInvalidColumn, col)
	}

	for row := Rows - 1; row >= 0; row-- {
		if that[row][col] == EmptyCell {
			return row, nil
		}
	}

	return -1, fmt.Errorf("%w: %d", apperror.ErrColumnFull, col)
}

// HasWinAt - reports whether the piece at (row, col) completes a run of four.
// Only the four axes through the placed cell are checked; counting extends in
// both directions from the cell, so disconnected runs elsewhere on the board
// can't produce a false positive.
func (that *Board) HasWinAt(row, col int, color string) bool {
	for _, axis := range winAxes {
		count := 1
		count += that.countRun(row, col, axis[0], axis[1], color)
		count += that.countRun(row, col, -axis[0], -axis[1], color)

		if count >= WinLength {
			return true
		}
	}

	return false
}

func (that *Board) countRun(row, col, rowDelta, colDelta int, color string) int {
	count := 0

	for d := 1; d < WinLength; d++ {
		r := row + rowDelta*d
		c := col + colDelta*d

		if r < 0 || r >= Rows || c < 0 || c >= Cols {
			break
		}

		if that[r][c] != color {
			break
		}

		count++
	}

	return count
}

// IsFull - true iff the top row has no empty cell. Given the gravity
// invariant this is equivalent to every column being full.
func (that *Board) IsFull() bool {
	for col := 0; col < Cols; col++ {
		if that[0][col] == EmptyCell {
			return false
		}
	}

	return true
}

// WouldWin - simulates dropping color into col on a scratch copy and reports
// whether that move would win. The receiver is never mutated.
func (that *Board) WouldWin(col int, color string) bool {
	row, err := that.DropRow(col)
	if err != nil {
		return false
	}

	scratch := *that
	scratch[row][col] = color

	return scratch.HasWinAt(row, col, color)
}

// LegalColumns - lists the columns that still have space, lowest first.
func (that *Board) LegalColumns() []int {
	cols := make([]int, 0, Cols)
	for col := 0; col < Cols; col++ {
		if that[0][col] == EmptyCell {
			cols = append(cols, col)
		}
	}

	return cols
}
