package events

import (
	"time"

	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

const (
	TypeGameStarted = "GAME_STARTED"
	TypeMoveMade    = "MOVE_MADE"
	TypeGameEnded   = "GAME_ENDED"
)

// GameEvent is the lifecycle record published for offline analytics. Only the
// fields relevant to the event type are set.
type GameEvent struct {
	EventType   string           `json:"eventType"`
	GameID      string           `json:"gameId"`
	Players     []*entity.Player `json:"players,omitempty"`
	Player1     string           `json:"player1,omitempty"`
	Player2     string           `json:"player2,omitempty"`
	Winner      string           `json:"winner,omitempty"`
	IsDraw      bool             `json:"isDraw,omitempty"`
	PlayerIndex *int             `json:"playerIndex,omitempty"`
	Column      *int             `json:"column,omitempty"`
	StartedAt   time.Time        `json:"startedAt,omitempty"`
	EndedAt     time.Time        `json:"endedAt,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NopPublisher discards every event. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ GameEvent) {}
