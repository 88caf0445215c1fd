package session

import "github.com/rocketscienceinc/connectfour-backend/internal/entity"

// Server-to-client event names.
const (
	EventWaiting              = "waiting"
	EventMatched              = "matched"
	EventGameStart            = "gameStart"
	EventFriendGameCreated    = "friendGameCreated"
	EventFriendGameStarted    = "friendGameStarted"
	EventMoveMade             = "moveMade"
	EventGameOver             = "gameOver"
	EventRejoinSuccess        = "rejoinSuccess"
	EventOpponentDisconnected = "opponentDisconnected"
	EventOpponentReconnected  = "opponentReconnected"
	EventInvalidMove          = "invalidMove"
	EventGameExists           = "gameExists"
)

const ReasonForfeit = "opponent forfeited"

// Notifier delivers server-to-client events. Implemented by the websocket
// gateway; unknown connection ids are dropped silently.
type Notifier interface {
	Unicast(connID, event string, payload any)
	Broadcast(connIDs []string, event string, payload any)
}

type WaitingPayload struct {
	Message string `json:"message"`
}

type MatchedPayload struct {
	Opponent string `json:"opponent"`
	GameID   string `json:"gameId"`
}

type GameStartPayload struct {
	GameID  string           `json:"gameId"`
	Players []*entity.Player `json:"players"`
	Board   entity.Board     `json:"board"`
}

type FriendGameCreatedPayload struct {
	GameID  string           `json:"gameId"`
	Players []*entity.Player `json:"players"`
}

type FriendGameStartedPayload struct {
	Players []*entity.Player `json:"players"`
}

type MoveMadePayload struct {
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Color       string `json:"color"`
	CurrentTurn int    `json:"currentTurn"`
}

type GameOverPayload struct {
	Winner string       `json:"winner,omitempty"`
	Draw   bool         `json:"draw,omitempty"`
	Board  entity.Board `json:"board"`
	Reason string       `json:"reason,omitempty"`
}

type RejoinSuccessPayload struct {
	Board       entity.Board     `json:"board"`
	Players     []*entity.Player `json:"players"`
	CurrentTurn int              `json:"currentTurn"`
	GameID      string           `json:"gameId"`
}

type OpponentDisconnectedPayload struct {
	Username    string `json:"username"`
	WaitSeconds int    `json:"waitSeconds"`
}

type OpponentReconnectedPayload struct {
	Username string `json:"username"`
}

type InvalidMovePayload struct {
	Message string `json:"message"`
}

type GameExistsPayload struct {
	Exists  bool   `json:"exists"`
	CanJoin bool   `json:"canJoin"`
	Message string `json:"message,omitempty"`
}
