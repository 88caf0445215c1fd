package websocket

import "encoding/json"

// Message is the envelope every client request arrives in: an action name
// plus an action-specific payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinQueuePayload struct {
	Username string `json:"username"`
}

type CreateFriendGamePayload struct {
	Username string `json:"username"`
}

type JoinFriendGamePayload struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
}

type MakeMovePayload struct {
	GameID string `json:"gameId"`
	Col    int    `json:"col"`
}

type RejoinPayload struct {
	GameID   string `json:"gameId"`
	Username string `json:"username"`
}

type CheckGameExistsPayload struct {
	GameID string `json:"gameId"`
}
