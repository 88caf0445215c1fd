package entity

import "time"

const BotName = "Bot"

// Player is one of the two fixed seats in a game. The bot seat has no
// connection id.
type Player struct {
	Username       string     `json:"username"`
	ConnectionID   string     `json:"connectionId,omitempty"`
	Color          string     `json:"color"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
}

func NewBotPlayer() *Player {
	return &Player{
		Username: BotName,
		Color:    ColorGreen,
	}
}

func (that *Player) IsBot() bool {
	return that.Username == BotName && that.ConnectionID == ""
}

func (that *Player) IsConnected() bool {
	return that.IsBot() || (that.ConnectionID != "" && that.DisconnectedAt == nil)
}
