package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

// GenerateConnectionID - generates a new unique connection identifier.
func GenerateConnectionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-connection-id"
	}

	return base64.RawURLEncoding.EncodeToString(b)
}

// GenerateGameID - generates a unique identifier for a game.
func GenerateGameID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(99999999))
	if err != nil {
		return ""
	}
	return "game_" + n.String()
}
