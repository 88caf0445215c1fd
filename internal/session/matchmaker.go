package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

// queueEntry is one waiting player. Its solo timer pairs the player with the
// bot if no human arrives in time.
type queueEntry struct {
	username   string
	connID     string
	enqueuedAt time.Time
	timer      *time.Timer
}

// Matchmaker pairs waiting players FIFO, or with the bot after the solo
// timeout. Enqueue, dequeue and the timeout all contend on one mutex, so an
// entry is found-and-removed exactly once no matter how a pairing and a
// firing timer interleave.
type Matchmaker struct {
	logger  *slog.Logger
	timeout time.Duration

	// startGame runs outside the queue lock; p2 is nil for a bot game.
	startGame func(p1, p2 *entity.Player)

	mu    sync.Mutex
	queue []*queueEntry
}

func NewMatchmaker(logger *slog.Logger, timeout time.Duration, startGame func(p1, p2 *entity.Player)) *Matchmaker {
	return &Matchmaker{
		logger:    logger.With("component", "matchmaker"),
		timeout:   timeout,
		startGame: startGame,
	}
}

// Enqueue - adds a waiting player. The two oldest entries pair immediately
// when this makes the queue reach two; otherwise the entry waits with a solo
// timer armed.
func (that *Matchmaker) Enqueue(username, connID string) {
	entry := &queueEntry{
		username:   username,
		connID:     connID,
		enqueuedAt: time.Now(),
	}

	that.mu.Lock()

	that.queue = append(that.queue, entry)

	if len(that.queue) >= 2 {
		first, second := that.queue[0], that.queue[1]
		that.queue = that.queue[2:]

		if first.timer != nil {
			first.timer.Stop()
		}
		if second.timer != nil {
			second.timer.Stop()
		}

		that.mu.Unlock()

		that.logger.Info("paired players", "player1", first.username, "player2", second.username)
		that.startGame(
			&entity.Player{Username: first.username, ConnectionID: first.connID},
			&entity.Player{Username: second.username, ConnectionID: second.connID},
		)

		return
	}

	entry.timer = time.AfterFunc(that.timeout, func() {
		that.soloTimeout(entry)
	})

	that.mu.Unlock()
}

// Remove - drops a waiting entry when its connection dies. Reports whether
// the entry was still queued.
func (that *Matchmaker) Remove(connID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i, entry := range that.queue {
		if entry.connID == connID {
			if entry.timer != nil {
				entry.timer.Stop()
			}
			that.queue = append(that.queue[:i], that.queue[i+1:]...)
			return true
		}
	}

	return false
}

func (that *Matchmaker) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.queue)
}

func (that *Matchmaker) soloTimeout(entry *queueEntry) {
	that.mu.Lock()

	found := false
	for i, queued := range that.queue {
		if queued == entry {
			that.queue = append(that.queue[:i], that.queue[i+1:]...)
			found = true
			break
		}
	}

	that.mu.Unlock()

	if !found {
		// a pairing won the race and already removed the entry
		return
	}

	that.logger.Info("solo timeout, pairing with bot", "player", entry.username)
	that.startGame(&entity.Player{Username: entry.username, ConnectionID: entry.connID}, nil)
}
