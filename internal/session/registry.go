package session

import "sync"

// Registry is the process-wide session lookup: game id to session, connection
// id to game id, and username to the game a disconnected player may rejoin.
// The connection and pending maps are derived state, rebuilt on every create,
// rejoin and drop.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byConn   map[string]string
	pending  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byConn:   make(map[string]string),
		pending:  make(map[string]string),
	}
}

func (that *Registry) Add(gameID string, sess *Session, connIDs ...string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[gameID] = sess
	for _, connID := range connIDs {
		if connID != "" {
			that.byConn[connID] = gameID
		}
	}
}

func (that *Registry) Get(gameID string) (*Session, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	sess, ok := that.sessions[gameID]
	return sess, ok
}

func (that *Registry) ByConnection(connID string) (*Session, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	gameID, ok := that.byConn[connID]
	if !ok {
		return nil, false
	}

	sess, ok := that.sessions[gameID]
	return sess, ok
}

func (that *Registry) BindConnection(connID, gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.byConn[connID] = gameID
}

func (that *Registry) UnbindConnection(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.byConn, connID)
}

// Remove - drops the session and every derived entry that points at it.
func (that *Registry) Remove(gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, gameID)

	for connID, id := range that.byConn {
		if id == gameID {
			delete(that.byConn, connID)
		}
	}

	for username, id := range that.pending {
		if id == gameID {
			delete(that.pending, username)
		}
	}
}

func (that *Registry) SetPending(username, gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.pending[username] = gameID
}

func (that *Registry) ClearPending(username string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.pending, username)
}

// PendingGame - the game a disconnected player is expected back in.
func (that *Registry) PendingGame(username string) (string, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	gameID, ok := that.pending[username]
	return gameID, ok
}

func (that *Registry) ActiveCount() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.sessions)
}
