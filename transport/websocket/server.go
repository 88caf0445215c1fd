package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/pkg"
	"github.com/rocketscienceinc/connectfour-backend/internal/session"
)

type gameManager interface {
	JoinQueue(username, connID string) error
	CreateFriendGame(username, connID string) (*entity.Game, error)
	JoinFriendGame(gameID, username, connID string) error
	MakeMove(gameID, connID string, col int) error
	Rejoin(gameID, username, connID string) error
	CheckGameExists(gameID string) session.GameExistsPayload
	HandleDisconnect(connID string)
}

type Server struct {
	logger  *slog.Logger
	manager gameManager

	upgrader websocket.Upgrader
	srv      *http.Server

	mu      sync.RWMutex
	clients map[string]*client

	handlers map[string]func(connID string, payload json.RawMessage) error
}

func New(logger *slog.Logger, manager gameManager) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:  make(map[string]*client),
		handlers: make(map[string]func(string, json.RawMessage) error),
	}

	server.handlers["joinQueue"] = server.handleJoinQueue
	server.handlers["createFriendGame"] = server.handleCreateFriendGame
	server.handlers["joinFriendGame"] = server.handleJoinFriendGame
	server.handlers["makeMove"] = server.handleMakeMove
	server.handlers["rejoin"] = server.handleRejoin
	server.handlers["checkGameExists"] = server.handleCheckGameExists

	return server
}

// Start - starts the WebSocket server.
func (that *Server) Start(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.serveWS)

	that.srv = &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		IdleTimeout: 120 * time.Second,
	}

	if err := that.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) Shutdown(ctx context.Context) error {
	that.mu.Lock()
	for _, cl := range that.clients {
		cl.close()
	}
	that.clients = make(map[string]*client)
	that.mu.Unlock()

	if that.srv == nil {
		return nil
	}

	if err := that.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

func (that *Server) serveWS(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveWS")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	connID := pkg.GenerateConnectionID()
	cl := newClient(connID, conn)

	that.mu.Lock()
	that.clients[connID] = cl
	that.mu.Unlock()

	log.Info("connection established", "connID", connID)

	go cl.writePump()
	that.readLoop(cl)
}

// readLoop processes messages from a single client until the connection
// drops, then triggers the disconnect flow.
func (that *Server) readLoop(cl *client) {
	log := that.logger.With("method", "readLoop", "connID", cl.connID)

	defer func() {
		that.mu.Lock()
		delete(that.clients, cl.connID)
		that.mu.Unlock()

		cl.close()
		that.manager.HandleDisconnect(cl.connID)

		log.Info("connection closed")
	}()

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("unexpected close", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(raw, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			continue
		}

		if err = handler(cl.connID, message.Payload); err != nil {
			log.Error("failed to handle message", "action", message.Action, "error", err)
		}
	}
}

// Unicast sends an event to a single connection. Unknown connection ids
// are dropped silently, matching the semantics the game loop expects.
func (that *Server) Unicast(connID, event string, payload any) {
	frame, err := that.encode(event, payload)
	if err != nil {
		that.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}

	that.mu.RLock()
	cl := that.clients[connID]
	that.mu.RUnlock()

	if cl == nil {
		return
	}

	cl.enqueue(frame)
}

// Broadcast sends an event to every listed connection.
func (that *Server) Broadcast(connIDs []string, event string, payload any) {
	frame, err := that.encode(event, payload)
	if err != nil {
		that.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for _, connID := range connIDs {
		if cl := that.clients[connID]; cl != nil {
			cl.enqueue(frame)
		}
	}
}

func (that *Server) encode(event string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	frame, err := json.Marshal(Message{Action: event, Payload: body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return frame, nil
}
