package handlers

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/permissions"
	"github.com/monocle-dev/taskboard/internal/types"
	"github.com/monocle-dev/taskboard/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Hub tracks live dashboard connections per user and pushes task events to
// the sessions allowed to see them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uint]*session
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type session struct {
	user    models.User
	clients map[*client]bool
}

// client serialises writes; a websocket connection supports one writer at a
// time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(msg types.SocketMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return c.conn.WriteJSON(msg)
}

func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		sessions: make(map[uint]*session),
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Sessions returns a snapshot of the users with at least one open connection.
func (h *Hub) Sessions() []models.User {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]models.User, 0, len(h.sessions))
	for _, s := range h.sessions {
		users = append(users, s.user)
	}

	return users
}

// SendTo delivers msg to every connection of userID.
func (h *Hub) SendTo(userID uint, msg types.SocketMessage) {
	h.mu.RLock()
	s, exists := h.sessions[userID]
	if !exists || len(s.clients) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy the clients to avoid holding the lock while writing
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(msg); err != nil {
			h.logger.Warn("socket write failed", "user_id", userID, "error", err)
			h.remove(userID, c)
		}
	}
}

// BroadcastRefresh tells every session that can see any of the given task
// snapshots to reload. Pass both the old and the new snapshot when a change
// can move a task out of someone's scope.
func (h *Hub) BroadcastRefresh(action string, snapshots ...models.Task) {
	if len(snapshots) == 0 {
		return
	}

	msg := types.SocketMessage{
		Type:    types.MessageRefresh,
		Message: "Task data updated",
		TaskID:  snapshots[0].ID,
		Action:  action,
	}

	for _, user := range h.Sessions() {
		for _, task := range snapshots {
			if permissions.CanSee(user, task) {
				h.SendTo(user.ID, msg)
				break
			}
		}
	}
}

func (h *Hub) add(user models.User, conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, exists := h.sessions[user.ID]
	if !exists {
		s = &session{clients: make(map[*client]bool)}
		h.sessions[user.ID] = s
	}

	c := &client{conn: conn}
	s.user = user
	s.clients[c] = true

	return c
}

func (h *Hub) remove(userID uint, c *client) {
	h.mu.Lock()
	if s, exists := h.sessions[userID]; exists {
		delete(s.clients, c)
		if len(s.clients) == 0 {
			delete(h.sessions, userID)
		}
	}
	h.mu.Unlock()

	c.conn.Close()
}

func (h *Handler) WebSocket(c *gin.Context) {
	user, err := utils.GetCurrentUser(c)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	hub := h.Hub
	conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		hub.logger.Warn("set initial read deadline failed", "error", err)
		conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	registered := hub.add(user, conn)
	defer func() {
		hub.remove(user.ID, registered)
		hub.logger.Debug("websocket connection closed", "user_id", user.ID)
	}()

	err = registered.writeJSON(types.SocketMessage{
		Type:    types.MessageConnected,
		Message: "WebSocket connection established",
	})

	if err != nil {
		hub.logger.Warn("send welcome message failed", "user_id", user.ID, "error", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	done := make(chan struct{})
	defer close(done)

	go func() {
		// Send pings periodically
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Warn("websocket error", "user_id", user.ID, "error", err)
			}
			break
		}
	}
}
