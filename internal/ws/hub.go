package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/goalstake/engine/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send pongs
	sendBufferSize = 256              // messages in each client send channel
)

// TokenParser turns a bearer token into a wallet. Implemented by
// service.AuthService.
type TokenParser interface {
	ParseWallet(token string) (domain.WalletID, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket endpoint.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	circle uuid.UUID       // uuid.Nil = every circle
	wallet domain.WalletID // empty = anonymous
}

type envelope struct {
	circle uuid.UUID
	data   []byte
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub fans goal events out to the clients subscribed to the goal's circle.
// Run must be started before ServeWs is used.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	tokens   TokenParser // optional
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHub creates a Hub. tokens may be nil, in which case every connection
// is anonymous. An empty allowedOrigins accepts any origin.
func NewHub(tokens TokenParser, allowedOrigins []string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 512),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		tokens:     tokens,
		log:        log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Run: hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration and broadcast events until ctx
// is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.circle != uuid.Nil && client.circle != msg.circle {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer; drop for this client only.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ConnectedCount returns the current number of connected clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs: HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades the request. ?circle=<uuid> narrows the subscription;
// ?token=<jwt> identifies the caller. A malformed circle is rejected before
// the upgrade; a bad token leaves the connection anonymous.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	circle := uuid.Nil
	if raw := r.URL.Query().Get("circle"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid circle id", http.StatusBadRequest)
			return
		}
		circle = id
	}

	var wallet domain.WalletID
	var tokenErr error
	if token := r.URL.Query().Get("token"); token != "" && h.tokens != nil {
		wallet, tokenErr = h.tokens.ParseWallet(token)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		circle: circle,
		wallet: wallet,
	}
	if hello, err := json.Marshal(WelcomeMessage{Type: MsgTypeWelcome, CircleID: circle, Wallet: wallet}); err == nil {
		client.send <- hello
	}
	if tokenErr != nil {
		if msg, err := json.Marshal(ErrorMessage{Type: MsgTypeError, Code: "ERR_UNAUTHENTICATED", Message: tokenErr.Error()}); err == nil {
			client.send <- msg
		}
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the send channel and pings every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services pongs; the protocol is server-push. When the
// connection drops the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close",
					zap.String("wallet", c.wallet.String()), zap.Error(err))
			}
			return
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast: implements service.Broadcaster
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastGoalEvent queues event for the goal's circle. Never blocks: a full
// queue drops the message.
func (h *Hub) BroadcastGoalEvent(event string, goal domain.GoalView) {
	data, err := json.Marshal(GoalEventMessage{
		Type:      MsgTypeGoalEvent,
		Event:     event,
		CircleID:  goal.CircleID,
		Goal:      goal,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("marshal goal event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- envelope{circle: goal.CircleID, data: data}:
	default:
		h.log.Warn("broadcast channel full, message dropped", zap.String("event", event))
	}
}
