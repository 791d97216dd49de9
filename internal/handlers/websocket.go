package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"twod-ledger-backend/internal/models"
	"twod-ledger-backend/internal/services"
)

const (
	MessageBalanceUpdate = "BALANCE_UPDATE"
	MessageSettlement    = "SETTLEMENT"
	MessagePing          = "PING"
	MessagePong          = "PONG"

	writeWait  = 10 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHub fans ledger notices out to connected clients. It implements
// services.Notifier.
type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	log        *zap.Logger
}

type Client struct {
	Handle string
	Conn   *websocket.Conn
	send   chan *Message
}

type Message struct {
	Type   string      `json:"type"`
	Handle string      `json:"handle,omitempty"`
	Data   interface{} `json:"data"`
}

var _ services.Notifier = (*WebSocketHub)(nil)

func NewWebSocketHub(log *zap.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is done, then closes every connection.
func (hub *WebSocketHub) Run(ctx context.Context) {
	defer close(hub.done)
	for {
		select {
		case client := <-hub.register:
			if hub.clients[client.Handle] == nil {
				hub.clients[client.Handle] = make(map[*Client]struct{})
			}
			hub.clients[client.Handle][client] = struct{}{}
			hub.log.Debug("client registered", zap.String("handle", client.Handle))

		case client := <-hub.unregister:
			hub.remove(client)

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)

		case <-ctx.Done():
			for _, conns := range hub.clients {
				for client := range conns {
					hub.remove(client)
				}
			}
			return
		}
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	conns, ok := hub.clients[client.Handle]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(hub.clients, client.Handle)
	}
	close(client.send)
	hub.log.Debug("client unregistered", zap.String("handle", client.Handle))
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	targets := hub.clients
	if message.Handle != "" {
		targets = map[string]map[*Client]struct{}{message.Handle: hub.clients[message.Handle]}
	}
	for _, conns := range targets {
		for client := range conns {
			select {
			case client.send <- message:
			default:
				hub.log.Warn("dropping message for slow client", zap.String("handle", client.Handle), zap.String("type", message.Type))
			}
		}
	}
}

func (hub *WebSocketHub) enqueue(message *Message) {
	select {
	case hub.broadcast <- message:
	case <-hub.done:
	default:
		hub.log.Warn("broadcast queue full, dropping message", zap.String("type", message.Type))
	}
}

func (hub *WebSocketHub) NotifyBalance(owner string, balance int64) {
	hub.enqueue(&Message{
		Type:   MessageBalanceUpdate,
		Handle: owner,
		Data: gin.H{
			"balance":           balance,
			"balance_formatted": models.FormatAmount(balance),
		},
	})
}

func (hub *WebSocketHub) NotifySettlement(report *models.SettlementReport) {
	hub.enqueue(&Message{
		Type: MessageSettlement,
		Data: gin.H{
			"date":           report.Date,
			"session":        report.Session,
			"winning_number": report.WinningNumber,
			"winners":        len(report.Winners),
			"total_paid":     report.TotalPaid(),
			"timestamp":      time.Now().Unix(),
		},
	})
}

type WebSocketHandler struct {
	accounts *services.AccountService
	hub      *WebSocketHub
	log      *zap.Logger
}

func NewWebSocketHandler(accounts *services.AccountService, hub *WebSocketHub, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		accounts: accounts,
		hub:      hub,
		log:      log,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	handle := currentHandle(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &Client{
		Handle: handle,
		Conn:   conn,
		send:   make(chan *Message, sendBuffer),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()

	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		conn.Close()
	}()

	if acct, err := h.accounts.Get(c.Request.Context(), handle); err == nil {
		h.hub.NotifyBalance(handle, acct.Balance)
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket error", zap.String("handle", handle), zap.Error(err))
			}
			return
		}

		if msg.Type == MessagePing {
			h.hub.enqueue(&Message{
				Type:   MessagePong,
				Handle: handle,
				Data:   gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

// writePump is the only writer on the connection.
func (cl *Client) writePump() {
	for msg := range cl.send {
		cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.Conn.WriteJSON(msg); err != nil {
			cl.Conn.Close()
			for range cl.send {
			}
			return
		}
	}
	cl.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
