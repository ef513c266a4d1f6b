// internal/service/orchestrator/interfaces/ws_hub.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"phincommerce/internal/service/orchestrator/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 运维面板，允许跨域
		return true
	},
}

// TransitionMessage 是推送给 websocket 客户端的消息
type TransitionMessage struct {
	SagaID     string           `json:"saga_id"`
	OrderID    int64            `json:"order_id"`
	From       domain.SagaState `json:"from"`
	To         domain.SagaState `json:"to"`
	Detail     string           `json:"detail,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Hub 维护所有订阅了 Saga 流转的连接，并负责广播。实现 port.TransitionObserver。
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan domain.Transition
	done       chan struct{}
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan domain.Transition, 1024),
		done:       make(chan struct{}),
	}
}

// Start 实现 bootstrap.Component
func (h *Hub) Start(ctx context.Context) error {
	go h.run(ctx)
	return nil
}

func (h *Hub) Stop(context.Context) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for id, c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, id)
	}
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client.id] = client
			h.lock.Unlock()
			log.Debug().Str("client", client.id).Msg("Saga stream client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.lock.Unlock()
			log.Debug().Str("client", client.id).Msg("Saga stream client unregistered")
		case t := <-h.broadcast:
			h.deliver(t)
		}
	}
}

func (h *Hub) deliver(t domain.Transition) {
	payload, err := json.Marshal(TransitionMessage{
		SagaID: t.SagaID, OrderID: t.OrderID, From: t.From, To: t.To,
		Detail: t.Detail, OccurredAt: t.OccurredAt,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode transition")
		return
	}

	h.lock.RLock()
	defer h.lock.RUnlock()
	for _, c := range h.clients {
		if !c.wants(t.OrderID) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// 慢客户端直接丢消息
			log.Warn().Str("client", c.id).Msg("Saga stream client is too slow, dropping transition")
		}
	}
}

// Observe 由编排器在每次状态流转后调用，不会阻塞 Saga
func (h *Hub) Observe(t domain.Transition) {
	select {
	case h.broadcast <- t:
	default:
		log.Warn().Str("saga", t.SagaID).Msg("Saga stream backlog full, dropping transition")
	}
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// Client 是一个 WebSocket 连接，orderID 为 0 表示订阅全部订单
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	orderID int64
}

func (c *Client) wants(orderID int64) bool {
	return c.orderID == 0 || c.orderID == orderID
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理心跳，客户端发来的内容被丢弃
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeWs 将请求升级为 websocket，可选参数 orderId 用于只订阅单个订单
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	var orderID int64
	if raw := r.URL.Query().Get("orderId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "orderId must be a positive integer", http.StatusBadRequest)
			return
		}
		orderID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, clientSendSize), id: uuid.New().String(), orderID: orderID}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
