// Package websocket 将领域变更事件实时推送给管理端
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/eventbus"
	"github.com/ngoclaw/ngoclaw/iafleet/internal/infrastructure/monitoring"
	"github.com/ngoclaw/ngoclaw/iafleet/pkg/safego"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由 HTTP 层的 CORS 配置控制
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// MessageType 消息类型
type MessageType string

const (
	MessageTypeEvent MessageType = "event"
	MessageTypePing  MessageType = "ping"
	MessageTypePong  MessageType = "pong"
)

// WSMessage WebSocket 消息
type WSMessage struct {
	Type      MessageType `json:"type"`
	Event     string      `json:"event,omitempty"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Client WebSocket 客户端
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	logger *zap.Logger
}

// Hub WebSocket 连接中心，订阅事件总线并广播给全部客户端
type Hub struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	bus        eventbus.Bus
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	mu         sync.RWMutex
	stopped    chan struct{}
	stopOnce   sync.Once
}

// NewHub 创建连接中心；metrics 可为 nil
func NewHub(bus eventbus.Bus, metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		bus:        bus,
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "websocket")),
		stopped:    make(chan struct{}),
	}
}

// Run 运行连接中心，ctx 取消时断开全部客户端
func (h *Hub) Run(ctx context.Context) {
	unsubscribe := h.bus.Subscribe("*", h.onEvent)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.stopped) })
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.updateGauge()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.updateGauge()
			h.logger.Info("Client connected", zap.String("client_id", client.ID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			h.updateGauge()
			h.logger.Info("Client disconnected", zap.String("client_id", client.ID))
		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 慢客户端直接断开
					close(client.send)
					delete(h.clients, id)
					h.logger.Warn("Dropping slow client", zap.String("client_id", id))
				}
			}
			h.mu.Unlock()
			h.updateGauge()
		}
	}
}

// onEvent 将总线事件编码后放入广播队列，队列满时丢弃
func (h *Hub) onEvent(ctx context.Context, event eventbus.Event) {
	data, err := json.Marshal(&WSMessage{
		Type:      MessageTypeEvent,
		Event:     event.Type(),
		Payload:   event.Payload(),
		Timestamp: event.Timestamp().Unix(),
	})
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("type", event.Type()), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast queue full, dropping event", zap.String("type", event.Type()))
	}
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) updateGauge() {
	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(h.ClientCount()))
	}
}

// ServeWS 处理 WebSocket 连接
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
		logger: h.logger,
	}
	select {
	case h.register <- client:
	case <-h.stopped:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	safego.Go(h.logger, "ws-write:"+client.ID, client.writePump, nil)
	safego.Go(h.logger, "ws-read:"+client.ID, client.readPump, nil)
}

// readPump 读取客户端消息，只处理 ping
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Debug("Ignoring malformed message", zap.String("client_id", c.ID), zap.Error(err))
			continue
		}
		if msg.Type == MessageTypePing {
			c.trySend(&WSMessage{Type: MessageTypePong, Timestamp: time.Now().Unix()})
		}
	}
}

// trySend 非阻塞写入发送队列；客户端已被移除时忽略
func (c *Client) trySend(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump 写入消息并定期发送 ping
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
