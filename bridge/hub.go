package bridge

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// 总线保活参数：控制器在等待采集帧期间完全静默，只能靠中枢主动 ping
// 来维持连接，读超时必须由 pong 刷新。测试中会调短。
var (
	busWriteWait    = 5 * time.Second
	busPongWait     = 10 * time.Minute
	busPingInterval = 30 * time.Second
)

// Hub 维护所有事件通道客户端并负责消息转发
// 机器人控制器与仿真器挂在同一条广播总线上：任何一方发来的合法 JSON
// 都转发给所有客户端，采集响应正是经由这条总线回到控制器的。
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	collisions int64 // 仿真器上报的累计碰撞数
	metrics    *HubMetrics
}

// NewHub 创建空的转发中枢
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		metrics: &HubMetrics{},
	}
}

// client 单个 WebSocket 连接的发送端包装
type client struct {
	ws   *websocket.Conn
	send chan []byte
}

func newClient(ws *websocket.Conn) *client {
	return &client{
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *client) enqueue(b []byte, m *HubMetrics) {
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃而不阻塞广播
		m.IncDropped()
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping 保活
// （只读不写的客户端靠自动回 pong 刷新读超时）
func (c *client) writePump() {
	ticker := time.NewTicker(busPingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(busWriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(busWriteWait)); err != nil {
				return
			}
		}
	}
}

// add 登记客户端并启动其写协程
func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncConnected()
	go c.writePump()
}

// remove 摘除客户端并关闭发送队列
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.send)
	}
	_ = c.ws.Close()
}

// Broadcast 序列化后转发给所有客户端；无客户端时返回 false
func (h *Hub) Broadcast(msg any) bool {
	b, err := json.Marshal(msg)
	if err != nil {
		Log.Errorf("broadcast marshal: %v", err)
		return false
	}
	return h.broadcastRaw(b)
}

func (h *Hub) broadcastRaw(b []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return false
	}
	for c := range h.clients {
		c.enqueue(b, h.metrics)
	}
	h.metrics.IncBroadcast()
	return true
}

// Collisions 返回累计碰撞数
func (h *Hub) Collisions() int64 {
	return atomic.LoadInt64(&h.collisions)
}

// ResetCollisions 碰撞计数清零
func (h *Hub) ResetCollisions() {
	atomic.StoreInt64(&h.collisions, 0)
}

// ClientCount 当前在线客户端数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
