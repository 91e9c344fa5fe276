package bridge

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 本地仿真环境：允许所有来源
		return true
	},
}

// HandleWS 事件通道接入：控制器与仿真器都从这里挂上总线
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Errorf("upgrade error: %v", err)
		return
	}
	Log.Infof("client connected: %s", ws.RemoteAddr())

	c := newClient(ws)
	h.add(c)
	go h.readPump(c)
}

// readPump 读取客户端消息：统计碰撞上报，并把合法 JSON 转发给所有客户端
// 非 JSON 帧直接忽略
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.ws.SetReadLimit(8 << 20) // 帧里带 base64 图像，上限放宽到 8MB
	_ = c.ws.SetReadDeadline(time.Now().Add(busPongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(busPongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			Log.Infof("client disconnected: %s", c.ws.RemoteAddr())
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(busPongWait))

		var data map[string]any
		if err := json.Unmarshal(payload, &data); err != nil {
			continue
		}
		if t, _ := data["type"].(string); t == "collision" {
			if hit, _ := data["collision"].(bool); hit {
				atomic.AddInt64(&h.collisions, 1)
			}
		}
		// 全量转发，保证控制器能收到 capture_image_response
		if h.broadcastRaw(payload) {
			h.metrics.IncRelayed()
		}
	}
}
