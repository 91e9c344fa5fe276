package agent

import (
	"context"
	"encoding/json"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navbot/bridge"
)

// simStep 仿真器脚本的一步：第 n 次采集返回第 n 个帧（末项之后重复末项）
type simStep struct {
	pos   Position
	image string
}

// startFakeSimulator 挂到总线上扮演仿真器：执行采集指令并记录收到的全部指令
func startFakeSimulator(t *testing.T, busURL string, steps []simStep) <-chan string {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(busURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	commands := make(chan string, 64)
	go func() {
		step := 0
		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if json.Unmarshal(raw, &m) != nil {
				continue
			}
			cmd, _ := m["command"].(string)
			if cmd == "" {
				continue
			}
			commands <- cmd
			if cmd != "capture_image" {
				continue
			}
			i := step
			if i >= len(steps) {
				i = len(steps) - 1
			}
			step++
			resp := map[string]any{
				"type":     "capture_image_response",
				"image":    steps[i].image,
				"position": map[string]float64{"x": steps[i].pos.X, "z": steps[i].pos.Z},
			}
			if id, ok := m["request_id"]; ok {
				resp["request_id"] = id
			}
			b, _ := json.Marshal(resp)
			_ = ws.WriteMessage(websocket.TextMessage, b)
		}
	}()
	return commands
}

// TestLoopAgainstBridge 控制器经真实 bridge 走完一次完整导航
func TestLoopAgainstBridge(t *testing.T) {
	hub := bridge.NewHub()
	api := bridge.NewAPI(hub)
	httpSrv := httptest.NewServer(api.Routes())
	t.Cleanup(httpSrv.Close)
	wsSrv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(wsSrv.Close)
	busURL := "ws" + strings.TrimPrefix(wsSrv.URL, "http")

	blue := pngDataURI(t, solidImage(16, 16, color.RGBA{B: 255, A: 255}))
	green := pngDataURI(t, solidImage(16, 16, obstacleGreen))
	commands := startFakeSimulator(t, busURL, []simStep{
		{pos: Position{X: 0, Z: 0}, image: green},    // 有障碍 → 绕行
		{pos: Position{X: -10, Z: -12}, image: blue}, // 畅通 → 直行+校正
		{pos: Position{X: -33, Z: -35}, image: blue}, // 距目标 2 < 5 → 停车
	})

	cfg := fastConfig()
	cfg.ServerURL = httpSrv.URL
	cfg.CaptureTimeout = Duration(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := DialStream(ctx, busURL)
	require.NoError(t, err)
	defer stream.Close()

	m := &LoopMetrics{}
	loop := NewLoop(cfg, NewSimClient(cfg.ServerURL), stream, NewClassifier(cfg, m), m)
	require.NoError(t, loop.Run(ctx))
	assert.Equal(t, StateGoalReached, loop.State())

	// 仿真器视角收到的指令流
	stopWait := time.After(time.Second)
	var seen []string
drain:
	for {
		select {
		case c := <-commands:
			seen = append(seen, c)
			if c == "stop" {
				break drain
			}
		case <-stopWait:
			break drain
		}
	}
	assert.Equal(t, []string{
		"set_goal",
		"capture_image", "move_relative",
		"capture_image", "move_relative", "move",
		"capture_image", "stop",
	}, seen)
	assert.Equal(t, int64(1), m.ObstaclesSeen)
}
