package bridge

import (
	"encoding/json"
	"net/http"
	"strings"
)

// 地面为以原点为中心的 100x100 平面，角落目标点向内收 margin
const (
	floorHalf    = 50.0
	cornerMargin = 5.0
)

// vec3 广播给仿真器的三维坐标（y 为高度）
type vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// API 指令接口：把 HTTP 请求翻译成总线上的仿真器指令
type API struct {
	hub *Hub
}

// NewAPI 构造指令接口
func NewAPI(hub *Hub) *API {
	return &API{hub: hub}
}

// Routes 注册全部指令端点
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/move", a.handleMove)
	mux.HandleFunc("/move_rel", a.handleMoveRel)
	mux.HandleFunc("/stop", a.handleStop)
	mux.HandleFunc("/capture", a.handleCapture)
	mux.HandleFunc("/goal", a.handleGoal)
	mux.HandleFunc("/obstacles/positions", a.handleObstaclePositions)
	mux.HandleFunc("/obstacles/motion", a.handleObstacleMotion)
	mux.HandleFunc("/collisions", a.handleCollisions)
	mux.HandleFunc("/reset", a.handleReset)
	mux.HandleFunc("/metrics", a.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return withCORS(mux)
}

// withCORS 允许控制页面的跨域调用
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// broadcast 下发指令；无在线仿真器时按 400 报告
func (a *API) broadcast(w http.ResponseWriter, msg map[string]any, okStatus string) {
	if !a.hub.Broadcast(msg) {
		writeError(w, http.StatusBadRequest, "No connected simulators.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": okStatus, "command": msg})
}

func (a *API) handleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		X *float64 `json:"x"`
		Z *float64 `json:"z"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.X == nil || body.Z == nil {
		writeError(w, http.StatusBadRequest, `Missing parameters. Please provide "x" and "z".`)
		return
	}
	msg := map[string]any{"command": "move", "target": vec3{X: *body.X, Z: *body.Z}}
	a.broadcast(w, msg, "move command sent")
}

func (a *API) handleMoveRel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Turn     *float64 `json:"turn"`
		Distance *float64 `json:"distance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Turn == nil || body.Distance == nil {
		writeError(w, http.StatusBadRequest, `Missing parameters. Please provide "turn" and "distance".`)
		return
	}
	msg := map[string]any{"command": "move_relative", "turn": *body.Turn, "distance": *body.Distance}
	a.broadcast(w, msg, "move relative command sent")
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a.broadcast(w, map[string]any{"command": "stop"}, "stop command sent")
}

func (a *API) handleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	msg := map[string]any{"command": "capture_image"}
	// request_id 可选：带上则原样进指令，由仿真器回带用于关联
	var body struct {
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.RequestID != "" {
		msg["request_id"] = body.RequestID
	}
	a.broadcast(w, msg, "capture command sent")
}

func (a *API) handleGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Corner string   `json:"corner"`
		X      *float64 `json:"x"`
		Y      *float64 `json:"y"`
		Z      *float64 `json:"z"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, `Provide {"corner":"NE|NW|SE|SW"} OR {"x":..,"z":..}`)
		return
	}

	var pos vec3
	switch {
	case body.Corner != "":
		pos = cornerToCoords(body.Corner)
	case body.X != nil && body.Z != nil:
		pos = vec3{X: *body.X, Z: *body.Z}
		if body.Y != nil {
			pos.Y = *body.Y
		}
	default:
		writeError(w, http.StatusBadRequest, `Provide {"corner":"NE|NW|SE|SW"} OR {"x":..,"z":..}`)
		return
	}

	msg := map[string]any{"command": "set_goal", "position": pos}
	if !a.hub.Broadcast(msg) {
		writeError(w, http.StatusBadRequest, "No connected simulators.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "goal set", "goal": pos})
}

// cornerToCoords 把 NE/NW/SE/SW（及 TR/TL/BR/BL 别名）映射到靠角的目标点
func cornerToCoords(corner string) vec3 {
	c := strings.ToUpper(corner)
	edge := floorHalf - cornerMargin
	switch c {
	case "NE", "EN", "TR":
		return vec3{X: edge, Z: -edge}
	case "NW", "WN", "TL":
		return vec3{X: -edge, Z: -edge}
	case "SE", "ES", "BR":
		return vec3{X: edge, Z: edge}
	case "SW", "WS", "BL":
		return vec3{X: -edge, Z: edge}
	}
	// 字母推断兜底：E 为 +x，S/B 为 +z
	x := -edge
	if strings.Contains(c, "E") {
		x = edge
	}
	z := -edge
	if strings.Contains(c, "S") || strings.Contains(c, "B") {
		z = edge
	}
	return vec3{X: x, Z: z}
}

func (a *API) handleObstaclePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Positions []struct {
			X *float64 `json:"x"`
			Y *float64 `json:"y"`
			Z *float64 `json:"z"`
		} `json:"positions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Positions) == 0 {
		writeError(w, http.StatusBadRequest, `Provide "positions" as a non-empty list.`)
		return
	}
	norm := make([]vec3, 0, len(body.Positions))
	for _, p := range body.Positions {
		if p.X == nil || p.Z == nil {
			writeError(w, http.StatusBadRequest, `Each position needs "x" and "z".`)
			return
		}
		v := vec3{X: *p.X, Y: 2, Z: *p.Z} // 障碍物默认悬高 2
		if p.Y != nil {
			v.Y = *p.Y
		}
		norm = append(norm, v)
	}
	msg := map[string]any{"command": "set_obstacles", "positions": norm}
	if !a.hub.Broadcast(msg) {
		writeError(w, http.StatusBadRequest, "No connected simulators.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "obstacles updated", "count": len(norm)})
}

func (a *API) handleObstacleMotion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Enabled    *bool          `json:"enabled"`
		Speed      *float64       `json:"speed"`
		Velocities any            `json:"velocities"`
		Bounds     map[string]any `json:"bounds"`
		Bounce     *bool          `json:"bounce"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `Missing "enabled" boolean.`)
		return
	}
	speed := 0.05
	if body.Speed != nil {
		speed = *body.Speed
	}
	bounds := body.Bounds
	if bounds == nil {
		bounds = map[string]any{"minX": -45, "maxX": 45, "minZ": -45, "maxZ": 45}
	}
	bounce := true
	if body.Bounce != nil {
		bounce = *body.Bounce
	}
	msg := map[string]any{
		"command":    "set_obstacle_motion",
		"enabled":    *body.Enabled,
		"speed":      speed,
		"velocities": body.Velocities,
		"bounds":     bounds,
		"bounce":     bounce,
	}
	if !a.hub.Broadcast(msg) {
		writeError(w, http.StatusBadRequest, "No connected simulators.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "obstacle motion updated", "config": msg})
}

// handleCollisions 返回仿真器上报的累计碰撞数
func (a *API) handleCollisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": a.hub.Collisions()})
}

// handleReset 碰撞计数清零并向仿真器广播复位指令
func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a.hub.ResetCollisions()
	if !a.hub.Broadcast(map[string]any{"command": "reset"}) {
		// 没有仿真器在线也算清零完成
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "reset done (no simulators connected)", "collisions": 0,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset broadcast", "collisions": 0})
}

// handleMetrics 输出中枢运行指标
func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"clients": a.hub.ClientCount(),
		"metrics": a.hub.metrics.Snapshot(),
	}
	writeJSON(w, http.StatusOK, payload)
}
