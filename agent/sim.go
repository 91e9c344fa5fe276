package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SimClient 仿真器指令接口的 HTTP 客户端
// 指令对回路而言是 fire-and-forget：只关心传输是否成功，不消费响应载荷。
// 传输层失败按致命处理，由调用方向上传播。
type SimClient struct {
	base string
	hc   *http.Client
}

// NewSimClient 构造指令客户端，base 形如 "http://localhost:5000"
func NewSimClient(base string) *SimClient {
	return &SimClient{
		base: base,
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetGoal 在仿真器中登记目标点（启动时发送一次）
func (c *SimClient) SetGoal(ctx context.Context, goal Position) error {
	return c.post(ctx, "/goal", goal)
}

// Move 朝指定点转向并前进（用于直行后的航向校正）
func (c *SimClient) Move(ctx context.Context, target Position) error {
	return c.post(ctx, "/move", target)
}

// MoveRelative 先旋转 turn 度再前进 distance 单位
func (c *SimClient) MoveRelative(ctx context.Context, turn, distance float64) error {
	return c.post(ctx, "/move_rel", map[string]float64{"turn": turn, "distance": distance})
}

// Stop 停止机器人运动
func (c *SimClient) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop", nil)
}

// TriggerCapture 请求仿真器拍摄一帧，requestID 用于关联异步回包
func (c *SimClient) TriggerCapture(ctx context.Context, requestID string) error {
	var body any
	if requestID != "" {
		body = map[string]string{"request_id": requestID}
	}
	return c.post(ctx, "/capture", body)
}

// SetObstacles 布置障碍物位置（场景搭建用）
func (c *SimClient) SetObstacles(ctx context.Context, positions []Position) error {
	return c.post(ctx, "/obstacles/positions", map[string]any{"positions": positions})
}

// SetObstacleMotion 开关障碍物的自主运动
func (c *SimClient) SetObstacleMotion(ctx context.Context, enabled bool, speed float64) error {
	return c.post(ctx, "/obstacles/motion", map[string]any{"enabled": enabled, "speed": speed})
}

// Collisions 查询累计碰撞次数
func (c *SimClient) Collisions(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/collisions", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get /collisions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get /collisions: unexpected status %s", resp.Status)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode /collisions: %w", err)
	}
	return out.Count, nil
}

// Reset 清零碰撞计数并让仿真器复位
func (c *SimClient) Reset(ctx context.Context) error {
	return c.post(ctx, "/reset", nil)
}

func (c *SimClient) post(ctx context.Context, path string, body any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: unexpected status %s", path, resp.Status)
	}
	return nil
}
