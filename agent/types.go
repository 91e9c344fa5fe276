package agent

import "math"

// Position 机器人在地面平面上的位置（仿真器以 x/z 为水平面坐标）
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Z float64 `json:"z" yaml:"z"`
}

// Distance 返回到另一点的平面欧氏距离
func (p Position) Distance(q Position) float64 {
	dx := p.X - q.X
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Frame 单次采集得到的相机帧：data URI 编码的图像 + 拍摄瞬间的机器人位置
// 每个决策周期消费一帧，不跨周期保留
type Frame struct {
	Image    string
	Position Position
}

// streamMessage 事件通道上的入站消息
// 采集响应之外的类型一律忽略；request_id 为可选（旧版仿真器不回带）
type streamMessage struct {
	Type      string   `json:"type"`
	Image     string   `json:"image"`
	Position  Position `json:"position"`
	RequestID string   `json:"request_id,omitempty"`
}

// 入站消息类型标签
const msgTypeCaptureResponse = "capture_image_response"
