package agent

import (
	"sync/atomic"
)

// LoopMetrics 记录导航回路运行期的关键指标（用于监控与调试）
type LoopMetrics struct {
	CycleCount      int64 // 完成的决策周期数
	ObstaclesSeen   int64 // 判定为有障碍的周期数
	CaptureTimeouts int64 // 采集响应超时次数
	DecodeFailures  int64 // 帧解码失败次数
	TotalCycleNs    int64 // 周期累计耗时（纳秒）
}

func (m *LoopMetrics) IncObstacle()       { atomic.AddInt64(&m.ObstaclesSeen, 1) }
func (m *LoopMetrics) IncCaptureTimeout() { atomic.AddInt64(&m.CaptureTimeouts, 1) }
func (m *LoopMetrics) IncDecodeFailure()  { atomic.AddInt64(&m.DecodeFailures, 1) }
func (m *LoopMetrics) AddCycle(ns int64) {
	atomic.AddInt64(&m.CycleCount, 1)
	atomic.AddInt64(&m.TotalCycleNs, ns)
}

// Snapshot 返回只读副本，便于日志输出
func (m *LoopMetrics) Snapshot() map[string]any {
	cycles := atomic.LoadInt64(&m.CycleCount)
	total := atomic.LoadInt64(&m.TotalCycleNs)
	var avgMs float64
	if cycles > 0 {
		avgMs = float64(total) / float64(cycles) / 1e6
	}
	return map[string]any{
		"cycle_count":      cycles,
		"obstacles_seen":   atomic.LoadInt64(&m.ObstaclesSeen),
		"capture_timeouts": atomic.LoadInt64(&m.CaptureTimeouts),
		"decode_failures":  atomic.LoadInt64(&m.DecodeFailures),
		"avg_cycle_ms":     avgMs,
	}
}
