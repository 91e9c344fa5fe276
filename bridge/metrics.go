package bridge

import (
	"sync/atomic"
)

// HubMetrics 记录中枢运行期的关键指标（用于监控与调试）
type HubMetrics struct {
	ClientsConnected int64 // 历史接入的客户端数
	CommandsSent     int64 // 下发成功的广播次数
	MessagesRelayed  int64 // 客户端间转发的消息数
	FramesDropped    int64 // 因发送队列满被丢弃的消息数
}

func (m *HubMetrics) IncConnected() { atomic.AddInt64(&m.ClientsConnected, 1) }
func (m *HubMetrics) IncBroadcast() { atomic.AddInt64(&m.CommandsSent, 1) }
func (m *HubMetrics) IncRelayed()   { atomic.AddInt64(&m.MessagesRelayed, 1) }
func (m *HubMetrics) IncDropped()   { atomic.AddInt64(&m.FramesDropped, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *HubMetrics) Snapshot() map[string]any {
	return map[string]any{
		"clients_connected": atomic.LoadInt64(&m.ClientsConnected),
		"commands_sent":     atomic.LoadInt64(&m.CommandsSent),
		"messages_relayed":  atomic.LoadInt64(&m.MessagesRelayed),
		"frames_dropped":    atomic.LoadInt64(&m.FramesDropped),
	}
}
