package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// ErrCaptureTimeout 采集响应在时限内未到达
var ErrCaptureTimeout = errors.New("timed out waiting for capture response")

// capture 读协程投递给等待方的一次采集结果
type capture struct {
	frame     Frame
	requestID string
}

// Stream 与仿真器事件通道的长连接，整个运行期间复用同一条
// 读协程持续收包，仅把采集响应投递给等待方；连接级错误按致命上抛。
type Stream struct {
	conn   *websocket.Conn
	frames chan capture
	errc   chan error
}

// DialStream 建立事件通道连接并启动读协程
func DialStream(ctx context.Context, url string) (*Stream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial stream %s: %w", url, err)
	}
	s := &Stream{
		conn:   conn,
		frames: make(chan capture, 1),
		errc:   make(chan error, 1),
	}
	go s.readPump()
	Log.Infof("stream connected: %s", url)
	return s, nil
}

// Close 关闭底层连接（读协程随之退出）
func (s *Stream) Close() error {
	return s.conn.Close()
}

// readPump 持续读取事件通道
// 非 JSON 帧与无关类型直接跳过；读错误写入 errc 后退出（连接不可再用）
func (s *Stream) readPump() {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.errc <- err
			return
		}
		var m streamMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			continue
		}
		if m.Type != msgTypeCaptureResponse {
			continue
		}
		c := capture{
			frame:     Frame{Image: m.Image, Position: m.Position},
			requestID: m.RequestID,
		}
		select {
		case s.frames <- c:
		default:
			// 缓冲被旧帧占着就腾掉：等待方只关心最新的回包
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- c:
			default:
			}
		}
	}
}

// AwaitCapture 等待与 requestID 匹配的采集响应，超时返回 ErrCaptureTimeout
// 不回带 request_id 的响应视为旧版仿真器回包，同样接受；
// 带了别的 request_id 的属于过期回包，丢弃后继续等。
func (s *Stream) AwaitCapture(ctx context.Context, requestID string, timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case c := <-s.frames:
			if c.requestID != "" && c.requestID != requestID {
				Log.Debugf("dropping stale capture response: request_id=%s", c.requestID)
				continue
			}
			return c.frame, nil
		case err := <-s.errc:
			return Frame{}, fmt.Errorf("stream read: %w", err)
		case <-timer.C:
			return Frame{}, ErrCaptureTimeout
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		}
	}
}
