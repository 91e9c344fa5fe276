package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Commander 导航回路依赖的指令面
type Commander interface {
	SetGoal(ctx context.Context, goal Position) error
	Move(ctx context.Context, target Position) error
	MoveRelative(ctx context.Context, turn, distance float64) error
	Stop(ctx context.Context) error
	TriggerCapture(ctx context.Context, requestID string) error
}

// Capturer 一次采集：等待与 requestID 关联的帧
type Capturer interface {
	AwaitCapture(ctx context.Context, requestID string, timeout time.Duration) (Frame, error)
}

// State 回路状态机：Init → Running → GoalReached（终态）
// 没有失败终态，可恢复的故障都停留在 Running 内
type State int

const (
	StateInit State = iota
	StateRunning
	StateGoalReached
)

// Action 单周期的决策结果
type Action int

const (
	ActionStop    Action = iota // 已到达目标，停车
	ActionAvoid                 // 有障碍，转向绕行
	ActionAdvance               // 路径畅通，直行并校正航向
)

// Decide 无状态的反应式决策：仅由当前位置与障碍判定得出下一动作
// 回路除"运行中/已结束"外不保留任何历史
func Decide(pos, goal Position, threshold float64, obstacle bool) Action {
	if pos.Distance(goal) < threshold {
		return ActionStop
	}
	if obstacle {
		return ActionAvoid
	}
	return ActionAdvance
}

// Loop 导航回路：捕获 → 判定 → 决策 → 执行 → 等待，循环直至到达目标
type Loop struct {
	cfg     Config
	cmd     Commander
	capture Capturer
	cls     *Classifier
	metrics *LoopMetrics

	state State
}

// NewLoop 组装导航回路
func NewLoop(cfg Config, cmd Commander, capt Capturer, cls *Classifier, m *LoopMetrics) *Loop {
	return &Loop{cfg: cfg, cmd: cmd, capture: capt, cls: cls, metrics: m, state: StateInit}
}

// State 返回当前状态（只在 Run 所在协程内变化）
func (l *Loop) State() State { return l.state }

// Run 驱动回路直至到达目标或发生不可恢复错误
// 采集超时走固定间隔的无限重试；传输类失败直接上抛由进程退出
func (l *Loop) Run(ctx context.Context) error {
	// 进入 Running 前无条件下发一次目标点
	if err := l.cmd.SetGoal(ctx, l.cfg.Goal); err != nil {
		return fmt.Errorf("set goal: %w", err)
	}
	Log.Infof("goal set: x=%.1f z=%.1f", l.cfg.Goal.X, l.cfg.Goal.Z)
	l.state = StateRunning

	for l.state == StateRunning {
		start := time.Now()

		frame, err := l.captureOnce(ctx)
		if err != nil {
			if errors.Is(err, ErrCaptureTimeout) {
				if l.metrics != nil {
					l.metrics.IncCaptureTimeout()
				}
				Log.Warnf("capture timed out, retrying in %s", l.cfg.RetryDelay.Std())
				if err := sleepCtx(ctx, l.cfg.RetryDelay.Std()); err != nil {
					return err
				}
				continue
			}
			return err
		}

		// 先判到达再跑分类：最后一帧不必再花解码的功夫
		obstacle := false
		if frame.Position.Distance(l.cfg.Goal) >= l.cfg.GoalThreshold {
			obstacle = l.cls.ObstacleAhead(frame.Image)
		}

		switch Decide(frame.Position, l.cfg.Goal, l.cfg.GoalThreshold, obstacle) {
		case ActionStop:
			if err := l.cmd.Stop(ctx); err != nil {
				return fmt.Errorf("stop: %w", err)
			}
			l.state = StateGoalReached
			Log.Infof("goal reached at x=%.1f z=%.1f", frame.Position.X, frame.Position.Z)
			continue

		case ActionAvoid:
			if l.metrics != nil {
				l.metrics.IncObstacle()
			}
			Log.Infof("obstacle ahead, turning %.0f and advancing %.0f", l.cfg.TurnAngle, l.cfg.AvoidStep)
			if err := l.cmd.MoveRelative(ctx, l.cfg.TurnAngle, l.cfg.AvoidStep); err != nil {
				return fmt.Errorf("avoid move: %w", err)
			}
			// 转向+前进复合动作需要更长时间完成，之后的帧才有意义
			if err := sleepCtx(ctx, l.cfg.ObstacleSettle.Std()); err != nil {
				return err
			}

		case ActionAdvance:
			Log.Infof("path clear, advancing %.0f (pos x=%.1f z=%.1f)",
				l.cfg.ClearStep, frame.Position.X, frame.Position.Z)
			if err := l.cmd.MoveRelative(ctx, 0, l.cfg.ClearStep); err != nil {
				return fmt.Errorf("advance move: %w", err)
			}
			if err := sleepCtx(ctx, l.cfg.ClearSettle.Std()); err != nil {
				return err
			}
			// 直行后重新朝目标校正航向
			if err := l.cmd.Move(ctx, l.cfg.Goal); err != nil {
				return fmt.Errorf("reorient move: %w", err)
			}
		}

		if l.metrics != nil {
			l.metrics.AddCycle(time.Since(start).Nanoseconds())
		}
		// 周期末尾的统一等待，限制指令下发频率，与分支无关
		if err := sleepCtx(ctx, l.cfg.CycleDelay.Std()); err != nil {
			return err
		}
	}
	return nil
}

// captureOnce 触发一次采集并等待回包；同一时刻至多一个在途请求
func (l *Loop) captureOnce(ctx context.Context) (Frame, error) {
	id := uuid.NewString()
	if err := l.cmd.TriggerCapture(ctx, id); err != nil {
		return Frame{}, fmt.Errorf("trigger capture: %w", err)
	}
	return l.capture.AwaitCapture(ctx, id, l.cfg.CaptureTimeout.Std())
}

// sleepCtx 可取消的休眠：所有挂起点都要响应 ctx
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
