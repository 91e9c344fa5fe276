package agent

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration time.Duration 的 YAML 包装：配置里可以写 "2s"、"500ms" 这类字面量
type Duration time.Duration

// Std 转回标准库类型
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	// 纯数字按纳秒处理
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Config 运行期全部可调参数，进程启动时固定，运行中不再变更
type Config struct {
	// 仿真器两个接口的地址
	ServerURL string `yaml:"server_url"` // HTTP 指令接口
	StreamURL string `yaml:"stream_url"` // WebSocket 事件通道

	// 目标点与到达判定
	Goal          Position `yaml:"goal"`
	GoalThreshold float64  `yaml:"goal_threshold"` // 距目标小于该值视为到达

	// 障碍物判定（HSV 绿色分割）
	GreenPercent float64 `yaml:"green_percent"` // 绿色像素占比阈值（百分比）
	HueMin       float64 `yaml:"hue_min"`       // 色相下界（0-179 半度刻度）
	HueMax       float64 `yaml:"hue_max"`
	SatMin       float64 `yaml:"sat_min"` // 饱和度下界（0-255）
	ValMin       float64 `yaml:"val_min"` // 明度下界（0-255）

	// 时序参数
	CaptureTimeout Duration `yaml:"capture_timeout"` // 等待采集响应的上限
	RetryDelay     Duration `yaml:"retry_delay"`     // 采集超时后的重试间隔
	ObstacleSettle Duration `yaml:"obstacle_settle"` // 避障动作后的等待
	ClearSettle    Duration `yaml:"clear_settle"`    // 直行后的等待
	CycleDelay     Duration `yaml:"cycle_delay"`     // 每周期末尾的统一限速等待

	// 运动步长
	TurnAngle float64 `yaml:"turn_angle"` // 避障转角（度）
	AvoidStep float64 `yaml:"avoid_step"` // 避障前进距离
	ClearStep float64 `yaml:"clear_step"` // 路径畅通时的前进距离
}

// DefaultConfig 返回与仿真场景匹配的默认参数
func DefaultConfig() Config {
	return Config{
		ServerURL:      "http://localhost:5000",
		StreamURL:      "ws://localhost:8080",
		Goal:           Position{X: -35, Z: -35},
		GoalThreshold:  5,
		GreenPercent:   0.1,
		HueMin:         35,
		HueMax:         85,
		SatMin:         50,
		ValMin:         50,
		CaptureTimeout: Duration(5 * time.Second),
		RetryDelay:     Duration(time.Second),
		ObstacleSettle: Duration(2 * time.Second),
		ClearSettle:    Duration(time.Second),
		CycleDelay:     Duration(time.Second),
		TurnAngle:      20,
		AvoidStep:      5,
		ClearStep:      10,
	}
}

// LoadConfig 读取配置：默认值 ← YAML 文件（可选）← 环境变量
// path 为空或文件不存在时仅用默认值与环境变量
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// .env 存在则加载，缺失不报错
	_ = godotenv.Load()

	if v := os.Getenv("NAVBOT_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("NAVBOT_STREAM_URL"); v != "" {
		cfg.StreamURL = v
	}
	if v := os.Getenv("NAVBOT_GOAL_X"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid NAVBOT_GOAL_X: %w", err)
		}
		cfg.Goal.X = f
	}
	if v := os.Getenv("NAVBOT_GOAL_Z"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid NAVBOT_GOAL_Z: %w", err)
		}
		cfg.Goal.Z = f
	}

	if cfg.GoalThreshold <= 0 {
		return cfg, fmt.Errorf("goal_threshold must be positive, got %v", cfg.GoalThreshold)
	}
	if cfg.HueMin > cfg.HueMax {
		return cfg, fmt.Errorf("hue band inverted: [%v, %v]", cfg.HueMin, cfg.HueMax)
	}
	return cfg, nil
}
