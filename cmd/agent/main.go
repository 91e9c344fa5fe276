package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"navbot/agent"
)

// navbot 控制器入口：连接仿真器，驱动 感知→决策→运动 闭环直至到达目标
// 退出码：0 到达目标，1 基础设施类故障
func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		serverURL  string
		streamURL  string
		logPath    string
	)
	flag.StringVar(&configPath, "config", "", "optional YAML config path")
	flag.StringVar(&serverURL, "server", "", "command endpoint override, e.g. http://localhost:5000")
	flag.StringVar(&streamURL, "ws", "", "event stream override, e.g. ws://localhost:8080")
	flag.StringVar(&logPath, "log", "agent.log", "log file path")
	flag.Parse()

	if err := agent.InitLogger(logPath); err != nil {
		panic(err)
	}
	defer agent.SyncLogger()

	cfg, err := agent.LoadConfig(configPath)
	if err != nil {
		agent.Log.Errorf("config: %v", err)
		return 1
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if streamURL != "" {
		cfg.StreamURL = streamURL
	}

	// Ctrl+C 时在下一个挂起点干净退出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 事件通道与整个运行期同生命周期，退出时确保关闭
	stream, err := agent.DialStream(ctx, cfg.StreamURL)
	if err != nil {
		agent.Log.Errorf("connect stream: %v", err)
		return 1
	}
	defer stream.Close()

	metrics := &agent.LoopMetrics{}
	loop := agent.NewLoop(
		cfg,
		agent.NewSimClient(cfg.ServerURL),
		stream,
		agent.NewClassifier(cfg, metrics),
		metrics,
	)

	agent.Log.Infof("autonomous controller started, goal x=%.1f z=%.1f", cfg.Goal.X, cfg.Goal.Z)
	if err := loop.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			agent.Log.Info("interrupted, shutting down")
			return 1
		}
		agent.Log.Errorf("navigation failed: %v", err)
		return 1
	}
	agent.Log.Infof("run finished: %v", metrics.Snapshot())
	return 0
}
