package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"navbot/bridge"
)

// navbot bridge 入口：HTTP 指令接口 + WebSocket 广播总线
// 对应仿真器的两个监听端口，指令经总线转发给页面里的仿真器
func main() {
	os.Exit(run())
}

func run() int {
	var (
		httpAddr string
		wsAddr   string
		logPath  string
		logLevel string
	)
	flag.StringVar(&httpAddr, "http", ":5000", "command API listen address")
	flag.StringVar(&wsAddr, "ws", ":8080", "event bus listen address")
	flag.StringVar(&logPath, "log", "bridge.log", "log file path")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug/info/warn/error)")
	flag.Parse()

	if err := bridge.InitLogger(logPath, logLevel); err != nil {
		panic(err)
	}
	defer bridge.SyncLogger()

	hub := bridge.NewHub()
	api := bridge.NewAPI(hub)

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/", hub.HandleWS)

	httpSrv := &http.Server{Addr: httpAddr, Handler: api.Routes()}
	wsSrv := &http.Server{Addr: wsAddr, Handler: wsMux}

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bridge.Log.Infof("command API listening on %s", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		bridge.Log.Infof("event bus listening on %s", wsAddr)
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		bridge.Log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
		_ = wsSrv.Shutdown(sctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		bridge.Log.Errorf("bridge failed: %v", err)
		return 1
	}
	return 0
}
