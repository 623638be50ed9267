package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matst80/wslink/internal/control"
	"github.com/matst80/wslink/internal/obs"
	"github.com/matst80/wslink/internal/ratelimit"
	"github.com/matst80/wslink/internal/sink"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API (connect, disconnect, status, metrics)",
	Long: `Run the control API. Example usage:
  wslink serve --addr 127.0.0.1:9300
  curl -XPOST localhost:9300/api/connect/coco
  curl -XPOST localhost:9300/api/disconnect`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "control API listen address (overrides control.addr)")
	serveCmd.Flags().String("connect", "", "server id to connect to on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"addr": "control.addr"})
	if err != nil {
		return err
	}
	a, err := newApp(cfg, sink.Log{})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Global, cfg.RateLimit.Burst)
	go sweepLoop(ctx, limiter, time.Minute)

	if id, _ := cmd.Flags().GetString("connect"); id != "" {
		if err := a.mgr.Connect(ctx, id); err != nil {
			obs.Error("serve.initial_connect", obs.Fields{"server": id, "err": err.Error()})
		}
	}

	obs.Info("serve.start", obs.Fields{"addr": cfg.Control.Addr, "servers": len(cfg.Servers)})
	srv := control.New(a.mgr, limiter, a.serverIDs)
	err = srv.ListenAndServe(ctx, cfg.Control.Addr)
	obs.Info("serve.shutdown", obs.Fields{})
	return err
}

func sweepLoop(ctx context.Context, l *ratelimit.KeyedLimiter, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				obs.Debug("ratelimit.sweep", obs.Fields{"removed": n})
			}
		}
	}
}
