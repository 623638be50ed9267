package main

import (
	"fmt"
	"os"

	"github.com/matst80/wslink/internal/config"
	"github.com/matst80/wslink/internal/handshake"
	"github.com/matst80/wslink/internal/manager"
	"github.com/matst80/wslink/internal/obs"
	"github.com/matst80/wslink/internal/registry"
	"github.com/matst80/wslink/internal/sink"
	"github.com/matst80/wslink/internal/transport"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "wslink",
	Short: "Keep one authenticated WebSocket session to a configured server",
	Long: `wslink resolves a configured server's HTTP(S) address to its /ws endpoint,
opens an authenticated WebSocket session and relays inbound text messages to
stdout, the log or Redis pub/sub. Only one session is live at a time; connecting
again replaces it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "wslink.yaml", "path to YAML configuration (optional)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logs")
	rootCmd.AddCommand(serveCmd, listenCmd, resolveCmd)
}

// loadConfig applies only the flags the user actually set on top of file and env.
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (config.Config, error) {
	overrides := map[string]any{}
	if cmd.Flags().Changed("debug") {
		overrides["debug"] = debug
	}
	for flagName, key := range flagKeys {
		f := cmd.Flags().Lookup(flagName)
		if f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}
	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		return cfg, err
	}
	obs.EnableDebug(cfg.Debug)
	return cfg, nil
}

type app struct {
	mgr      *manager.Manager
	registry registry.Registry
	closers  []func() error
}

func (a *app) Close() {
	_ = a.mgr.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			obs.Error("app.close", obs.Fields{"err": err.Error()})
		}
	}
}

// serverIDs lists servers when the registry can enumerate them.
func (a *app) serverIDs() []string {
	if m, ok := a.registry.(*registry.Memory); ok {
		return m.IDs()
	}
	return nil
}

func newApp(cfg config.Config, out sink.Publisher) (*app, error) {
	reg, closeReg, err := registry.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Servers)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	a := &app{registry: reg, closers: []func() error{closeReg}}

	g := transport.NewGorilla(cfg.Handshake.Timeout)
	g.ReadLimit = cfg.Handshake.ReadLimit
	g.CloseTimeout = cfg.Close.Timeout
	var tr transport.Transport = g
	if cfg.Breaker.Failures > 0 {
		tr = transport.NewBreaker(g, cfg.Breaker.Failures, cfg.Breaker.Cooldown)
	}

	pubs := sink.Fanout{out}
	if cfg.Redis.Publish {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, rdb.Close)
		host, _ := os.Hostname()
		pubs = append(pubs, sink.NewRedis(rdb, host))
	}

	a.mgr = manager.New(reg, tr, pubs,
		manager.WithHandshakeTimeout(cfg.Handshake.Timeout),
		manager.WithCloseTimeout(cfg.Close.Timeout),
		manager.WithBuilder(&handshake.Builder{TokenHeader: cfg.Handshake.TokenHeader, UserAgent: cfg.Handshake.UserAgent}),
	)
	return a, nil
}
