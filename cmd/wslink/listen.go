package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matst80/wslink/internal/obs"
	"github.com/matst80/wslink/internal/sink"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen <server-id>",
	Short: "Connect to a server and print inbound text messages to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runListen,
}

func runListen(cmd *cobra.Command, args []string) error {
	obs.UseConsole(os.Stderr)
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, sink.NewWriter(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.mgr.Connect(ctx, args[0]); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return a.mgr.Disconnect(context.Background())
	case <-a.mgr.Done():
		_ = a.mgr.Disconnect(context.Background())
		return fmt.Errorf("connection to %s ended", args[0])
	}
}
