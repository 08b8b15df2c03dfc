// Command marcusd runs the Marcus coordination daemon: it wires TS, AP, LM,
// AR, and AE into a transport (stdio or HTTP) and serves tool calls from
// worker agents until told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcus-ai/marcus/pkg/app"
	"github.com/marcus-ai/marcus/pkg/config"
	"github.com/marcus-ai/marcus/pkg/logger"
	"github.com/marcus-ai/marcus/pkg/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; env vars always override)")
	apDir := flag.String("ap-dir", "data/assignments", "directory for assignment persistence records")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marcusd: config: %v\n", err)
		os.Exit(1)
	}

	container, err := app.New(cfg, *apDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marcusd: startup: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "marcusd: start: %v\n", err)
		os.Exit(1)
	}

	dispatcher := transport.NewDispatcher(container)

	var srv transport.Server
	switch cfg.Transport.Mode {
	case "http":
		srv = transport.NewHTTPServer(cfg.Transport, dispatcher, container.EventBus, container.Log)
	default:
		srv = transport.NewStdioServer(dispatcher, container.Log)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	select {
	case <-ctx.Done():
		container.Log.InfoCF("app", "shutdown signal received", nil)
	case err := <-serveErr:
		if err != nil {
			container.Log.ErrorCF("app", "transport stopped", logger.Fields{"error": err.Error()})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownGracePeriod)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	if err := container.APStore.Cleanup(); err != nil {
		container.Log.WarnCF("app", "assignment store cleanup failed", logger.Fields{"error": err.Error()})
	}

	container.Log.InfoCF("app", "marcusd stopped", nil)
}
