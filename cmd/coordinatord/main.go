// Command coordinatord runs the work coordinator as a long-lived HTTP
// service, adapted from _examples/wilke-GoWe/cmd/server/main.go's flag
// parsing, logger construction, and signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/coordinate/internal/config"
	"github.com/me/coordinate/internal/coordinator"
	"github.com/me/coordinate/internal/history"
	"github.com/me/coordinate/internal/logging"
	"github.com/me/coordinate/internal/rate"
	"github.com/me/coordinate/internal/scheduler"
	"github.com/me/coordinate/internal/server"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "audit history database path (\":memory:\" for none)")
	configFile := flag.String("config", "", "path to a bootstrap YAML document declaring services and tasks")
	debug := flag.Bool("debug", false, "shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}
	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	var doc *config.Document
	if *configFile != "" {
		d, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		doc = d
	}

	schedCfg := scheduler.DefaultConfig()
	if doc != nil {
		c, err := doc.SchedulerConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "scheduler config: %v\n", err)
			os.Exit(1)
		}
		schedCfg = c
	}

	coord := coordinator.New(
		coordinator.WithLogger(logger),
		coordinator.WithConfig(schedCfg),
	)

	if doc != nil {
		specs, err := doc.ServiceSpecs(rate.Parse)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		for _, spec := range specs {
			if err := coord.RegisterService(spec); err != nil {
				fmt.Fprintf(os.Stderr, "register service %q: %v\n", spec.Name, err)
				os.Exit(1)
			}
		}
		logger.Info("services registered from config", "count", len(specs))
	}

	var sink *history.SQLiteSink
	if cfg.DBPath != "" && cfg.DBPath != ":memory:" {
		s, err := history.Open(cfg.DBPath, logging.WithComponent(logger, "history"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "open history database: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		sink = s
		history.Attach(coord.Registry(), sink)
		logger.Info("history database ready", "path", cfg.DBPath)
	}

	srv := server.New(coord, server.WithLogger(logging.WithComponent(logger, "server")))

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The coordinator's own run context is deliberately not tied to the
	// signal context: shutdown is driven exclusively by the explicit
	// coord.Stop(stopCtx) call below, the same way httpServer's run
	// (ListenAndServe) is separate from its bounded Shutdown call. If
	// the run context were cancelled directly by the signal, the
	// scheduler would start draining before stopCtx's 30-second budget
	// even exists.
	coord.Start(context.Background())

	go func() {
		logger.Info("coordinatord starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := coord.Stop(stopCtx); err != nil {
		logger.Error("coordinator stop error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "http shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("coordinatord stopped")
}
