package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrey-viktorov/sse-test-server/pkg/config"
	"github.com/andrey-viktorov/sse-test-server/pkg/handlers"
	"github.com/andrey-viktorov/sse-test-server/pkg/requestlog"
	"github.com/valyala/fasthttp"
)

func main() {
	// Define CLI flags
	configPath := flag.String("config", "", "Optional YAML config file")
	host := flag.String("host", "", "Host to bind the server to (empty for all interfaces)")
	port := flag.Int("port", 0, "Port to bind the server to (default 5555)")
	closeAfter := flag.Int("close-after", 0, "Default SSE close delay in milliseconds (default 5000)")
	tick := flag.Duration("tick", 0, "Interval between SSE update events (default 1s)")
	logDir := flag.String("log-dir", "", "Directory to record unmatched requests to (disabled when empty)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (default info)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadWithDefaults(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	applyFlags(cfg, *host, *port, *closeAfter, *tick, *logDir, *logLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := []handlers.Option{handlers.WithLogger(logger)}
	if cfg.NotFound.LogDir != "" {
		recorder, err := requestlog.NewNotFoundLogger(cfg.NotFound.LogDir)
		if err != nil {
			log.Fatalf("Failed to create not-found recorder: %v", err)
		}
		if err := recorder.SetBodyFilter(cfg.NotFound.BodyFilter); err != nil {
			log.Fatalf("Failed to load not-found filter: %v", err)
		}
		opts = append(opts, handlers.WithNotFoundLogger(recorder))
	}

	handler := handlers.New(cfg, opts...)

	addr := cfg.Addr()
	base := fmt.Sprintf("http://localhost:%d", cfg.Port)
	fmt.Printf("🚀 Test server running on %s\n", addr)
	fmt.Printf("📄 Regular HTTP endpoint: %s/api/data\n", base)
	fmt.Printf("📡 SSE endpoint: %s/api/events\n", base)
	fmt.Printf("⏱️  SSE with custom timeout: %s/api/events?closeAfter=10000\n", base)
	fmt.Printf("💓 Health check: %s/health\n", base)
	fmt.Printf("🔁 Update interval: %v, default close after: %dms\n", cfg.Events.TickInterval, cfg.Events.DefaultCloseAfterMs)
	if cfg.NotFound.LogDir != "" {
		fmt.Printf("📝 Recording unmatched requests to: %s\n", cfg.NotFound.LogDir)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Create server
	server := &fasthttp.Server{
		Handler:     handler.Router(),
		Name:        cfg.ServerName,
		IdleTimeout: cfg.IdleTimeout,
	}

	// Stop open streams on shutdown; they are not drained.
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		sig := <-sigint

		logger.Info("shutting down", "signal", sig.String(), "active_sessions", handler.Sessions().Active())
		handler.Close()
		if err := server.Shutdown(); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		os.Exit(0)
	}()

	// Start server
	if err := server.ListenAndServe(addr); err != nil {
		log.Fatalf("Error in ListenAndServe: %v", err)
	}
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cfg *config.Config, host string, port, closeAfter int, tick time.Duration, logDir, logLevel string) {
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if closeAfter != 0 {
		cfg.Events.DefaultCloseAfterMs = closeAfter
	}
	if tick != 0 {
		cfg.Events.TickInterval = tick
	}
	if logDir != "" {
		cfg.NotFound.LogDir = logDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}
