package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/iris/internal/connection"
	"github.com/tinytelemetry/iris/internal/endpoint"
	"github.com/tinytelemetry/iris/internal/httpserver"
	"github.com/tinytelemetry/iris/internal/logsource"
	"github.com/tinytelemetry/iris/internal/metrics"
	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/session"
	"github.com/tinytelemetry/iris/internal/streamapi"
)

// runServer watches the backend headlessly and mirrors the session over HTTP.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	eps, err := endpoint.Resolve(cfg.endpointSettings())
	if err != nil {
		return fmt.Errorf("failed to resolve backend endpoints: %w", err)
	}

	mt := metrics.New()
	api := streamapi.New(eps.API, streamapi.WithMetrics(mt))
	sess := session.New(api, session.WithCapacity(cfg.LogBuffer), session.WithMetrics(mt))
	conn := connection.New(connection.Config{
		URL:        eps.Socket,
		Attempts:   cfg.ReconnectAttempts,
		Delay:      cfg.ReconnectDelay,
		Timeout:    cfg.ConnectTimeout,
		Transports: cfg.Transports,
	}, sess, connection.WithStateHook(sess.SetConnState), connection.WithMetrics(mt))
	defer conn.Close()

	// Start HTTP mirror if enabled
	if cfg.HTTPEnabled {
		mirror := httpserver.NewServer(cfg.HTTPAddr, sess, conn, mt.Handler())
		if err := mirror.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP mirror: %w", err)
		}
		defer mirror.Stop()
		cfg.HTTPAddr = mirror.Addr()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	if err := conn.Connect(ctx); err != nil {
		log.Printf("server: %v", err)
	}

	// Build offline inputs and source multiplexer
	plugins := buildInputPlugins(InputPluginConfig{
		ReplayPath:   cfg.ReplayPath,
		ReplayConfig: logsource.ReplayConfig{Interval: cfg.ReplayInterval},
	})

	sources := make([]NamedEntrySource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, eps, mux.SourceNames())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	if mux.HasSources() {
		g.Go(func() error {
			n := logsource.Pump(gctx, mux, sess)
			log.Printf("server: replayed %d entries", n)
			return nil
		})
	}

	if cfg.StreamURL != "" {
		g.Go(func() error {
			startWhenConnected(gctx, cfg, sess, conn)
			return nil
		})
	}

	g.Go(func() error {
		pollStreamStatus(gctx, sess, cfg.StatusInterval, cfg.CommandTimeout)
		return nil
	})

	g.Go(func() error {
		watchStatus(gctx, sess)
		return nil
	})

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()

	// Stop the bound stream on the way out so the backend does not keep
	// processing for a watcher that is gone.
	if cfg.StreamURL != "" {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.CommandTimeout)
		if err := sess.StopStream(stopCtx); err != nil {
			log.Printf("server: %v", err)
		}
		stopCancel()
	}

	signal.Stop(sigCh)
	return nil
}

// startWhenConnected starts cfg.StreamURL once the event connection is up,
// optionally backfilling the stream's recent entries.
func startWhenConnected(ctx context.Context, cfg appConfig, sess *session.Session, conn *connection.Manager) {
	changes, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	for conn.State() != model.ConnConnected {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, cfg.CommandTimeout)
	defer cancel()
	id, err := sess.StartStream(cmdCtx, cfg.StreamURL, cfg.DebugMode)
	if err != nil {
		log.Printf("server: %v", err)
		return
	}
	fmt.Printf("    Processing stream %s\n", id)

	if cfg.Backfill {
		n, err := sess.Backfill(cmdCtx)
		if err != nil {
			log.Printf("server: %v", err)
			return
		}
		log.Printf("server: backfilled %d entries for %s", n, id)
	}
}

// pollStreamStatus refreshes the bound stream's backend status periodically.
func pollStreamStatus(ctx context.Context, sess *session.Session, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := sess.Snapshot()
			if snap.StreamID == "" || !snap.IsProcessing() {
				continue
			}
			rctx, cancel := context.WithTimeout(ctx, timeout)
			if _, err := sess.Refresh(rctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("server: %v", err)
			}
			cancel()
		}
	}
}

// watchStatus echoes status banner changes to the terminal.
func watchStatus(ctx context.Context, sess *session.Session) {
	changes, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			snap := sess.Snapshot()
			line := fmt.Sprintf("[%s] %s", snap.StatusType, snap.StatusMessage)
			if snap.StatusMessage == "" || line == last {
				continue
			}
			last = line
			fmt.Printf("    %s  %s\n", statusDot(snap.StatusType), snap.StatusMessage)
		}
	}
}

func statusDot(t model.StatusType) string {
	color := "7"
	switch t {
	case model.StatusSuccess:
		color = "42"
	case model.StatusWarning:
		color = "214"
	case model.StatusError:
		color = "196"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "iris")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "iris.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, eps endpoint.Endpoints, sources []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦╦═╗╦╔═╗
    ║╠╦╝║╚═╗
    ╩╩╚═╩╚═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Backend
	lines = append(lines, bold.Render("    Backend"))
	lines = append(lines, "")

	profile := "development"
	if eps.Production {
		profile = "production"
	}
	lines = append(lines, fmt.Sprintf("    %s  Profile        %s", check, dim.Render(profile)))
	lines = append(lines, fmt.Sprintf("    %s  Command API    %s", check, cyan.Render(eps.API)))
	lines = append(lines, fmt.Sprintf("    %s  Socket.IO      %s", check, cyan.Render(eps.Socket)))
	if cfg.StreamURL != "" {
		lines = append(lines, fmt.Sprintf("    %s  Stream         %s", check, dim.Render(cfg.StreamURL)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Stream         %s", dot, dim.Render("watching (no start)")))
	}
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.HTTPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP Mirror    %s", check, cyan.Render(cfg.HTTPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP Mirror    %s", dot, dim.Render("disabled")))
	}
	if len(sources) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Replay         %s", check, dim.Render(strings.Join(sources, ", "))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Replay         %s", dot, dim.Render("none")))
	}
	lines = append(lines, "")

	// Runtime
	lines = append(lines, bold.Render("    Runtime"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Log Buffer     %s", check, dim.Render(fmt.Sprintf("%d entries", cfg.LogBuffer))))
	lines = append(lines, fmt.Sprintf("    %s  Reconnect      %s", check, dim.Render(fmt.Sprintf("%d attempts, %s apart", cfg.ReconnectAttempts, cfg.ReconnectDelay))))

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
