package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/iris/internal/connection"
	"github.com/tinytelemetry/iris/internal/endpoint"
	"github.com/tinytelemetry/iris/internal/metrics"
	"github.com/tinytelemetry/iris/internal/session"
	"github.com/tinytelemetry/iris/internal/streamapi"
	"github.com/tinytelemetry/iris/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var apiURL string
	var socketURL string
	var streamURL string
	var debugMode bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/iris/config.yml)")
	flag.StringVar(&apiURL, "api-url", "", "override the backend command API origin")
	flag.StringVar(&socketURL, "socket-url", "", "override the backend Socket.IO origin")
	flag.StringVar(&streamURL, "url", "", "prefill the stream URL input")
	flag.BoolVar(&debugMode, "debug", false, "start streams in debug mode")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Iris CLI - Detection Log Dashboard\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if socketURL != "" {
		cfg.SocketURL = socketURL
	}
	if streamURL != "" {
		cfg.StreamURL = streamURL
	}
	if debugMode {
		cfg.DebugMode = true
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	configDir := filepath.Join(os.Getenv("HOME"), ".config", "iris")
	if err := tui.InitializeSkin(cfg.Skin, configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load skin '%s': %v (using default)\n", cfg.Skin, err)
	}

	eps, err := endpoint.Resolve(cfg.endpointSettings())
	if err != nil {
		return fmt.Errorf("cannot resolve backend endpoints: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mt := metrics.New()
	api := streamapi.New(eps.API, streamapi.WithMetrics(mt))
	sess := session.New(api, session.WithCapacity(cfg.LogBuffer), session.WithMetrics(mt))
	if cfg.StreamURL != "" {
		sess.SetURL(cfg.StreamURL)
	}
	sess.SetDebugMode(cfg.DebugMode)

	conn := connection.New(connection.Config{
		URL:        eps.Socket,
		Attempts:   cfg.ReconnectAttempts,
		Delay:      cfg.ReconnectDelay,
		Timeout:    cfg.ConnectTimeout,
		Transports: cfg.Transports,
	}, sess, connection.WithStateHook(sess.SetConnState), connection.WithMetrics(mt))
	defer conn.Close()

	if err := conn.Connect(ctx); err != nil {
		log.Printf("tui: %v", err)
	}

	dashboard := tui.NewDashboardModel(ctx, sess, conn, tui.Options{
		CommandTimeout:     cfg.CommandTimeout,
		StatusInterval:     cfg.StatusInterval,
		ReverseScrollWheel: cfg.ReverseScrollWheel,
	})
	defer dashboard.Close()
	streams := tui.NewStreamsPage(ctx, api, cfg.CommandTimeout)
	app := tui.NewApp(dashboard, streams)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// configureRuntimeLogger sends the standard logger to a state file so log
// lines never corrupt the alternate screen.
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

	f, err := os.OpenFile(filepath.Join(logDir, "iris-tui.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}
