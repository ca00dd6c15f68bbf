package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/iris/internal/socketio"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool
	var streamURL string
	var replayPath string
	var debugMode bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/iris/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.StringVar(&streamURL, "url", "", "start processing this stream URL once connected")
	flag.StringVar(&replayPath, "replay", "", "replay a JSONL log file into the session (- for stdin)")
	flag.BoolVar(&debugMode, "debug", false, "request debug mode when starting a stream")
	flag.Parse()

	if showVersion {
		fmt.Printf("Iris - Detection Log Watcher\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if streamURL != "" {
		cfg.StreamURL = streamURL
	}
	if replayPath != "" {
		cfg.ReplayPath = replayPath
	}
	if debugMode {
		cfg.DebugMode = true
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("IRIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("profile", "auto")
	v.SetDefault("hostname", "")
	v.SetDefault("api-url", "")
	v.SetDefault("socket-url", "")
	v.SetDefault("api-protocol", "http:")
	v.SetDefault("api-host", "localhost")
	v.SetDefault("api-port", "5003")
	v.SetDefault("socket-protocol", "http:")
	v.SetDefault("socket-host", "localhost")
	v.SetDefault("socket-port", "5003")
	v.SetDefault("transports", socketio.DefaultTransports)
	v.SetDefault("log-buffer", defaultLogBuffer)
	v.SetDefault("reconnect-attempts", defaultReconnectAttempts)
	v.SetDefault("reconnect-delay", defaultReconnectDelay)
	v.SetDefault("connect-timeout", defaultConnectTimeout)
	v.SetDefault("command-timeout", defaultCommandTimeout)
	v.SetDefault("status-interval", defaultStatusInterval)
	v.SetDefault("stream-url", "")
	v.SetDefault("debug-mode", false)
	v.SetDefault("backfill", false)
	v.SetDefault("http-enabled", true)
	v.SetDefault("host", defaultBindHost)
	v.SetDefault("http-port", defaultHTTPPort)
	v.SetDefault("http-addr", "")
	v.SetDefault("replay", "")
	v.SetDefault("replay-interval", 0)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "iris", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return cfg, fmt.Errorf("invalid http-port: %d", cfg.HTTPPort)
	}
	if cfg.LogBuffer <= 0 {
		return cfg, fmt.Errorf("invalid log-buffer: %d", cfg.LogBuffer)
	}
	if cfg.ReconnectAttempts < 0 {
		return cfg, fmt.Errorf("invalid reconnect-attempts: %d", cfg.ReconnectAttempts)
	}

	// Expand ~ in replay path
	if strings.HasPrefix(cfg.ReplayPath, "~/") {
		cfg.ReplayPath = filepath.Join(home, cfg.ReplayPath[2:])
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.HTTPPort))
	}

	return cfg, nil
}
