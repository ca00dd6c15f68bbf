package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/iris/internal/endpoint"
	"github.com/tinytelemetry/iris/internal/model"
	"github.com/tinytelemetry/iris/internal/socketio"
)

const (
	defaultLogBuffer = model.DefaultLogBuffer
	defaultSkin      = model.DefaultSkin
)

// cliConfig holds only TUI-relevant configuration.
type cliConfig struct {
	Profile        string   `mapstructure:"profile"`
	Hostname       string   `mapstructure:"hostname"`
	APIURL         string   `mapstructure:"api-url"`
	SocketURL      string   `mapstructure:"socket-url"`
	APIProtocol    string   `mapstructure:"api-protocol"`
	APIHost        string   `mapstructure:"api-host"`
	APIPort        string   `mapstructure:"api-port"`
	SocketProtocol string   `mapstructure:"socket-protocol"`
	SocketHost     string   `mapstructure:"socket-host"`
	SocketPort     string   `mapstructure:"socket-port"`
	Transports     []string `mapstructure:"transports"`

	LogBuffer          int           `mapstructure:"log-buffer"`
	ReconnectAttempts  int           `mapstructure:"reconnect-attempts"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect-delay"`
	ConnectTimeout     time.Duration `mapstructure:"connect-timeout"`
	CommandTimeout     time.Duration `mapstructure:"command-timeout"`
	StatusInterval     time.Duration `mapstructure:"status-interval"`
	Skin               string        `mapstructure:"skin"`
	ReverseScrollWheel bool          `mapstructure:"reverse-scroll-wheel"`
	StreamURL          string        `mapstructure:"stream-url"`
	DebugMode          bool          `mapstructure:"debug-mode"`
}

func (c cliConfig) endpointSettings() endpoint.Settings {
	return endpoint.Settings{
		Profile:   c.Profile,
		Hostname:  c.Hostname,
		APIURL:    c.APIURL,
		SocketURL: c.SocketURL,
		API:       endpoint.Origin{Protocol: c.APIProtocol, Host: c.APIHost, Port: c.APIPort},
		Socket:    endpoint.Origin{Protocol: c.SocketProtocol, Host: c.SocketHost, Port: c.SocketPort},
	}
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("IRIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("profile", endpoint.ProfileAuto)
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
	v.SetDefault("reconnect-attempts", model.DefaultReconnectAttempts)
	v.SetDefault("reconnect-delay", model.DefaultReconnectDelay)
	v.SetDefault("connect-timeout", model.DefaultConnectTimeout)
	v.SetDefault("command-timeout", model.DefaultCommandTimeout)
	v.SetDefault("status-interval", model.DefaultStatusInterval)
	v.SetDefault("skin", defaultSkin)
	v.SetDefault("reverse-scroll-wheel", false)
	v.SetDefault("stream-url", "")
	v.SetDefault("debug-mode", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "iris", "config.yml"))
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
	if cfg.LogBuffer <= 0 {
		return cfg, fmt.Errorf("invalid log-buffer: %d", cfg.LogBuffer)
	}

	return cfg, nil
}
