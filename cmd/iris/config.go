package main

import (
	"time"

	"github.com/tinytelemetry/iris/internal/endpoint"
	"github.com/tinytelemetry/iris/internal/model"
)

const (
	defaultLogBuffer         = model.DefaultLogBuffer
	defaultBindHost          = "127.0.0.1"
	defaultHTTPPort          = 3005
	defaultReconnectAttempts = model.DefaultReconnectAttempts
	defaultReconnectDelay    = model.DefaultReconnectDelay
	defaultConnectTimeout    = model.DefaultConnectTimeout
	defaultCommandTimeout    = model.DefaultCommandTimeout
	defaultStatusInterval    = model.DefaultStatusInterval
	defaultMuxBufferSize     = DefaultMuxBuffer
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	// Backend endpoints
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

	// Session
	LogBuffer         int           `mapstructure:"log-buffer"`
	ReconnectAttempts int           `mapstructure:"reconnect-attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect-delay"`
	ConnectTimeout    time.Duration `mapstructure:"connect-timeout"`
	CommandTimeout    time.Duration `mapstructure:"command-timeout"`
	StatusInterval    time.Duration `mapstructure:"status-interval"`
	StreamURL         string        `mapstructure:"stream-url"`
	DebugMode         bool          `mapstructure:"debug-mode"`
	Backfill          bool          `mapstructure:"backfill"`

	// Local mirror
	HTTPEnabled bool   `mapstructure:"http-enabled"`
	Host        string `mapstructure:"host"`
	HTTPPort    int    `mapstructure:"http-port"`
	HTTPAddr    string `mapstructure:"http-addr"`

	// Offline inputs
	ReplayPath     string        `mapstructure:"replay"`
	ReplayInterval time.Duration `mapstructure:"replay-interval"`
	MuxBufferSize  int           `mapstructure:"mux-buffer-size"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

// endpointSettings maps the flat config keys onto endpoint resolution inputs.
func (c appConfig) endpointSettings() endpoint.Settings {
	return endpoint.Settings{
		Profile:   c.Profile,
		Hostname:  c.Hostname,
		APIURL:    c.APIURL,
		SocketURL: c.SocketURL,
		API:       endpoint.Origin{Protocol: c.APIProtocol, Host: c.APIHost, Port: c.APIPort},
		Socket:    endpoint.Origin{Protocol: c.SocketProtocol, Host: c.SocketHost, Port: c.SocketPort},
	}
}
