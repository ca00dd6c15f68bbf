// Package endpoint resolves the backend API and socket origins from the
// deployment profile and explicit overrides.
package endpoint

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
)

// Profiles.
const (
	ProfileAuto        = "auto"
	ProfileProduction  = "production"
	ProfileDevelopment = "development"
)

// ProductionOrigin serves both the API and the socket in production.
const ProductionOrigin = "https://model.viewer.in"

// ProductionHosts are the hostnames that select the production profile.
var ProductionHosts = []string{"yolo.viewer.in", "model.viewer.in"}

// lookupHostname is replaced in tests.
var lookupHostname = os.Hostname

// Origin is a development origin split into parts. Empty fields take the
// development defaults (http:, localhost, 5003).
type Origin struct {
	Protocol string
	Host     string
	Port     string
}

// URL renders the origin as "{protocol}//{host}[:{port}]".
func (o Origin) URL() string {
	proto := o.Protocol
	if proto == "" {
		proto = "http:"
	}
	if !strings.HasSuffix(proto, ":") {
		proto += ":"
	}
	host := o.Host
	if host == "" {
		host = "localhost"
	}
	port := o.Port
	if port == "" {
		port = "5003"
	}
	return proto + "//" + host + ":" + port
}

// Settings are the raw configuration inputs.
type Settings struct {
	Profile  string
	Hostname string // defaults to the OS hostname

	// Explicit overrides win over everything else.
	APIURL    string
	SocketURL string

	API    Origin
	Socket Origin
}

// Endpoints are the resolved origins.
type Endpoints struct {
	API        string
	Socket     string
	Production bool
}

// IsProductionHost reports whether host is a production hostname.
func IsProductionHost(host string) bool {
	return slices.Contains(ProductionHosts, strings.ToLower(strings.TrimSpace(host)))
}

// Resolve applies the profile, then the overrides, and validates the result.
func Resolve(s Settings) (Endpoints, error) {
	prod, err := production(s)
	if err != nil {
		return Endpoints{}, err
	}

	ep := Endpoints{Production: prod}
	if prod {
		ep.API, ep.Socket = ProductionOrigin, ProductionOrigin
	} else {
		ep.API, ep.Socket = s.API.URL(), s.Socket.URL()
	}
	if v := strings.TrimSpace(s.APIURL); v != "" {
		ep.API = v
	}
	if v := strings.TrimSpace(s.SocketURL); v != "" {
		ep.Socket = v
	}
	ep.API = strings.TrimRight(ep.API, "/")
	ep.Socket = strings.TrimRight(ep.Socket, "/")

	if err := validate("api", ep.API, "http", "https"); err != nil {
		return Endpoints{}, err
	}
	if err := validate("socket", ep.Socket, "http", "https", "ws", "wss"); err != nil {
		return Endpoints{}, err
	}
	return ep, nil
}

func production(s Settings) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s.Profile)) {
	case ProfileProduction:
		return true, nil
	case ProfileDevelopment:
		return false, nil
	case "", ProfileAuto:
		host := s.Hostname
		if host == "" {
			h, err := lookupHostname()
			if err != nil {
				return false, nil
			}
			host = h
		}
		return IsProductionHost(host), nil
	default:
		return false, fmt.Errorf("endpoint: unknown profile %q", s.Profile)
	}
}

func validate(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("endpoint: invalid %s url %q: %w", name, raw, err)
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("endpoint: invalid %s url %q", name, raw)
	}
	return nil
}
