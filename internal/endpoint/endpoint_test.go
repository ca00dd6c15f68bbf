package endpoint

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		settings   Settings
		wantAPI    string
		wantSocket string
		wantProd   bool
	}{
		{
			name:       "development defaults",
			settings:   Settings{Profile: ProfileDevelopment},
			wantAPI:    "http://localhost:5003",
			wantSocket: "http://localhost:5003",
		},
		{
			name: "development parts",
			settings: Settings{
				Profile: ProfileDevelopment,
				API:     Origin{Protocol: "https", Host: "api.local", Port: "8443"},
				Socket:  Origin{Host: "sock.local", Port: "9000"},
			},
			wantAPI:    "https://api.local:8443",
			wantSocket: "http://sock.local:9000",
		},
		{
			name:       "forced production",
			settings:   Settings{Profile: ProfileProduction},
			wantAPI:    ProductionOrigin,
			wantSocket: ProductionOrigin,
			wantProd:   true,
		},
		{
			name:       "auto production host",
			settings:   Settings{Profile: ProfileAuto, Hostname: "yolo.viewer.in"},
			wantAPI:    ProductionOrigin,
			wantSocket: ProductionOrigin,
			wantProd:   true,
		},
		{
			name:       "auto other host",
			settings:   Settings{Hostname: "laptop"},
			wantAPI:    "http://localhost:5003",
			wantSocket: "http://localhost:5003",
		},
		{
			name:       "overrides win",
			settings:   Settings{Profile: ProfileProduction, APIURL: "http://10.0.0.2:5003/", SocketURL: "ws://10.0.0.3:5003"},
			wantAPI:    "http://10.0.0.2:5003",
			wantSocket: "ws://10.0.0.3:5003",
			wantProd:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.settings)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got.API != tt.wantAPI || got.Socket != tt.wantSocket || got.Production != tt.wantProd {
				t.Errorf("Resolve = %+v, want api=%s socket=%s prod=%v", got, tt.wantAPI, tt.wantSocket, tt.wantProd)
			}
		})
	}
}

func TestResolve_OSHostname(t *testing.T) {
	orig := lookupHostname
	defer func() { lookupHostname = orig }()

	lookupHostname = func() (string, error) { return "model.viewer.in", nil }
	if got, _ := Resolve(Settings{}); !got.Production {
		t.Error("production hostname should select production")
	}

	lookupHostname = func() (string, error) { return "", errors.New("no hostname") }
	if got, err := Resolve(Settings{}); err != nil || got.Production {
		t.Errorf("hostname failure should fall back to development, got %+v, %v", got, err)
	}
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()

	bad := []Settings{
		{Profile: "staging"},
		{Profile: ProfileDevelopment, APIURL: "ws://h:1"},
		{Profile: ProfileDevelopment, SocketURL: "ftp://h"},
		{Profile: ProfileDevelopment, APIURL: "localhost"},
	}
	for _, s := range bad {
		if _, err := Resolve(s); err == nil {
			t.Errorf("Resolve(%+v) should fail", s)
		}
	}
}

func TestIsProductionHost(t *testing.T) {
	t.Parallel()

	if !IsProductionHost(" Model.Viewer.In ") {
		t.Error("hostnames compare case-insensitively")
	}
	if IsProductionHost("viewer.in") {
		t.Error("viewer.in is not a production host")
	}
}
