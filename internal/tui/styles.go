package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/iris/internal/model"
)

// Palette colors. InitializeSkin may replace them.
var (
	ColorNavy   = lipgloss.Color("#0F172A")
	ColorWhite  = lipgloss.Color("#F1F5F9")
	ColorGray   = lipgloss.Color("#64748B")
	ColorBlue   = lipgloss.Color("#38BDF8")
	ColorCyan   = lipgloss.Color("#67E8F9")
	ColorGreen  = lipgloss.Color("#44FF44")
	ColorAmber  = lipgloss.Color("#FFAA00")
	ColorRed    = lipgloss.Color("#FF4444")
	ColorOrange = lipgloss.Color("#FB923C")
	ColorYellow = lipgloss.Color("#FDE047")
)

// Skin overrides palette colors. Empty fields keep the default.
type Skin struct {
	Name   string `yaml:"name"`
	Colors struct {
		Background string `yaml:"background"`
		Foreground string `yaml:"foreground"`
		Muted      string `yaml:"muted"`
		Accent     string `yaml:"accent"`
		Detection  string `yaml:"detection"`
		Success    string `yaml:"success"`
		Warning    string `yaml:"warning"`
		Error      string `yaml:"error"`
		Highlight  string `yaml:"highlight"`
	} `yaml:"colors"`
}

// LoadSkin reads <configDir>/skins/<name>.yml.
func LoadSkin(name, configDir string) (*Skin, error) {
	path := filepath.Join(configDir, "skins", name+".yml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skin %s: %w", path, err)
	}
	var s Skin
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse skin %s: %w", path, err)
	}
	return &s, nil
}

// InitializeSkin applies the named skin to the palette. The built-in
// "default" skin needs no file.
func InitializeSkin(name, configDir string) error {
	if name == "" || name == model.DefaultSkin {
		return nil
	}
	s, err := LoadSkin(name, configDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("skin %q not found in %s", name, filepath.Join(configDir, "skins"))
		}
		return err
	}
	s.Apply()
	return nil
}

// Apply overwrites palette colors with the skin's non-empty values.
func (s *Skin) Apply() {
	set := func(dst *lipgloss.Color, v string) {
		if v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	set(&ColorNavy, s.Colors.Background)
	set(&ColorWhite, s.Colors.Foreground)
	set(&ColorGray, s.Colors.Muted)
	set(&ColorBlue, s.Colors.Accent)
	set(&ColorCyan, s.Colors.Detection)
	set(&ColorGreen, s.Colors.Success)
	set(&ColorAmber, s.Colors.Warning)
	set(&ColorRed, s.Colors.Error)
	set(&ColorYellow, s.Colors.Highlight)
}

// connColor returns the connectivity dot color.
func connColor(s model.ConnState) lipgloss.Color {
	switch s {
	case model.ConnConnected:
		return ColorGreen
	case model.ConnConnecting:
		return ColorAmber
	default:
		return ColorRed
	}
}

// statusColor maps a banner status type to its color.
func statusColor(t model.StatusType) lipgloss.Color {
	switch t {
	case model.StatusSuccess:
		return ColorGreen
	case model.StatusWarning:
		return ColorAmber
	case model.StatusError:
		return ColorRed
	default:
		return ColorWhite
	}
}

// entryColor returns the foreground for a log entry type.
func entryColor(t model.EntryType) lipgloss.Color {
	switch t {
	case model.TypeWarning:
		return ColorAmber
	case model.TypeError:
		return ColorRed
	case model.TypeDetection:
		return ColorCyan
	default:
		return ColorWhite
	}
}

func panelStyle(active bool) lipgloss.Style {
	border := ColorGray
	if active {
		border = ColorBlue
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}
