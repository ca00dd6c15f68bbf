package logparse

import (
	"regexp"
	"strings"

	"github.com/tinytelemetry/iris/internal/model"
)

// SeverityRegex matches common severity words in free text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)\b`)

// NormalizeType converts the various spellings backends use for an entry
// type into one of the four canonical types. Unknown values become info so
// an unexpected type never breaks rendering.
func NormalizeType(raw string) model.EntryType {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	switch normalized {
	case "info", "information", "inf", "debug", "trace", "notice":
		return model.TypeInfo
	case "warning", "warn", "wrn":
		return model.TypeWarning
	case "error", "err", "erro", "fatal", "critical", "crit", "panic":
		return model.TypeError
	case "detection", "detect", "detections", "det":
		return model.TypeDetection
	default:
		if len(normalized) >= 4 {
			switch normalized[:4] {
			case "warn":
				return model.TypeWarning
			case "erro", "fata", "crit":
				return model.TypeError
			case "dete":
				return model.TypeDetection
			}
		}
		return model.TypeInfo
	}
}

// TypeFromText infers an entry type from message text, for sources that
// carry no explicit type (for example plain replay lines).
func TypeFromText(message string) model.EntryType {
	matches := SeverityRegex.FindStringSubmatch(message)
	if len(matches) > 1 {
		return NormalizeType(matches[1])
	}
	return model.TypeInfo
}

// Normalize returns entry with its Type canonicalized.
func Normalize(entry model.LogEntry) model.LogEntry {
	entry.Type = NormalizeType(string(entry.Type))
	return entry
}
