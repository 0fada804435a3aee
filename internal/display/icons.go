package display

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Icon represents a status icon with an ASCII fallback
type Icon struct {
	Unicode string
	ASCII   string
}

var statusIcons = map[string]Icon{
	"success": {Unicode: "✓", ASCII: "[OK]"},
	"warning": {Unicode: "⚠", ASCII: "[WARN]"},
	"error":   {Unicode: "✗", ASCII: "[ERROR]"},
	"info":    {Unicode: "ℹ", ASCII: "[INFO]"},
	"backup":  {Unicode: "💾", ASCII: "[B]"},
}

// IconSet renders icons as Unicode or ASCII
type IconSet struct {
	unicode bool
}

// NewIconSet detects Unicode support from the environment
func NewIconSet() *IconSet {
	return &IconSet{unicode: detectUnicodeSupport()}
}

func detectUnicodeSupport() bool {
	if os.Getenv("FORCE_UNICODE") != "" {
		return true
	}
	if os.Getenv("NO_UNICODE") != "" {
		return false
	}
	if os.Getenv("LANG") == "C" || os.Getenv("LC_ALL") == "C" {
		return false
	}
	if term := os.Getenv("TERM"); term == "dumb" || term == "vt100" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Render returns the icon for name, "?" when unknown
func (is *IconSet) Render(name string) string {
	icon, ok := statusIcons[name]
	if !ok {
		return "?"
	}
	if is.unicode {
		return icon.Unicode
	}
	return icon.ASCII
}

// SetUnicode overrides detection
func (is *IconSet) SetUnicode(enabled bool) {
	is.unicode = enabled
}
