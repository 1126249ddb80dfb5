package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Color modes accepted by ConfigureColor.
const (
	ColorModeAuto   = "auto"
	ColorModeAlways = "always"
	ColorModeNever  = "never"
)

// ConfigureColor sets the lipgloss color profile for the process.
// In auto mode colors are used only when stdout is a terminal and NO_COLOR
// is unset.
func ConfigureColor(mode string) {
	lipgloss.SetColorProfile(profileFor(mode, os.Getenv("NO_COLOR") != "", IsTerminal(os.Stdout)))
}

func profileFor(mode string, noColor, tty bool) termenv.Profile {
	switch mode {
	case ColorModeNever:
		return termenv.Ascii
	case ColorModeAlways:
		if p := termenv.EnvColorProfile(); p != termenv.Ascii {
			return p
		}
		return termenv.ANSI
	default:
		if noColor || !tty {
			return termenv.Ascii
		}
		return termenv.EnvColorProfile()
	}
}

// DisableColors switches every style to plain text.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// IsTerminal returns true if the file descriptor is a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
