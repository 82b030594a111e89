package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("12")
	colorSuccess = lipgloss.Color("10")
	colorError   = lipgloss.Color("9")
	colorMuted   = lipgloss.Color("8")
)

// Base styles for the configure wizard.
var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			MarginBottom(1)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess)

	StyleError = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	StyleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)
)

const logoASCII = `
             _              _
__   _____ (_) ___ ___  __| |
\ \ / / _ \| |/ __/ _ \/ _' |
 \ V / (_) | | (_|  __/ (_| |
  \_/ \___/|_|\___\___|\__,_|`

// Logo returns the voiced ASCII art header.
func Logo() string {
	return StyleHeader.Render(strings.Trim(logoASCII, "\n"))
}
