package reporting

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

// Theme styles the text report. Only the presentation changes between
// themes; line content and order are identical.
type Theme struct {
	Name  string
	Title lipgloss.Style
	Pass  lipgloss.Style
	Fail  lipgloss.Style
	Warn  lipgloss.Style
	Muted lipgloss.Style
}

// MonoTheme emits no escape sequences. It is the default so reports diff cleanly.
func MonoTheme() Theme {
	return Theme{
		Name:  "mono",
		Title: lipgloss.NewStyle(),
		Pass:  lipgloss.NewStyle(),
		Fail:  lipgloss.NewStyle(),
		Warn:  lipgloss.NewStyle(),
		Muted: lipgloss.NewStyle(),
	}
}

func DefaultTheme() Theme {
	return Theme{
		Name:  "default",
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Pass:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		Fail:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
}

// ThemeByName returns a theme by name, defaulting to MonoTheme.
func ThemeByName(name string) Theme {
	switch name {
	case "default", "color":
		return DefaultTheme()
	default:
		return MonoTheme()
	}
}

func (t Theme) outcome(o scenario.Outcome) lipgloss.Style {
	switch o {
	case scenario.Pass:
		return t.Pass
	case scenario.Warn:
		return t.Warn
	default:
		return t.Fail
	}
}
