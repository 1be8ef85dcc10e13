package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Info          lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	Table         lipgloss.Style
	Field         lipgloss.Style
}

// Palette.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7D79F6"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	colorError   = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
)

// NewStyles creates styles bound to a lipgloss renderer, so colour follows
// that renderer's profile.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:       r.NewStyle().Bold(true).Foreground(colorPrimary).Underline(true),
		Header2:       r.NewStyle().Bold(true).Foreground(colorPrimary),
		Bold:          r.NewStyle().Bold(true),
		Muted:         r.NewStyle().Foreground(colorMuted),
		Success:       r.NewStyle().Foreground(colorSuccess),
		Warning:       r.NewStyle().Foreground(colorWarning),
		Error:         r.NewStyle().Foreground(colorError).Bold(true),
		Info:          r.NewStyle().Foreground(colorInfo),
		StatusSuccess: r.NewStyle().Foreground(colorSuccess).Bold(true),
		StatusFailed:  r.NewStyle().Foreground(colorError).Bold(true),
		Table:         r.NewStyle().Foreground(colorInfo),
		Field:         r.NewStyle().Foreground(colorWarning),
	}
}
