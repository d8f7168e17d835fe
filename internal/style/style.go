package style

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorCyan      = lipgloss.Color("212")
	colorPurple    = lipgloss.Color("99")
	colorGreen     = lipgloss.Color("42")
	colorRed       = lipgloss.Color("196")
)

// --- General Purpose Styles ---
var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorGreen)
	HelpStyle    = lipgloss.NewStyle().Faint(true)
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	DocStyle     = lipgloss.NewStyle().Margin(1, 2)
)

// --- Session Styles ---
var (
	// CodeStyle frames the pairing code so it can be read out loud.
	CodeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorLightGray).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorPurple).
			Padding(0, 2)
	HighlightFontStyle = lipgloss.NewStyle().Foreground(colorCyan)
	LabelStyle         = lipgloss.NewStyle().Foreground(colorDarkGray)
	BaseStyle          = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray)
)

// --- File Picker Styles ---
var (
	CursorStyle   = lipgloss.NewStyle().Foreground(colorCyan).SetString("> ")
	NoCursorStyle = lipgloss.NewStyle().SetString("  ")
	DirStyle      = lipgloss.NewStyle().Foreground(colorPurple)
	FileStyle     = lipgloss.NewStyle().Foreground(colorLightGray)
	HeaderStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
)

// --- Common Components ---

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// NewProgress creates the transfer progress bar.
func NewProgress() progress.Model {
	return progress.New(progress.WithGradient(string(colorPurple), string(colorPink)), progress.WithWidth(48))
}

// NewTextInput creates a focused single-line input.
func NewTextInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 128
	ti.Width = 48
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorCyan)
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorPurple)
	ti.Focus()
	return ti
}

// NewTableStyles returns the default table styles. Rows are printed, not
// navigated, so the selected row looks like any other.
func NewTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.BorderForeground(colorDarkGray).Foreground(colorPink)
	styles.Selected = styles.Cell
	return styles
}
