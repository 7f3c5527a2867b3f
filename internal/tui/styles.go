package tui

import "github.com/charmbracelet/lipgloss"

// ─── Colors ─────────────────────────────────────────────────────────────────

var (
	colorOrange  = lipgloss.Color("#F28C28") // primary accent
	colorGreen   = lipgloss.Color("78")
	colorYellow  = lipgloss.Color("220")
	colorRed     = lipgloss.Color("196")
	colorMagenta = lipgloss.Color("213")
	colorBlue    = lipgloss.Color("111")
	colorGray    = lipgloss.Color("242")
	colorDimGray = lipgloss.Color("238")
	colorWhite   = lipgloss.Color("255")
	colorMuted   = lipgloss.Color("245")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// ─── Welcome and input ──────────────────────────────────────────────────────

var (
	logoTitleStyle   = fg(colorWhite).Bold(true)
	logoMarkStyle    = fg(colorOrange).Bold(true)
	versionStyle     = fg(colorGray)
	welcomeHintStyle = fg(colorGray).Italic(true)

	promptSymbol       = fg(colorOrange).Bold(true)
	stoppedPromptStyle = fg(colorDimGray)
	hintBarStyle       = fg(colorGray)
)

// ─── Command menu ───────────────────────────────────────────────────────────

var (
	cmdNameStyle         = fg(colorOrange)
	cmdDescStyle         = fg(colorGray)
	cmdSelectedNameStyle = fg(colorOrange).Bold(true).Reverse(true)
	cmdSelectedDescStyle = fg(colorWhite).Bold(true)
)

// ─── Transcript ─────────────────────────────────────────────────────────────

var (
	timestampStyle = fg(colorMuted)
	authorStyle    = fg(colorGreen).Bold(true)
	userMsgStyle   = fg(colorOrange)
	infoMsgStyle   = fg(colorBlue)
	errorMsgStyle  = fg(colorRed)
	helpMsgStyle   = fg(colorMagenta)

	codeLabelStyle   = fg(colorDimGray)
	copyLabelStyle   = fg(colorGray).Bold(true)
	copiedLabelStyle = fg(colorGreen).Bold(true)
)

// ─── Status bar ─────────────────────────────────────────────────────────────

var (
	statusStyle      = fg(colorYellow)
	gitCleanStyle    = fg(colorGreen)
	gitModifiedStyle = fg(colorYellow)
	dimStyle         = fg(colorGray)
	separatorStyle   = fg(colorDimGray)
)
