package tui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"chatshell-cli/internal/backend"
	"chatshell-cli/internal/display"
	"chatshell-cli/internal/gitinfo"
	"chatshell-cli/internal/history"
	"chatshell-cli/internal/stream"
	"chatshell-cli/internal/view"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ─── Slash command registry ─────────────────────────────────────────────────

type slashCmd struct {
	name string
	desc string
}

var slashCommands = []slashCmd{
	{"/append", "Generate content and append it to a file"},
	{"/clear", "Clear the chat display"},
	{"/copy", "Copy a code block to the clipboard"},
	{"/git", "Show git status, or /git init"},
	{"/help", "Show all commands"},
	{"/hf", "Search the Hugging Face Hub"},
	{"/quit", "Exit chatshell"},
	{"/read", "Read a project file for discussion"},
	{"/save", "Save a context snippet to memory"},
	{"/search", "Run a web search"},
	{"/write", "Generate content and write it to a file"},
}

// ─── Collaborators ──────────────────────────────────────────────────────────

// Generator produces content for /write and /append.
type Generator interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// HistoryStore persists submitted prompts across sessions.
type HistoryStore interface {
	Load(limit int) ([]string, error)
	Append(prompt string) error
}

// TranscriptLog records every message shown in the session.
type TranscriptLog interface {
	Record(sessionID, kind, content string) error
}

// Options configures the model. Backend and Generator are required; the
// stores and the git change feed may be nil.
type Options struct {
	Version        string
	Workdir        string
	Backend        backend.Backend
	Framing        stream.Framing
	Generator      Generator
	History        HistoryStore
	HistoryLimit   int
	Transcript     TranscriptLog
	SessionID      string
	MemoryFile     string
	AssistantLabel string
	CopyFeedback   time.Duration
	CodeStyle      string
	GlamourStyle   string
	Markdown       bool
	GitChanges     <-chan struct{}
	Clipboard      view.WriteFunc
	Now            func() time.Time
}

// ─── Model ──────────────────────────────────────────────────────────────────

// Model is the interactive chat screen.
type Model struct {
	width  int
	height int

	// Bubble Tea components
	input   textinput.Model
	spinner spinner.Model
	chat    *chatView

	// Message pipeline
	opts     Options
	ctx      context.Context
	cancel   context.CancelFunc
	detector *stream.Detector
	renderer view.Renderer
	replies  map[int]*view.Container // accumulator ID -> container

	// Session state
	nav        *history.Navigator
	git        gitinfo.Info
	stopped    bool
	generating []string // files with a generation in flight

	// UI state
	ready        bool
	cmdMenuIdx   int
	cmdMenuOpen  bool
	lastInputVal string
}

// New builds the model and shows the startup message.
func New(opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Clipboard == nil {
		opts.Clipboard = view.SystemClipboard
	}
	if opts.CopyFeedback <= 0 {
		opts.CopyFeedback = 2 * time.Second
	}
	if opts.AssistantLabel == "" {
		opts.AssistantLabel = "Assistant:"
	}
	if opts.CodeStyle == "" {
		opts.CodeStyle = display.DefaultCodeStyle
	}

	ti := textinput.New()
	ti.Placeholder = "Type a message or /help..."
	ti.Focus()
	ti.CharLimit = 4096
	ti.Prompt = "❯ "
	ti.PromptStyle = promptSymbol
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(colorOrange)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorOrange)

	chat := newChatView(opts.CodeStyle, opts.Markdown)
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		input:    ti,
		spinner:  sp,
		chat:     chat,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		detector: stream.NewDetector(opts.Framing),
		renderer: chat,
		replies:  make(map[int]*view.Container),
		nav:      history.NewNavigator(loadHistory(opts.History, opts.HistoryLimit), opts.HistoryLimit),
	}
	m.post(view.KindInfo, "App Initialized. Waiting for backend...")
	return m
}

func loadHistory(store HistoryStore, limit int) []string {
	if store == nil {
		return nil
	}
	entries, err := store.Load(limit)
	if err != nil {
		slog.Warn("failed to load prompt history", "error", err)
		return nil
	}
	return entries
}

// ─── Init ───────────────────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
		refreshGit(m.opts.Workdir, false),
	}
	if m.opts.Backend != nil {
		cmds = append(cmds, waitForBackend(m.opts.Backend.Events()))
	}
	if m.opts.GitChanges != nil {
		cmds = append(cmds, waitForGit(m.opts.GitChanges))
	}
	return tea.Batch(cmds...)
}

// ─── Update ─────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 6

		if !m.ready {
			m.ready = true
			m.chat.header = renderWelcome(m.opts.Version, m.opts.Workdir)
			m.layout()
			m.chat.ScrollToBottom()
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chat.viewport, cmd = m.chat.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.flushOpen()
			m.cancel()
			return m, tea.Quit

		case tea.KeyEsc:
			if m.cmdMenuOpen {
				m.cmdMenuOpen = false
				m.cmdMenuIdx = 0
				return m, nil
			}

		case tea.KeyPgUp:
			m.chat.viewport.PageUp()
			return m, nil

		case tea.KeyPgDown:
			m.chat.viewport.PageDown()
			return m, nil

		case tea.KeyCtrlY:
			return m.copyBlock(0)

		case tea.KeyUp:
			if m.stopped {
				return m, nil
			}
			if m.cmdMenuOpen && !m.nav.Browsing() {
				if matches := matchCommands(m.input.Value()); len(matches) > 0 {
					m.cmdMenuIdx--
					if m.cmdMenuIdx < 0 {
						m.cmdMenuIdx = len(matches) - 1
					}
					return m, nil
				}
			}
			if text, ok := m.nav.Previous(m.input.Value()); ok {
				m.setInput(text)
			}
			return m, nil

		case tea.KeyDown:
			if m.stopped {
				return m, nil
			}
			if m.cmdMenuOpen && !m.nav.Browsing() {
				if matches := matchCommands(m.input.Value()); len(matches) > 0 {
					m.cmdMenuIdx++
					if m.cmdMenuIdx >= len(matches) {
						m.cmdMenuIdx = 0
					}
					return m, nil
				}
			}
			if text, ok := m.nav.Next(); ok {
				m.setInput(text)
			}
			return m, nil

		case tea.KeyTab:
			if m.cmdMenuOpen {
				m.completeCommand()
				return m, nil
			}

		case tea.KeyEnter:
			if m.stopped {
				return m, nil
			}
			if m.cmdMenuOpen && m.cmdMenuIdx >= 0 {
				matches := matchCommands(m.input.Value())
				if m.cmdMenuIdx < len(matches) && matches[m.cmdMenuIdx].name != strings.TrimSpace(m.input.Value()) {
					m.completeCommand()
					return m, nil
				}
			}
			value := m.input.Value()
			m.input.SetValue("")
			m.lastInputVal = ""
			m.cmdMenuOpen = false
			m.cmdMenuIdx = 0
			model, cmd := m.dispatchInput(value)
			if next, ok := model.(Model); ok {
				next.layout()
				return next, cmd
			}
			return model, cmd

		default:
			// Any other edit leaves history browsing; the draft comes back
			// and the keystroke then applies to it.
			if m.nav.Browsing() {
				if draft, ok := m.nav.Interrupt(); ok {
					m.setInput(draft)
				}
			}
		}

	// ── Backend ───────────────────────────────────────────────────────
	case backendChunkMsg:
		m.handleChunk(msg.text)
		cmds = append(cmds, waitForBackend(m.opts.Backend.Events()))

	case backendErrMsg:
		m.post(view.KindError, strings.TrimRight(msg.text, "\n"))
		cmds = append(cmds, waitForBackend(m.opts.Backend.Events()))

	case backendStoppedMsg:
		m.flushOpen()
		m.stop()
		m.post(view.KindInfo, "Backend process stopped: "+msg.reason+". Please restart the application.")

	case backendStartFailedMsg:
		m.flushOpen()
		m.stop()
		m.post(view.KindError, "Failed to start backend: "+errText(msg.err))

	// ── Background results ────────────────────────────────────────────
	case generationDoneMsg:
		cmds = append(cmds, m.handleGeneration(msg))

	case gitStatusMsg:
		m.handleGitStatus(msg)

	case gitChangedMsg:
		cmds = append(cmds, refreshGit(m.opts.Workdir, false), waitForGit(m.opts.GitChanges))

	case gitInitMsg:
		if msg.err != nil {
			m.post(view.KindError, "Error initializing Git: "+msg.err.Error())
		} else {
			m.post(view.KindInfo, "Git repository initialized successfully!")
		}
		cmds = append(cmds, refreshGit(m.opts.Workdir, false))

	case snippetSavedMsg:
		if msg.err != nil {
			m.post(view.KindError, "Error saving to "+m.memoryName()+": "+msg.err.Error())
		} else {
			m.post(view.KindInfo, "Context snippet saved!")
		}

	case copyRevertMsg:
		msg.node.Copy.Revert(msg.seq)
		m.chat.refresh()
	}

	// Update sub-components
	var cmd tea.Cmd

	if !m.stopped {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)

	// Track input changes to open/close command menu and reset selection
	newVal := m.input.Value()
	if newVal != m.lastInputVal {
		m.lastInputVal = newVal
		m.cmdMenuOpen = strings.HasPrefix(newVal, "/") && !strings.Contains(newVal, " ") && !m.nav.Browsing()
		m.cmdMenuIdx = 0
	}

	m.layout()
	return m, tea.Batch(cmds...)
}

// ─── Message pipeline ───────────────────────────────────────────────────────

// handleChunk feeds one stdout chunk through the detector and re-renders
// every message it touched.
func (m *Model) handleChunk(text string) {
	for _, u := range m.detector.Feed(text) {
		c, ok := m.replies[u.Message.ID()]
		if !ok {
			c = m.chat.add(view.KindAssistant, m.opts.Now(), m.opts.AssistantLabel)
			m.replies[u.Message.ID()] = c
		}
		m.renderer.Render(c, stream.Split(u.Message.Text()))
		if u.Final {
			m.record(view.KindAssistant, u.Message.Text())
		}
	}
}

// flushOpen records a reply the backend left unterminated, so the session
// log keeps partial output when the conversation ends or the screen clears.
func (m *Model) flushOpen() {
	if acc := m.detector.Close(); acc != nil && acc.Text() != "" {
		m.record(view.KindAssistant, acc.Text())
	}
}

// post appends a complete message of the given kind.
func (m *Model) post(kind view.Kind, text string) {
	c := m.chat.add(kind, m.opts.Now(), "")
	m.renderer.Render(c, stream.Split(text))
	if kind != view.KindHelp {
		m.record(kind, text)
	}
}

func (m *Model) record(kind view.Kind, text string) {
	if m.opts.Transcript == nil || m.opts.SessionID == "" {
		return
	}
	if err := m.opts.Transcript.Record(m.opts.SessionID, kind.String(), text); err != nil {
		slog.Warn("failed to record transcript entry", "kind", kind.String(), "error", err)
	}
}

func (m *Model) stop() {
	m.stopped = true
	m.input.Blur()
	m.input.SetValue("")
	m.cmdMenuOpen = false
}

func (m *Model) handleGitStatus(msg gitStatusMsg) {
	if msg.err != nil {
		slog.Warn("git status failed", "dir", m.opts.Workdir, "error", msg.err)
		if msg.announce {
			m.post(view.KindError, "Error reading git status: "+msg.err.Error())
		}
		return
	}
	m.git = msg.info
	if msg.announce {
		m.post(view.KindInfo, m.git.Label())
	}
}

// ─── Layout ─────────────────────────────────────────────────────────────────

func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.chat.setSize(m.width, m.height-lipgloss.Height(m.footer()))
}

func (m *Model) setInput(text string) {
	m.input.SetValue(text)
	m.input.CursorEnd()
	m.lastInputVal = text
	m.cmdMenuOpen = false
	m.cmdMenuIdx = 0
}

func (m *Model) completeCommand() {
	matches := matchCommands(m.input.Value())
	if len(matches) == 0 {
		return
	}
	idx := m.cmdMenuIdx
	if idx < 0 || idx >= len(matches) {
		idx = 0
	}
	m.setInput(matches[idx].name + " ")
}

// ─── View ───────────────────────────────────────────────────────────────────

func (m Model) View() string {
	if !m.ready {
		return ""
	}
	return m.chat.viewport.View() + "\n" + m.footer()
}

func (m Model) footer() string {
	var s strings.Builder

	s.WriteString(separatorStyle.Render(strings.Repeat("─", max(m.width, 20))))
	s.WriteString("\n")
	s.WriteString(m.renderStatusBar())
	s.WriteString("\n")

	if m.stopped {
		s.WriteString(stoppedPromptStyle.Render("  Input disabled. Press ctrl+c to quit."))
	} else {
		s.WriteString(m.input.View())
	}
	s.WriteString("\n")

	s.WriteString(m.renderHints())
	return s.String()
}

func (m Model) renderStatusBar() string {
	var bar string
	switch {
	case !m.git.IsRepo:
		bar = dimStyle.Render(m.git.Label()) + " " + hintBarStyle.Render("· /git init")
	case m.git.Clean:
		bar = dimStyle.Render("Git: "+m.git.Branch+" | Status: ") + gitCleanStyle.Render(m.git.StatusLabel())
	default:
		bar = dimStyle.Render("Git: "+m.git.Branch+" | Status: ") + gitModifiedStyle.Render(m.git.StatusLabel())
	}

	if len(m.generating) > 0 {
		bar += "  " + m.spinner.View() + statusStyle.Render("Generating content for "+strings.Join(m.generating, ", ")+"...")
	}
	return bar
}

// ─── Hint bar ───────────────────────────────────────────────────────────────

func (m Model) renderHints() string {
	if m.stopped {
		return hintBarStyle.Render("  PgUp/PgDn scroll")
	}

	if m.cmdMenuOpen {
		if matches := matchCommands(m.input.Value()); len(matches) > 0 {
			return m.renderCommandMenu(matches)
		}
	}

	return hintBarStyle.Render("  /help for commands  ↑↓ history  PgUp/PgDn scroll  ctrl+y copy")
}

func (m Model) renderCommandMenu(matches []slashCmd) string {
	maxLen := 0
	for _, c := range matches {
		maxLen = max(maxLen, len(c.name))
	}

	var lines []string
	for i, c := range matches {
		padded := c.name + strings.Repeat(" ", maxLen-len(c.name))
		if i == m.cmdMenuIdx {
			lines = append(lines, "  "+cmdSelectedNameStyle.Render(padded)+"  "+cmdSelectedDescStyle.Render(c.desc))
		} else {
			lines = append(lines, "  "+cmdNameStyle.Render(padded)+"  "+cmdDescStyle.Render(c.desc))
		}
	}
	lines = append(lines, hintBarStyle.Render("  ↑↓ navigate  Tab/Enter select"))

	return strings.Join(lines, "\n")
}

// matchCommands returns all slash commands matching a prefix.
func matchCommands(prefix string) []slashCmd {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "/" {
		return slashCommands
	}
	var matches []slashCmd
	for _, c := range slashCommands {
		if strings.HasPrefix(c.name, prefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
