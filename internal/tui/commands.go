package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"chatshell-cli/internal/backend"
	"chatshell-cli/internal/generate"
	"chatshell-cli/internal/view"
	"chatshell-cli/internal/workspace"

	tea "github.com/charmbracelet/bubbletea"
)

// ─── Input dispatcher ───────────────────────────────────────────────────────
//
// /clear, /help, /copy and /quit act on the screen only and never reach the
// history. Everything else is recorded, echoed as a user message, and then
// either handled locally or written to the backend.

func (m Model) dispatchInput(input string) (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(input)
	if value == "" {
		return m, nil
	}

	name, args := splitCommand(value)
	switch name {
	case "/clear":
		m.nav.Interrupt()
		return m.cmdClear()
	case "/help":
		m.nav.Interrupt()
		return m.cmdHelp()
	case "/copy":
		m.nav.Interrupt()
		return m.cmdCopy(args)
	case "/quit":
		m.flushOpen()
		m.cancel()
		return m, tea.Quit
	}

	m.remember(value)
	m.post(view.KindUser, value)

	switch {
	case generate.IsCommand(value):
		return m.cmdGenerate(value)
	case name == "/hf":
		return m.cmdHubSearch(args)
	case name == "/git":
		return m.cmdGit(args)
	case name == "/save":
		return m.cmdSave(args)
	}
	return m.sendToBackend(value)
}

// splitCommand returns the lower-cased first word when value is a slash
// command, and the trimmed rest.
func splitCommand(value string) (string, string) {
	if !strings.HasPrefix(value, "/") {
		return "", value
	}
	name, rest, _ := strings.Cut(value, " ")
	return strings.ToLower(name), strings.TrimSpace(rest)
}

func (m *Model) remember(value string) {
	if !m.nav.Submit(value) || m.opts.History == nil {
		return
	}
	if err := m.opts.History.Append(value); err != nil {
		slog.Warn("failed to persist prompt", "error", err)
	}
}

// ─── Backend ────────────────────────────────────────────────────────────────

func (m Model) sendToBackend(line string) (tea.Model, tea.Cmd) {
	if m.stopped || m.opts.Backend == nil {
		m.post(view.KindError, "Backend process is not running or input is closed.")
		return m, nil
	}
	if err := m.opts.Backend.Send(line); err != nil {
		m.post(view.KindError, sendError(err))
	}
	return m, nil
}

func sendError(err error) string {
	if errors.Is(err, backend.ErrNotRunning) {
		return "Backend process is not running or input is closed."
	}
	return "Failed to send to backend: " + err.Error()
}

// ─── /clear ─────────────────────────────────────────────────────────────────

func (m Model) cmdClear() (tea.Model, tea.Cmd) {
	m.flushOpen()
	m.chat.clear()
	m.detector.Reset()
	clear(m.replies)
	m.post(view.KindInfo, "Chat display cleared.")
	return m, nil
}

// ─── /help ──────────────────────────────────────────────────────────────────

func (m Model) cmdHelp() (tea.Model, tea.Cmd) {
	m.post(view.KindHelp, renderHelp(m.opts.GlamourStyle, m.width))
	return m, nil
}

// ─── /copy ──────────────────────────────────────────────────────────────────

func (m Model) cmdCopy(args string) (tea.Model, tea.Cmd) {
	n := 0
	if args != "" {
		v, err := strconv.Atoi(strings.TrimPrefix(args, "#"))
		if err != nil || v < 1 {
			m.post(view.KindError, "Usage: /copy [n]")
			return m, nil
		}
		n = v
	}
	return m.copyBlock(n)
}

// copyBlock activates the copy control of block n, counted from 1 across the
// transcript. n == 0 selects the latest block.
func (m Model) copyBlock(n int) (tea.Model, tea.Cmd) {
	blocks := m.chat.codeBlocks()
	if len(blocks) == 0 {
		m.post(view.KindError, "No code blocks to copy.")
		return m, nil
	}
	if n == 0 {
		n = len(blocks)
	}
	if n > len(blocks) {
		m.post(view.KindError, fmt.Sprintf("No code block #%d.", n))
		return m, nil
	}

	node := blocks[n-1]
	seq, err := node.Copy.Activate(m.opts.Clipboard, node.Code)
	if err != nil {
		slog.Warn("failed to copy code block", "block", n, "error", err)
	}
	m.chat.refresh()
	return m, scheduleRevert(node, seq, m.opts.CopyFeedback)
}

// ─── /write, /append ────────────────────────────────────────────────────────

func (m Model) cmdGenerate(value string) (tea.Model, tea.Cmd) {
	cmd, err := generate.ParseCommand(value)
	if err != nil {
		m.post(view.KindError, cmd.Op.Usage())
		return m, nil
	}

	target, err := workspace.Resolve(m.opts.Workdir, cmd.Filename)
	if err != nil {
		if errors.Is(err, workspace.ErrUnsafePath) {
			m.post(view.KindError, fmt.Sprintf("Invalid or potentially unsafe file path: %s. Only relative paths within the project are allowed.", target.Name))
		} else {
			m.post(view.KindError, fmt.Sprintf("❌ Error saving to %s: %v", cmd.Filename, err))
		}
		return m, nil
	}

	if m.opts.Generator == nil {
		m.post(view.KindError, fmt.Sprintf("❌ Failed to start generation process for %s.", cmd.Filename))
		return m, nil
	}

	m.post(view.KindInfo, fmt.Sprintf("⏳ Generating content for %s...", cmd.Filename))
	m.generating = append(slices.Clone(m.generating), cmd.Filename)
	slog.Info("generation started", "op", cmd.Op.Name(), "file", target.Path)
	return m, runGeneration(m.ctx, m.opts.Generator, cmd, target)
}

func (m *Model) handleGeneration(msg generationDoneMsg) tea.Cmd {
	name := msg.cmd.Filename
	if i := slices.Index(m.generating, name); i >= 0 {
		m.generating = slices.Delete(slices.Clone(m.generating), i, i+1)
	}

	var failure *generate.Failure
	switch {
	case errors.Is(msg.err, generate.ErrStart):
		slog.Error("generation helper failed to start", "file", name, "error", msg.err)
		m.post(view.KindError, fmt.Sprintf("❌ Failed to start generation process for %s.", name))
		return nil
	case errors.As(msg.err, &failure):
		slog.Warn("generation helper failed", "file", name, "exit_code", failure.ExitCode)
		m.post(view.KindError, fmt.Sprintf("❌ Error generating content for %s. %s", name, failure.Detail()))
		return nil
	case msg.err != nil:
		m.post(view.KindError, fmt.Sprintf("❌ Error generating content for %s. %v", name, msg.err))
		return nil
	case msg.saveErr != nil:
		slog.Error("failed to save generated content", "file", msg.target.Path, "error", msg.saveErr)
		m.post(view.KindError, fmt.Sprintf("❌ Error saving to %s: %v", name, msg.saveErr))
		return nil
	}

	slog.Info("generation finished", "op", msg.cmd.Op.Name(), "file", msg.target.Path)
	m.post(view.KindInfo, fmt.Sprintf("✅ Content successfully %s %s", msg.cmd.Op.Verb(), name))
	return refreshGit(m.opts.Workdir, false)
}

// ─── /hf ────────────────────────────────────────────────────────────────────

func (m Model) cmdHubSearch(query string) (tea.Model, tea.Cmd) {
	if query == "" {
		m.post(view.KindError, "Search query cannot be empty.")
		return m, nil
	}
	if m.stopped || m.opts.Backend == nil {
		m.post(view.KindError, "Backend process is not running or input is closed.")
		return m, nil
	}
	if err := m.opts.Backend.Search(query); err != nil {
		m.post(view.KindError, sendError(err))
		return m, nil
	}
	m.post(view.KindInfo, fmt.Sprintf("Searching Hugging Face Hub for \"%s\"...", query))
	return m, nil
}

// ─── /git ───────────────────────────────────────────────────────────────────

func (m Model) cmdGit(args string) (tea.Model, tea.Cmd) {
	if strings.EqualFold(args, "init") {
		return m, initGit(m.opts.Workdir)
	}
	if args != "" {
		m.post(view.KindError, "Usage: /git [init]")
		return m, nil
	}
	return m, refreshGit(m.opts.Workdir, true)
}

// ─── /save ──────────────────────────────────────────────────────────────────

func (m Model) cmdSave(text string) (tea.Model, tea.Cmd) {
	if text == "" {
		if last := m.chat.lastAssistant(); last != nil {
			text = strings.TrimSpace(last.PlainText())
		}
	}
	if text == "" {
		m.post(view.KindError, "Nothing to save: no text given and no assistant reply yet.")
		return m, nil
	}
	return m, saveSnippet(m.memoryPath(), text, m.opts.Now())
}

func (m Model) memoryPath() string {
	if m.opts.MemoryFile == "" {
		return filepath.Join(m.opts.Workdir, "memory.md")
	}
	return m.opts.MemoryFile
}

func (m Model) memoryName() string {
	return filepath.Base(m.memoryPath())
}
