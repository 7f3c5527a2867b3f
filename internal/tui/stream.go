package tui

import (
	"context"
	"time"

	"chatshell-cli/internal/backend"
	"chatshell-cli/internal/generate"
	"chatshell-cli/internal/gitinfo"
	"chatshell-cli/internal/view"
	"chatshell-cli/internal/workspace"

	tea "github.com/charmbracelet/bubbletea"
)

// ─── Messages sent from background work to Bubble Tea ───────────────────────

type backendChunkMsg struct {
	text string
}

type backendErrMsg struct {
	text string
}

type backendStoppedMsg struct {
	reason string
}

type backendStartFailedMsg struct {
	err error
}

type generationDoneMsg struct {
	cmd     generate.Command
	target  workspace.Target
	err     error // helper failure; the file was not touched
	saveErr error
}

type gitStatusMsg struct {
	info     gitinfo.Info
	err      error
	announce bool
}

type gitChangedMsg struct{}

type gitInitMsg struct {
	err error
}

type snippetSavedMsg struct {
	err error
}

type copyRevertMsg struct {
	node *view.CodeNode
	seq  int
}

// ─── Backend pump ───────────────────────────────────────────────────────────
//
// waitForBackend reads one event and returns it as a message. Update
// dispatches another waitForBackend after each non-terminal event, so the
// loop keeps draining the channel until the process is gone.

func waitForBackend(ch <-chan backend.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return backendStoppedMsg{reason: "event stream closed"}
		}
		switch ev.Kind {
		case backend.EventStdout:
			return backendChunkMsg{text: ev.Text}
		case backend.EventStderr:
			return backendErrMsg{text: ev.Text}
		case backend.EventStartFailed:
			return backendStartFailedMsg{err: ev.Err}
		}
		return backendStoppedMsg{reason: ev.Reason()}
	}
}

// ─── Generation ─────────────────────────────────────────────────────────────

func runGeneration(ctx context.Context, gen Generator, cmd generate.Command, target workspace.Target) tea.Cmd {
	return func() tea.Msg {
		out, err := gen.Run(ctx, cmd.Prompt)
		if err != nil {
			return generationDoneMsg{cmd: cmd, target: target, err: err}
		}

		if cmd.Op == generate.OpAppend {
			err = workspace.Append(target, out)
		} else {
			err = workspace.Write(target, out)
		}
		return generationDoneMsg{cmd: cmd, target: target, saveErr: err}
	}
}

// ─── Git ────────────────────────────────────────────────────────────────────

func refreshGit(dir string, announce bool) tea.Cmd {
	return func() tea.Msg {
		info, err := gitinfo.Status(dir)
		return gitStatusMsg{info: info, err: err, announce: announce}
	}
}

func initGit(dir string) tea.Cmd {
	return func() tea.Msg {
		return gitInitMsg{err: gitinfo.Init(dir)}
	}
}

// waitForGit blocks until the watcher reports a change. A closed channel
// stops the pump.
func waitForGit(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return gitChangedMsg{}
	}
}

// ─── Snippets and clipboard ─────────────────────────────────────────────────

func saveSnippet(path, content string, now time.Time) tea.Cmd {
	return func() tea.Msg {
		return snippetSavedMsg{err: workspace.SaveSnippet(path, content, now)}
	}
}

func scheduleRevert(node *view.CodeNode, seq int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return copyRevertMsg{node: node, seq: seq}
	})
}
