package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"chatshell-cli/internal/backend"
	"chatshell-cli/internal/generate"
	"chatshell-cli/internal/view"

	tea "github.com/charmbracelet/bubbletea"
)

// fakeBackend implements backend.Backend for testing.
type fakeBackend struct {
	sent     []string
	searches []string
	events   chan backend.Event
	err      error // if set, Send and Search return this error
}

func (f *fakeBackend) Send(line string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, line)
	return nil
}

func (f *fakeBackend) Search(query string) error {
	if f.err != nil {
		return f.err
	}
	f.searches = append(f.searches, query)
	return nil
}

func (f *fakeBackend) Events() <-chan backend.Event { return f.events }

// Verify fakeBackend satisfies the interface at compile time.
var _ backend.Backend = (*fakeBackend)(nil)

type fakeGenerator struct {
	out     string
	err     error
	prompts []string
}

func (g *fakeGenerator) Run(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.out, g.err
}

type memoryHistory struct {
	loaded   []string
	appended []string
}

func (h *memoryHistory) Load(limit int) ([]string, error) { return h.loaded, nil }

func (h *memoryHistory) Append(prompt string) error {
	h.appended = append(h.appended, prompt)
	return nil
}

type memoryTranscript struct {
	entries []string
}

func (r *memoryTranscript) Record(sessionID, kind, content string) error {
	r.entries = append(r.entries, sessionID+"|"+kind+"|"+content)
	return nil
}

var testClock = time.Date(2026, 3, 1, 14, 3, 27, 0, time.Local)

func newTestModel(t *testing.T) (Model, *fakeBackend, *fakeGenerator) {
	t.Helper()
	be := &fakeBackend{events: make(chan backend.Event, 16)}
	gen := &fakeGenerator{out: "haiku text"}
	m := New(Options{
		Version:   "test",
		Workdir:   t.TempDir(),
		Backend:   be,
		Generator: gen,
		Clipboard: func(string) error { return nil },
		Now:       func() time.Time { return testClock },
	})
	m.ready = true
	m.width = 120
	m.height = 40
	m.layout()
	return m, be, gen
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	rm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return rm, cmd
}

func dispatch(t *testing.T, m Model, input string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.dispatchInput(input)
	return next.(Model), cmd
}

func lastMessage(m Model) *view.Container {
	return m.chat.containers[len(m.chat.containers)-1]
}

func TestNewShowsStartupMessage(t *testing.T) {
	m, _, _ := newTestModel(t)
	if len(m.chat.containers) != 1 {
		t.Fatalf("containers = %d, want 1", len(m.chat.containers))
	}
	c := lastMessage(m)
	if c.Kind != view.KindInfo || c.PlainText() != "App Initialized. Waiting for backend..." {
		t.Errorf("startup message = %v %q", c.Kind, c.PlainText())
	}
}

func TestDispatchInput(t *testing.T) {
	tests := []struct {
		input       string
		wantSent    []string
		wantKind    view.Kind
		wantText    string
		wantHistory []string
	}{
		{
			input:       "hello there",
			wantSent:    []string{"hello there"},
			wantKind:    view.KindUser,
			wantText:    "hello there",
			wantHistory: []string{"hello there"},
		},
		{
			input:       "  /read main.go  ",
			wantSent:    []string{"/read main.go"},
			wantKind:    view.KindUser,
			wantText:    "/read main.go",
			wantHistory: []string{"/read main.go"},
		},
		{
			input:       "/search go generics",
			wantSent:    []string{"/search go generics"},
			wantKind:    view.KindUser,
			wantText:    "/search go generics",
			wantHistory: []string{"/search go generics"},
		},
		{
			input:       "bye",
			wantSent:    []string{"bye"},
			wantKind:    view.KindUser,
			wantText:    "bye",
			wantHistory: []string{"bye"},
		},
		{
			input:    "/clear",
			wantKind: view.KindInfo,
			wantText: "Chat display cleared.",
		},
		{
			input:       "/hf",
			wantKind:    view.KindError,
			wantText:    "Search query cannot be empty.",
			wantHistory: []string{"/hf"},
		},
		{
			input:       "/hf tiny llama",
			wantKind:    view.KindInfo,
			wantText:    `Searching Hugging Face Hub for "tiny llama"...`,
			wantHistory: []string{"/hf tiny llama"},
		},
		{
			input:       "/write",
			wantKind:    view.KindError,
			wantText:    "Usage: /write <filename> <prompt to generate content>",
			wantHistory: []string{"/write"},
		},
		{
			input:       "/APPEND notes.md",
			wantKind:    view.KindError,
			wantText:    "Usage: /append <filename> <prompt to generate content>",
			wantHistory: []string{"/APPEND notes.md"},
		},
		{
			input:       "/write ../../etc/passwd a poem",
			wantKind:    view.KindError,
			wantText:    "Invalid or potentially unsafe file path: etc/passwd. Only relative paths within the project are allowed.",
			wantHistory: []string{"/write ../../etc/passwd a poem"},
		},
		{
			input:    "   ",
			wantKind: view.KindInfo,
			wantText: "App Initialized. Waiting for backend...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, be, gen := newTestModel(t)
			m, _ = dispatch(t, m, tt.input)

			if !reflect.DeepEqual(be.sent, tt.wantSent) {
				t.Errorf("sent = %q, want %q", be.sent, tt.wantSent)
			}
			c := lastMessage(m)
			if c.Kind != tt.wantKind || c.PlainText() != tt.wantText {
				t.Errorf("last message = %v %q, want %v %q", c.Kind, c.PlainText(), tt.wantKind, tt.wantText)
			}
			if got := m.nav.Entries(); !reflect.DeepEqual(got, tt.wantHistory) && len(got)+len(tt.wantHistory) > 0 {
				t.Errorf("history = %q, want %q", got, tt.wantHistory)
			}
			if len(gen.prompts) != 0 {
				t.Errorf("generator ran for %q", tt.input)
			}
		})
	}
}

func TestHubSearchSendsQuery(t *testing.T) {
	m, be, _ := newTestModel(t)
	dispatch(t, m, "/hf tiny llama")
	if !reflect.DeepEqual(be.searches, []string{"tiny llama"}) {
		t.Errorf("searches = %q", be.searches)
	}
}

func TestLocalCommandsSkipHistory(t *testing.T) {
	for _, input := range []string{"/clear", "/help", "/copy", "/CLEAR"} {
		t.Run(input, func(t *testing.T) {
			m, be, _ := newTestModel(t)
			m, _ = dispatch(t, m, input)
			if len(m.nav.Entries()) != 0 {
				t.Errorf("history = %q, want empty", m.nav.Entries())
			}
			if len(be.sent) != 0 {
				t.Errorf("sent = %q, want nothing", be.sent)
			}
		})
	}
}

func TestQuitCommand(t *testing.T) {
	m, _, _ := newTestModel(t)
	_, cmd := dispatch(t, m, "/quit")
	if cmd == nil {
		t.Fatal("expected quit cmd")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("/quit should return tea.Quit")
	}
	if m.ctx.Err() == nil {
		t.Error("/quit should cancel background work")
	}
}

func TestClearResetsTranscript(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, backendChunkMsg{text: "one\n"})
	m, _ = update(t, m, backendChunkMsg{text: "partial"})
	m, _ = dispatch(t, m, "/clear")

	if len(m.chat.containers) != 1 {
		t.Fatalf("containers = %d, want only the clear notice", len(m.chat.containers))
	}
	if m.detector.Current() != nil {
		t.Error("/clear should drop the open reply")
	}
	m, _ = update(t, m, backendChunkMsg{text: "fresh\n"})
	if got := lastMessage(m).PlainText(); got != "fresh\n" {
		t.Errorf("reply after clear = %q", got)
	}
}

// ─── Backend events ─────────────────────────────────────────────────────────

func TestBackendChunksBuildReplies(t *testing.T) {
	m, _, _ := newTestModel(t)
	for _, chunk := range []string{"Hel", "lo\n", "World"} {
		var cmd tea.Cmd
		m, cmd = update(t, m, backendChunkMsg{text: chunk})
		if cmd == nil {
			t.Fatal("chunk handling should keep reading from the backend")
		}
	}

	var replies []*view.Container
	for _, c := range m.chat.containers {
		if c.Kind == view.KindAssistant {
			replies = append(replies, c)
		}
	}
	if len(replies) != 2 {
		t.Fatalf("replies = %d, want 2", len(replies))
	}
	if replies[0].PlainText() != "Hello\n" || replies[1].PlainText() != "World" {
		t.Errorf("replies = %q, %q", replies[0].PlainText(), replies[1].PlainText())
	}
	if !strings.Contains(m.chat.content(), "Assistant:") {
		t.Error("reply should carry the assistant label")
	}
}

func TestBackendCodeBlock(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, backendChunkMsg{text: "a\n```js\nconsole.log(1)\n```\nb"})

	blocks := m.chat.codeBlocks()
	if len(blocks) != 1 {
		t.Fatalf("code blocks = %d, want 1", len(blocks))
	}
	if blocks[0].Language != "js" || blocks[0].Code != "console.log(1)" {
		t.Errorf("block = %q %q", blocks[0].Language, blocks[0].Code)
	}
	if !strings.Contains(m.chat.content(), "[#1 Copy]") {
		t.Errorf("content should show the copy label:\n%s", m.chat.content())
	}
}

func TestBackendStderrShowsError(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, cmd := update(t, m, backendErrMsg{text: "Traceback: boom\n"})
	if cmd == nil {
		t.Error("stderr handling should keep reading from the backend")
	}
	c := lastMessage(m)
	if c.Kind != view.KindError || c.PlainText() != "Traceback: boom" {
		t.Errorf("last message = %v %q", c.Kind, c.PlainText())
	}
}

func TestBackendStopped(t *testing.T) {
	m, be, _ := newTestModel(t)
	m, _ = update(t, m, backendStoppedMsg{reason: "process exited with code 1"})

	if !m.stopped {
		t.Fatal("model should be stopped")
	}
	want := "Backend process stopped: process exited with code 1. Please restart the application."
	if got := lastMessage(m).PlainText(); got != want {
		t.Errorf("message = %q, want %q", got, want)
	}

	count := len(m.chat.containers)
	m.input.SetValue("hello")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(m.chat.containers) != count || len(be.sent) != 0 {
		t.Error("Enter should be ignored once the backend stopped")
	}

	m, _ = dispatch(t, m, "hello")
	if got := lastMessage(m).PlainText(); got != "Backend process is not running or input is closed." {
		t.Errorf("send after stop = %q", got)
	}
	if !strings.Contains(m.View(), "Input disabled") {
		t.Error("view should show the disabled input")
	}
}

func TestBackendStartFailed(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = update(t, m, backendStartFailedMsg{err: errors.New(`exec: "nope": executable file not found in $PATH`)})

	if !m.stopped {
		t.Error("model should be stopped")
	}
	c := lastMessage(m)
	want := `Failed to start backend: exec: "nope": executable file not found in $PATH`
	if c.Kind != view.KindError || c.PlainText() != want {
		t.Errorf("message = %v %q", c.Kind, c.PlainText())
	}
}

func TestSendErrorNotRunning(t *testing.T) {
	m, be, _ := newTestModel(t)
	be.err = backend.ErrNotRunning
	m, _ = dispatch(t, m, "hello")
	if got := lastMessage(m).PlainText(); got != "Backend process is not running or input is closed." {
		t.Errorf("message = %q", got)
	}
}

func TestWaitForBackend(t *testing.T) {
	ch := make(chan backend.Event, 4)
	ch <- backend.Event{Kind: backend.EventStdout, Text: "hi"}
	ch <- backend.Event{Kind: backend.EventStderr, Text: "warn"}
	ch <- backend.Event{Kind: backend.EventExit, Code: 2}
	close(ch)

	if msg, ok := waitForBackend(ch)().(backendChunkMsg); !ok || msg.text != "hi" {
		t.Errorf("stdout event = %#v", msg)
	}
	if msg, ok := waitForBackend(ch)().(backendErrMsg); !ok || msg.text != "warn" {
		t.Errorf("stderr event = %#v", msg)
	}
	if msg, ok := waitForBackend(ch)().(backendStoppedMsg); !ok || msg.reason != "process exited with code 2" {
		t.Errorf("exit event = %#v", msg)
	}
	if _, ok := waitForBackend(ch)().(backendStoppedMsg); !ok {
		t.Error("closed channel should report the backend stopped")
	}
}

// ─── History ────────────────────────────────────────────────────────────────

func TestHistoryNavigation(t *testing.T) {
	store := &memoryHistory{}
	m, _, _ := newTestModel(t)
	m.opts.History = store

	m, _ = dispatch(t, m, "a")
	m, _ = dispatch(t, m, "b")
	m.input.SetValue("dra")

	steps := []struct {
		key  tea.KeyType
		want string
	}{
		{tea.KeyUp, "b"},
		{tea.KeyUp, "a"},
		{tea.KeyUp, "a"},
		{tea.KeyDown, "b"},
		{tea.KeyDown, "dra"},
		{tea.KeyDown, "dra"},
	}
	for i, s := range steps {
		m, _ = update(t, m, tea.KeyMsg{Type: s.key})
		if got := m.input.Value(); got != s.want {
			t.Errorf("step %d: input = %q, want %q", i, got, s.want)
		}
	}

	m, _ = dispatch(t, m, "a")
	if got := m.nav.Entries(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("entries = %q, want no duplicate", got)
	}
	if !reflect.DeepEqual(store.appended, []string{"a", "b"}) {
		t.Errorf("persisted = %q", store.appended)
	}
}

func TestHistoryInterruptRestoresDraft(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = dispatch(t, m, "first")
	m.input.SetValue("dra")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "first" {
		t.Fatalf("input = %q", m.input.Value())
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if got := m.input.Value(); got != "drax" {
		t.Errorf("input = %q, want draft plus keystroke", got)
	}
	if m.nav.Browsing() {
		t.Error("edit should leave history browsing")
	}
}

func TestHistoryLoadedFromStore(t *testing.T) {
	store := &memoryHistory{loaded: []string{"old one", "old two"}}
	m := New(Options{Workdir: t.TempDir(), History: store, HistoryLimit: 10})
	if got := m.nav.Entries(); !reflect.DeepEqual(got, store.loaded) {
		t.Errorf("entries = %q", got)
	}
}

// ─── Generation ─────────────────────────────────────────────────────────────

func TestWriteCommandWritesFile(t *testing.T) {
	m, _, gen := newTestModel(t)
	m, cmd := dispatch(t, m, "/write out.txt make a haiku")

	if got := lastMessage(m).PlainText(); got != "⏳ Generating content for out.txt..." {
		t.Errorf("progress message = %q", got)
	}
	if !strings.Contains(m.renderStatusBar(), "Generating content for out.txt") {
		t.Error("status bar should show the generation")
	}
	if cmd == nil {
		t.Fatal("expected generation cmd")
	}

	m, _ = update(t, m, cmd())

	data, err := os.ReadFile(filepath.Join(m.opts.Workdir, "out.txt"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "haiku text" {
		t.Errorf("out.txt = %q, want %q", data, "haiku text")
	}
	if !reflect.DeepEqual(gen.prompts, []string{"make a haiku"}) {
		t.Errorf("prompts = %q", gen.prompts)
	}
	if got := lastMessage(m).PlainText(); got != "✅ Content successfully written to out.txt" {
		t.Errorf("result message = %q", got)
	}
	if len(m.generating) != 0 {
		t.Errorf("generating = %q, want empty", m.generating)
	}
}

func TestAppendCommandAppends(t *testing.T) {
	m, _, _ := newTestModel(t)
	path := filepath.Join(m.opts.Workdir, "notes", "log.md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, cmd := dispatch(t, m, "/append notes/log.md more please")
	m, _ = update(t, m, cmd())

	data, _ := os.ReadFile(path)
	if string(data) != "start\nhaiku text" {
		t.Errorf("log.md = %q", data)
	}
	if got := lastMessage(m).PlainText(); got != "✅ Content successfully appended to notes/log.md" {
		t.Errorf("result message = %q", got)
	}
}

func TestGenerationFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "stderr",
			err:  &generate.Failure{ExitCode: 0, Stderr: "quota exceeded\n"},
			want: "❌ Error generating content for out.txt. quota exceeded",
		},
		{
			name: "exit code",
			err:  &generate.Failure{ExitCode: 2},
			want: "❌ Error generating content for out.txt. Process exited with code 2",
		},
		{
			name: "start",
			err:  fmt.Errorf("%w: exec: not found", generate.ErrStart),
			want: "❌ Failed to start generation process for out.txt.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, gen := newTestModel(t)
			gen.err = tt.err

			m, cmd := dispatch(t, m, "/write out.txt make a haiku")
			m, _ = update(t, m, cmd())

			if got := lastMessage(m).PlainText(); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
			if _, err := os.Stat(filepath.Join(m.opts.Workdir, "out.txt")); !os.IsNotExist(err) {
				t.Error("target file should be untouched")
			}
		})
	}
}

func TestGenerationSaveError(t *testing.T) {
	m, _, _ := newTestModel(t)
	// A directory in the way makes the write fail.
	if err := os.Mkdir(filepath.Join(m.opts.Workdir, "out.txt"), 0o755); err != nil {
		t.Fatal(err)
	}
	m, cmd := dispatch(t, m, "/write out.txt make a haiku")
	m, _ = update(t, m, cmd())

	if got := lastMessage(m).PlainText(); !strings.HasPrefix(got, "❌ Error saving to out.txt: ") {
		t.Errorf("message = %q", got)
	}
}

// ─── Copy ───────────────────────────────────────────────────────────────────

func TestCopyLatestBlock(t *testing.T) {
	m, _, _ := newTestModel(t)
	var copied []string
	m.opts.Clipboard = func(text string) error {
		copied = append(copied, text)
		return nil
	}
	m, _ = update(t, m, backendChunkMsg{text: "```sh\nls -la\n```\n"})
	m, _ = update(t, m, backendChunkMsg{text: "```go\nfmt.Println()\n```\n"})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	if cmd == nil {
		t.Fatal("expected revert cmd")
	}
	if !reflect.DeepEqual(copied, []string{"fmt.Println()"}) {
		t.Errorf("copied = %q", copied)
	}
	node := m.chat.codeBlocks()[1]
	if node.Copy.Label() != view.LabelCopied {
		t.Errorf("label = %q, want %q", node.Copy.Label(), view.LabelCopied)
	}
	if !strings.Contains(m.chat.content(), "[#2 Copied!]") {
		t.Error("content should show the confirmation")
	}

	m, _ = update(t, m, copyRevertMsg{node: node, seq: 1})
	if node.Copy.Label() != view.LabelCopy {
		t.Errorf("label after revert = %q", node.Copy.Label())
	}

	m, _ = dispatch(t, m, "/copy 1")
	if !reflect.DeepEqual(copied, []string{"fmt.Println()", "ls -la"}) {
		t.Errorf("copied = %q", copied)
	}
}

func TestCopyErrors(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = dispatch(t, m, "/copy")
	if got := lastMessage(m).PlainText(); got != "No code blocks to copy." {
		t.Errorf("message = %q", got)
	}

	m.opts.Clipboard = func(string) error { return errors.New("no display") }
	m, _ = update(t, m, backendChunkMsg{text: "```\nx\n```\n"})
	m, _ = dispatch(t, m, "/copy 4")
	if got := lastMessage(m).PlainText(); got != "No code block #4." {
		t.Errorf("message = %q", got)
	}
	m, _ = dispatch(t, m, "/copy nope")
	if got := lastMessage(m).PlainText(); got != "Usage: /copy [n]" {
		t.Errorf("message = %q", got)
	}

	m, _ = dispatch(t, m, "/copy")
	if got := m.chat.codeBlocks()[0].Copy.Label(); got != view.LabelError {
		t.Errorf("label = %q, want %q", got, view.LabelError)
	}
}

// ─── /save, /git ────────────────────────────────────────────────────────────

func TestSaveSnippet(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, cmd := dispatch(t, m, "/save remember the port is 8080")
	m, _ = update(t, m, cmd())

	if got := lastMessage(m).PlainText(); got != "Context snippet saved!" {
		t.Errorf("message = %q", got)
	}
	data, err := os.ReadFile(filepath.Join(m.opts.Workdir, "memory.md"))
	if err != nil {
		t.Fatal(err)
	}
	want := "\n\n---\nContext saved at " + testClock.UTC().Format(time.RFC3339) + ":\nremember the port is 8080\n---\n"
	if string(data) != want {
		t.Errorf("memory.md = %q, want %q", data, want)
	}
}

func TestSaveLatestReply(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.opts.MemoryFile = filepath.Join(m.opts.Workdir, "ctx.md")

	m, _ = dispatch(t, m, "/save")
	if got := lastMessage(m).Kind; got != view.KindError {
		t.Errorf("save without a reply should fail, got %v", got)
	}

	m, _ = update(t, m, backendChunkMsg{text: "use port 8080\n"})
	m, cmd := dispatch(t, m, "/save")
	update(t, m, cmd())

	data, _ := os.ReadFile(m.opts.MemoryFile)
	if !strings.Contains(string(data), ":\nuse port 8080\n---\n") {
		t.Errorf("ctx.md = %q", data)
	}
}

func TestSaveSnippetError(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.opts.MemoryFile = filepath.Join(m.opts.Workdir, "missing", "memory.md")
	m, cmd := dispatch(t, m, "/save x")
	m, _ = update(t, m, cmd())
	if got := lastMessage(m).PlainText(); !strings.HasPrefix(got, "Error saving to memory.md: ") {
		t.Errorf("message = %q", got)
	}
}

func TestGitCommands(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, cmd := dispatch(t, m, "/git")
	m, _ = update(t, m, cmd())
	if got := lastMessage(m).PlainText(); got != "Git: (No Repo)" {
		t.Errorf("status = %q", got)
	}
	if !strings.Contains(m.View(), "Git: (No Repo)") {
		t.Error("status bar should show no repo")
	}

	m, cmd = dispatch(t, m, "/git init")
	m, _ = update(t, m, cmd())
	if got := lastMessage(m).PlainText(); got != "Git repository initialized successfully!" {
		t.Errorf("init = %q", got)
	}

	m, _ = update(t, m, refreshGit(m.opts.Workdir, false)())
	if !m.git.IsRepo || !strings.Contains(m.renderStatusBar(), "Status:") {
		t.Errorf("git = %+v", m.git)
	}

	m, cmd = dispatch(t, m, "/git init")
	m, _ = update(t, m, cmd())
	if got := lastMessage(m).PlainText(); !strings.HasPrefix(got, "Error initializing Git: ") {
		t.Errorf("second init = %q", got)
	}
}

func TestTranscriptRecordsMessages(t *testing.T) {
	log := &memoryTranscript{}
	m := New(Options{
		Workdir:    t.TempDir(),
		Backend:    &fakeBackend{events: make(chan backend.Event)},
		Transcript: log,
		SessionID:  "s1",
	})
	m, _ = dispatch(t, m, "hello")
	m, _ = update(t, m, backendChunkMsg{text: "hi "})
	m, _ = update(t, m, backendChunkMsg{text: "there\n"})
	dispatch(t, m, "/help")

	want := []string{
		"s1|info|App Initialized. Waiting for backend...",
		"s1|user|hello",
		"s1|assistant|hi there\n",
	}
	if !reflect.DeepEqual(log.entries, want) {
		t.Errorf("entries = %q, want %q", log.entries, want)
	}
}

func TestTranscriptKeepsUnterminatedReply(t *testing.T) {
	const tail = "s1|assistant|World"
	tests := []struct {
		name string
		end  func(t *testing.T, m Model) Model
	}{
		{"backend stopped", func(t *testing.T, m Model) Model {
			m, _ = update(t, m, backendStoppedMsg{reason: "exit status 1"})
			return m
		}},
		{"start failed", func(t *testing.T, m Model) Model {
			m, _ = update(t, m, backendStartFailedMsg{err: errors.New("boom")})
			return m
		}},
		{"clear", func(t *testing.T, m Model) Model {
			m, _ = dispatch(t, m, "/clear")
			return m
		}},
		{"quit", func(t *testing.T, m Model) Model {
			m, _ = dispatch(t, m, "/quit")
			return m
		}},
		{"ctrl+c", func(t *testing.T, m Model) Model {
			m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
			return m
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &memoryTranscript{}
			m := New(Options{
				Workdir:    t.TempDir(),
				Backend:    &fakeBackend{events: make(chan backend.Event)},
				Transcript: log,
				SessionID:  "s1",
			})
			m, _ = update(t, m, backendChunkMsg{text: "Hel"})
			m, _ = update(t, m, backendChunkMsg{text: "lo\n"})
			m, _ = update(t, m, backendChunkMsg{text: "World"})
			m = tt.end(t, m)

			var got []string
			for _, e := range log.entries {
				if strings.HasPrefix(e, "s1|assistant|") {
					got = append(got, e)
				}
			}
			want := []string{"s1|assistant|Hello\n", tail}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("assistant entries = %q, want %q", got, want)
			}

			// A second end of conversation does not record the reply again.
			m.flushOpen()
			if n := strings.Count(strings.Join(log.entries, "\n"), tail); n != 1 {
				t.Errorf("partial reply recorded %d times, want 1", n)
			}
		})
	}
}

// ─── Command menu ───────────────────────────────────────────────────────────

func TestMatchCommands(t *testing.T) {
	tests := []struct {
		prefix string
		want   []string
	}{
		{"/c", []string{"/clear", "/copy"}},
		{"/W", []string{"/write"}},
		{"/h", []string{"/help", "/hf"}},
		{"/zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			var got []string
			for _, c := range matchCommands(tt.prefix) {
				got = append(got, c.name)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("matchCommands(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}
	if len(matchCommands("/")) != len(slashCommands) {
		t.Error(`"/" should list every command`)
	}
}

func TestCommandMenuCompletes(t *testing.T) {
	m, be, _ := newTestModel(t)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/c")})
	if !m.cmdMenuOpen {
		t.Fatal("menu should open on /")
	}
	if !strings.Contains(m.View(), "/copy") {
		t.Error("view should list matching commands")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if got := m.input.Value(); got != "/copy " {
		t.Errorf("input = %q, want completion", got)
	}
	if len(be.sent) != 0 {
		t.Error("completion should not submit")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.cmdMenuOpen {
		t.Error("Esc should close the menu")
	}
}

func TestViewBeforeReady(t *testing.T) {
	m := New(Options{Workdir: t.TempDir()})
	if m.View() != "" {
		t.Error("view should be empty before the first window size")
	}
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if !strings.Contains(m.View(), "chatshell") {
		t.Error("view should show the welcome header")
	}
}
