package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatshell-cli/internal/backend"
	"chatshell-cli/internal/config"
	"chatshell-cli/internal/display"
	"chatshell-cli/internal/storage"
	"chatshell-cli/internal/stream"
	"chatshell-cli/internal/tui"
	"chatshell-cli/internal/view"

	"al.essio.dev/pkg/shellescape"
	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	isatty "github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

var version = "0.1.0"

// Globals are the flags every command accepts.
type Globals struct {
	Profile string `help:"Configuration profile to use." placeholder:"NAME"`
	Debug   bool   `help:"Enable debug logging."`
	Workdir string `short:"C" help:"Work in this directory instead of the current one." placeholder:"DIR"`
}

// CLI is the command tree.
type CLI struct {
	Globals

	Run      runCmd      `cmd:"" default:"1" help:"Start the interactive chat (default)."`
	Ask      askCmd      `cmd:"" help:"Send one message to the backend and print the reply."`
	History  historyCmd  `cmd:"" help:"List saved prompts for the working directory."`
	Log      logCmd      `cmd:"" help:"Export the transcript of a chat session."`
	Config   configCmd   `cmd:"" help:"Show or create the configuration file."`
	Profiles profilesCmd `cmd:"" help:"List configuration profiles."`
	Version  versionCmd  `cmd:"" help:"Print the version."`
}

// streams carries the process output handles into commands.
type streams struct {
	out   io.Writer
	err   io.Writer
	color bool
}

func (s *streams) printer() *display.Printer {
	return display.NewPrinter(s.out, s.err, s.color)
}

func main() {
	s := &streams{
		out:   os.Stdout,
		err:   os.Stderr,
		color: os.Getenv("NO_COLOR") == "" && isatty.IsTerminal(os.Stdout.Fd()),
	}
	if err := execute(os.Args[1:], s); err != nil {
		s.printer().Error(err.Error())
		os.Exit(1)
	}
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("chatshell"),
		kong.Description("Terminal chat client for a line-oriented backend process."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
}

func execute(args []string, s *streams) error {
	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		return err
	}
	parser.Stdout = s.out
	parser.Stderr = s.err

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&cli.Globals, s)
}

// ─── run ─────────────────────────────────────────────────────────────────────

type runCmd struct{}

func (r *runCmd) Run(g *Globals, s *streams) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return errors.New("the chat needs an interactive terminal. Use `chatshell ask` from scripts")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var model tui.Model
	return withApp(ctx, g, []any{&model}, func(ctx context.Context) error {
		err := tui.Run(ctx, model)
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ─── ask ─────────────────────────────────────────────────────────────────────

type askCmd struct {
	Message []string      `arg:"" help:"Message to send."`
	Timeout time.Duration `help:"Give up when no reply arrives within this time. Zero waits forever." default:"0s"`
}

func (a *askCmd) Run(g *Globals, s *streams) error {
	var (
		cfg     *config.Config
		proc    *backend.Process
		framing stream.Framing
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, g, []any{&cfg, &proc, &framing}, func(ctx context.Context) error {
		if a.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.Timeout)
			defer cancel()
		}
		console := display.NewConsole(s.out, s.color, cfg.UI.CodeStyle)
		return ask(ctx, proc, framing, strings.Join(a.Message, " "), console, cfg.UI.AssistantLabel, s.err)
	})
}

// ask sends prompt and prints the first reply the backend completes. Error
// output is copied to errOut as it arrives. When the backend exits with a
// reply still open, the partial reply is printed.
func ask(ctx context.Context, b backend.Backend, framing stream.Framing, prompt string, r view.Renderer, label string, errOut io.Writer) error {
	if err := b.Send(prompt); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	detector := stream.NewDetector(framing)
	show := func(acc *stream.Accumulator) {
		c := view.NewContainer(acc.ID(), view.KindAssistant, time.Now(), label)
		r.Render(c, stream.Split(acc.Text()))
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("no reply from backend: %w", ctx.Err())

		case ev, ok := <-b.Events():
			if !ok {
				return errors.New("backend closed its output without replying")
			}
			switch ev.Kind {
			case backend.EventStdout:
				for _, u := range detector.Feed(ev.Text) {
					if u.Final {
						show(u.Message)
						return nil
					}
				}
			case backend.EventStderr:
				fmt.Fprint(errOut, ev.Text)
			default:
				if cur := detector.Current(); cur != nil && strings.TrimSpace(cur.Text()) != "" {
					show(cur)
					return nil
				}
				return fmt.Errorf("backend stopped before replying: %s", ev.Reason())
			}
		}
	}
}

// ─── history ─────────────────────────────────────────────────────────────────

type historyCmd struct {
	Limit int  `help:"Show at most this many prompts. Zero shows all." default:"20"`
	Clear bool `help:"Forget the saved prompts for the working directory."`
}

func (h *historyCmd) Run(g *Globals, s *streams) error {
	var (
		store *storage.HistoryStore
		wd    Workdir
	)
	return withApp(context.Background(), g, []any{&store, &wd}, func(context.Context) error {
		p := s.printer()
		if h.Clear {
			if err := store.Clear(); err != nil {
				return err
			}
			p.Success(fmt.Sprintf("Cleared prompt history for %s", wd))
			return nil
		}

		prompts, err := store.Load(h.Limit)
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			p.Warn(fmt.Sprintf("No saved prompts for %s", wd))
			return nil
		}
		p.Header(fmt.Sprintf("Prompt history (%d)", len(prompts)))
		width := len(fmt.Sprint(len(prompts)))
		for i, prompt := range prompts {
			p.Line(fmt.Sprintf("  %s  %s", p.Paint(display.Dim, fmt.Sprintf("%*d", width, i+1)), prompt))
		}
		return nil
	})
}

// ─── log ─────────────────────────────────────────────────────────────────────

type logCmd struct {
	Session string `help:"Session ID or unique prefix. Defaults to the latest session."`
	Format  string `help:"Output format: text, json or yaml." enum:"text,json,yaml" default:"text"`
	List    bool   `help:"List recorded sessions instead of exporting one."`
}

// sessionExport is the json and yaml shape of an exported session.
type sessionExport struct {
	Session storage.Session `json:"session" yaml:"session"`
	Entries []storage.Entry `json:"entries" yaml:"entries"`
}

func (l *logCmd) Run(g *Globals, s *streams) error {
	var tr *storage.Transcript
	return withApp(context.Background(), g, []any{&tr}, func(context.Context) error {
		p := s.printer()
		if l.List {
			sessions, err := tr.Sessions(0)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				p.Warn("No recorded sessions.")
				return nil
			}
			p.Header(fmt.Sprintf("Sessions (%d)", len(sessions)))
			for _, sess := range sessions {
				p.Line(fmt.Sprintf("  %s  %s  %s", sess.ID, p.Paint(display.Gray, display.FormatTime(sess.StartedAt)), sess.Workdir))
			}
			return nil
		}

		sess, err := findSession(tr, l.Session)
		if err != nil {
			return err
		}
		entries, err := tr.List(sess.ID)
		if err != nil {
			return err
		}
		return writeLog(s.out, p, sessionExport{Session: sess, Entries: entries}, l.Format)
	})
}

// sessionSource is the part of the transcript log findSession needs.
type sessionSource interface {
	Latest() (storage.Session, error)
	Sessions(limit int) ([]storage.Session, error)
}

func findSession(src sessionSource, id string) (storage.Session, error) {
	if id == "" {
		return src.Latest()
	}
	sessions, err := src.Sessions(0)
	if err != nil {
		return storage.Session{}, err
	}
	var matches []storage.Session
	for _, sess := range sessions {
		if sess.ID == id {
			return sess, nil
		}
		if strings.HasPrefix(sess.ID, id) {
			matches = append(matches, sess)
		}
	}
	switch len(matches) {
	case 0:
		return storage.Session{}, fmt.Errorf("no session matches %q", id)
	case 1:
		return matches[0], nil
	}
	return storage.Session{}, fmt.Errorf("session prefix %q is ambiguous (%d matches)", id, len(matches))
}

func writeLog(w io.Writer, p *display.Printer, export sessionExport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(export)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(export); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	p.Header("Session " + export.Session.ID)
	p.Info("Workdir:", export.Session.Workdir)
	p.Info("Started:", display.FormatTime(export.Session.StartedAt))
	p.Line("")
	if len(export.Entries) == 0 {
		p.Warn("No entries recorded.")
		return nil
	}
	for _, e := range export.Entries {
		stamp := p.Paint(display.Gray, e.CreatedAt.Format(view.TimestampFormat))
		p.Line(fmt.Sprintf("%s %s %s", stamp, p.KindLabel(e.Kind), e.Content))
	}
	return nil
}

// ─── config ──────────────────────────────────────────────────────────────────

type configCmd struct {
	Show configShowCmd `cmd:"" default:"1" help:"Print the effective configuration."`
	Init configInitCmd `cmd:"" help:"Write a configuration file with the defaults."`
}

type configShowCmd struct{}

func (c *configShowCmd) Run(g *Globals, s *streams) error {
	cfg, err := config.Load(g.Profile)
	if err != nil {
		return err
	}
	if g.Workdir != "" {
		cfg.Workdir = g.Workdir
	}
	path, err := config.UserConfigPath(g.Profile)
	if err != nil {
		return err
	}

	p := s.printer()
	p.Header("chatshell configuration")
	p.Info("Profile:", config.ProfileName(g.Profile))
	p.Info("Config file:", path)
	p.Info("Backend:", shellescape.QuoteCommand(append([]string{cfg.Backend.Command}, cfg.Backend.Args...)))
	p.Info("Generator:", shellescape.QuoteCommand(append([]string{cfg.Generator.Command}, cfg.Generator.Args...)))
	if err := cfg.Validate(); err != nil {
		p.Warn(err.Error())
	}
	p.Line("")

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	p.Line(strings.TrimRight(string(data), "\n"))
	return nil
}

type configInitCmd struct {
	Force bool `help:"Overwrite an existing file."`
}

func (c *configInitCmd) Run(g *Globals, s *streams) error {
	path, err := config.UserConfigPath(g.Profile)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists. Use --force to overwrite it", path)
	}

	cfg := config.Default()
	cfg.Profile = g.Profile
	if err := cfg.Save(); err != nil {
		return err
	}
	s.printer().Success("Wrote " + path)
	return nil
}

// ─── profiles ────────────────────────────────────────────────────────────────

type profilesCmd struct{}

func (c *profilesCmd) Run(g *Globals, s *streams) error {
	profiles, err := config.ListProfiles()
	if err != nil {
		return err
	}
	p := s.printer()
	if len(profiles) == 0 {
		p.Warn("No profiles yet. Run: chatshell config init")
		return nil
	}

	active := config.ProfileName(g.Profile)
	p.Header("Profiles")
	for _, name := range profiles {
		marker := "  "
		if name == active {
			marker = p.Paint(display.Green, "* ")
		}
		p.Line("  " + marker + name)
	}
	return nil
}

// ─── version ─────────────────────────────────────────────────────────────────

type versionCmd struct{}

func (v *versionCmd) Run(s *streams) error {
	fmt.Fprintf(s.out, "chatshell %s\n", version)
	return nil
}
