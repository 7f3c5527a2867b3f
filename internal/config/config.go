package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	koanftoml "github.com/knadh/koanf/parsers/toml/v2"
	koanfenv "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"

	"chatshell-cli/internal/stream"
)

const (
	configDir         = ".chatshell"
	configFile        = "config.toml"
	ProjectConfigFile = ".chatshell.toml"
	envPrefix         = "CHATSHELL_"
)

// Config is the effective application configuration.
type Config struct {
	Workdir   string          `koanf:"workdir"`
	Backend   BackendConfig   `koanf:"backend"`
	Generator GeneratorConfig `koanf:"generator"`
	UI        UIConfig        `koanf:"ui"`
	History   HistoryConfig   `koanf:"history"`
	Storage   StorageConfig   `koanf:"storage"`
	Logging   LoggingConfig   `koanf:"logging"`
	Memory    MemoryConfig    `koanf:"memory"`
	Git       GitConfig       `koanf:"git"`
	Profile   string          `koanf:"-"`
}

// BackendConfig describes the long-running chat backend process.
type BackendConfig struct {
	Command      string            `koanf:"command"`
	Args         []string          `koanf:"args"`
	Env          map[string]string `koanf:"env"`
	Framing      string            `koanf:"framing"`    // "newline" or "sentinel"
	EndMarker    string            `koanf:"end_marker"` // sentinel framing only
	SearchPrefix string            `koanf:"search_prefix"`
}

// GeneratorConfig describes the one-shot helper behind /write and /append.
type GeneratorConfig struct {
	Command string            `koanf:"command"`
	Args    []string          `koanf:"args"`
	Env     map[string]string `koanf:"env"`
}

type UIConfig struct {
	AssistantLabel string        `koanf:"assistant_label"`
	CopyFeedback   time.Duration `koanf:"copy_feedback"`
	CodeStyle      string        `koanf:"code_style"`    // chroma style
	GlamourStyle   string        `koanf:"glamour_style"` // glamour standard style
	Markdown       bool          `koanf:"markdown"`
}

type HistoryConfig struct {
	Enabled    bool `koanf:"enabled"`
	MaxEntries int  `koanf:"max_entries"`
}

type StorageConfig struct {
	DatabasePath string `koanf:"database_path"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

type MemoryConfig struct {
	File string `koanf:"file"`
}

type GitConfig struct {
	Watch    bool          `koanf:"watch"`
	Debounce time.Duration `koanf:"debounce"`
}

// Default returns the built-in configuration.
func Default() Config {
	dataDir := filepath.Join(homeDir(), ".local", "share", "chatshell")
	return Config{
		Backend: BackendConfig{
			Command:      "python3",
			Args:         []string{"-u", "gemini_guy.py"},
			Env:          map[string]string{"PYTHONIOENCODING": "utf-8"},
			Framing:      stream.FramingNewline,
			SearchPrefix: "HF_SEARCH:::",
		},
		Generator: GeneratorConfig{
			Command: "python3",
			Args:    []string{"-u", "generate_once.py"},
			Env:     map[string]string{"PYTHONIOENCODING": "utf-8"},
		},
		UI: UIConfig{
			AssistantLabel: "Assistant:",
			CopyFeedback:   2 * time.Second,
			CodeStyle:      "monokai",
			GlamourStyle:   "dark",
			Markdown:       true,
		},
		History: HistoryConfig{Enabled: true, MaxEntries: 1000},
		Storage: StorageConfig{DatabasePath: filepath.Join(dataDir, "chatshell.sqlite")},
		Logging: LoggingConfig{Level: "info", File: filepath.Join(dataDir, "chatshell.log")},
		Memory:  MemoryConfig{File: "memory.md"},
		Git:     GitConfig{Watch: true, Debounce: 300 * time.Millisecond},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// UserConfigPath returns the user config file for profile.
func UserConfigPath(profile string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	filename := configFile
	if profile != "" {
		filename = fmt.Sprintf("config-%s.toml", profile)
	}
	return filepath.Join(home, configDir, filename), nil
}

// Load layers the defaults, the user file for profile, ./.chatshell.toml
// and CHATSHELL_ environment variables, later layers winning. Missing files
// are skipped; malformed ones are an error.
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	userPath, err := UserConfigPath(profile)
	if err != nil {
		return nil, err
	}
	for _, path := range []string{userPath, ProjectConfigFile} {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	}

	// CHATSHELL_BACKEND__END_MARKER sets backend.end_marker.
	if err := k.Load(koanfenv.Provider(".", koanfenv.Opt{
		Prefix:        envPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Profile = profile
	cfg.expandPaths()
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if strings.HasSuffix(key, ".args") {
		return key, strings.Fields(value)
	}
	return key, value
}

func (c *Config) expandPaths() {
	c.Workdir = expandHome(c.Workdir)
	c.Storage.DatabasePath = expandHome(c.Storage.DatabasePath)
	c.Logging.File = expandHome(c.Logging.File)
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}

// ResolveWorkdir returns the absolute working directory, defaulting to the
// current directory.
func (c *Config) ResolveWorkdir() (string, error) {
	dir := c.Workdir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot determine working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("working directory %s is not a directory", abs)
	}
	return abs, nil
}

// MemoryPath returns the memory file inside workdir unless it is absolute.
func (c *Config) MemoryPath(workdir string) string {
	if filepath.IsAbs(c.Memory.File) {
		return c.Memory.File
	}
	return filepath.Join(workdir, c.Memory.File)
}

func (c *Config) profileFlag() string {
	if c.Profile == "" {
		return ""
	}
	return " --profile " + c.Profile
}

// Validate reports settings the application cannot start with.
func (c *Config) Validate() error {
	if c.Backend.Command == "" {
		return fmt.Errorf("backend.command is empty. Run: chatshell%s config init", c.profileFlag())
	}
	if c.Generator.Command == "" {
		return fmt.Errorf("generator.command is empty. Run: chatshell%s config init", c.profileFlag())
	}
	if _, err := stream.NewFraming(c.Backend.Framing, c.Backend.EndMarker); err != nil {
		return fmt.Errorf("backend.framing: %w", err)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	if c.UI.CopyFeedback < 0 {
		return fmt.Errorf("ui.copy_feedback must not be negative")
	}
	return nil
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	k := koanf.New(".")
	for key, val := range c.flatten() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("setting %s: %w", key, err)
		}
	}
	data, err := k.Marshal(koanftoml.Parser())
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

func (c *Config) flatten() map[string]any {
	m := map[string]any{
		"backend.command":       c.Backend.Command,
		"backend.args":          toAnySlice(c.Backend.Args),
		"backend.env":           toAnyMap(c.Backend.Env),
		"backend.framing":       c.Backend.Framing,
		"backend.end_marker":    c.Backend.EndMarker,
		"backend.search_prefix": c.Backend.SearchPrefix,
		"generator.command":     c.Generator.Command,
		"generator.args":        toAnySlice(c.Generator.Args),
		"generator.env":         toAnyMap(c.Generator.Env),
		"ui.assistant_label":    c.UI.AssistantLabel,
		"ui.copy_feedback":      c.UI.CopyFeedback.String(),
		"ui.code_style":         c.UI.CodeStyle,
		"ui.glamour_style":      c.UI.GlamourStyle,
		"ui.markdown":           c.UI.Markdown,
		"history.enabled":       c.History.Enabled,
		"history.max_entries":   c.History.MaxEntries,
		"storage.database_path": c.Storage.DatabasePath,
		"logging.level":         c.Logging.Level,
		"logging.file":          c.Logging.File,
		"memory.file":           c.Memory.File,
		"git.watch":             c.Git.Watch,
		"git.debounce":          c.Git.Debounce.String(),
	}
	if c.Workdir != "" {
		m["workdir"] = c.Workdir
	}
	return m
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toAnyMap(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Save writes the configuration to the user file for its profile.
func (c *Config) Save() error {
	path, err := UserConfigPath(c.Profile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ListProfiles returns the profiles that have a user config file.
func ListProfiles() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot find home directory: %w", err)
	}
	entries, err := os.ReadDir(filepath.Join(home, configDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config directory: %w", err)
	}
	var profiles []string
	for _, e := range entries {
		name := e.Name()
		if name == configFile {
			profiles = append(profiles, "default")
			continue
		}
		if strings.HasPrefix(name, "config-") && strings.HasSuffix(name, ".toml") {
			profiles = append(profiles, strings.TrimSuffix(strings.TrimPrefix(name, "config-"), ".toml"))
		}
	}
	return profiles, nil
}

func ProfileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}
