package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const fileMode = 0o644

// Write replaces the target's contents, creating parent directories.
func Write(t Target, content string) error {
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(t.Path, []byte(content), fileMode)
}

// Append adds content to the end of the target, creating it if needed.
func Append(t Target, content string) error {
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return appendFile(t.Path, content)
}

// SnippetTime is the timestamp layout used in saved snippets.
const SnippetTime = time.RFC3339

// FormatSnippet returns the block SaveSnippet appends.
func FormatSnippet(content string, now time.Time) string {
	return fmt.Sprintf("\n\n---\nContext saved at %s:\n%s\n---\n", now.UTC().Format(SnippetTime), content)
}

// SaveSnippet appends content to the memory file at path as a dated block.
func SaveSnippet(path, content string, now time.Time) error {
	return appendFile(path, FormatSnippet(content, now))
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
