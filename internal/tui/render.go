package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// ─── Welcome Screen ─────────────────────────────────────────────────────────

func renderWelcome(version, workdir string) string {
	title := logoMarkStyle.Render("❯❯") + " " + logoTitleStyle.Render("chatshell") + " " + versionStyle.Render("v"+version)

	dir := workdir
	if len(dir) > 48 {
		dir = "..." + dir[len(dir)-45:]
	}
	hint := welcomeHintStyle.Render("Type a message to chat, or /help for commands")

	return fmt.Sprintf("%s\n%s\n%s", title, dimStyle.Render(dir), hint)
}

// ─── Help ───────────────────────────────────────────────────────────────────

const helpMarkdown = `# Commands

| Command | Description |
|---|---|
| ` + "`/write <file> <prompt>`" + ` | Generate content and write it to a project file (overwrites) |
| ` + "`/append <file> <prompt>`" + ` | Generate content and append it to a project file |
| ` + "`/read <file>`" + ` | Ask the backend to read a project file for discussion |
| ` + "`/search <query>`" + ` | Ask the backend to run a web search |
| ` + "`/hf <query>`" + ` | Search the Hugging Face Hub |
| ` + "`/save [text]`" + ` | Save a context snippet to the memory file |
| ` + "`/git [init]`" + ` | Refresh git status, or initialise a repository |
| ` + "`/copy [n]`" + ` | Copy code block n (default: the latest) |
| ` + "`/clear`" + ` | Clear the chat display |
| ` + "`/help`" + ` | Show this help |
| ` + "`/quit`" + ` | Exit |

Typing ` + "`quit`, `exit` or `bye`" + ` ends the backend conversation.

# Keys

- **↑ / ↓** browse prompt history
- **PgUp / PgDn** scroll the transcript
- **ctrl+y** copy the latest code block
- **ctrl+c** quit
`

// renderHelp renders the help page with glamour. It falls back to the raw
// markdown when the renderer cannot be built.
func renderHelp(style string, width int) string {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(max(width-4, 20))}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		slog.Warn("help renderer unavailable", "style", style, "error", err)
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		slog.Warn("help render failed", "error", err)
		return helpMarkdown
	}
	return strings.Trim(out, "\n")
}

// ─── Markdown text ──────────────────────────────────────────────────────────
//
// Plain-text segments of assistant replies get light line-level markdown.
// Fenced code never reaches here; the segmenter splits it out first.

var (
	mdHeadingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	mdAccentStyle  = lipgloss.NewStyle().Foreground(colorOrange)
	mdQuoteStyle   = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
	mdBoldStyle    = lipgloss.NewStyle().Bold(true)
	mdCodeStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	mdLinkStyle    = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)
)

func renderMarkdownText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = renderMarkdownLine(line)
	}
	return strings.Join(lines, "\n")
}

func renderMarkdownLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return line
	}

	if strings.HasPrefix(trimmed, "#") {
		level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
		if level <= 6 && strings.HasPrefix(trimmed[level:], " ") {
			return mdHeadingStyle.Render(trimmed[level+1:])
		}
	}

	if trimmed == "---" || trimmed == "***" || trimmed == "___" {
		return separatorStyle.Render(strings.Repeat("─", 40))
	}

	if strings.HasPrefix(trimmed, "> ") {
		return mdAccentStyle.Render("│") + " " + mdQuoteStyle.Render(trimmed[2:])
	}

	pad := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

	if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
		return pad + mdAccentStyle.Render("•") + " " + renderInlineMarkdown(trimmed[2:])
	}

	if dot := strings.Index(trimmed, ". "); dot > 0 && dot <= 3 && isDigits(trimmed[:dot]) {
		return pad + mdAccentStyle.Render(trimmed[:dot]+".") + " " + renderInlineMarkdown(trimmed[dot+2:])
	}

	return renderInlineMarkdown(line)
}

// renderInlineMarkdown handles **bold**, `code` and [links](url).
func renderInlineMarkdown(text string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if strings.HasPrefix(text[i:], "**") {
			if end := strings.Index(text[i+2:], "**"); end > 0 {
				out.WriteString(mdBoldStyle.Render(text[i+2 : i+2+end]))
				i += 4 + end
				continue
			}
		}

		if text[i] == '`' {
			if end := strings.IndexByte(text[i+1:], '`'); end >= 0 {
				out.WriteString(mdCodeStyle.Render(text[i+1 : i+1+end]))
				i += 2 + end
				continue
			}
		}

		if text[i] == '[' {
			cb := strings.IndexByte(text[i:], ']')
			if cb > 1 && i+cb+1 < len(text) && text[i+cb+1] == '(' {
				if cp := strings.IndexByte(text[i+cb+1:], ')'); cp > 0 {
					out.WriteString(mdLinkStyle.Render(text[i+1 : i+cb]))
					out.WriteString(dimStyle.Render(" (" + text[i+cb+2:i+cb+1+cp] + ")"))
					i += cb + 1 + cp + 1
					continue
				}
			}
		}

		out.WriteByte(text[i])
		i++
	}
	return out.String()
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
