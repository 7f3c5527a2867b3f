package display

import (
	"fmt"
	"io"
	"strings"

	"chatshell-cli/internal/stream"
	"chatshell-cli/internal/view"
)

// Console is a view.Renderer for plain terminals. A terminal cannot replace
// text it already printed, so each Render prints the whole container; render
// once per finished message.
type Console struct {
	tree  *view.TreeRenderer
	out   io.Writer
	color bool
	style string
}

// NewConsole returns a console renderer. style names the chroma style used
// for code blocks when color is on.
func NewConsole(out io.Writer, color bool, style string) *Console {
	return &Console{tree: view.NewTreeRenderer(nil), out: out, color: color, style: style}
}

// Render rebuilds c from segments and prints it.
func (r *Console) Render(c *view.Container, segments []stream.Segment) {
	r.tree.Render(c, segments)
	fmt.Fprint(r.out, r.Format(c))
}

// Format returns the printed form of c.
func (r *Console) Format(c *view.Container) string {
	p := &Printer{color: r.color}
	var b strings.Builder

	var meta []string
	for _, n := range c.Prefix() {
		m, ok := n.(view.MetaNode)
		if !ok {
			continue
		}
		switch m.Role {
		case view.MetaTimestamp:
			meta = append(meta, p.Paint(Gray, m.Text))
		case view.MetaAuthor:
			meta = append(meta, p.Paint(Bold+Green, m.Text))
		}
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " "))
		b.WriteString("\n")
	}

	for _, n := range c.Body() {
		switch n := n.(type) {
		case view.TextNode:
			b.WriteString(n.Text)
		case *view.CodeNode:
			if !strings.HasSuffix(b.String(), "\n") && b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(p.Paint(Dim, "── "+n.Language+" ──"))
			b.WriteString("\n")
			if r.color {
				b.WriteString(Highlight(n.Code, n.Language, r.style))
			} else {
				b.WriteString(n.Code)
			}
			b.WriteString("\n")
			b.WriteString(p.Paint(Dim, "──"))
		}
	}

	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	return b.String()
}
