// Package view defines the display tree a presentation layer draws: message
// containers with a fixed metadata prefix and a body rebuilt on every render.
package view

import (
	"time"

	"chatshell-cli/internal/stream"
)

// ─── Container ──────────────────────────────────────────────────────────────

// Kind classifies a container for styling.
type Kind int

const (
	KindAssistant Kind = iota
	KindUser
	KindInfo
	KindError
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindAssistant:
		return "assistant"
	case KindUser:
		return "user"
	case KindInfo:
		return "info"
	case KindError:
		return "error"
	case KindHelp:
		return "help"
	}
	return "unknown"
}

// TimestampFormat renders the metadata clock, e.g. [14:03:27].
const TimestampFormat = "[15:04:05]"

// Container is the display element bound to one message.
type Container struct {
	ID   int
	Kind Kind

	prefix []Node
	body   []Node
}

// NewContainer builds a container whose prefix holds a timestamp and, when
// author is non-empty, an author label.
func NewContainer(id int, kind Kind, at time.Time, author string) *Container {
	c := &Container{ID: id, Kind: kind}
	c.prefix = append(c.prefix, MetaNode{Role: MetaTimestamp, Text: at.Format(TimestampFormat)})
	if author != "" {
		c.prefix = append(c.prefix, MetaNode{Role: MetaAuthor, Text: author})
	}
	return c
}

// Prefix returns the metadata nodes. They survive every render.
func (c *Container) Prefix() []Node { return c.prefix }

// Body returns the nodes produced by the latest render.
func (c *Container) Body() []Node { return c.body }

// Children returns prefix followed by body.
func (c *Container) Children() []Node {
	out := make([]Node, 0, len(c.prefix)+len(c.body))
	out = append(out, c.prefix...)
	return append(out, c.body...)
}

// CodeNodes returns the code blocks in the body, in order.
func (c *Container) CodeNodes() []*CodeNode {
	var out []*CodeNode
	for _, n := range c.body {
		if cn, ok := n.(*CodeNode); ok {
			out = append(out, cn)
		}
	}
	return out
}

// PlainText flattens the body back into text, fences included.
func (c *Container) PlainText() string {
	var out []byte
	for _, n := range c.body {
		switch n := n.(type) {
		case TextNode:
			out = append(out, n.Text...)
		case *CodeNode:
			out = append(out, "```"+n.Language+"\n"+n.Code+"\n```"...)
		}
	}
	return string(out)
}

// ─── Nodes ──────────────────────────────────────────────────────────────────

// Node is a display element. The set is closed: MetaNode, TextNode, *CodeNode.
type Node interface {
	node()
}

type MetaRole int

const (
	MetaTimestamp MetaRole = iota
	MetaAuthor
)

// MetaNode carries message metadata.
type MetaNode struct {
	Role MetaRole
	Text string
}

// TextNode carries literal text.
type TextNode struct {
	Text string
}

// CodeNode is a preformatted block tagged with its language, plus a copy
// control. Highlighting is left to the presentation layer.
type CodeNode struct {
	Language string
	Code     string
	Copy     *CopyControl
}

func (MetaNode) node()  {}
func (TextNode) node()  {}
func (*CodeNode) node() {}

// ─── Renderer ───────────────────────────────────────────────────────────────

// Renderer projects segments into a container, replacing whatever the
// previous render produced.
type Renderer interface {
	Render(c *Container, segments []stream.Segment)
}

// Surface is the scrollable area containers live in.
type Surface interface {
	ScrollToBottom()
}

// TreeRenderer is the default Renderer: it rebuilds the container body as a
// node tree and scrolls its surface.
type TreeRenderer struct {
	surface Surface
}

// NewTreeRenderer returns a renderer bound to surface. A nil surface is
// allowed for headless use.
func NewTreeRenderer(surface Surface) *TreeRenderer {
	return &TreeRenderer{surface: surface}
}

func (r *TreeRenderer) Render(c *Container, segments []stream.Segment) {
	body := make([]Node, 0, len(segments))
	for _, s := range segments {
		switch s.Kind {
		case stream.PlainText:
			body = append(body, TextNode{Text: s.Text})
		case stream.CodeBlock:
			body = append(body, &CodeNode{
				Language: s.Language,
				Code:     s.Code,
				Copy:     &CopyControl{},
			})
		}
	}
	c.body = body

	if r.surface != nil {
		r.surface.ScrollToBottom()
	}
}
