package tui

import (
	"fmt"
	"strings"
	"time"

	"chatshell-cli/internal/display"
	"chatshell-cli/internal/stream"
	"chatshell-cli/internal/view"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/muesli/reflow/wordwrap"
)

// chatView is the scrollable transcript. It owns the containers and is both
// the view.Renderer the model draws through and the view.Surface that
// renderer scrolls; every scroll re-projects the containers into the
// viewport.
type chatView struct {
	viewport   viewport.Model
	header     string
	containers []*view.Container
	nextID     int
	codeStyle  string
	markdown   bool

	tree  *view.TreeRenderer
	cache map[*view.Container]renderedContainer
}

// renderedContainer is the styled text of a container together with the
// inputs it was drawn from.
type renderedContainer struct {
	firstBlock int
	copies     string
	text       string
}

func newChatView(codeStyle string, markdown bool) *chatView {
	c := &chatView{
		viewport:  viewport.New(80, 20),
		nextID:    1,
		codeStyle: codeStyle,
		markdown:  markdown,
		cache:     make(map[*view.Container]renderedContainer),
	}
	c.tree = view.NewTreeRenderer(c)
	return c
}

// Render implements view.Renderer. Only the container being rendered is
// styled again; the rest of the transcript comes from the cache.
func (c *chatView) Render(ct *view.Container, segments []stream.Segment) {
	delete(c.cache, ct)
	c.tree.Render(ct, segments)
}

// setSize resizes the viewport. Only a width change re-wraps the transcript.
func (c *chatView) setSize(width, height int) {
	height = max(height, 1)
	rewrap := width != c.viewport.Width
	c.viewport.Width = width
	c.viewport.Height = height
	if rewrap {
		clear(c.cache)
		c.refresh()
	}
}

// add appends an empty container.
func (c *chatView) add(kind view.Kind, at time.Time, author string) *view.Container {
	ct := view.NewContainer(c.nextID, kind, at, author)
	c.nextID++
	c.containers = append(c.containers, ct)
	return ct
}

func (c *chatView) clear() {
	c.header = ""
	c.containers = nil
	clear(c.cache)
	c.refresh()
}

// ScrollToBottom implements view.Surface.
func (c *chatView) ScrollToBottom() {
	c.refresh()
	c.viewport.GotoBottom()
}

// refresh re-projects the transcript without moving the scroll position.
func (c *chatView) refresh() {
	c.viewport.SetContent(c.content())
}

// codeBlocks returns every code block in the transcript, numbered from 1 in
// display order.
func (c *chatView) codeBlocks() []*view.CodeNode {
	var out []*view.CodeNode
	for _, ct := range c.containers {
		out = append(out, ct.CodeNodes()...)
	}
	return out
}

// lastAssistant returns the newest assistant container, or nil.
func (c *chatView) lastAssistant() *view.Container {
	for i := len(c.containers) - 1; i >= 0; i-- {
		if c.containers[i].Kind == view.KindAssistant {
			return c.containers[i]
		}
	}
	return nil
}

func (c *chatView) content() string {
	var b strings.Builder
	b.WriteString(c.header)
	block := 0
	for _, ct := range c.containers {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.cached(ct, &block))
	}
	return b.String()
}

// cached returns the styled container, drawing it again when its first
// block number or any copy label changed since it was cached.
func (c *chatView) cached(ct *view.Container, block *int) string {
	first := *block
	nodes := ct.CodeNodes()
	*block += len(nodes)

	copies := make([]byte, len(nodes))
	for i, n := range nodes {
		copies[i] = byte('0' + n.Copy.State())
	}

	r, ok := c.cache[ct]
	if ok && r.firstBlock == first && r.copies == string(copies) {
		return r.text
	}
	n := first
	r = renderedContainer{firstBlock: first, copies: string(copies), text: c.renderContainer(ct, &n)}
	c.cache[ct] = r
	return r.text
}

func (c *chatView) renderContainer(ct *view.Container, block *int) string {
	width := max(c.viewport.Width-1, 20)

	var head []string
	for _, n := range ct.Prefix() {
		m, ok := n.(view.MetaNode)
		if !ok {
			continue
		}
		switch m.Role {
		case view.MetaTimestamp:
			head = append(head, timestampStyle.Render(m.Text))
		case view.MetaAuthor:
			head = append(head, authorStyle.Render(m.Text))
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(head, " "))

	for i, n := range ct.Body() {
		switch n := n.(type) {
		case view.TextNode:
			text := n.Text
			if i == 0 {
				if ct.Kind == view.KindHelp || (ct.Kind == view.KindAssistant && strings.Contains(strings.TrimRight(text, "\n"), "\n")) {
					b.WriteString("\n")
				} else {
					b.WriteString(" ")
				}
			}
			b.WriteString(wordwrap.String(c.styleText(ct.Kind, text), width))
		case *view.CodeNode:
			*block++
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
			b.WriteString(codeLabelStyle.Render("── " + n.Language + " ──"))
			b.WriteString(" ")
			b.WriteString(copyLabel(*block, n.Copy))
			b.WriteString("\n")
			b.WriteString(display.Highlight(n.Code, n.Language, c.codeStyle))
			b.WriteString("\n")
			b.WriteString(codeLabelStyle.Render("──"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *chatView) styleText(kind view.Kind, text string) string {
	switch kind {
	case view.KindAssistant:
		if c.markdown {
			return renderMarkdownText(text)
		}
		return text
	case view.KindUser:
		return userMsgStyle.Render(text)
	case view.KindInfo:
		return infoMsgStyle.Render(text)
	case view.KindError:
		return errorMsgStyle.Render(text)
	}
	return text
}

func copyLabel(n int, ctl *view.CopyControl) string {
	label := fmt.Sprintf("[#%d %s]", n, ctl.Label())
	switch ctl.State() {
	case view.CopyDone:
		return copiedLabelStyle.Render(label)
	case view.CopyFailed:
		return errorMsgStyle.Render(label)
	}
	return copyLabelStyle.Render(label)
}
