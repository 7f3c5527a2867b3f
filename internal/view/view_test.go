package view

import (
	"errors"
	"testing"
	"time"

	"chatshell-cli/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSurface struct {
	scrolls int
}

func (s *countingSurface) ScrollToBottom() { s.scrolls++ }

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestNewContainerPrefix(t *testing.T) {
	c := NewContainer(1, KindAssistant, fixedTime, "Assistant:")

	require.Len(t, c.Prefix(), 2)
	assert.Equal(t, MetaNode{Role: MetaTimestamp, Text: "[09:26:53]"}, c.Prefix()[0])
	assert.Equal(t, MetaNode{Role: MetaAuthor, Text: "Assistant:"}, c.Prefix()[1])
	assert.Empty(t, c.Body())

	info := NewContainer(2, KindInfo, fixedTime, "")
	assert.Len(t, info.Prefix(), 1)
}

func TestTreeRendererBuildsNodes(t *testing.T) {
	surface := &countingSurface{}
	r := NewTreeRenderer(surface)
	c := NewContainer(1, KindAssistant, fixedTime, "Assistant:")

	r.Render(c, stream.Split("a\n```js\nconsole.log(1)\n```\nb"))

	body := c.Body()
	require.Len(t, body, 3)
	assert.Equal(t, TextNode{Text: "a\n"}, body[0])

	code, ok := body[1].(*CodeNode)
	require.True(t, ok)
	assert.Equal(t, "js", code.Language)
	assert.Equal(t, "console.log(1)", code.Code)
	require.NotNil(t, code.Copy)
	assert.Equal(t, LabelCopy, code.Copy.Label())

	assert.Equal(t, TextNode{Text: "\nb"}, body[2])
	assert.Equal(t, 1, surface.scrolls)
}

func TestTreeRendererReplacesBodyKeepsPrefix(t *testing.T) {
	surface := &countingSurface{}
	r := NewTreeRenderer(surface)
	c := NewContainer(7, KindAssistant, fixedTime, "Assistant:")
	prefix := c.Prefix()

	r.Render(c, stream.Split("```py\nprint(1)"))
	require.Len(t, c.Body(), 1)
	assert.Equal(t, TextNode{Text: "```py\nprint(1)"}, c.Body()[0])

	r.Render(c, stream.Split("```py\nprint(1)\n```"))
	require.Len(t, c.Body(), 1)
	_, isCode := c.Body()[0].(*CodeNode)
	assert.True(t, isCode)

	assert.Equal(t, prefix, c.Prefix())
	assert.Len(t, c.Children(), 3)
	assert.Equal(t, 2, surface.scrolls)
}

func TestTreeRendererEmptySegments(t *testing.T) {
	r := NewTreeRenderer(nil)
	c := NewContainer(1, KindAssistant, fixedTime, "")
	r.Render(c, stream.Split("text"))
	r.Render(c, stream.Split(""))
	assert.Empty(t, c.Body())
}

func TestContainerPlainTextAndCodeNodes(t *testing.T) {
	r := NewTreeRenderer(nil)
	c := NewContainer(1, KindAssistant, fixedTime, "")
	src := "intro\n```go\nx := 1\n```\nmid\n```\ny\n```"
	r.Render(c, stream.Split(src))

	codes := c.CodeNodes()
	require.Len(t, codes, 2)
	assert.Equal(t, "go", codes[0].Language)
	assert.Equal(t, "plaintext", codes[1].Language)

	assert.Equal(t, "intro\n```go\nx := 1\n```\nmid\n```plaintext\ny\n```", c.PlainText())
}

func TestCopyControl(t *testing.T) {
	var copied string
	ok := func(s string) error { copied = s; return nil }
	fail := func(string) error { return errors.New("no clipboard") }

	t.Run("success then revert", func(t *testing.T) {
		c := &CopyControl{}
		seq, err := c.Activate(ok, "code\n")
		require.NoError(t, err)
		assert.Equal(t, "code\n", copied)
		assert.Equal(t, LabelCopied, c.Label())

		c.Revert(seq)
		assert.Equal(t, LabelCopy, c.Label())
	})

	t.Run("failure shows error", func(t *testing.T) {
		c := &CopyControl{}
		seq, err := c.Activate(fail, "x")
		assert.Error(t, err)
		assert.Equal(t, LabelError, c.Label())
		assert.Equal(t, CopyFailed, c.State())

		c.Revert(seq)
		assert.Equal(t, CopyIdle, c.State())
	})

	t.Run("stale revert ignored", func(t *testing.T) {
		c := &CopyControl{}
		first, _ := c.Activate(ok, "a")
		_, _ = c.Activate(ok, "b")

		c.Revert(first)
		assert.Equal(t, LabelCopied, c.Label())
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "assistant", KindAssistant.String())
	assert.Equal(t, "user", KindUser.String())
	assert.Equal(t, "error", KindError.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
