package view

import "github.com/atotto/clipboard"

// CopyState is the visible state of a copy control.
type CopyState int

const (
	CopyIdle CopyState = iota
	CopyDone
	CopyFailed
)

// Labels shown on a copy control.
const (
	LabelCopy   = "Copy"
	LabelCopied = "Copied!"
	LabelError  = "Error"
)

// WriteFunc writes text to a clipboard.
type WriteFunc func(text string) error

// SystemClipboard writes to the OS clipboard.
func SystemClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// CopyControl is the copy-to-clipboard affordance of a code block. After an
// activation it shows a confirmation until Revert is called with the token the
// activation returned; reverts from older activations are ignored.
type CopyControl struct {
	state CopyState
	seq   int
}

// Label returns the text the control currently shows.
func (c *CopyControl) Label() string {
	switch c.state {
	case CopyDone:
		return LabelCopied
	case CopyFailed:
		return LabelError
	}
	return LabelCopy
}

// State returns the current state.
func (c *CopyControl) State() CopyState { return c.state }

// Activate copies code verbatim using write and returns the token to pass to
// Revert once the confirmation delay has elapsed.
func (c *CopyControl) Activate(write WriteFunc, code string) (int, error) {
	c.seq++
	if err := write(code); err != nil {
		c.state = CopyFailed
		return c.seq, err
	}
	c.state = CopyDone
	return c.seq, nil
}

// Revert returns the control to its idle label if seq is the latest token.
func (c *CopyControl) Revert(seq int) {
	if seq == c.seq {
		c.state = CopyIdle
	}
}
