// Package stream turns arbitrarily chunked backend output into discrete
// messages and splits message text into prose and fenced code.
// It has no dependency on any display library.
package stream

import (
	"fmt"
	"strings"
)

// ─── Accumulator ────────────────────────────────────────────────────────────

// Accumulator collects the chunks of one backend message.
type Accumulator struct {
	id           int
	fullText     string
	accumulating bool
}

// ID identifies the accumulator; display containers are keyed by it.
func (a *Accumulator) ID() int { return a.id }

// Text returns everything received for this message so far.
func (a *Accumulator) Text() string { return a.fullText }

// Accumulating reports whether more chunks are expected.
func (a *Accumulator) Accumulating() bool { return a.accumulating }

// ─── Framing ────────────────────────────────────────────────────────────────

// Framing decides where one message ends.
//
// Frame receives the open message text and the next chunk. It returns the new
// message text, whether the message is now complete, and any text that belongs
// to the following message.
type Framing interface {
	Name() string
	Frame(open, chunk string) (text string, done bool, rest string)
}

// NewlineFraming closes a message whenever a chunk contains a newline.
//
// This is a heuristic: backend chunking does not follow message boundaries,
// so multi-paragraph replies delivered in several chunks become several
// messages. Use SentinelFraming when the backend can mark message ends.
type NewlineFraming struct{}

func (NewlineFraming) Name() string { return FramingNewline }

func (NewlineFraming) Frame(open, chunk string) (string, bool, string) {
	return open + chunk, strings.Contains(chunk, "\n"), ""
}

// SentinelFraming closes a message at an explicit end marker. The marker is
// removed from the message text; a marker split across chunks is still found
// because the search runs over the accumulated text.
type SentinelFraming struct {
	Marker string
}

func (SentinelFraming) Name() string { return FramingSentinel }

func (f SentinelFraming) Frame(open, chunk string) (string, bool, string) {
	text := open + chunk
	i := strings.Index(text, f.Marker)
	if i < 0 {
		return text, false, ""
	}
	return text[:i], true, text[i+len(f.Marker):]
}

// Framing names accepted by NewFraming.
const (
	FramingNewline  = "newline"
	FramingSentinel = "sentinel"
)

// NewFraming resolves a configured framing name.
func NewFraming(name, marker string) (Framing, error) {
	switch name {
	case "", FramingNewline:
		return NewlineFraming{}, nil
	case FramingSentinel:
		if marker == "" {
			return nil, fmt.Errorf("sentinel framing requires an end marker")
		}
		return SentinelFraming{Marker: marker}, nil
	default:
		return nil, fmt.Errorf("unknown framing %q (want %q or %q)", name, FramingNewline, FramingSentinel)
	}
}

// ─── Detector ───────────────────────────────────────────────────────────────

// Update reports that a message changed. Final is true when the message was
// closed by this chunk and should get its final render.
type Update struct {
	Message *Accumulator
	Final   bool
}

// Detector routes chunks to the open accumulator, creating one when none is
// open. At most one accumulator is open at any time. It is not safe for
// concurrent use; callers feed it from a single event loop.
type Detector struct {
	framing  Framing
	current  *Accumulator
	messages []*Accumulator
	nextID   int
}

// NewDetector returns a detector using framing, or newline framing if nil.
func NewDetector(framing Framing) *Detector {
	if framing == nil {
		framing = NewlineFraming{}
	}
	return &Detector{framing: framing, nextID: 1}
}

// Feed consumes one chunk and returns the messages it touched, in order.
// Empty chunks are ignored.
func (d *Detector) Feed(chunk string) []Update {
	if chunk == "" {
		return nil
	}

	var updates []Update
	for {
		acc := d.open()
		text, done, rest := d.framing.Frame(acc.fullText, chunk)
		acc.fullText = text
		if done {
			acc.accumulating = false
			d.current = nil
		}
		updates = append(updates, Update{Message: acc, Final: done})

		if !done || rest == "" {
			return updates
		}
		chunk = rest
	}
}

// Current returns the open accumulator, or nil.
func (d *Detector) Current() *Accumulator { return d.current }

// Messages returns every accumulator created so far, oldest first.
func (d *Detector) Messages() []*Accumulator { return d.messages }

// Close ends the open accumulator without a boundary and returns it, or nil
// when none is open. The next chunk starts a new accumulator.
func (d *Detector) Close() *Accumulator {
	acc := d.current
	if acc == nil {
		return nil
	}
	acc.accumulating = false
	d.current = nil
	return acc
}

// Reset forgets all messages. The next chunk starts a new accumulator.
func (d *Detector) Reset() {
	d.current = nil
	d.messages = nil
}

func (d *Detector) open() *Accumulator {
	if d.current != nil {
		return d.current
	}
	acc := &Accumulator{id: d.nextID, accumulating: true}
	d.nextID++
	d.current = acc
	d.messages = append(d.messages, acc)
	return acc
}
