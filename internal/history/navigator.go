// Package history implements prompt recall for the input line.
package history

// Navigator walks a list of submitted prompts. While browsing it remembers the
// draft the user was typing so it can be restored on the way back.
// Use NewNavigator; the zero value is not ready for use.
type Navigator struct {
	entries []string
	index   int // -1 when not browsing
	draft   string
	limit   int
}

// NewNavigator returns a navigator over entries, oldest first. Duplicates are
// dropped keeping the first occurrence. A positive limit caps the list,
// discarding the oldest entries.
func NewNavigator(entries []string, limit int) *Navigator {
	n := &Navigator{index: -1, limit: limit}
	for _, e := range entries {
		n.add(e)
	}
	return n
}

// Previous moves one entry back. current is saved as the draft when browsing
// starts. It returns the entry to display, or false if history is empty.
func (n *Navigator) Previous(current string) (string, bool) {
	if len(n.entries) == 0 {
		return "", false
	}
	switch {
	case n.index < 0:
		n.draft = current
		n.index = len(n.entries) - 1
	case n.index > 0:
		n.index--
	}
	return n.entries[n.index], true
}

// Next moves one entry forward. Stepping past the newest entry stops browsing
// and returns the saved draft. It returns false when not browsing.
func (n *Navigator) Next() (string, bool) {
	if n.index < 0 {
		return "", false
	}
	if n.index < len(n.entries)-1 {
		n.index++
		return n.entries[n.index], true
	}
	return n.Interrupt()
}

// Interrupt stops browsing and returns the saved draft. Call it before
// applying any edit other than navigation. It returns false when not browsing.
func (n *Navigator) Interrupt() (string, bool) {
	if n.index < 0 {
		return "", false
	}
	draft := n.draft
	n.index = -1
	n.draft = ""
	return draft, true
}

// Submit records text and stops browsing. It reports whether text was new.
func (n *Navigator) Submit(text string) bool {
	n.index = -1
	n.draft = ""
	return n.add(text)
}

// Browsing reports whether an entry is currently displayed.
func (n *Navigator) Browsing() bool { return n.index >= 0 }

// Index returns the browsing position, or -1.
func (n *Navigator) Index() int { return n.index }

// Entries returns a copy of the history, oldest first.
func (n *Navigator) Entries() []string {
	return append([]string(nil), n.entries...)
}

func (n *Navigator) add(text string) bool {
	if text == "" {
		return false
	}
	for _, e := range n.entries {
		if e == text {
			return false
		}
	}
	n.entries = append(n.entries, text)
	if n.limit > 0 && len(n.entries) > n.limit {
		n.entries = n.entries[len(n.entries)-n.limit:]
	}
	return true
}
