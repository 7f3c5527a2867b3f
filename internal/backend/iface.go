// Package backend runs the chat backend as a child process and exchanges
// UTF-8 text with it over stdio.
package backend

import (
	"errors"
	"fmt"
)

// ErrNotRunning is returned by Send when the process has exited or its input
// is closed.
var ErrNotRunning = errors.New("backend process is not running or input is closed")

// EventKind classifies an Event.
type EventKind int

const (
	// EventStdout carries a chunk of response text.
	EventStdout EventKind = iota
	// EventStderr carries a chunk of error text.
	EventStderr
	// EventExit reports that the process ended. It is always the last event.
	EventExit
	// EventStartFailed reports that the process could not be spawned. It is
	// always the last event.
	EventStartFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStdout:
		return "stdout"
	case EventStderr:
		return "stderr"
	case EventExit:
		return "exit"
	case EventStartFailed:
		return "start_failed"
	}
	return "unknown"
}

// Event is something the backend process produced.
type Event struct {
	Kind EventKind
	Text string // stdout or stderr chunk
	Code int    // exit code, -1 when killed by a signal
	Err  error  // start or wait error
}

// Reason describes a terminal event for display.
func (e Event) Reason() string {
	switch e.Kind {
	case EventExit:
		return fmt.Sprintf("process exited with code %d", e.Code)
	case EventStartFailed:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "process failed to start"
	}
	return ""
}

// Terminal reports whether no events follow this one.
func (e Event) Terminal() bool {
	return e.Kind == EventExit || e.Kind == EventStartFailed
}

// Backend is the chat transport the UI talks to.
type Backend interface {
	// Send writes line followed by a newline to the backend input.
	Send(line string) error
	// Search asks the backend to run a hub search for query.
	Search(query string) error
	// Events delivers output chunks and the terminal event. The channel is
	// closed after the terminal event.
	Events() <-chan Event
}
