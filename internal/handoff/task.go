package handoff

import (
	"context"
	"fmt"
	"sync"
)

// State is a load task's lifecycle position. Transitions only move forward.
type State int32

const (
	StateNotStarted State = iota
	StateWaiting
	StateDecoding
	StateAttaching
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateWaiting:
		return "waiting"
	case StateDecoding:
		return "decoding"
	case StateAttaching:
		return "attaching"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Task is one in-flight load. There is no way to cancel it.
type Task struct {
	Name string

	mu      sync.Mutex
	state   State
	history []State
	err     error
	done    chan struct{}

	// Stack and TCB stay allocated after the task terminates.
	Stack *Block
	TCB   *Block
}

func newTask(name string) *Task {
	return &Task{
		Name:    name,
		state:   StateNotStarted,
		history: []State{StateNotStarted},
		done:    make(chan struct{}),
	}
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// History returns every state the task has been in, in order.
func (t *Task) History() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]State, len(t.history))
	copy(out, t.history)
	return out
}

// Done is closed when the task terminates.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the decoder error, if any. Only meaningful after Done.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task terminates or ctx ends. Giving up on ctx does
// not stop the task.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) advance(to State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if to <= t.state {
		panic(fmt.Sprintf("handoff: task %s cannot move from %s to %s", t.Name, t.state, to))
	}
	t.state = to
	t.history = append(t.history, to)
	if to == StateTerminated {
		close(t.done)
	}
}

func (t *Task) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}
