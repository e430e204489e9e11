package client

import (
	"context"
	"sync"
	"time"
)

type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of a session resolution. User and Expires are set
// only when Status is StatusAuthenticated.
type State struct {
	Status  Status
	User    *User
	Expires time.Time
}

// Task is one in-flight session resolution. It starts loading and moves to
// exactly one terminal status, or stays loading forever if cancelled first.
type Task struct {
	mu     sync.RWMutex
	state  State
	done   chan struct{}
	cancel context.CancelFunc
}

// Resolve starts reading the session in the background and returns
// immediately. The task lives until it finishes, ctx ends or Cancel is
// called.
func (c *Client) Resolve(ctx context.Context) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		state:  State{Status: StatusLoading},
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(t.done)
		defer cancel()

		st, err := c.fetch(ctx)
		if err != nil {
			return
		}

		t.mu.Lock()
		t.state = st
		t.mu.Unlock()
	}()

	return t
}

// State never blocks.
func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Done is closed once the task stops, whether it resolved or was cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task stops or ctx ends, then returns the current
// state. A cancelled task reports StatusLoading.
func (t *Task) Wait(ctx context.Context) (State, error) {
	select {
	case <-t.done:
		return t.State(), nil
	case <-ctx.Done():
		return t.State(), ctx.Err()
	}
}

func (t *Task) Cancel() {
	t.cancel()
}
