package pipeline

import (
	"fmt"
	"sync"
)

// ProcessState is the lifecycle state of a processor.
type ProcessState int

const (
	StateUninitialized ProcessState = iota
	StateAvailable
	StateDisposed
	StateError
)

var processStateNames = map[ProcessState]string{
	StateUninitialized: "Uninitialized",
	StateAvailable:     "Available",
	StateDisposed:      "Disposed",
	StateError:         "Error",
}

func (s ProcessState) String() string {
	if name, ok := processStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ProcessState(%d)", int(s))
}

// lifecycle guards the ProcessState transitions of a processor:
// Uninitialized -> Available -> Disposed, or -> Error.
type lifecycle struct {
	mu           sync.RWMutex
	state        ProcessState
	err          error
	initializing bool
}

func (l *lifecycle) State() ProcessState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Err returns the fault that moved the processor into StateError.
func (l *lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// initialize runs fn once and moves to Available, or to Error if fn fails.
// Re-entrant calls made while fn runs return nil without running it again.
func (l *lifecycle) initialize(name string, fn func() error) error {
	l.mu.Lock()
	switch {
	case l.initializing:
		l.mu.Unlock()
		return nil
	case l.state == StateAvailable:
		l.mu.Unlock()
		return nil
	case l.state == StateError:
		err := l.err
		l.mu.Unlock()
		return err
	case l.state == StateDisposed:
		l.mu.Unlock()
		return fmt.Errorf("processor %q is disposed", name)
	}
	l.initializing = true
	l.mu.Unlock()

	var err error
	if fn != nil {
		err = fn()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.initializing = false
	if err != nil {
		l.state = StateError
		l.err = fmt.Errorf("initializing processor %q: %w", name, err)
		return l.err
	}
	l.state = StateAvailable
	return nil
}

// dispose moves the processor to Disposed. It reports false when the
// processor was already disposed or is in Error, which is left untouched.
func (l *lifecycle) dispose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateDisposed || l.state == StateError {
		return false
	}
	l.state = StateDisposed
	return true
}
