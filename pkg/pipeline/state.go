// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline

import (
	"fmt"
	"sync"
	"time"
)

type StepStatus int

const (
	StepUnknown StepStatus = iota
	StepPending
	StepResolving
	StepSubmitting
	StepConfirming
	StepCompleted
	StepSkipped
	StepFailed
	// StepExcluded marks steps whose tags are not active on the network.
	StepExcluded
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepResolving:
		return "resolving"
	case StepSubmitting:
		return "submitting"
	case StepConfirming:
		return "confirming"
	case StepCompleted:
		return "completed"
	case StepSkipped:
		return "skipped"
	case StepFailed:
		return "failed"
	case StepExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the step will not change state again.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepCompleted, StepSkipped, StepFailed, StepExcluded:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the step satisfies its dependents.
func (s StepStatus) IsSuccessful() bool {
	return s == StepCompleted || s == StepSkipped
}

func isAllowedTransition(from, to StepStatus) bool {
	switch from {
	case StepPending:
		return to == StepResolving || to == StepSkipped || to == StepExcluded
	case StepResolving:
		// read-only actions complete without a transaction
		return to == StepSubmitting || to == StepCompleted || to == StepFailed
	case StepSubmitting:
		return to == StepConfirming || to == StepFailed
	case StepConfirming:
		return to == StepCompleted || to == StepFailed
	default:
		return false
	}
}

type RunStatus int

const (
	RunPending RunStatus = iota
	RunRunning
	RunCompleted
	RunAborted
	RunCancelled
)

func (s RunStatus) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunAborted:
		return "aborted"
	case RunCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Transition is one observed step state change.
type Transition struct {
	StepID string
	From   StepStatus
	To     StepStatus
	At     time.Time
}

// stateTable holds every step's state and history for one run. Steps run
// concurrently, so all access goes through the mutex.
type stateTable struct {
	mu       sync.Mutex
	current  map[string]StepStatus
	history  map[string][]StepStatus
	observer func(Transition)
}

func newStateTable(ids []string, observer func(Transition)) *stateTable {
	t := &stateTable{
		current:  make(map[string]StepStatus, len(ids)),
		history:  make(map[string][]StepStatus, len(ids)),
		observer: observer,
	}
	for _, id := range ids {
		t.current[id] = StepPending
		t.history[id] = []StepStatus{StepPending}
	}
	return t
}

// transition moves id from one state to another, rejecting anything the
// state machine does not allow.
func (t *stateTable) transition(id string, from, to StepStatus) error {
	t.mu.Lock()
	cur, ok := t.current[id]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("unknown step in state: %q", id)
	}
	if cur != from {
		t.mu.Unlock()
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", id, from, cur)
	}
	if !isAllowedTransition(from, to) {
		t.mu.Unlock()
		return fmt.Errorf("disallowed transition for %q: %s -> %s", id, from, to)
	}
	t.current[id] = to
	t.history[id] = append(t.history[id], to)
	observer := t.observer
	t.mu.Unlock()

	if observer != nil {
		observer(Transition{StepID: id, From: from, To: to, At: time.Now()})
	}
	return nil
}

func (t *stateTable) get(id string) StepStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[id]
}

func (t *stateTable) historyOf(id string) []StepStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]StepStatus(nil), t.history[id]...)
}
