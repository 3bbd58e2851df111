// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline

import (
	"time"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/dexstack/pkg/registry"
)

// StepResult is the outcome of one step in a run.
type StepResult struct {
	StepID   string
	Action   ActionKind
	Status   StepStatus
	History  []StepStatus
	Artifact string
	Address  common.Address
	TxHash   common.Hash
	Block    uint64
	Err      error
	Duration time.Duration
}

// Report describes a finished run, successful or not.
type Report struct {
	RunID      string
	Network    string
	NetworkID  uint64
	Status     RunStatus
	Order      []string
	Steps      []StepResult
	FailedStep string
	Kind       ErrorKind
	Err        error
	Registry   registry.Snapshot
	StartedAt  time.Time
	FinishedAt time.Time
}

// Result returns the result of stepID.
func (r *Report) Result(stepID string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.StepID == stepID {
			return s, true
		}
	}
	return StepResult{}, false
}

// Count returns how many steps ended in status.
func (r *Report) Count(status StepStatus) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Submitted counts steps that sent a transaction.
func (r *Report) Submitted() int {
	n := 0
	for _, s := range r.Steps {
		if s.TxHash != (common.Hash{}) {
			n++
		}
	}
	return n
}
