// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/dexstack/pkg/chain"
	"github.com/luxfi/dexstack/pkg/contract"
	"github.com/luxfi/dexstack/pkg/models"
	"github.com/luxfi/dexstack/pkg/pricemath"
	"github.com/luxfi/dexstack/pkg/registry"
)

var (
	ErrInvalidPlan          = errors.New("invalid deployment plan")
	ErrDependencyUnresolved = errors.New("dependency unresolved")
	ErrCyclicDependency     = errors.New("cyclic dependency")
	ErrResolveFailed        = errors.New("resolve returned no address")
	ErrNetworkMismatch      = errors.New("profile does not match registry network")
	ErrCancelled            = errors.New("pipeline cancelled")

	ErrTransactionReverted   = chain.ErrTransactionReverted
	ErrConfirmationTimeout   = chain.ErrConfirmationTimeout
	ErrPriceOutOfRange       = pricemath.ErrPriceOutOfRange
	ErrConcurrentRunConflict = registry.ErrConcurrentRunConflict
)

// ErrorKind names a failure class in reports.
type ErrorKind string

const (
	KindInvalidPlan           ErrorKind = "InvalidPlan"
	KindDependencyUnresolved  ErrorKind = "DependencyUnresolved"
	KindCyclicDependency      ErrorKind = "CyclicDependency"
	KindArgumentMismatch      ErrorKind = "ArgumentMismatch"
	KindArtifactMissing       ErrorKind = "ArtifactMissing"
	KindTransactionReverted   ErrorKind = "TransactionReverted"
	KindConfirmationTimeout   ErrorKind = "ConfirmationTimeout"
	KindPriceOutOfRange       ErrorKind = "PriceOutOfRange"
	KindConcurrentRunConflict ErrorKind = "ConcurrentRunConflict"
	KindNetworkMismatch       ErrorKind = "NetworkMismatch"
	KindResolveFailed         ErrorKind = "ResolveFailed"
	KindCancelled             ErrorKind = "Cancelled"
	KindSubmissionFailed      ErrorKind = "SubmissionFailed"
	KindInternal              ErrorKind = "Internal"
)

// Classify maps an error onto its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCyclicDependency):
		return KindCyclicDependency
	case errors.Is(err, ErrDependencyUnresolved), errors.Is(err, registry.ErrNotFound):
		return KindDependencyUnresolved
	case errors.Is(err, ErrTransactionReverted):
		return KindTransactionReverted
	case errors.Is(err, ErrConfirmationTimeout):
		return KindConfirmationTimeout
	case errors.Is(err, ErrPriceOutOfRange):
		return KindPriceOutOfRange
	case errors.Is(err, ErrConcurrentRunConflict):
		return KindConcurrentRunConflict
	case errors.Is(err, contract.ErrArgumentMismatch), errors.Is(err, contract.ErrUnknownMethod):
		return KindArgumentMismatch
	case errors.Is(err, contract.ErrArtifactNotFound), errors.Is(err, contract.ErrInvalidArtifact),
		errors.Is(err, contract.ErrNotDeployable), errors.Is(err, contract.ErrAmbiguousName):
		return KindArtifactMissing
	case errors.Is(err, ErrNetworkMismatch), errors.Is(err, chain.ErrChainIDMismatch):
		return KindNetworkMismatch
	case errors.Is(err, ErrResolveFailed):
		return KindResolveFailed
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrInvalidPlan), errors.Is(err, models.ErrInvalidProfile):
		return KindInvalidPlan
	default:
		return KindInternal
	}
}

// StepError reports which step failed, in which phase and why.
type StepError struct {
	StepID string
	Phase  StepStatus
	Kind   ErrorKind
	Err    error
}

func (e *StepError) Error() string {
	if e.Phase != StepUnknown {
		return fmt.Sprintf("step %s failed while %s (%s): %v", e.StepID, e.Phase, e.Kind, e.Err)
	}
	return fmt.Sprintf("step %s failed (%s): %v", e.StepID, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(stepID string, phase StepStatus, err error) *StepError {
	return &StepError{StepID: stepID, Phase: phase, Kind: Classify(err), Err: err}
}

// GraphError describes a malformed plan found before anything is submitted.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidPlan, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	msg := "cycle"
	if len(path) > 0 {
		msg = "cycle: " + strings.Join(path, " -> ")
	}
	return &GraphError{Kind: ErrCyclicDependency, Msg: msg}
}
