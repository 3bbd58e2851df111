// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline

import (
	"github.com/luxfi/dexstack/pkg/registry"
)

type ActionKind int

const (
	ActionDeploy ActionKind = iota + 1
	ActionCall
	ActionResolve
)

func (k ActionKind) String() string {
	switch k {
	case ActionDeploy:
		return "deploy"
	case ActionCall:
		return "call"
	case ActionResolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// ArgsBuilder turns a registry snapshot into the concrete argument list of a
// constructor or method. The snapshot includes every artifact produced by the
// steps this one depends on.
type ArgsBuilder func(snap registry.Snapshot) ([]interface{}, error)

// Args is an ArgsBuilder returning fixed values.
func Args(values ...interface{}) ArgsBuilder {
	return func(registry.Snapshot) ([]interface{}, error) {
		return values, nil
	}
}

// Action is the on-chain work of a step.
type Action struct {
	Kind ActionKind
	// Contract is the compiled contract to deploy, or for Resolve the
	// contract whose ABI the produced artifact carries.
	Contract string
	// Target is the artifact a Call or Resolve is sent to.
	Target string
	Method string
	Args   ArgsBuilder
}

// Deploy creates contract with constructor arguments from args.
func Deploy(contract string, args ArgsBuilder) Action {
	return Action{Kind: ActionDeploy, Contract: contract, Args: args}
}

// Call sends a state-changing transaction to the target artifact.
func Call(target, method string, args ArgsBuilder) Action {
	return Action{Kind: ActionCall, Target: target, Method: method, Args: args}
}

// Resolve reads an address from the target artifact and records it as an
// artifact whose interface is that of contract. No transaction is sent.
func Resolve(target, method string, args ArgsBuilder, contract string) Action {
	return Action{Kind: ActionResolve, Target: target, Method: method, Args: args, Contract: contract}
}

// Step is one unit of a deployment plan.
type Step struct {
	ID string
	// Produces names the artifact a Deploy or Resolve records.
	Produces []string
	// Requires names artifacts that must exist before the step runs. The
	// target of a Call or Resolve is always required.
	Requires []string
	// After names steps that must finish first without an artifact between them.
	After  []string
	Tags   []string
	Action Action
}

// requirements is Requires plus the action target, without duplicates.
func (s Step) requirements() []string {
	out := make([]string, 0, len(s.Requires)+1)
	seen := map[string]struct{}{}
	for _, r := range s.Requires {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if s.Action.Target != "" {
		if _, ok := seen[s.Action.Target]; !ok {
			out = append(out, s.Action.Target)
		}
	}
	return out
}

func (s Step) output() string {
	if len(s.Produces) == 0 {
		return ""
	}
	return s.Produces[0]
}
