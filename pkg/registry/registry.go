// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	luxlog "github.com/luxfi/log"
)

// Registry owns the artifacts and executions of one network for the lifetime
// of a pipeline run. Every write reaches the backing store before it becomes
// visible to readers.
type Registry struct {
	networkID uint64
	store     Store
	log       luxlog.Logger

	mu         sync.RWMutex
	artifacts  map[string]Artifact
	executions map[string]Execution
}

// Open loads the persisted state for networkID from store.
func Open(ctx context.Context, store Store, networkID uint64, log luxlog.Logger) (*Registry, error) {
	if log == nil {
		log = luxlog.Noop()
	}
	doc, err := store.Load(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry for network %d: %w", networkID, err)
	}
	r := &Registry{
		networkID:  networkID,
		store:      store,
		log:        log.New("networkId", networkID),
		artifacts:  doc.Artifacts,
		executions: doc.Executions,
	}
	r.log.Debug("registry opened",
		luxlog.Int("artifacts", len(r.artifacts)),
		luxlog.Int("executions", len(r.executions)),
	)
	return r, nil
}

func (r *Registry) NetworkID() uint64 {
	return r.networkID
}

// Put stores or supersedes the artifact called name.
func (r *Registry) Put(ctx context.Context, artifact Artifact) error {
	if artifact.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidArtifact)
	}
	if artifact.Address == (common.Address{}) {
		return fmt.Errorf("%w: %s has zero address", ErrInvalidArtifact, artifact.Name)
	}
	switch artifact.NetworkID {
	case 0:
		artifact.NetworkID = r.networkID
	case r.networkID:
	default:
		return fmt.Errorf("%w: %s is for network %d, registry is %d",
			ErrNetworkMismatch, artifact.Name, artifact.NetworkID, r.networkID)
	}
	if artifact.RecordedAt.IsZero() {
		artifact.RecordedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.PutArtifact(ctx, r.networkID, artifact); err != nil {
		return fmt.Errorf("failed to persist artifact %s: %w", artifact.Name, err)
	}
	if prev, ok := r.artifacts[artifact.Name]; ok && prev.Address != artifact.Address {
		r.log.Info("artifact superseded",
			luxlog.String("name", artifact.Name),
			luxlog.Stringer("previous", prev.Address),
			luxlog.Stringer("address", artifact.Address),
		)
	}
	r.artifacts[artifact.Name] = artifact
	return nil
}

// Get returns the artifact called name or ErrNotFound.
func (r *Registry) Get(name string) (Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[name]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s on network %d", ErrNotFound, name, r.networkID)
	}
	return a, nil
}

// Exists reports whether name was deployed with the given bytecode and args hash.
func (r *Registry) Exists(name string, argsHash common.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[name]
	return ok && a.ArgsHash == argsHash
}

// RecordExecution persists a confirmed call.
func (r *Registry) RecordExecution(ctx context.Context, execution Execution) error {
	if execution.StepID == "" {
		return fmt.Errorf("%w: execution without step id", ErrInvalidArtifact)
	}
	if execution.RecordedAt.IsZero() {
		execution.RecordedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.PutExecution(ctx, r.networkID, execution); err != nil {
		return fmt.Errorf("failed to persist execution %s: %w", execution.StepID, err)
	}
	r.executions[execution.StepID] = execution
	return nil
}

// Executed reports whether stepID already ran with the given call hash.
func (r *Registry) Executed(stepID string, hash common.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executions[stepID]
	return ok && e.Hash == hash
}

// Import records externally deployed contracts. An existing artifact with the
// same address is left untouched.
func (r *Registry) Import(ctx context.Context, name string, address common.Address, contract string, abi json.RawMessage) error {
	if existing, err := r.Get(name); err == nil && existing.Address == address {
		return nil
	}
	return r.Put(ctx, Artifact{
		Name:     name,
		Address:  address,
		Contract: contract,
		ABI:      abi,
		Imported: true,
	})
}

// Clear drops every artifact and execution of this network.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Clear(ctx, r.networkID); err != nil {
		return err
	}
	r.artifacts = map[string]Artifact{}
	r.executions = map[string]Execution{}
	return nil
}

// Snapshot returns a point-in-time copy safe to hand to argument builders.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		NetworkID: r.networkID,
		Artifacts: make(map[string]Artifact, len(r.artifacts)),
	}
	for name, a := range r.artifacts {
		snap.Artifacts[name] = a
	}
	return snap
}

// Snapshot is an immutable view of a registry.
type Snapshot struct {
	NetworkID uint64
	Artifacts map[string]Artifact
}

func (s Snapshot) Get(name string) (Artifact, error) {
	a, ok := s.Artifacts[name]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s on network %d", ErrNotFound, name, s.NetworkID)
	}
	return a, nil
}

// Address returns the address of name or ErrNotFound.
func (s Snapshot) Address(name string) (common.Address, error) {
	a, err := s.Get(name)
	if err != nil {
		return common.Address{}, err
	}
	return a.Address, nil
}

// Names returns the artifact names in sorted order.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.Artifacts))
	for name := range s.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Addresses maps artifact names to addresses, the part of a snapshot that
// identifies a deployment.
func (s Snapshot) Addresses() map[string]common.Address {
	out := make(map[string]common.Address, len(s.Artifacts))
	for name, a := range s.Artifacts {
		out[name] = a.Address
	}
	return out
}
