// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/luxfi/geth/common"
	luxlog "github.com/luxfi/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/luxfi/dexstack/pkg/chain"
	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/dexstack/pkg/contract"
	"github.com/luxfi/dexstack/pkg/models"
	"github.com/luxfi/dexstack/pkg/registry"
)

// ContractSource provides compiled contracts by name.
type ContractSource interface {
	Load(name string) (*contract.Contract, error)
}

type Options struct {
	// LockDir holds the per-network run locks. Processes sharing it cannot
	// run against the same network at once.
	LockDir string
	// PollInterval is the delay between confirmation checks.
	PollInterval time.Duration
	// OnTransition observes every step state change.
	OnTransition func(Transition)
	// Imports are recorded once the run lock is held, before pre-flight.
	Imports []Import
}

// Import is a contract deployed outside the plan that steps may depend on.
type Import struct {
	Name     string
	Address  common.Address
	Contract string
	ABI      json.RawMessage
}

// Pipeline executes deployment plans against one network.
type Pipeline struct {
	backend   chain.Backend
	registry  *registry.Registry
	contracts ContractSource
	log       luxlog.Logger
	opts      Options
}

func New(backend chain.Backend, reg *registry.Registry, contracts ContractSource, log luxlog.Logger, opts Options) *Pipeline {
	if log == nil {
		log = luxlog.Noop()
	}
	if opts.LockDir == "" {
		opts.LockDir = filepath.Join(os.TempDir(), constants.BaseDirName, constants.LocksDir)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.ConfirmationPollInterval
	}
	return &Pipeline{
		backend:   backend,
		registry:  reg,
		contracts: contracts,
		log:       log,
		opts:      opts,
	}
}

// run is the state of one Run call.
type run struct {
	*Pipeline
	id        string
	profile   models.NetworkProfile
	graph     *graph
	active    []bool
	loaded    map[string]*contract.Contract
	state     *stateTable
	results   []StepResult
	confirmer *chain.Confirmer
	log       luxlog.Logger
}

// Run executes steps against the network described by profile. Steps whose
// tags are not all active on the network are excluded. Plan problems are
// reported before anything is submitted. The first failing step aborts the
// run; artifacts confirmed before it stay in the registry. The returned
// report is never nil.
func (p *Pipeline) Run(ctx context.Context, steps []Step, profile models.NetworkProfile) (*Report, error) {
	profile = profile.WithDefaults()
	r := &run{
		Pipeline: p,
		id:       uuid.NewString(),
		profile:  profile,
	}
	r.log = p.log.New("run", r.id, "network", profile.Name)
	report := &Report{
		RunID:     r.id,
		Network:   profile.Name,
		NetworkID: profile.ChainID,
		Status:    RunRunning,
		StartedAt: time.Now(),
	}

	err := r.execute(ctx, steps, report)
	return r.finish(report, err)
}

func (r *run) finish(report *Report, err error) (*Report, error) {
	report.FinishedAt = time.Now()
	report.Registry = r.registry.Snapshot()
	if r.graph != nil && r.state != nil {
		report.Steps = make([]StepResult, len(r.graph.steps))
		for i, st := range r.graph.steps {
			res := r.results[i]
			res.StepID = st.ID
			res.Action = st.Action.Kind
			res.Artifact = st.output()
			res.Status = r.state.get(st.ID)
			res.History = r.state.historyOf(st.ID)
			report.Steps[i] = res
		}
	}
	switch {
	case err == nil:
		report.Status = RunCompleted
		r.log.Info("pipeline completed",
			luxlog.Int("completed", report.Count(StepCompleted)),
			luxlog.Int("skipped", report.Count(StepSkipped)),
			luxlog.Int("excluded", report.Count(StepExcluded)),
		)
		return report, nil
	case errors.Is(err, ErrCancelled):
		report.Status = RunCancelled
	default:
		report.Status = RunAborted
	}
	report.Err = err
	report.Kind = Classify(err)
	var se *StepError
	if errors.As(err, &se) {
		report.FailedStep = se.StepID
		report.Kind = se.Kind
	}
	r.log.Error("pipeline stopped",
		luxlog.Stringer("status", report.Status),
		luxlog.String("step", report.FailedStep),
		luxlog.String("kind", string(report.Kind)),
		luxlog.Err(err),
	)
	return report, err
}

func (r *run) execute(ctx context.Context, steps []Step, report *Report) error {
	if err := r.profile.Validate(); err != nil {
		return err
	}
	if r.profile.ChainID != r.registry.NetworkID() {
		return fmt.Errorf("%w: profile %s is chain %d, registry is %d",
			ErrNetworkMismatch, r.profile.Name, r.profile.ChainID, r.registry.NetworkID())
	}

	lock, err := registry.AcquireRunLock(r.opts.LockDir, r.profile.ChainID)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.log.Warn("failed to release run lock", luxlog.Err(err))
		}
	}()

	for _, imp := range r.opts.Imports {
		if err := r.registry.Import(ctx, imp.Name, imp.Address, imp.Contract, imp.ABI); err != nil {
			return fmt.Errorf("failed to import %s: %w", imp.Name, err)
		}
		r.log.Info("imported artifact", luxlog.String("artifact", imp.Name), luxlog.Stringer("address", imp.Address))
	}

	g, err := buildGraph(steps)
	if err != nil {
		return err
	}
	r.graph = g
	r.results = make([]StepResult, len(steps))
	for _, n := range g.topoOrder() {
		report.Order = append(report.Order, g.steps[n].ID)
	}

	ids := make([]string, len(steps))
	r.active = make([]bool, len(steps))
	for i, st := range steps {
		ids[i] = st.ID
		r.active[i] = r.profile.TagsActive(st.Tags)
	}
	r.state = newStateTable(ids, r.opts.OnTransition)

	if err := r.preflight(ctx); err != nil {
		return err
	}
	for i, st := range steps {
		if r.active[i] {
			continue
		}
		r.log.Info("step excluded by tags", luxlog.String("step", st.ID), luxlog.Strings("tags", st.Tags))
		if err := r.state.transition(st.ID, StepPending, StepExcluded); err != nil {
			return err
		}
	}

	r.confirmer = chain.NewConfirmer(r.backend, chain.ConfirmConfig{
		Confirmations:  r.profile.ConfirmationsRequired,
		Timeout:        r.profile.ConfirmationTimeout,
		Retries:        r.profile.Retries(),
		PollInterval:   r.opts.PollInterval,
		InitialBackoff: r.opts.PollInterval,
	}, r.log)

	parallel := r.profile.MaxParallel
	if parallel < 1 {
		parallel = 1
	}
	return r.runBatches(ctx, g.batches(r.active, parallel), parallel)
}

// preflight rejects plans that cannot complete, before any transaction.
func (r *run) preflight(ctx context.Context) error {
	if err := chain.CheckChainID(ctx, r.backend, r.profile.ChainID); err != nil {
		return err
	}
	snap := r.registry.Snapshot()
	r.loaded = map[string]*contract.Contract{}

	for i, st := range r.graph.steps {
		if !r.active[i] {
			continue
		}
		for _, name := range st.requirements() {
			if p, ok := r.graph.producer[name]; ok && r.active[p] {
				continue
			}
			if _, err := snap.Get(name); err == nil {
				continue
			}
			reason := "no step produces it"
			if p, ok := r.graph.producer[name]; ok {
				reason = fmt.Sprintf("its producer %s is excluded on %s", r.graph.steps[p].ID, r.profile.Name)
			}
			return stepError(st.ID, StepUnknown,
				fmt.Errorf("%w: %s requires %s, %s and the registry has none", ErrDependencyUnresolved, st.ID, name, reason))
		}

		a := st.Action
		if a.Kind == ActionDeploy || a.Kind == ActionResolve {
			c, err := r.loadContract(a.Contract)
			if err != nil {
				return stepError(st.ID, StepUnknown, err)
			}
			if a.Kind == ActionDeploy && !c.Deployable() {
				return stepError(st.ID, StepUnknown, fmt.Errorf("%w: %s", contract.ErrNotDeployable, c.Name))
			}
		}
		if a.Kind == ActionCall || a.Kind == ActionResolve {
			// targets deployed by this plan can be checked now
			p, ok := r.graph.producer[a.Target]
			if !ok || !r.active[p] || r.graph.steps[p].Action.Kind != ActionDeploy {
				continue
			}
			c, err := r.loadContract(r.graph.steps[p].Action.Contract)
			if err != nil {
				return stepError(st.ID, StepUnknown, err)
			}
			if _, ok := c.ABI.Methods[a.Method]; !ok {
				return stepError(st.ID, StepUnknown, fmt.Errorf("%w: %s.%s", contract.ErrUnknownMethod, c.Name, a.Method))
			}
		}
	}
	return nil
}

func (r *run) loadContract(name string) (*contract.Contract, error) {
	if c, ok := r.loaded[name]; ok {
		return c, nil
	}
	c, err := r.contracts.Load(name)
	if err != nil {
		return nil, err
	}
	r.loaded[name] = c
	return c, nil
}

// runBatches runs each batch to completion before starting the next. Within
// a batch at most parallel steps run at once. After a failure no new step
// starts, but steps already submitted are seen through.
func (r *run) runBatches(ctx context.Context, batches [][]int, parallel int) error {
	sem := semaphore.NewWeighted(int64(parallel))
	for _, batch := range batches {
		var (
			eg     errgroup.Group
			failed atomic.Bool
			errs   = make([]error, len(batch))
		)
		cancelled := false
		for i, n := range batch {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				cancelled = true
				break
			}
			if failed.Load() {
				sem.Release(1)
				break
			}
			st := r.graph.steps[n]
			eg.Go(func() error {
				defer sem.Release(1)
				// a started step finishes even if the run is cancelled
				err := r.runStep(context.WithoutCancel(ctx), n, st)
				if err != nil {
					failed.Store(true)
					errs[i] = err
				}
				return err
			})
		}
		_ = eg.Wait()
		// lowest declaration index wins when several steps fail together
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		if cancelled {
			return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
		}
	}
	return nil
}

// prepared is everything a step needs once its dependencies are resolved.
type prepared struct {
	// contract is what a Deploy creates or a Resolve records
	contract *contract.Contract
	// iface is the interface of a Call or Resolve target
	iface    *contract.Contract
	args     []interface{}
	encoded  []string
	payload  []byte
	hash     common.Hash
	target   common.Address
	done     bool
	existing registry.Artifact
}

func (r *run) prepare(st Step, snap registry.Snapshot) (*prepared, error) {
	for _, name := range st.requirements() {
		if _, err := snap.Get(name); err != nil {
			return nil, fmt.Errorf("%w: %s requires %s: %w", ErrDependencyUnresolved, st.ID, name, err)
		}
	}
	prep := &prepared{}
	if st.Action.Args != nil {
		args, err := st.Action.Args(snap)
		if err != nil {
			return nil, fmt.Errorf("failed to build arguments for %s: %w", st.ID, err)
		}
		prep.args = args
	}

	a := st.Action
	switch a.Kind {
	case ActionDeploy:
		c := r.loaded[a.Contract]
		code, err := c.CreationCode(prep.args...)
		if err != nil {
			return nil, err
		}
		encoded, err := c.EncodeArgs(prep.args...)
		if err != nil {
			return nil, err
		}
		prep.contract = c
		prep.payload = code
		prep.encoded = encoded
		prep.hash = contract.DeploymentHash(code)
		if r.registry.Exists(st.output(), prep.hash) {
			prep.done = true
			prep.existing, _ = snap.Get(st.output())
		}
	case ActionCall, ActionResolve:
		target, _ := snap.Get(a.Target)
		c, err := r.targetContract(target)
		if err != nil {
			return nil, err
		}
		calldata, err := c.PackMethod(a.Method, prep.args...)
		if err != nil {
			return nil, err
		}
		prep.iface = c
		prep.target = target.Address
		prep.payload = calldata
		prep.hash = contract.CallHash(target.Address, calldata)
		if a.Kind == ActionCall {
			prep.done = r.registry.Executed(st.ID, prep.hash)
			break
		}
		prep.contract = r.loaded[a.Contract]
		if r.registry.Exists(st.output(), prep.hash) {
			prep.done = true
			prep.existing, _ = snap.Get(st.output())
		}
	}
	return prep, nil
}

// targetContract returns the interface of an artifact, from its stored ABI
// or else from the compiled contract it was created from.
func (r *run) targetContract(target registry.Artifact) (*contract.Contract, error) {
	if len(target.ABI) > 0 {
		return contract.FromABI(target.Name, target.ABI)
	}
	if target.Contract != "" {
		return r.contracts.Load(target.Contract)
	}
	return nil, fmt.Errorf("%w: artifact %s has no interface", contract.ErrInvalidArtifact, target.Name)
}

func (r *run) runStep(ctx context.Context, n int, st Step) error {
	start := time.Now()
	res := &r.results[n]
	defer func() { res.Duration = time.Since(start) }()
	log := r.log.New("step", st.ID, "action", st.Action.Kind.String())

	prep, prepErr := r.prepare(st, r.registry.Snapshot())
	if prepErr == nil && prep.done {
		res.Address = prep.existing.Address
		log.Info("step skipped, already applied", luxlog.Stringer("hash", prep.hash))
		return r.state.transition(st.ID, StepPending, StepSkipped)
	}
	if err := r.state.transition(st.ID, StepPending, StepResolving); err != nil {
		return err
	}
	if prepErr != nil {
		return r.fail(st.ID, StepResolving, prepErr)
	}

	switch st.Action.Kind {
	case ActionDeploy:
		return r.deploy(ctx, st, prep, res, log)
	case ActionCall:
		return r.call(ctx, st, prep, res, log)
	default:
		return r.resolve(ctx, st, prep, res, log)
	}
}

func (r *run) deploy(ctx context.Context, st Step, prep *prepared, res *StepResult, log luxlog.Logger) error {
	if err := r.state.transition(st.ID, StepResolving, StepSubmitting); err != nil {
		return err
	}
	tx, addr, err := r.backend.Deploy(ctx, prep.payload)
	if err != nil {
		return r.fail(st.ID, StepSubmitting, chain.TransactionError(tx, err, "failed to deploy %s", prep.contract.Name))
	}
	res.TxHash = tx.Hash()
	log.Info("deployment submitted", luxlog.Stringer("tx", tx.Hash()), luxlog.Stringer("address", addr))

	if err := r.state.transition(st.ID, StepSubmitting, StepConfirming); err != nil {
		return err
	}
	receipt, err := r.confirmer.Wait(ctx, tx.Hash())
	if err != nil {
		return r.fail(st.ID, StepConfirming, chain.TransactionError(tx, err, "failed to confirm %s", prep.contract.Name))
	}
	if receipt.ContractAddress != (common.Address{}) {
		addr = receipt.ContractAddress
	}
	block := receipt.BlockNumber.Uint64()
	err = r.registry.Put(ctx, registry.Artifact{
		Name:            st.output(),
		Address:         addr,
		Contract:        prep.contract.Name,
		ABI:             prep.contract.RawABI,
		DeployedAtBlock: block,
		ConstructorArgs: prep.encoded,
		ArgsHash:        prep.hash,
		TxHash:          tx.Hash(),
		StepID:          st.ID,
	})
	if err != nil {
		return r.fail(st.ID, StepConfirming, err)
	}
	res.Address = addr
	res.Block = block
	log.Info("contract deployed", luxlog.String("artifact", st.output()), luxlog.Stringer("address", addr), luxlog.Uint64("block", block))
	return r.state.transition(st.ID, StepConfirming, StepCompleted)
}

func (r *run) call(ctx context.Context, st Step, prep *prepared, res *StepResult, log luxlog.Logger) error {
	if err := r.state.transition(st.ID, StepResolving, StepSubmitting); err != nil {
		return err
	}
	tx, err := r.backend.Transact(ctx, prep.target, prep.payload)
	if err != nil {
		return r.fail(st.ID, StepSubmitting, chain.TransactionError(tx, err, "failed to call %s.%s", st.Action.Target, st.Action.Method))
	}
	res.TxHash = tx.Hash()
	log.Info("call submitted", luxlog.Stringer("tx", tx.Hash()), luxlog.String("method", st.Action.Method))

	if err := r.state.transition(st.ID, StepSubmitting, StepConfirming); err != nil {
		return err
	}
	receipt, err := r.confirmer.Wait(ctx, tx.Hash())
	if err != nil {
		return r.fail(st.ID, StepConfirming, chain.TransactionError(tx, err, "failed to confirm %s.%s", st.Action.Target, st.Action.Method))
	}
	block := receipt.BlockNumber.Uint64()
	err = r.registry.RecordExecution(ctx, registry.Execution{
		StepID: st.ID,
		Hash:   prep.hash,
		TxHash: tx.Hash(),
		Block:  block,
	})
	if err != nil {
		return r.fail(st.ID, StepConfirming, err)
	}
	res.Address = prep.target
	res.Block = block
	return r.state.transition(st.ID, StepConfirming, StepCompleted)
}

func (r *run) resolve(ctx context.Context, st Step, prep *prepared, res *StepResult, log luxlog.Logger) error {
	a := st.Action
	out, err := r.backend.Call(ctx, prep.target, prep.payload)
	if err != nil {
		return r.fail(st.ID, StepResolving, fmt.Errorf("failed to call %s.%s: %w", a.Target, a.Method, err))
	}
	values, err := prep.iface.ABI.Unpack(a.Method, out)
	if err != nil {
		return r.fail(st.ID, StepResolving, fmt.Errorf("%w: %s.%s: %w", ErrResolveFailed, a.Target, a.Method, err))
	}
	var addr common.Address
	if len(values) > 0 {
		addr, _ = values[0].(common.Address)
	}
	if addr == (common.Address{}) {
		return r.fail(st.ID, StepResolving, fmt.Errorf("%w: %s.%s", ErrResolveFailed, a.Target, a.Method))
	}
	block, err := r.backend.BlockNumber(ctx)
	if err != nil {
		return r.fail(st.ID, StepResolving, fmt.Errorf("failed to get block number: %w", err))
	}
	err = r.registry.Put(ctx, registry.Artifact{
		Name:            st.output(),
		Address:         addr,
		Contract:        prep.contract.Name,
		ABI:             prep.contract.RawABI,
		DeployedAtBlock: block,
		ArgsHash:        prep.hash,
		StepID:          st.ID,
		Metadata:        map[string]string{"resolvedFrom": a.Target + "." + a.Method},
	})
	if err != nil {
		return r.fail(st.ID, StepResolving, err)
	}
	res.Address = addr
	res.Block = block
	log.Info("artifact resolved", luxlog.String("artifact", st.output()), luxlog.Stringer("address", addr))
	return r.state.transition(st.ID, StepResolving, StepCompleted)
}

func (r *run) fail(stepID string, phase StepStatus, err error) error {
	se := stepError(stepID, phase, err)
	if se.Kind == KindInternal && phase == StepSubmitting {
		se.Kind = KindSubmissionFailed
	}
	if terr := r.state.transition(stepID, phase, StepFailed); terr != nil {
		return errors.Join(se, terr)
	}
	return se
}
