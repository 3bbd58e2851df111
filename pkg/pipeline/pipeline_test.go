// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline_test

import (
	"bytes"
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/luxfi/geth/common"
	ginkgo "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/luxfi/dexstack/internal/mocks"
	"github.com/luxfi/dexstack/pkg/contract"
	"github.com/luxfi/dexstack/pkg/pipeline"
	"github.com/luxfi/dexstack/pkg/registry"
)

var _ = ginkgo.Describe("Pipeline.Run", func() {
	var (
		ctx       context.Context
		fake      *mocks.Chain
		store     registry.Store
		reg       *registry.Registry
		contracts contractSet
		lockDir   string
		newRun    func(opts pipeline.Options) *pipeline.Pipeline
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		fake = mocks.NewChain(testChainID)
		store = newStore()
		reg = newRegistry(store)
		contracts = testContracts()
		lockDir = ginkgo.GinkgoT().TempDir()
		newRun = func(opts pipeline.Options) *pipeline.Pipeline {
			opts.LockDir = lockDir
			opts.PollInterval = time.Millisecond
			return pipeline.New(fake, reg, contracts, nil, opts)
		}
	})

	ginkgo.Context("idempotence", func() {
		ginkgo.It("skips every step on an unchanged re-run", func() {
			steps := chainOfFive()

			first, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(first.Status).Should(gomega.Equal(pipeline.RunCompleted))
			gomega.Expect(first.Count(pipeline.StepCompleted)).Should(gomega.Equal(5))
			gomega.Expect(fake.Deployments()).Should(gomega.Equal(5))

			// a fresh registry over the same store sees the persisted state
			reg = newRegistry(store)
			second, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(second.Count(pipeline.StepSkipped)).Should(gomega.Equal(5))
			gomega.Expect(second.Submitted()).Should(gomega.Equal(0))
			gomega.Expect(fake.Deployments()).Should(gomega.Equal(5))
			gomega.Expect(cmp.Diff(first.Registry.Addresses(), second.Registry.Addresses())).Should(gomega.BeEmpty())
		})

		ginkgo.It("redeploys when constructor arguments change", func() {
			steps := []pipeline.Step{
				{ID: "token", Produces: []string{"T"}, Action: pipeline.Deploy("Token", pipeline.Args("Ether", "ETH"))},
			}
			_, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			before, err := reg.Get("T")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			steps[0].Action = pipeline.Deploy("Token", pipeline.Args("Wrapped Ether", "WETH"))
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(report.Count(pipeline.StepCompleted)).Should(gomega.Equal(1))

			after, err := reg.Get("T")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(after.Address).ShouldNot(gomega.Equal(before.Address))
			gomega.Expect(after.ConstructorArgs).Should(gomega.HaveLen(2))
		})

		ginkgo.It("records calls and skips them on re-run", func() {
			steps := []pipeline.Step{
				{ID: "deploy-token", Produces: []string{"T"}, Action: pipeline.Deploy("Token", pipeline.Args("USDC", "USDC"))},
				{ID: "mint", Action: pipeline.Call("T", "mint", pipeline.Args(tokenOwner, big.NewInt(1000)))},
			}
			_, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(fake.Submissions()).Should(gomega.HaveLen(2))

			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(report.Count(pipeline.StepSkipped)).Should(gomega.Equal(2))
			gomega.Expect(fake.Submissions()).Should(gomega.HaveLen(2))
		})
	})

	ginkgo.Context("ordering", func() {
		ginkgo.It("runs producers before consumers regardless of declaration order", func() {
			var seenWhenBuilding []string
			steps := []pipeline.Step{
				{
					ID: "box", Produces: []string{"B"}, Requires: []string{"A"},
					Action: pipeline.Deploy("Box", func(snap registry.Snapshot) ([]interface{}, error) {
						seenWhenBuilding = snap.Names()
						return addressOf("A")(snap)
					}),
				},
				{ID: "leaf", Produces: []string{"A"}, Action: pipeline.Deploy("Leaf", nil)},
			}
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(report.Order).Should(gomega.Equal([]string{"leaf", "box"}))
			gomega.Expect(seenWhenBuilding).Should(gomega.ContainElement("A"))
		})

		ginkgo.It("keeps declaration order among independent steps", func() {
			steps := []pipeline.Step{
				{ID: "t1", Produces: []string{"T1"}, Action: pipeline.Deploy("Token", pipeline.Args("One", "ONE"))},
				{ID: "b", Produces: []string{"B"}, Requires: []string{"T1"}, Action: pipeline.Deploy("Box", addressOf("T1"))},
				{ID: "t2", Produces: []string{"T2"}, Action: pipeline.Deploy("Token", pipeline.Args("Two", "TWO"))},
			}
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(report.Order).Should(gomega.Equal([]string{"t1", "b", "t2"}))

			subs := fake.Submissions()
			gomega.Expect(subs).Should(gomega.HaveLen(3))
			box, err := reg.Get("B")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(subs[1].Address).Should(gomega.Equal(box.Address))
		})

		ginkgo.It("honours After edges without artifacts", func() {
			steps := []pipeline.Step{
				{ID: "token", Produces: []string{"T"}, Action: pipeline.Deploy("Token", pipeline.Args("A", "A"))},
				{ID: "leaf", Produces: []string{"L"}, After: []string{"mint"}, Action: pipeline.Deploy("Leaf", nil)},
				{ID: "mint", Action: pipeline.Call("T", "mint", pipeline.Args(tokenOwner, big.NewInt(1)))},
			}
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(report.Order).Should(gomega.Equal([]string{"token", "mint", "leaf"}))
		})

		ginkgo.It("walks every step through the full state machine", func() {
			steps := []pipeline.Step{{ID: "leaf", Produces: []string{"A"}, Action: pipeline.Deploy("Leaf", nil)}}
			var seen []pipeline.Transition
			report, err := newRun(pipeline.Options{
				OnTransition: func(t pipeline.Transition) { seen = append(seen, t) },
			}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			res, ok := report.Result("leaf")
			gomega.Expect(ok).Should(gomega.BeTrue())
			gomega.Expect(res.History).Should(gomega.Equal([]pipeline.StepStatus{
				pipeline.StepPending,
				pipeline.StepResolving,
				pipeline.StepSubmitting,
				pipeline.StepConfirming,
				pipeline.StepCompleted,
			}))
			gomega.Expect(seen).Should(gomega.HaveLen(4))
		})
	})

	ginkgo.Context("pre-flight", func() {
		ginkgo.It("rejects cycles before submitting anything", func() {
			steps := []pipeline.Step{
				{ID: "a", Produces: []string{"A"}, Requires: []string{"B"}, Action: pipeline.Deploy("Box", addressOf("B"))},
				{ID: "b", Produces: []string{"B"}, Requires: []string{"A"}, Action: pipeline.Deploy("Box", addressOf("A"))},
			}
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrCyclicDependency))
			gomega.Expect(report.Status).Should(gomega.Equal(pipeline.RunAborted))
			gomega.Expect(report.Kind).Should(gomega.Equal(pipeline.KindCyclicDependency))
			gomega.Expect(fake.Submissions()).Should(gomega.BeEmpty())
		})

		ginkgo.It("rejects unresolved dependencies before submitting anything", func() {
			steps := []pipeline.Step{
				{ID: "leaf", Produces: []string{"A"}, Action: pipeline.Deploy("Leaf", nil)},
				{ID: "box", Produces: []string{"B"}, Requires: []string{"Missing"}, Action: pipeline.Deploy("Box", addressOf("Missing"))},
			}
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrDependencyUnresolved))
			gomega.Expect(report.FailedStep).Should(gomega.Equal("box"))
			gomega.Expect(report.Kind).Should(gomega.Equal(pipeline.KindDependencyUnresolved))
			gomega.Expect(fake.Submissions()).Should(gomega.BeEmpty())
		})

		ginkgo.It("rejects unknown contracts and methods", func() {
			steps := []pipeline.Step{{ID: "x", Produces: []string{"X"}, Action: pipeline.Deploy("Nope", nil)}}
			_, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).Should(gomega.MatchError(contract.ErrArtifactNotFound))

			steps = []pipeline.Step{
				{ID: "token", Produces: []string{"T"}, Action: pipeline.Deploy("Token", pipeline.Args("A", "A"))},
				{ID: "burn", Action: pipeline.Call("T", "burn", nil)},
			}
			_, err = newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).Should(gomega.MatchError(contract.ErrUnknownMethod))
			gomega.Expect(fake.Submissions()).Should(gomega.BeEmpty())
		})

		ginkgo.It("fails fast when another run holds the network", func() {
			lock, err := registry.AcquireRunLock(lockDir, testChainID)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer func() { _ = lock.Release() }()

			report, err := newRun(pipeline.Options{}).Run(ctx, chainOfFive(), testProfile())
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrConcurrentRunConflict))
			gomega.Expect(report.Kind).Should(gomega.Equal(pipeline.KindConcurrentRunConflict))
			gomega.Expect(fake.Submissions()).Should(gomega.BeEmpty())
		})

		ginkgo.It("refuses a profile for another chain", func() {
			profile := testProfile()
			profile.ChainID = 1
			_, err := newRun(pipeline.Options{}).Run(ctx, chainOfFive(), profile)
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrNetworkMismatch))
		})
	})

	ginkgo.Context("tag filtering", func() {
		tagged := func() []pipeline.Step {
			return []pipeline.Step{
				{ID: "mock-token", Tags: []string{"mocks"}, Produces: []string{"M"}, Action: pipeline.Deploy("Token", pipeline.Args("Mock", "MCK"))},
				{ID: "leaf", Produces: []string{"A"}, Action: pipeline.Deploy("Leaf", nil)},
			}
		}

		ginkgo.It("excludes mocks when no tags are active", func() {
			report, err := newRun(pipeline.Options{}).Run(ctx, tagged(), testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			res, _ := report.Result("mock-token")
			gomega.Expect(res.Status).Should(gomega.Equal(pipeline.StepExcluded))
			gomega.Expect(report.Registry.Names()).Should(gomega.Equal([]string{"A"}))
		})

		ginkgo.It("runs mocks when the mocks tag is active", func() {
			report, err := newRun(pipeline.Options{}).Run(ctx, tagged(), testProfile("mocks"))
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(report.Count(pipeline.StepCompleted)).Should(gomega.Equal(2))
			gomega.Expect(report.Registry.Names()).Should(gomega.Equal([]string{"A", "M"}))
		})

		ginkgo.It("accepts an excluded producer when the registry already has the artifact", func() {
			gomega.Expect(reg.Import(ctx, "M", common.HexToAddress("0x1234"), "Token", contracts["Token"].RawABI)).To(gomega.Succeed())
			steps := append(tagged(), pipeline.Step{
				ID: "mint", Action: pipeline.Call("M", "mint", pipeline.Args(tokenOwner, big.NewInt(5))),
			})
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			res, _ := report.Result("mint")
			gomega.Expect(res.Status).Should(gomega.Equal(pipeline.StepCompleted))
			gomega.Expect(res.Address).Should(gomega.Equal(common.HexToAddress("0x1234")))
		})
	})

	ginkgo.Context("failures", func() {
		var breakable atomic.Bool

		ginkgo.BeforeEach(func() {
			breakable.Store(true)
			code := contracts["Breakable"].Bytecode
			fake.Revert = func(to *common.Address, data []byte) bool {
				return to == nil && breakable.Load() && bytes.HasPrefix(data, code)
			}
		})

		ginkgo.It("keeps confirmed artifacts and resumes after a revert", func() {
			report, err := newRun(pipeline.Options{}).Run(ctx, chainOfFive(), testProfile())
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrTransactionReverted))
			gomega.Expect(report.Status).Should(gomega.Equal(pipeline.RunAborted))
			gomega.Expect(report.FailedStep).Should(gomega.Equal("s3"))
			gomega.Expect(report.Kind).Should(gomega.Equal(pipeline.KindTransactionReverted))
			gomega.Expect(report.Registry.Names()).Should(gomega.Equal([]string{"A", "B"}))

			var se *pipeline.StepError
			gomega.Expect(err).Should(gomega.BeAssignableToTypeOf(se))
			s3, _ := report.Result("s3")
			gomega.Expect(s3.Status).Should(gomega.Equal(pipeline.StepFailed))
			s4, _ := report.Result("s4")
			gomega.Expect(s4.Status).Should(gomega.Equal(pipeline.StepPending))

			breakable.Store(false)
			rerun, err := newRun(pipeline.Options{}).Run(ctx, chainOfFive(), testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			for _, id := range []string{"s1", "s2"} {
				res, _ := rerun.Result(id)
				gomega.Expect(res.Status).Should(gomega.Equal(pipeline.StepSkipped), id)
			}
			for _, id := range []string{"s3", "s4", "s5"} {
				res, _ := rerun.Result(id)
				gomega.Expect(res.Status).Should(gomega.Equal(pipeline.StepCompleted), id)
			}
			gomega.Expect(rerun.Registry.Names()).Should(gomega.Equal([]string{"A", "B", "C", "D", "E"}))
		})

		ginkgo.It("gives up after bounded confirmation retries without resubmitting", func() {
			fake.Revert = nil
			fake.NeverMine = true
			steps := []pipeline.Step{{ID: "leaf", Produces: []string{"A"}, Action: pipeline.Deploy("Leaf", nil)}}

			profile := testProfile()
			profile.ConfirmationTimeout = 10 * time.Millisecond
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, profile)
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrConfirmationTimeout))
			gomega.Expect(report.Kind).Should(gomega.Equal(pipeline.KindConfirmationTimeout))
			gomega.Expect(fake.Submissions()).Should(gomega.HaveLen(1))
			gomega.Expect(report.Registry.Names()).Should(gomega.BeEmpty())
		})

		ginkgo.It("surfaces argument errors before submission", func() {
			steps := []pipeline.Step{{ID: "token", Produces: []string{"T"}, Action: pipeline.Deploy("Token", pipeline.Args("only-one"))}}
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).Should(gomega.MatchError(contract.ErrArgumentMismatch))
			gomega.Expect(report.Kind).Should(gomega.Equal(pipeline.KindArgumentMismatch))
			gomega.Expect(fake.Submissions()).Should(gomega.BeEmpty())
		})
	})

	ginkgo.Context("cancellation", func() {
		ginkgo.It("stops between steps and keeps finished work", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			p := newRun(pipeline.Options{
				OnTransition: func(t pipeline.Transition) {
					if t.StepID == "s1" && t.To == pipeline.StepCompleted {
						cancel()
					}
				},
			})
			report, err := p.Run(cctx, chainOfFive(), testProfile())
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrCancelled))
			gomega.Expect(report.Status).Should(gomega.Equal(pipeline.RunCancelled))
			gomega.Expect(report.Registry.Names()).Should(gomega.Equal([]string{"A"}))
			s2, _ := report.Result("s2")
			gomega.Expect(s2.Status).Should(gomega.Equal(pipeline.StepPending))
		})

		ginkgo.It("sees a submitted transaction through before stopping", func() {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			fake.HoldReceipts()
			p := newRun(pipeline.Options{
				OnTransition: func(t pipeline.Transition) {
					if t.StepID == "s1" && t.To == pipeline.StepConfirming {
						cancel()
						go func() {
							time.Sleep(20 * time.Millisecond)
							fake.ReleaseReceipts()
						}()
					}
				},
			})
			profile := testProfile()
			profile.ConfirmationTimeout = time.Second
			report, err := p.Run(cctx, chainOfFive(), profile)
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrCancelled))
			gomega.Expect(report.Status).Should(gomega.Equal(pipeline.RunCancelled))
			gomega.Expect(fake.Submissions()).Should(gomega.HaveLen(1))

			s1, _ := report.Result("s1")
			gomega.Expect(s1.Status).Should(gomega.Equal(pipeline.StepCompleted))
			a, err := reg.Get("A")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(a.Address).Should(gomega.Equal(fake.Submissions()[0].Address))
			for _, id := range []string{"s2", "s3", "s4", "s5"} {
				res, _ := report.Result(id)
				gomega.Expect(res.Status).Should(gomega.Equal(pipeline.StepPending), id)
			}
		})
	})

	ginkgo.Context("imports", func() {
		imported := func() []pipeline.Import {
			return []pipeline.Import{{
				Name: "M", Address: common.HexToAddress("0x1234"), Contract: "Token", ABI: contracts["Token"].RawABI,
			}}
		}
		mintOnly := func() []pipeline.Step {
			return []pipeline.Step{
				{ID: "mock-token", Tags: []string{"mocks"}, Produces: []string{"M"}, Action: pipeline.Deploy("Token", pipeline.Args("Mock", "MCK"))},
				{ID: "mint", Action: pipeline.Call("M", "mint", pipeline.Args(tokenOwner, big.NewInt(5)))},
			}
		}

		ginkgo.It("records imports before resolving dependencies", func() {
			report, err := newRun(pipeline.Options{Imports: imported()}).Run(ctx, mintOnly(), testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			res, _ := report.Result("mint")
			gomega.Expect(res.Status).Should(gomega.Equal(pipeline.StepCompleted))
			m, err := reg.Get("M")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(m.Imported).Should(gomega.BeTrue())
		})

		ginkgo.It("leaves the registry alone when another run holds the network", func() {
			lock, err := registry.AcquireRunLock(lockDir, testChainID)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer func() { _ = lock.Release() }()

			_, err = newRun(pipeline.Options{Imports: imported()}).Run(ctx, mintOnly(), testProfile())
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrConcurrentRunConflict))
			_, err = reg.Get("M")
			gomega.Expect(err).Should(gomega.MatchError(registry.ErrNotFound))
		})
	})

	ginkgo.Context("concurrency", func() {
		ginkgo.It("runs independent steps of a wave together", func() {
			steps := []pipeline.Step{
				{ID: "t1", Produces: []string{"T1"}, Action: pipeline.Deploy("Token", pipeline.Args("One", "ONE"))},
				{ID: "t2", Produces: []string{"T2"}, Action: pipeline.Deploy("Token", pipeline.Args("Two", "TWO"))},
				{ID: "t3", Produces: []string{"T3"}, Action: pipeline.Deploy("Token", pipeline.Args("Three", "THREE"))},
				{ID: "box", Produces: []string{"B"}, Requires: []string{"T1", "T2", "T3"}, Action: pipeline.Deploy("Box", addressOf("T3"))},
			}
			profile := testProfile()
			profile.MaxParallel = 3
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, profile)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(report.Count(pipeline.StepCompleted)).Should(gomega.Equal(4))

			subs := fake.Submissions()
			gomega.Expect(subs).Should(gomega.HaveLen(4))
			box, err := reg.Get("B")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(subs[3].Address).Should(gomega.Equal(box.Address))
		})
	})

	ginkgo.Context("resolve", func() {
		ginkgo.It("records an address read from another contract", func() {
			pool := common.HexToAddress("0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9")
			outputs := contracts["Factory"].ABI.Methods["pools"].Outputs
			fake.CallHandler = func(common.Address, []byte) ([]byte, error) {
				return outputs.Pack(pool)
			}
			steps := []pipeline.Step{
				{ID: "a", Produces: []string{"A"}, Action: pipeline.Deploy("Leaf", nil)},
				{ID: "b", Produces: []string{"B"}, Action: pipeline.Deploy("Token", pipeline.Args("B", "B"))},
				{ID: "factory", Produces: []string{"F"}, Action: pipeline.Deploy("Factory", nil)},
				{
					ID: "resolve-pool", Produces: []string{"P"}, Requires: []string{"A", "B"},
					Action: pipeline.Resolve("F", "pools", func(snap registry.Snapshot) ([]interface{}, error) {
						a, _ := snap.Address("A")
						b, _ := snap.Address("B")
						return []interface{}{a, b, big.NewInt(60)}, nil
					}, "Pool"),
				},
			}
			_, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			got, err := reg.Get("P")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(got.Address).Should(gomega.Equal(pool))
			gomega.Expect(got.Contract).Should(gomega.Equal("Pool"))
			gomega.Expect(fake.Calls()).Should(gomega.Equal(1))

			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(report.Count(pipeline.StepSkipped)).Should(gomega.Equal(4))
			gomega.Expect(fake.Calls()).Should(gomega.Equal(1))
		})

		ginkgo.It("fails when the read returns the zero address", func() {
			outputs := contracts["Factory"].ABI.Methods["pools"].Outputs
			fake.CallHandler = func(common.Address, []byte) ([]byte, error) {
				return outputs.Pack(common.Address{})
			}
			steps := []pipeline.Step{
				{ID: "factory", Produces: []string{"F"}, Action: pipeline.Deploy("Factory", nil)},
				{ID: "resolve-pool", Produces: []string{"P"}, Action: pipeline.Resolve("F", "pools",
					pipeline.Args(common.Address{}, common.Address{}, big.NewInt(60)), "Pool")},
			}
			report, err := newRun(pipeline.Options{}).Run(ctx, steps, testProfile())
			gomega.Expect(err).Should(gomega.MatchError(pipeline.ErrResolveFailed))
			gomega.Expect(report.FailedStep).Should(gomega.Equal("resolve-pool"))
		})
	})
})
