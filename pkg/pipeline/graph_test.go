// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func deployStep(id, produces string, requires ...string) Step {
	return Step{ID: id, Produces: []string{produces}, Requires: requires, Action: Deploy("C", nil)}
}

func TestOrderIsStableForIndependentSteps(t *testing.T) {
	steps := []Step{
		deployStep("c", "C"),
		deployStep("a", "A"),
		deployStep("b", "B"),
	}
	order, err := Order(steps)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, order)
}

func TestOrderPutsProducersFirst(t *testing.T) {
	steps := []Step{
		deployStep("pool", "P", "T0", "T1"),
		deployStep("token1", "T1"),
		deployStep("factory", "F"),
		deployStep("token0", "T0"),
	}
	order, err := Order(steps)
	require.NoError(t, err)
	require.Equal(t, []string{"token1", "factory", "token0", "pool"}, order)
}

func TestOrderIgnoresExternalArtifacts(t *testing.T) {
	order, err := Order([]Step{deployStep("a", "A", "Imported")})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, order)
}

func TestCallTargetIsADependency(t *testing.T) {
	steps := []Step{
		{ID: "mint", Action: Call("T", "mint", nil)},
		deployStep("token", "T"),
	}
	order, err := Order(steps)
	require.NoError(t, err)
	require.Equal(t, []string{"token", "mint"}, order)
}

func TestCycleDetection(t *testing.T) {
	steps := []Step{
		deployStep("a", "A", "C"),
		deployStep("b", "B", "A"),
		deployStep("c", "C", "B"),
		deployStep("d", "D"),
	}
	_, err := buildGraph(steps)
	require.ErrorIs(t, err, ErrCyclicDependency)

	var gerr *GraphError
	require.True(t, errors.As(err, &gerr))
	require.Contains(t, gerr.Msg, "a -> b -> c -> a")
}

func TestSelfDependencyIsACycle(t *testing.T) {
	_, err := buildGraph([]Step{deployStep("a", "A", "A")})
	require.ErrorIs(t, err, ErrCyclicDependency)
}

func TestInvalidPlans(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
		want  error
	}{
		{
			name:  "empty id",
			steps: []Step{deployStep("", "A")},
			want:  ErrInvalidPlan,
		},
		{
			name:  "duplicate id",
			steps: []Step{deployStep("a", "A"), deployStep("a", "B")},
			want:  ErrInvalidPlan,
		},
		{
			name:  "duplicate producer",
			steps: []Step{deployStep("a", "A"), deployStep("b", "A")},
			want:  ErrInvalidPlan,
		},
		{
			name:  "deploy without output",
			steps: []Step{{ID: "a", Action: Deploy("C", nil)}},
			want:  ErrInvalidPlan,
		},
		{
			name:  "call with output",
			steps: []Step{{ID: "a", Produces: []string{"A"}, Action: Call("T", "m", nil)}},
			want:  ErrInvalidPlan,
		},
		{
			name:  "resolve without contract",
			steps: []Step{{ID: "a", Produces: []string{"A"}, Action: Resolve("T", "m", nil, "")}},
			want:  ErrInvalidPlan,
		},
		{
			name:  "no action",
			steps: []Step{{ID: "a", Produces: []string{"A"}}},
			want:  ErrInvalidPlan,
		},
		{
			name:  "after unknown step",
			steps: []Step{{ID: "a", Produces: []string{"A"}, After: []string{"ghost"}, Action: Deploy("C", nil)}},
			want:  ErrDependencyUnresolved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildGraph(tt.steps)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWaves(t *testing.T) {
	steps := []Step{
		deployStep("t0", "T0"),
		deployStep("t1", "T1"),
		deployStep("factory", "F"),
		deployStep("manager", "M", "F"),
		deployStep("pool", "P", "F", "T0", "T1"),
		{ID: "mint", Action: Call("T0", "mint", nil), After: []string{"pool"}},
	}
	g, err := buildGraph(steps)
	require.NoError(t, err)

	all := []bool{true, true, true, true, true, true}
	require.Equal(t, [][]int{{0, 1, 2}, {3, 4}, {5}}, g.waves(all))

	// excluded steps drop out without pulling their dependents down a level
	some := []bool{true, true, true, false, true, true}
	require.Equal(t, [][]int{{0, 1, 2}, {4}, {5}}, g.waves(some))
}

func TestSequentialBatches(t *testing.T) {
	steps := []Step{
		deployStep("b", "B", "A"),
		deployStep("a", "A"),
		deployStep("c", "C"),
	}
	g, err := buildGraph(steps)
	require.NoError(t, err)
	require.Equal(t, [][]int{{1}, {0}, {2}}, g.batches([]bool{true, true, true}, 1))
	require.Equal(t, [][]int{{1}, {2}}, g.batches([]bool{false, true, true}, 1))
	require.Equal(t, [][]int{{1, 2}, {0}}, g.batches([]bool{true, true, true}, 4))
}
