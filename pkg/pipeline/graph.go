// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package pipeline

import (
	"container/heap"
	"sort"
)

// graph is the dependency graph of a plan. Node indices are declaration
// positions, which makes every ordering below stable.
type graph struct {
	steps    []Step
	index    map[string]int
	producer map[string]int
	incoming [][]int
	outgoing [][]int
	indeg    []int
}

func buildGraph(steps []Step) (*graph, error) {
	g := &graph{
		steps:    steps,
		index:    make(map[string]int, len(steps)),
		producer: map[string]int{},
		incoming: make([][]int, len(steps)),
		outgoing: make([][]int, len(steps)),
		indeg:    make([]int, len(steps)),
	}
	for i, st := range steps {
		if err := validateStep(st); err != nil {
			return nil, err
		}
		if _, dup := g.index[st.ID]; dup {
			return nil, invalidf("duplicate step id %q", st.ID)
		}
		g.index[st.ID] = i
		for _, name := range st.Produces {
			if prev, dup := g.producer[name]; dup {
				return nil, invalidf("artifact %q produced by both %q and %q", name, steps[prev].ID, st.ID)
			}
			g.producer[name] = i
		}
	}

	edges := make([]map[int]struct{}, len(steps))
	addEdge := func(from, to int) {
		if edges[from] == nil {
			edges[from] = map[int]struct{}{}
		}
		if _, ok := edges[from][to]; ok {
			return
		}
		edges[from][to] = struct{}{}
		g.outgoing[from] = append(g.outgoing[from], to)
		g.incoming[to] = append(g.incoming[to], from)
		g.indeg[to]++
	}
	for i, st := range steps {
		for _, name := range st.requirements() {
			// artifacts nobody produces must come from the registry
			if p, ok := g.producer[name]; ok {
				addEdge(p, i)
			}
		}
		for _, id := range st.After {
			p, ok := g.index[id]
			if !ok {
				return nil, &GraphError{Kind: ErrDependencyUnresolved, Msg: "step " + st.ID + " runs after unknown step " + id}
			}
			addEdge(p, i)
		}
	}
	for i := range g.outgoing {
		sort.Ints(g.outgoing[i])
		sort.Ints(g.incoming[i])
	}

	if order := g.topoOrder(); len(order) != len(steps) {
		return nil, cycleError(g.findCycle())
	}
	return g, nil
}

func validateStep(st Step) error {
	if st.ID == "" {
		return invalidf("step with empty id")
	}
	a := st.Action
	switch a.Kind {
	case ActionDeploy:
		if a.Contract == "" {
			return invalidf("step %s deploys no contract", st.ID)
		}
		if len(st.Produces) != 1 {
			return invalidf("deploy step %s must produce exactly one artifact", st.ID)
		}
	case ActionCall:
		if a.Target == "" || a.Method == "" {
			return invalidf("call step %s needs a target and a method", st.ID)
		}
		if len(st.Produces) != 0 {
			return invalidf("call step %s cannot produce artifacts", st.ID)
		}
	case ActionResolve:
		if a.Target == "" || a.Method == "" || a.Contract == "" {
			return invalidf("resolve step %s needs a target, a method and a contract", st.ID)
		}
		if len(st.Produces) != 1 {
			return invalidf("resolve step %s must produce exactly one artifact", st.ID)
		}
	default:
		return invalidf("step %s has no action", st.ID)
	}
	for _, name := range st.Produces {
		if name == "" {
			return invalidf("step %s produces an empty artifact name", st.ID)
		}
	}
	return nil
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrder is Kahn's algorithm with the ready set ordered by declaration
// index, so independent steps keep their declared order.
func (g *graph) topoOrder() []int {
	indeg := make([]int, len(g.indeg))
	copy(indeg, g.indeg)

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}
	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as step ids, first id repeated at the end.
func (g *graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.steps))
	parent := make([]int, len(g.steps))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			if color[v] == white {
				parent[v] = u
				if dfs(v) {
					return true
				}
				continue
			}
			if color[v] == gray {
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}
	for i := range g.steps {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, g.steps[cycle[i]].ID)
	}
	return out
}

// waves groups the active steps into levels: every step sits one level
// after the deepest active step it depends on. Steps inside a wave are
// independent and sorted by declaration index.
func (g *graph) waves(active []bool) [][]int {
	level := make([]int, len(g.steps))
	var out [][]int
	for _, n := range g.topoOrder() {
		if !active[n] {
			continue
		}
		lvl := 0
		for _, p := range g.incoming[n] {
			if active[p] && level[p]+1 > lvl {
				lvl = level[p] + 1
			}
		}
		level[n] = lvl
		for len(out) <= lvl {
			out = append(out, nil)
		}
		out[lvl] = append(out[lvl], n)
	}
	for _, w := range out {
		sort.Ints(w)
	}
	return out
}

// Order validates steps and returns their ids in execution order.
func Order(steps []Step) ([]string, error) {
	g, err := buildGraph(steps)
	if err != nil {
		return nil, err
	}
	order := g.topoOrder()
	ids := make([]string, len(order))
	for i, n := range order {
		ids[i] = g.steps[n].ID
	}
	return ids, nil
}

// batches returns the execution schedule. Without parallelism every active
// step runs alone in topological order; otherwise each wave is a batch.
func (g *graph) batches(active []bool, parallel int) [][]int {
	if parallel > 1 {
		return g.waves(active)
	}
	var out [][]int
	for _, n := range g.topoOrder() {
		if active[n] {
			out = append(out, []int{n})
		}
	}
	return out
}
