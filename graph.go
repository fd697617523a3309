package artron

import "sort"

// Graph is a pure, read-only view over a task table snapshot: for every
// task currently in StateInit, the ids it still depends on. Tasks not in
// StateInit contribute no vertex — they are either done, poisoned, or in
// flight and play no further part in readiness.
//
// A Graph is rebuilt from scratch on every dispatcher iteration; it never
// caches state across calls to BuildGraph.
type Graph map[string][]string

// BuildGraph constructs a Graph from a task table snapshot. Self-loops in
// a task's require list are dropped, and the list is deduplicated.
func BuildGraph(tasks map[string]Task) Graph {
	g := make(Graph, len(tasks))
	for tid, task := range tasks {
		if task.State != StateInit {
			continue
		}

		if len(task.Require) == 0 {
			g[tid] = nil
			continue
		}

		seen := make(map[string]struct{}, len(task.Require))
		deps := make([]string, 0, len(task.Require))
		for _, dep := range task.Require {
			if dep == tid {
				continue
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			deps = append(deps, dep)
		}
		g[tid] = deps
	}
	return g
}

// Edge is one outgoing dependency edge (V, W): V depends on W. An
// isolated vertex V yields the synthetic self-edge (V, V) so a dispatcher
// checking "any edges remaining?" stays true while runnable work exists.
type Edge struct {
	From string
	To   string
}

// Edges enumerates every edge in the graph, in a deterministic order
// (sorted by From, then To) so callers get reproducible results for the
// same snapshot.
func (g Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g))
	for vertex, deps := range g {
		if len(deps) == 0 {
			edges = append(edges, Edge{From: vertex, To: vertex})
			continue
		}
		for _, dep := range deps {
			edges = append(edges, Edge{From: vertex, To: dep})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// IsolatedVertices returns every vertex with an empty outgoing list — the
// readiness frontier — sorted for deterministic iteration.
func (g Graph) IsolatedVertices() []string {
	out := make([]string, 0, len(g))
	for vertex, deps := range g {
		if len(deps) == 0 {
			out = append(out, vertex)
		}
	}
	sort.Strings(out)
	return out
}

// RemoveVertex deletes vertex from the graph and from every other
// vertex's dependency list.
func (g Graph) RemoveVertex(vertex string) {
	delete(g, vertex)
	for v, deps := range g {
		for i, d := range deps {
			if d == vertex {
				g[v] = append(deps[:i], deps[i+1:]...)
				break
			}
		}
	}
}
