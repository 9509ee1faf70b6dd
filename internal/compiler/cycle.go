package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fanout/internal/table"
)

// NestingCycle is a set of hosts that contain each other through their
// groups. Such hosts could never be constructed, so cycles are errors.
type NestingCycle struct {
	Path    []string `json:"path"` // e.g. ["A", "B", "A"]
	Message string   `json:"message"`
}

// AnalyzeNesting finds nesting cycles among decls.
//
// The algorithm:
//  1. Build the host -> group host graph
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with more than one host, or a host nesting itself
//
// Groups naming undeclared hosts are ignored here; Validate reports them.
// Results are ordered by their first host name.
func AnalyzeNesting(decls []table.Decl) []NestingCycle {
	graph := buildNestingGraph(decls)

	var cycles []NestingCycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b NestingCycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

// nestingGraph maps host -> hosts used as its groups.
type nestingGraph map[string][]string

func buildNestingGraph(decls []table.Decl) nestingGraph {
	graph := make(nestingGraph, len(decls))
	for _, d := range decls {
		if graph[d.Name] == nil {
			graph[d.Name] = []string{}
		}
	}
	for _, d := range decls {
		for _, g := range d.Groups {
			if _, ok := graph[g.Kind]; ok {
				graph[d.Name] = append(graph[d.Name], g.Kind)
			}
		}
	}
	return graph
}

func hasSelfLoop(node string, graph nestingGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the output is deterministic.
func tarjanSCC(graph nestingGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph nestingGraph) NestingCycle {
	if len(scc) == 1 {
		return NestingCycle{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("host %s contains itself", scc[0]),
		}
	}
	path := cyclePath(scc, graph)
	return NestingCycle{
		Path:    path,
		Message: fmt.Sprintf("nesting cycle: %s", strings.Join(path, " -> ")),
	}
}

// cyclePath walks the SCC from its smallest member, following edges to
// unvisited members, until it returns to the start.
func cyclePath(scc []string, graph nestingGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := map[string]bool{}
	for {
		visited[current] = true
		next := ""
		for _, n := range graph[current] {
			if members[n] && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
