package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/capspec/diag"
)

// CheckOptions controls the integrity checker.
type CheckOptions struct {
	// AsymmetrySeverity is the severity assigned to AsymmetricEdge
	// findings. The standard leaves this policy to the caller; the
	// default is fatal.
	AsymmetrySeverity diag.Severity

	// DetectDuplicates enables the informational duplicate-relation
	// check.
	DetectDuplicates bool
}

// DefaultCheckOptions returns the default checker policy.
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		AsymmetrySeverity: diag.SeverityFatal,
		DetectDuplicates:  false,
	}
}

// Check runs every integrity check over the graph and accumulates all
// findings into one report; no check short-circuits another. Output
// order is deterministic, so repeated runs over an unmodified graph
// produce identical reports.
func Check(g *Graph, opts CheckOptions) *diag.Report {
	if opts.AsymmetrySeverity == "" {
		opts.AsymmetrySeverity = diag.SeverityFatal
	}

	report := &diag.Report{}
	checkReferences(g, report)
	checkOrphans(g, report)
	checkSymmetry(g, opts.AsymmetrySeverity, report)
	checkOrderingCycles(g, report)
	if opts.DetectDuplicates {
		checkDuplicates(g, report)
	}
	return report
}

// checkReferences reports every edge endpoint that does not resolve in
// the catalog.
func checkReferences(g *Graph, report *diag.Report) {
	for _, e := range g.Edges() {
		for _, id := range []string{e.Source, e.Target} {
			if _, ok := g.catalog.Lookup(id); !ok {
				report.Add(diag.Finding{
					Kind:       diag.KindUnknownCapabilityReference,
					Severity:   diag.SeverityFatal,
					StepIndex:  -1,
					Capability: id,
					Message:    fmt.Sprintf("edge %s -[%s]-> %s references unknown capability %q", e.Source, e.Kind, e.Target, id),
				})
			}
		}
	}
}

// checkOrphans reports capabilities with no incoming and no outgoing
// edges. Advisory: isolation is suspicious, not necessarily wrong.
func checkOrphans(g *Graph, report *diag.Report) {
	for _, id := range g.catalog.IDs() {
		if len(g.EdgesFrom(id)) == 0 && len(g.EdgesTo(id)) == 0 {
			report.Add(diag.Finding{
				Kind:       diag.KindOrphanCapability,
				Severity:   diag.SeverityWarning,
				StepIndex:  -1,
				Capability: id,
				Message:    fmt.Sprintf("capability %q has no relationships", id),
			})
		}
	}
}

// checkSymmetry reports, once per missing mirror, every symmetric-kind
// edge whose reverse does not exist.
func checkSymmetry(g *Graph, severity diag.Severity, report *diag.Report) {
	for _, e := range g.Edges() {
		if !e.Kind.Properties().Symmetric {
			continue
		}
		if !g.HasEdge(e.Target, e.Source, e.Kind) {
			report.Add(diag.Finding{
				Kind:       diag.KindAsymmetricEdge,
				Severity:   severity,
				StepIndex:  -1,
				Capability: e.Source,
				Message:    fmt.Sprintf("%s edge %s -> %s has no mirrored edge", e.Kind, e.Source, e.Target),
			})
		}
	}
}

// checkOrderingCycles runs depth-first cycle detection independently
// over each ordering-sensitive relation subgraph. Cycles using other
// relation kinds are legal and never flagged.
func checkOrderingCycles(g *Graph, report *diag.Report) {
	for _, kind := range orderingKinds {
		for _, cycle := range findCycles(g, kind) {
			report.Add(diag.Finding{
				Kind:      diag.KindOrderingCycle,
				Severity:  diag.SeverityFatal,
				StepIndex: -1,
				Cycle:     cycle,
				Message:   fmt.Sprintf("%s cycle: %s", kind, strings.Join(cycle, " -> ")),
			})
		}
	}
}

// findCycles collects every cycle in the subgraph induced by one
// relation kind, each reported once in canonical rotation.
func findCycles(g *Graph, kind Kind) [][]string {
	adjacency := make(map[string][]string)
	nodes := make(map[string]bool)
	for _, e := range g.Edges() {
		if e.Kind != kind {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		nodes[e.Source] = true
		nodes[e.Target] = true
	}

	sorted := make([]string, 0, len(nodes))
	for n := range nodes {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(nodes))
	var stack []string
	seen := make(map[string]bool)
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		state[node] = inStack
		stack = append(stack, node)

		for _, next := range adjacency[node] {
			switch state[next] {
			case unvisited:
				visit(next)
			case inStack:
				// Back edge: the cycle is the stack suffix from next.
				start := len(stack) - 1
				for start >= 0 && stack[start] != next {
					start--
				}
				cycle := canonicalCycle(stack[start:])
				key := strings.Join(cycle, ",")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[node] = done
	}

	for _, n := range sorted {
		if state[n] == unvisited {
			visit(n)
		}
	}
	return cycles
}

// canonicalCycle rotates a cycle so its smallest node comes first and
// appends the closing node, e.g. [y x] becomes [x y x].
func canonicalCycle(path []string) []string {
	smallest := 0
	for i := 1; i < len(path); i++ {
		if path[i] < path[smallest] {
			smallest = i
		}
	}
	out := make([]string, 0, len(path)+1)
	out = append(out, path[smallest:]...)
	out = append(out, path[:smallest]...)
	out = append(out, path[smallest])
	return out
}

// checkDuplicates reports ordered capability pairs connected by more
// than one relation kind.
func checkDuplicates(g *Graph, report *diag.Report) {
	kindsByPair := make(map[[2]string]map[Kind]bool)
	for _, e := range g.Edges() {
		pair := [2]string{e.Source, e.Target}
		if kindsByPair[pair] == nil {
			kindsByPair[pair] = make(map[Kind]bool)
		}
		kindsByPair[pair][e.Kind] = true
	}

	pairs := make([][2]string, 0, len(kindsByPair))
	for pair := range kindsByPair {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	for _, pair := range pairs {
		kinds := kindsByPair[pair]
		if len(kinds) < 2 {
			continue
		}
		names := make([]string, 0, len(kinds))
		for k := range kinds {
			names = append(names, string(k))
		}
		sort.Strings(names)
		report.Add(diag.Finding{
			Kind:       diag.KindDuplicateRelation,
			Severity:   diag.SeverityInfo,
			StepIndex:  -1,
			Capability: pair[0],
			Message:    fmt.Sprintf("%s and %s are connected by multiple relation kinds: %s", pair[0], pair[1], strings.Join(names, ", ")),
		})
	}
}
