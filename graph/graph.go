package graph

import (
	"sort"

	"github.com/c360studio/capspec/catalog"
)

// Edge is a typed directed relationship between two capabilities.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   Kind   `json:"kind"`
}

// Graph is the relationship graph over a capability catalog. The dual
// adjacency index is built once at construction; EdgesFrom and EdgesTo
// are O(1) lookups and never re-scan the edge list. The graph is
// read-only after construction.
type Graph struct {
	catalog  *catalog.Catalog
	edges    []Edge
	outgoing map[string][]Edge
	incoming map[string][]Edge
}

// New builds a graph from edge records over a loaded catalog. Edges are
// stored in a stable order (source, target, kind) so downstream checks
// produce reproducible reports. Endpoint existence is not enforced
// here; the integrity checker reports broken references so a single run
// can surface all of them.
func New(cat *catalog.Catalog, edges []Edge) *Graph {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Kind < b.Kind
	})

	g := &Graph{
		catalog:  cat,
		edges:    sorted,
		outgoing: make(map[string][]Edge),
		incoming: make(map[string][]Edge),
	}
	for _, e := range sorted {
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
		g.incoming[e.Target] = append(g.incoming[e.Target], e)
	}
	return g
}

// Catalog returns the catalog the graph was built over.
func (g *Graph) Catalog() *catalog.Catalog {
	return g.catalog
}

// Edges returns all edges in stable order.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// EdgesFrom returns the outgoing edges of a capability.
func (g *Graph) EdgesFrom(id string) []Edge {
	return g.outgoing[id]
}

// EdgesTo returns the incoming edges of a capability.
func (g *Graph) EdgesTo(id string) []Edge {
	return g.incoming[id]
}

// Requires returns the ids of hard prerequisites of a capability, in
// stable order.
func (g *Graph) Requires(id string) []string {
	var out []string
	for _, e := range g.outgoing[id] {
		if e.Kind == KindRequires {
			out = append(out, e.Target)
		}
	}
	return out
}

// HasEdge reports whether an exact (source, target, kind) edge exists.
func (g *Graph) HasEdge(source, target string, kind Kind) bool {
	for _, e := range g.outgoing[source] {
		if e.Target == target && e.Kind == kind {
			return true
		}
	}
	return false
}
