// Package graph models the typed relationship graph between
// capabilities and checks its structural integrity.
package graph

// Kind is one of the seven relation kinds in the composition standard.
type Kind string

const (
	// KindRequires is a hard precondition.
	KindRequires Kind = "requires"

	// KindSoftRequires is an advisory precondition.
	KindSoftRequires Kind = "soft_requires"

	// KindEnables unlocks downstream use.
	KindEnables Kind = "enables"

	// KindPrecedes is a temporal ordering constraint.
	KindPrecedes Kind = "precedes"

	// KindConflictsWith marks mutual exclusion.
	KindConflictsWith Kind = "conflicts_with"

	// KindAlternativeTo marks substitutable capabilities.
	KindAlternativeTo Kind = "alternative_to"

	// KindSpecializes marks contract inheritance.
	KindSpecializes Kind = "specializes"
)

// Properties holds the declared algebraic properties of a relation
// kind, consulted by the generic graph checks instead of per-kind
// branching.
type Properties struct {
	Transitive bool
	Symmetric  bool
}

var kindProperties = map[Kind]Properties{
	KindRequires:      {Transitive: false, Symmetric: false},
	KindSoftRequires:  {Transitive: false, Symmetric: false},
	KindEnables:       {Transitive: false, Symmetric: false},
	KindPrecedes:      {Transitive: true, Symmetric: false},
	KindConflictsWith: {Transitive: false, Symmetric: true},
	KindAlternativeTo: {Transitive: false, Symmetric: true},
	KindSpecializes:   {Transitive: true, Symmetric: false},
}

// orderingKinds are the kinds whose subgraphs must be acyclic.
var orderingKinds = []Kind{KindRequires, KindPrecedes}

// IsValid checks if a kind string is a known relation kind.
func (k Kind) IsValid() bool {
	_, ok := kindProperties[k]
	return ok
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Properties returns the declared properties of the kind.
func (k Kind) Properties() Properties {
	return kindProperties[k]
}

// ParseKind converts a string to a Kind, returning empty for invalid
// values.
func ParseKind(s string) Kind {
	k := Kind(s)
	if k.IsValid() {
		return k
	}
	return ""
}

// Kinds returns every relation kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindRequires,
		KindSoftRequires,
		KindEnables,
		KindPrecedes,
		KindConflictsWith,
		KindAlternativeTo,
		KindSpecializes,
	}
}
