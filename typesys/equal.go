package typesys

import "sort"

// Normalize rewrites a type into canonical form so that structurally
// equivalent spellings compare equal:
//
//   - union members are flattened, deduplicated, and ordered; a
//     single-member union collapses to its member
//   - nullable<nullable<T>> collapses to nullable<T>; nullable<any> is any
//   - map<string,any> is the alias form of an opaque object
//
// Object property declarations are preserved but do not participate in
// equality (they are schema detail, not type identity).
func Normalize(t Type) Type {
	switch t.Kind {
	case KindArray:
		return Array(Normalize(*t.Elem))
	case KindNullable:
		elem := Normalize(*t.Elem)
		if elem.Kind == KindNullable {
			return elem
		}
		if elem.Kind == KindAny {
			return Any()
		}
		return Nullable(elem)
	case KindMap:
		key := Normalize(*t.Key)
		value := Normalize(*t.Value)
		if key.Kind == KindString && value.Kind == KindAny {
			return Object(nil)
		}
		return Map(key, value)
	case KindUnion:
		flat := flattenUnion(t.Members)
		for i := range flat {
			flat[i] = Normalize(flat[i])
		}
		flat = dedupe(flat)
		if len(flat) == 1 {
			return flat[0]
		}
		sort.Slice(flat, func(i, j int) bool {
			return flat[i].Render() < flat[j].Render()
		})
		return Union(flat...)
	default:
		return Type{Kind: t.Kind, Props: t.Props}
	}
}

// Equal reports structural equality up to alias normalization.
func Equal(a, b Type) bool {
	return equalNormalized(Normalize(a), Normalize(b))
}

func equalNormalized(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindArray, KindNullable:
		return equalNormalized(*a.Elem, *b.Elem)
	case KindMap:
		return equalNormalized(*a.Key, *b.Key) && equalNormalized(*a.Value, *b.Value)
	case KindUnion:
		if len(a.Members) != len(b.Members) {
			return false
		}
		for i := range a.Members {
			if !equalNormalized(a.Members[i], b.Members[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func flattenUnion(members []Type) []Type {
	var flat []Type
	for _, m := range members {
		if m.Kind == KindUnion {
			flat = append(flat, flattenUnion(m.Members)...)
			continue
		}
		flat = append(flat, m)
	}
	return flat
}

func dedupe(members []Type) []Type {
	seen := make(map[string]bool, len(members))
	var out []Type
	for _, m := range members {
		key := m.Render()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
