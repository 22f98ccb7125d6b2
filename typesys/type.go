// Package typesys implements the closed type grammar used by capability
// contracts and workflow bindings: primitives plus array, nullable, map,
// and union forms. Types are immutable values compared structurally.
package typesys

import (
	"sort"
	"strings"
)

// Kind discriminates the type variants.
type Kind string

const (
	// KindString is the string primitive.
	KindString Kind = "string"
	// KindNumber is the floating-point numeric primitive.
	KindNumber Kind = "number"
	// KindInteger is the integral numeric primitive.
	KindInteger Kind = "integer"
	// KindBoolean is the boolean primitive.
	KindBoolean Kind = "boolean"
	// KindObject is a structured value; Props may declare its fields.
	KindObject Kind = "object"
	// KindAny is the explicitly untyped variant. It is never a silent
	// default: inference treats it as ambiguous.
	KindAny Kind = "any"
	// KindArray is a homogeneous list of Elem.
	KindArray Kind = "array"
	// KindNullable wraps Elem with an explicit null alternative.
	KindNullable Kind = "nullable"
	// KindMap is a keyed collection of Key to Value.
	KindMap Kind = "map"
	// KindUnion is an explicit alternative over Members.
	KindUnion Kind = "union"
)

// IsValid checks if a kind string is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindString, KindNumber, KindInteger, KindBoolean, KindObject,
		KindAny, KindArray, KindNullable, KindMap, KindUnion:
		return true
	}
	return false
}

// Primitive reports whether the kind is a non-parametric form.
func (k Kind) Primitive() bool {
	switch k {
	case KindString, KindNumber, KindInteger, KindBoolean, KindObject, KindAny:
		return true
	}
	return false
}

// Type is an immutable type value. Exactly the fields relevant to Kind
// are populated: Elem for array/nullable, Key and Value for map, Members
// for union, Props (optionally) for object.
type Type struct {
	Kind    Kind            `json:"kind"`
	Elem    *Type           `json:"elem,omitempty"`
	Key     *Type           `json:"key,omitempty"`
	Value   *Type           `json:"value,omitempty"`
	Members []Type          `json:"members,omitempty"`
	Props   map[string]Type `json:"props,omitempty"`
}

// String constructs the string primitive.
func String() Type { return Type{Kind: KindString} }

// Number constructs the number primitive.
func Number() Type { return Type{Kind: KindNumber} }

// Integer constructs the integer primitive.
func Integer() Type { return Type{Kind: KindInteger} }

// Boolean constructs the boolean primitive.
func Boolean() Type { return Type{Kind: KindBoolean} }

// Any constructs the explicitly untyped variant.
func Any() Type { return Type{Kind: KindAny} }

// Object constructs an object type. A nil props map yields an opaque
// object, which inference treats as ambiguous.
func Object(props map[string]Type) Type {
	return Type{Kind: KindObject, Props: props}
}

// Array constructs array<elem>.
func Array(elem Type) Type {
	return Type{Kind: KindArray, Elem: &elem}
}

// Nullable constructs nullable<elem>.
func Nullable(elem Type) Type {
	return Type{Kind: KindNullable, Elem: &elem}
}

// Map constructs map<key,value>.
func Map(key, value Type) Type {
	return Type{Kind: KindMap, Key: &key, Value: &value}
}

// Union constructs an explicit union over the given members.
func Union(members ...Type) Type {
	return Type{Kind: KindUnion, Members: members}
}

// Opaque reports whether the type carries no usable structure: any, or
// an object without declared properties.
func (t Type) Opaque() bool {
	return t.Kind == KindAny || (t.Kind == KindObject && len(t.Props) == 0)
}

// Render returns the canonical textual form of the type. Object property
// declarations are schema detail and render as bare "object".
func (t Type) Render() string {
	switch t.Kind {
	case KindArray:
		return "array<" + t.Elem.Render() + ">"
	case KindNullable:
		return "nullable<" + t.Elem.Render() + ">"
	case KindMap:
		return "map<" + t.Key.Render() + "," + t.Value.Render() + ">"
	case KindUnion:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.Render()
		}
		sort.Strings(parts)
		return strings.Join(parts, "|")
	default:
		return string(t.Kind)
	}
}
