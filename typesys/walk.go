package typesys

import (
	"fmt"
	"strconv"
)

// PathError reports the first path segment that failed to resolve
// against a type's structure.
type PathError struct {
	Segment string
	On      Type
}

func (e *PathError) Error() string {
	return fmt.Sprintf("field path segment %q does not resolve on %s", e.Segment, e.On.Render())
}

// AmbiguousError reports a descent into a type with no declared
// structure (any, or object without properties). Callers must surface
// this explicitly instead of defaulting.
type AmbiguousError struct {
	Segment string
	On      Type
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("cannot infer type of segment %q: %s declares no structure", e.Segment, e.On.Render())
}

// Walk descends a type along a field path and returns the type at the
// end of the path. Descent rules:
//
//   - object property segments narrow to the property's declared type
//   - numeric segments index into arrays, yielding the element type;
//     a path ending at an array yields array<T> unchanged
//   - map segments narrow to the map's value type
//   - nullable wrappers are transparent to descent
//   - any and property-less object stop descent with AmbiguousError
//
// An empty path returns the type itself.
func Walk(t Type, path []string) (Type, error) {
	current := t
	for _, seg := range path {
		// Descend through nullable transparently.
		for current.Kind == KindNullable {
			current = *current.Elem
		}

		switch current.Kind {
		case KindObject:
			if len(current.Props) == 0 {
				return Type{}, &AmbiguousError{Segment: seg, On: current}
			}
			prop, ok := current.Props[seg]
			if !ok {
				return Type{}, &PathError{Segment: seg, On: current}
			}
			current = prop
		case KindAny:
			return Type{}, &AmbiguousError{Segment: seg, On: current}
		case KindArray:
			if _, err := strconv.Atoi(seg); err != nil {
				return Type{}, &PathError{Segment: seg, On: current}
			}
			current = *current.Elem
		case KindMap:
			current = *current.Value
		default:
			return Type{}, &PathError{Segment: seg, On: current}
		}
	}
	return current, nil
}
