package workflow

import (
	"fmt"
	"strings"

	"github.com/c360studio/capspec/typesys"
)

// InputsNamespace is the reserved reference namespace for workflow
// input parameters, as in "${inputs.root}".
const InputsNamespace = "inputs"

// Reference is a parsed binding expression: a pointer into either a
// prior step's store-as namespace or a workflow input, plus a field
// path and an optional declared type annotation. Resolution is purely
// structural; no runtime values exist at this stage.
type Reference struct {
	// StoreAs names the producing step's store-as binding. Empty when
	// the reference targets a workflow input.
	StoreAs string `json:"store_as,omitempty"`

	// Input names the workflow input parameter. Empty when the
	// reference targets a store-as binding.
	Input string `json:"input,omitempty"`

	// Path is the field path below the source, possibly empty.
	Path []string `json:"path,omitempty"`

	// Declared is the explicit type annotation, if present.
	Declared *typesys.Type `json:"declared,omitempty"`

	// Raw is the original expression text.
	Raw string `json:"raw"`
}

// IsInput reports whether the reference targets a workflow input.
func (r Reference) IsInput() bool {
	return r.Input != ""
}

// ParseExpression parses a binding expression of the form
//
//	${name.path.to.field}
//	${name.path.to.field: type}
//	${inputs.param}
//
// where name is a store-as binding and the optional annotation after
// the colon uses the typesys grammar.
func ParseExpression(expr string) (Reference, error) {
	ref := Reference{Raw: expr}

	trimmed := strings.TrimSpace(expr)
	if !strings.HasPrefix(trimmed, "${") || !strings.HasSuffix(trimmed, "}") {
		return ref, fmt.Errorf("binding expression %q: expected ${...} form", expr)
	}
	body := strings.TrimSpace(trimmed[2 : len(trimmed)-1])
	if body == "" {
		return ref, fmt.Errorf("binding expression %q: empty reference", expr)
	}

	// Optional type annotation after the first colon.
	if idx := strings.Index(body, ":"); idx >= 0 {
		annotation := strings.TrimSpace(body[idx+1:])
		body = strings.TrimSpace(body[:idx])
		if annotation == "" {
			return ref, fmt.Errorf("binding expression %q: empty type annotation", expr)
		}
		declared, err := typesys.Parse(annotation)
		if err != nil {
			return ref, fmt.Errorf("binding expression %q: %w", expr, err)
		}
		ref.Declared = &declared
	}

	segments := strings.Split(body, ".")
	for i, seg := range segments {
		if seg == "" {
			return ref, fmt.Errorf("binding expression %q: empty path segment %d", expr, i)
		}
	}

	if segments[0] == InputsNamespace {
		if len(segments) < 2 {
			return ref, fmt.Errorf("binding expression %q: missing input parameter name", expr)
		}
		ref.Input = segments[1]
		ref.Path = segments[2:]
		return ref, nil
	}

	ref.StoreAs = segments[0]
	ref.Path = segments[1:]
	return ref, nil
}
