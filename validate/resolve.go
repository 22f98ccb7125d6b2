// Package validate implements the workflow validation engine: binding
// resolution, type inference, consumer contract checking, and coercion
// patch generation over a shared read-only catalog and relationship
// graph.
package validate

import (
	"errors"
	"fmt"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/diag"
	"github.com/c360studio/capspec/typesys"
	"github.com/c360studio/capspec/workflow"
)

// binding is one resolved input binding with its inference outcome.
type binding struct {
	stepIndex int
	field     string
	ref       workflow.Reference

	// resolved is the type used for contract checking: the declared
	// annotation when present, the inferred type otherwise. typed is
	// false when neither could be established.
	resolved typesys.Type
	typed    bool
}

// scope maps store-as names to the index of the producing step.
type scope map[string]int

func buildScope(wf *workflow.Workflow) scope {
	s := make(scope, len(wf.Steps))
	for i, step := range wf.Steps {
		s[step.StoreAs] = i
	}
	return s
}

// schemaType exposes a capability schema as an object type so that
// field paths descend through it with the ordinary type walker.
func schemaType(s catalog.Schema) typesys.Type {
	props := make(map[string]typesys.Type, len(s.Fields))
	for name, f := range s.Fields {
		props[name] = f.Type
	}
	return typesys.Object(props)
}

// resolveBinding parses one binding expression, resolves its source,
// and infers its type from the producing schema. Every defect becomes a
// finding; a binding that cannot be typed is returned with typed=false
// so contract checking skips it without suppressing sibling checks.
func (c *workflowChecker) resolveBinding(stepIndex int, b workflow.Binding) binding {
	out := binding{stepIndex: stepIndex, field: b.Field}
	step := c.wf.Steps[stepIndex]

	ref, err := workflow.ParseExpression(b.Expr)
	out.ref = ref
	if err != nil {
		c.addFinding(diag.Finding{
			Kind:       diag.KindUnresolvedReference,
			Severity:   diag.SeverityFatal,
			StepIndex:  stepIndex,
			Capability: step.Capability,
			Field:      b.Field,
			Ref:        b.Expr,
			Message:    err.Error(),
		})
		return out
	}

	var source typesys.Type
	if ref.IsInput() {
		param, ok := c.wf.Input(ref.Input)
		if !ok {
			c.addFinding(diag.Finding{
				Kind:       diag.KindUnresolvedReference,
				Severity:   diag.SeverityFatal,
				StepIndex:  stepIndex,
				Capability: step.Capability,
				Field:      b.Field,
				Ref:        b.Expr,
				Message:    fmt.Sprintf("unknown workflow input %q", ref.Input),
			})
			return out
		}
		source = param.Type
	} else {
		producerIndex, ok := c.scope[ref.StoreAs]
		if !ok {
			c.addFinding(diag.Finding{
				Kind:       diag.KindUnresolvedReference,
				Severity:   diag.SeverityFatal,
				StepIndex:  stepIndex,
				Capability: step.Capability,
				Field:      b.Field,
				Ref:        b.Expr,
				Message:    fmt.Sprintf("unknown store-as name %q", ref.StoreAs),
			})
			return out
		}
		if producerIndex >= stepIndex {
			c.addFinding(diag.Finding{
				Kind:       diag.KindUnresolvedReference,
				Severity:   diag.SeverityFatal,
				StepIndex:  stepIndex,
				Capability: step.Capability,
				Field:      b.Field,
				Ref:        b.Expr,
				Message:    fmt.Sprintf("store-as %q is not produced by an earlier step", ref.StoreAs),
			})
			return out
		}
		producer, ok := c.cat.Lookup(c.wf.Steps[producerIndex].Capability)
		if !ok {
			// The unknown capability is reported by the contract
			// checker for the producing step; nothing to infer here.
			return out
		}
		source = schemaType(producer.Outputs)
	}

	inferred, err := typesys.Walk(source, ref.Path)
	switch {
	case err == nil:
		out.resolved = inferred
		out.typed = true
	default:
		var pathErr *typesys.PathError
		var ambErr *typesys.AmbiguousError
		switch {
		case errors.As(err, &pathErr):
			c.addFinding(diag.Finding{
				Kind:       diag.KindInvalidFieldPath,
				Severity:   diag.SeverityFatal,
				StepIndex:  stepIndex,
				Capability: step.Capability,
				Field:      pathErr.Segment,
				Ref:        b.Expr,
				Message:    err.Error(),
			})
			return out
		case errors.As(err, &ambErr):
			// An explicit annotation resolves the ambiguity; that is
			// the whole point of flagging it.
			if ref.Declared == nil {
				c.addFinding(diag.Finding{
					Kind:       diag.KindAmbiguousType,
					Severity:   diag.SeverityFatal,
					StepIndex:  stepIndex,
					Capability: step.Capability,
					Field:      b.Field,
					Ref:        b.Expr,
					Message:    err.Error() + "; add an explicit type annotation",
				})
				return out
			}
		}
	}

	if ref.Declared != nil {
		if out.typed && !typesys.Equal(*ref.Declared, out.resolved) {
			c.addFinding(diag.Finding{
				Kind:       diag.KindAnnotationMismatch,
				Severity:   diag.SeverityFatal,
				StepIndex:  stepIndex,
				Capability: step.Capability,
				Field:      b.Field,
				Expected:   out.resolved.Render(),
				Actual:     ref.Declared.Render(),
				Ref:        b.Expr,
				Message:    fmt.Sprintf("annotation %s disagrees with inferred type %s", ref.Declared.Render(), out.resolved.Render()),
			})
		}
		// The declaration wins for downstream contract checks.
		out.resolved = *ref.Declared
		out.typed = true
	}

	return out
}
