// Package workflow models declarative capability pipelines: ordered
// steps with store-as bindings, gates, failure policies, and grouping
// metadata. Instances are read-only inputs to validation; nothing here
// executes a workflow.
package workflow

import (
	"fmt"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/typesys"
)

// GateAction is what happens when a gate condition holds.
type GateAction string

const (
	// GateSkip skips the gated step.
	GateSkip GateAction = "skip"
	// GateStop stops the whole workflow.
	GateStop GateAction = "stop"
)

// IsValid checks if a gate action is known.
func (a GateAction) IsValid() bool {
	return a == GateSkip || a == GateStop
}

// FailureAction is the policy applied when a step fails.
type FailureAction string

const (
	// FailStop aborts the workflow.
	FailStop FailureAction = "stop"
	// FailRollback aborts and undoes prior mutating steps.
	FailRollback FailureAction = "rollback"
	// FailRetry re-attempts the step.
	FailRetry FailureAction = "retry"
	// FailRequestContext pauses and asks the operator for input.
	FailRequestContext FailureAction = "request_context"
	// FailPause suspends the workflow for manual resumption.
	FailPause FailureAction = "pause"
)

// IsValid checks if a failure action is known.
func (a FailureAction) IsValid() bool {
	switch a {
	case FailStop, FailRollback, FailRetry, FailRequestContext, FailPause:
		return true
	}
	return false
}

// Gate is a conditional guard on a step.
type Gate struct {
	// When is the gate condition expression.
	When string `json:"when"`

	// Action is taken when the condition holds.
	Action GateAction `json:"action"`
}

// FailureRule maps a failure condition to a handling policy.
type FailureRule struct {
	// When is the failure condition expression.
	When string `json:"when"`

	// Action is the handling policy.
	Action FailureAction `json:"action"`
}

// Binding supplies one consumer input field from a binding expression.
type Binding struct {
	// Field is the consuming capability's input field name.
	Field string `json:"field"`

	// Expr is the raw binding expression, e.g. "${scan.matches}".
	Expr string `json:"expr"`
}

// Step is one capability invocation in a workflow.
type Step struct {
	// Capability references the invoked capability by id.
	Capability string `json:"capability"`

	// Domain is an optional semantic refinement. It never alters the
	// capability's type contract.
	Domain string `json:"domain,omitempty"`

	// StoreAs is the unique name under which the step's output is
	// addressable to later steps.
	StoreAs string `json:"store_as"`

	// Bindings supply the step's input fields, in declaration order.
	Bindings []Binding `json:"bindings,omitempty"`

	// Gates conditionally skip or stop the step.
	Gates []Gate `json:"gates,omitempty"`

	// OnFailure lists failure-handling rules.
	OnFailure []FailureRule `json:"on_failure,omitempty"`

	// Group tags steps that may run concurrently.
	Group string `json:"group,omitempty"`

	// Conforms optionally names an explicit schema-conformance target.
	Conforms string `json:"conforms,omitempty"`
}

// Binding returns the binding for an input field, if declared.
func (s *Step) Binding(field string) (Binding, bool) {
	for _, b := range s.Bindings {
		if b.Field == field {
			return b, true
		}
	}
	return Binding{}, false
}

// Param is a declared, typed workflow input parameter.
type Param struct {
	Name string       `json:"name"`
	Type typesys.Type `json:"type"`
}

// Workflow is a named, declarative composition of steps.
type Workflow struct {
	// Name identifies the workflow.
	Name string `json:"name"`

	// Inputs are the declared workflow parameters, in declaration
	// order.
	Inputs []Param `json:"inputs,omitempty"`

	// Steps is the ordered pipeline.
	Steps []Step `json:"steps"`
}

// Input returns the declared input parameter for a name.
func (w *Workflow) Input(name string) (Param, bool) {
	for _, p := range w.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Risk derives the workflow risk as the maximum of its steps' declared
// risk tiers. Steps referencing unknown capabilities contribute
// nothing; the checker reports those separately.
func (w *Workflow) Risk(cat *catalog.Catalog) catalog.RiskTier {
	risk := catalog.RiskTier("")
	for _, s := range w.Steps {
		if c, ok := cat.Lookup(s.Capability); ok {
			risk = catalog.MaxRisk(risk, c.Risk)
		}
	}
	if risk == "" {
		risk = catalog.RiskLow
	}
	return risk
}

// Validate checks the workflow's intrinsic structure: a name, at least
// one step, unique non-empty store-as names, and known gate and failure
// actions. Cross-document checks belong to the validation engine.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", w.Name)
	}

	seen := make(map[string]bool, len(w.Steps))
	for i, s := range w.Steps {
		if s.Capability == "" {
			return fmt.Errorf("workflow %q step %d: capability is required", w.Name, i)
		}
		if s.StoreAs == "" {
			return fmt.Errorf("workflow %q step %d: store_as is required", w.Name, i)
		}
		if seen[s.StoreAs] {
			return fmt.Errorf("workflow %q step %d: duplicate store_as %q", w.Name, i, s.StoreAs)
		}
		seen[s.StoreAs] = true

		for _, g := range s.Gates {
			if !g.Action.IsValid() {
				return fmt.Errorf("workflow %q step %d: unknown gate action %q", w.Name, i, g.Action)
			}
		}
		for _, r := range s.OnFailure {
			if !r.Action.IsValid() {
				return fmt.Errorf("workflow %q step %d: unknown failure action %q", w.Name, i, r.Action)
			}
		}
	}
	return nil
}
