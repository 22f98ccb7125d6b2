// Package loader reads capability, relation, workflow, and coercion
// documents from YAML files and assembles them into the in-memory model.
// Paths may contain glob patterns, including ** for recursive matching.
package loader

import (
	"fmt"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/graph"
	"github.com/c360studio/capspec/typesys"
	"github.com/c360studio/capspec/validate"
	"github.com/c360studio/capspec/workflow"
)

// document is the top-level YAML shape. A single file may declare any
// combination of sections; most projects split them by concern.
type document struct {
	Capabilities []capabilityDoc `yaml:"capabilities"`
	Relations    []relationDoc   `yaml:"relations"`
	Workflows    []workflowDoc   `yaml:"workflows"`
	Coercions    []coercionDoc   `yaml:"coercions"`
}

// capabilityDoc is the YAML form of one capability record.
type capabilityDoc struct {
	ID       string              `yaml:"id"`
	Layer    string              `yaml:"layer"`
	Risk     string              `yaml:"risk"`
	Mutating bool                `yaml:"mutating"`
	Inputs   map[string]fieldDoc `yaml:"inputs"`
	Outputs  map[string]fieldDoc `yaml:"outputs"`
}

// fieldDoc is the YAML form of one schema field. Type is a type
// expression; Properties optionally gives an object type inline
// structure instead.
type fieldDoc struct {
	Type        string              `yaml:"type"`
	Required    bool                `yaml:"required"`
	Description string              `yaml:"description"`
	Properties  map[string]fieldDoc `yaml:"properties"`
}

type relationDoc struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Kind   string `yaml:"kind"`
}

type workflowDoc struct {
	Name   string     `yaml:"name"`
	Inputs []paramDoc `yaml:"inputs"`
	Steps  []stepDoc  `yaml:"steps"`
}

type paramDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type stepDoc struct {
	Capability string            `yaml:"capability"`
	Domain     string            `yaml:"domain"`
	StoreAs    string            `yaml:"store_as"`
	With       map[string]string `yaml:"with"`
	Gates      []gateDoc         `yaml:"gates"`
	OnFailure  []failureDoc      `yaml:"on_failure"`
	Group      string            `yaml:"group"`
	Conforms   string            `yaml:"conforms"`
}

type gateDoc struct {
	When   string `yaml:"when"`
	Action string `yaml:"action"`
}

type failureDoc struct {
	When   string `yaml:"when"`
	Action string `yaml:"action"`
}

type coercionDoc struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Via  string `yaml:"via"`
}

// fieldType resolves a field document to a concrete type. Inline
// properties win over a bare "object" type expression so authors can
// describe structure without a separate grammar.
func (f fieldDoc) fieldType() (typesys.Type, error) {
	if len(f.Properties) > 0 {
		props := make(map[string]typesys.Type, len(f.Properties))
		for name, sub := range f.Properties {
			t, err := sub.fieldType()
			if err != nil {
				return typesys.Type{}, fmt.Errorf("property %q: %w", name, err)
			}
			props[name] = t
		}
		return typesys.Object(props), nil
	}
	if f.Type == "" {
		return typesys.Any(), nil
	}
	return typesys.Parse(f.Type)
}

func (d capabilityDoc) toCapability() (catalog.Capability, error) {
	cap := catalog.Capability{
		ID:       d.ID,
		Layer:    d.Layer,
		Risk:     catalog.RiskTier(d.Risk),
		Mutating: d.Mutating,
		Inputs:   catalog.Schema{Fields: map[string]catalog.Field{}},
		Outputs:  catalog.Schema{Fields: map[string]catalog.Field{}},
	}
	if d.Risk == "" {
		cap.Risk = catalog.RiskLow
	}

	for name, fd := range d.Inputs {
		t, err := fd.fieldType()
		if err != nil {
			return catalog.Capability{}, fmt.Errorf("capability %q input %q: %w", d.ID, name, err)
		}
		cap.Inputs.Fields[name] = catalog.Field{Type: t, Required: fd.Required, Description: fd.Description}
	}
	for name, fd := range d.Outputs {
		t, err := fd.fieldType()
		if err != nil {
			return catalog.Capability{}, fmt.Errorf("capability %q output %q: %w", d.ID, name, err)
		}
		cap.Outputs.Fields[name] = catalog.Field{Type: t, Required: fd.Required, Description: fd.Description}
	}
	return cap, nil
}

func (d relationDoc) toEdge() (graph.Edge, error) {
	kind := graph.ParseKind(d.Kind)
	if kind == "" {
		return graph.Edge{}, fmt.Errorf("relation %s -> %s: unknown kind %q", d.Source, d.Target, d.Kind)
	}
	return graph.Edge{Source: d.Source, Target: d.Target, Kind: kind}, nil
}

func (d workflowDoc) toWorkflow() (*workflow.Workflow, error) {
	wf := &workflow.Workflow{Name: d.Name}

	for _, p := range d.Inputs {
		t, err := typesys.Parse(p.Type)
		if err != nil {
			return nil, fmt.Errorf("workflow %q input %q: %w", d.Name, p.Name, err)
		}
		wf.Inputs = append(wf.Inputs, workflow.Param{Name: p.Name, Type: t})
	}

	for _, s := range d.Steps {
		step := workflow.Step{
			Capability: s.Capability,
			Domain:     s.Domain,
			StoreAs:    s.StoreAs,
			Group:      s.Group,
			Conforms:   s.Conforms,
		}
		// Binding order is normalized by field name so validation output
		// does not depend on YAML map iteration.
		for _, field := range sortedKeys(s.With) {
			step.Bindings = append(step.Bindings, workflow.Binding{Field: field, Expr: s.With[field]})
		}
		for _, g := range s.Gates {
			step.Gates = append(step.Gates, workflow.Gate{When: g.When, Action: workflow.GateAction(g.Action)})
		}
		for _, f := range s.OnFailure {
			step.OnFailure = append(step.OnFailure, workflow.FailureRule{When: f.When, Action: workflow.FailureAction(f.Action)})
		}
		wf.Steps = append(wf.Steps, step)
	}
	return wf, nil
}

func (d coercionDoc) toRule() (validate.Rule, error) {
	from, err := typesys.Parse(d.From)
	if err != nil {
		return validate.Rule{}, fmt.Errorf("coercion from type: %w", err)
	}
	to, err := typesys.Parse(d.To)
	if err != nil {
		return validate.Rule{}, fmt.Errorf("coercion to type: %w", err)
	}
	if d.Via == "" {
		return validate.Rule{}, fmt.Errorf("coercion %s -> %s: missing via capability", d.From, d.To)
	}
	return validate.Rule{From: from, To: to, Via: d.Via}, nil
}
