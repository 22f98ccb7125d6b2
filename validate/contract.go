package validate

import (
	"fmt"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/diag"
	"github.com/c360studio/capspec/graph"
	"github.com/c360studio/capspec/typesys"
	"github.com/c360studio/capspec/workflow"
)

// workflowChecker validates one workflow against the shared catalog and
// graph. Checks accumulate findings; nothing short-circuits, so one run
// surfaces every defect in the workflow.
type workflowChecker struct {
	cat       *catalog.Catalog
	g         *graph.Graph
	wf        *workflow.Workflow
	scope     scope
	coercions *Registry
	report    *diag.Report
}

func newWorkflowChecker(cat *catalog.Catalog, g *graph.Graph, wf *workflow.Workflow, coercions *Registry) *workflowChecker {
	return &workflowChecker{
		cat:       cat,
		g:         g,
		wf:        wf,
		scope:     buildScope(wf),
		coercions: coercions,
		report:    &diag.Report{},
	}
}

func (c *workflowChecker) addFinding(f diag.Finding) {
	f.Workflow = c.wf.Name
	c.report.Add(f)
}

// run performs all checks for the workflow and returns its report.
func (c *workflowChecker) run() *diag.Report {
	if err := c.wf.Validate(); err != nil {
		c.addFinding(diag.Finding{
			Kind:      diag.KindMalformedWorkflow,
			Severity:  diag.SeverityFatal,
			StepIndex: -1,
			Message:   err.Error(),
		})
		return c.report
	}

	for i := range c.wf.Steps {
		c.checkStep(i)
	}
	return c.report
}

// checkStep resolves the step's bindings, checks them against the
// consumer contract, and verifies prerequisite ordering. Each binding
// and field is checked independently so one mismatch does not suppress
// detection of others.
func (c *workflowChecker) checkStep(stepIndex int) {
	step := c.wf.Steps[stepIndex]

	consumer, ok := c.cat.Lookup(step.Capability)
	if !ok {
		c.addFinding(diag.Finding{
			Kind:       diag.KindUnknownCapabilityReference,
			Severity:   diag.SeverityFatal,
			StepIndex:  stepIndex,
			Capability: step.Capability,
			Message:    fmt.Sprintf("step references unknown capability %q", step.Capability),
		})
		return
	}

	// Resolve every declared binding, typed or not.
	resolved := make(map[string]binding, len(step.Bindings))
	for _, b := range step.Bindings {
		resolved[b.Field] = c.resolveBinding(stepIndex, b)
	}

	// Consumer contract: every required input field must be supplied by
	// a binding whose type matches the declared input type.
	for _, field := range consumer.Inputs.FieldNames() {
		spec := consumer.Inputs.Fields[field]
		if !spec.Required {
			if bound, ok := resolved[field]; ok && bound.typed {
				c.checkFieldType(stepIndex, step, field, spec, bound)
			}
			continue
		}

		bound, ok := resolved[field]
		if !ok {
			c.addFinding(diag.Finding{
				Kind:       diag.KindConsumerTypeMismatch,
				Severity:   diag.SeverityFatal,
				StepIndex:  stepIndex,
				Capability: step.Capability,
				Field:      field,
				Expected:   spec.Type.Render(),
				Message:    fmt.Sprintf("required input %q has no binding", field),
			})
			continue
		}
		if !bound.typed {
			// The binding itself already produced a finding.
			continue
		}
		c.checkFieldType(stepIndex, step, field, spec, bound)
	}

	c.checkPrerequisites(stepIndex, step)
}

// checkFieldType compares one binding's resolved type against the
// consumer's declared input type, suggesting a coercion patch on
// mismatch when the registry knows one.
func (c *workflowChecker) checkFieldType(stepIndex int, step workflow.Step, field string, spec catalog.Field, bound binding) {
	if typesys.Equal(bound.resolved, spec.Type) {
		return
	}

	c.addFinding(diag.Finding{
		Kind:       diag.KindConsumerTypeMismatch,
		Severity:   diag.SeverityFatal,
		StepIndex:  stepIndex,
		Capability: step.Capability,
		Field:      field,
		Expected:   spec.Type.Render(),
		Actual:     bound.resolved.Render(),
		Ref:        bound.ref.Raw,
		Message:    fmt.Sprintf("binding %s has type %s, consumer expects %s", bound.ref.Raw, bound.resolved.Render(), spec.Type.Render()),
	})

	if c.coercions != nil {
		if patch, ok := c.coercions.Suggest(c.wf.Name, stepIndex, field, bound.ref.Raw, bound.resolved, spec.Type); ok {
			c.report.Patches = append(c.report.Patches, patch)
		}
	}
}

// checkPrerequisites walks the step capability's hard requires edges:
// every prerequisite must appear as an earlier step in this workflow.
// Exact capability-id match only; satisfaction through specializes
// descendants is deliberately not assumed.
func (c *workflowChecker) checkPrerequisites(stepIndex int, step workflow.Step) {
	for _, prereq := range c.g.Requires(step.Capability) {
		satisfied := false
		for i := 0; i < stepIndex; i++ {
			if c.wf.Steps[i].Capability == prereq {
				satisfied = true
				break
			}
		}
		if !satisfied {
			c.addFinding(diag.Finding{
				Kind:       diag.KindMissingPrerequisite,
				Severity:   diag.SeverityFatal,
				StepIndex:  stepIndex,
				Capability: step.Capability,
				Message:    fmt.Sprintf("capability %q requires %q, which does not appear as an earlier step", step.Capability, prereq),
			})
		}
	}
}
