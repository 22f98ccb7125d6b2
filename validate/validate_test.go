package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/diag"
	"github.com/c360studio/capspec/graph"
	"github.com/c360studio/capspec/typesys"
	"github.com/c360studio/capspec/workflow"
)

// fixture builds a small catalog covering the checker scenarios.
func fixture(t *testing.T) (*catalog.Catalog, *graph.Graph) {
	t.Helper()

	fields := func(m map[string]typesys.Type, required ...string) catalog.Schema {
		req := make(map[string]bool, len(required))
		for _, r := range required {
			req[r] = true
		}
		out := catalog.Schema{Fields: map[string]catalog.Field{}}
		for name, typ := range m {
			out.Fields[name] = catalog.Field{Type: typ, Required: req[name]}
		}
		return out
	}

	cat, err := catalog.New([]catalog.Capability{
		{
			ID: "emit.number", Layer: "analysis", Risk: catalog.RiskLow,
			Inputs:  fields(nil),
			Outputs: fields(map[string]typesys.Type{"n": typesys.Number()}),
		},
		{
			ID: "consume.string", Layer: "analysis", Risk: catalog.RiskLow,
			Inputs:  fields(map[string]typesys.Type{"n": typesys.String()}, "n"),
			Outputs: fields(nil),
		},
		{
			ID: "consume.number", Layer: "analysis", Risk: catalog.RiskLow,
			Inputs:  fields(map[string]typesys.Type{"n": typesys.Number()}, "n"),
			Outputs: fields(nil),
		},
		{
			ID: "emit.opaque", Layer: "analysis", Risk: catalog.RiskLow,
			Inputs:  fields(nil),
			Outputs: fields(map[string]typesys.Type{"blob": typesys.Object(nil)}),
		},
		{
			ID: "number.to.string", Layer: "transform", Risk: catalog.RiskLow,
			Inputs:  fields(map[string]typesys.Type{"value": typesys.Number()}, "value"),
			Outputs: fields(map[string]typesys.Type{"result": typesys.String()}),
		},
		{
			ID: "checkpoint", Layer: "safety", Risk: catalog.RiskLow,
			Inputs:  fields(nil),
			Outputs: fields(nil),
		},
		{
			ID: "mutate", Layer: "execution", Risk: catalog.RiskHigh, Mutating: true,
			Inputs:  fields(nil),
			Outputs: fields(nil),
		},
	})
	require.NoError(t, err)

	g := graph.New(cat, []graph.Edge{
		{Source: "mutate", Target: "checkpoint", Kind: graph.KindRequires},
		{Source: "emit.number", Target: "consume.number", Kind: graph.KindEnables},
		{Source: "emit.opaque", Target: "consume.string", Kind: graph.KindEnables},
		{Source: "consume.string", Target: "number.to.string", Kind: graph.KindEnables},
	})
	return cat, g
}

func kindCount(r *diag.Report, kind diag.Kind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

func firstOfKind(t *testing.T, r *diag.Report, kind diag.Kind) diag.Finding {
	t.Helper()
	for _, f := range r.Findings {
		if f.Kind == kind {
			return f
		}
	}
	t.Fatalf("no %s finding in %+v", kind, r.Findings)
	return diag.Finding{}
}

func TestInference_RoundTrip(t *testing.T) {
	cat, g := fixture(t)

	wf := func(expr string) *workflow.Workflow {
		return &workflow.Workflow{
			Name: "roundtrip",
			Steps: []workflow.Step{
				{Capability: "emit.number", StoreAs: "step"},
				{Capability: "consume.number", StoreAs: "sink",
					Bindings: []workflow.Binding{{Field: "n", Expr: expr}}},
			},
		}
	}

	// Unannotated binding infers number and checks clean.
	report := Run(cat, g, []*workflow.Workflow{wf("${step.n}")}, DefaultOptions())
	assert.True(t, report.Pass())
	assert.Zero(t, kindCount(report, diag.KindAnnotationMismatch))
	assert.Zero(t, kindCount(report, diag.KindConsumerTypeMismatch))

	// Matching annotation produces zero mismatches.
	report = Run(cat, g, []*workflow.Workflow{wf("${step.n: number}")}, DefaultOptions())
	assert.Zero(t, kindCount(report, diag.KindAnnotationMismatch))

	// Disagreeing annotation produces exactly one.
	report = Run(cat, g, []*workflow.Workflow{wf("${step.n: string}")}, DefaultOptions())
	assert.Equal(t, 1, kindCount(report, diag.KindAnnotationMismatch))
	f := firstOfKind(t, report, diag.KindAnnotationMismatch)
	assert.Equal(t, "roundtrip", f.Workflow)
	assert.Equal(t, 1, f.StepIndex)
	assert.Equal(t, "consume.number", f.Capability)
}

func TestInference_OpaqueObjectIsAlwaysAmbiguous(t *testing.T) {
	cat, g := fixture(t)

	wf := &workflow.Workflow{
		Name: "boundary",
		Steps: []workflow.Step{
			{Capability: "emit.opaque", StoreAs: "step"},
			{Capability: "consume.string", StoreAs: "sink",
				Bindings: []workflow.Binding{{Field: "n", Expr: "${step.blob.anything}"}}},
		},
	}

	report := Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	assert.Equal(t, 1, kindCount(report, diag.KindAmbiguousType))
	assert.False(t, report.Pass())

	// An explicit annotation resolves the ambiguity.
	wf.Steps[1].Bindings[0].Expr = "${step.blob.anything: string}"
	report = Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	assert.Zero(t, kindCount(report, diag.KindAmbiguousType))
	assert.True(t, report.Pass())
}

func TestConsumerMismatch_WithCoercionPatch(t *testing.T) {
	cat, g := fixture(t)

	wf := &workflow.Workflow{
		Name: "scenario1",
		Steps: []workflow.Step{
			{Capability: "emit.number", StoreAs: "s1"},
			{Capability: "consume.string", StoreAs: "s2",
				Bindings: []workflow.Binding{{Field: "n", Expr: "${s1.n}"}}},
		},
	}

	// Without a registry: mismatch, no patch.
	report := Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	require.Equal(t, 1, kindCount(report, diag.KindConsumerTypeMismatch))
	assert.Empty(t, report.Patches)

	mismatch := firstOfKind(t, report, diag.KindConsumerTypeMismatch)
	assert.Equal(t, "scenario1", mismatch.Workflow)
	assert.Equal(t, 1, mismatch.StepIndex)
	assert.Equal(t, "consume.string", mismatch.Capability)
	assert.Equal(t, "n", mismatch.Field)
	assert.Equal(t, "string", mismatch.Expected)
	assert.Equal(t, "number", mismatch.Actual)
	assert.Equal(t, "${s1.n}", mismatch.Ref)

	// With a number->string rule: exactly one patch before step 1.
	opts := DefaultOptions()
	opts.Coercions = NewRegistry([]Rule{
		{From: typesys.Number(), To: typesys.String(), Via: "number.to.string"},
	})
	report = Run(cat, g, []*workflow.Workflow{wf}, opts)
	require.Len(t, report.Patches, 1)

	patch := report.Patches[0]
	assert.Equal(t, "scenario1", patch.Workflow)
	assert.Equal(t, 1, patch.InsertBefore)
	assert.Equal(t, "number.to.string", patch.Transform)
	assert.Equal(t, "${s1.n}", patch.InputRef)
	assert.Equal(t, "n", patch.RebindField)
	assert.NotEmpty(t, patch.StoreAs)

	// The workflow itself is untouched.
	assert.Len(t, wf.Steps, 2)
	assert.Equal(t, "${s1.n}", wf.Steps[1].Bindings[0].Expr)
}

func TestMissingPrerequisite(t *testing.T) {
	cat, g := fixture(t)

	// mutate without a prior checkpoint step.
	bare := &workflow.Workflow{
		Name:  "scenario2",
		Steps: []workflow.Step{{Capability: "mutate", StoreAs: "m"}},
	}
	report := Run(cat, g, []*workflow.Workflow{bare}, DefaultOptions())
	require.Equal(t, 1, kindCount(report, diag.KindMissingPrerequisite))

	f := firstOfKind(t, report, diag.KindMissingPrerequisite)
	assert.Equal(t, "mutate", f.Capability)
	assert.Contains(t, f.Message, "checkpoint")
	assert.False(t, report.Pass())

	// A prior checkpoint step satisfies the prerequisite.
	guarded := &workflow.Workflow{
		Name: "guarded",
		Steps: []workflow.Step{
			{Capability: "checkpoint", StoreAs: "cp"},
			{Capability: "mutate", StoreAs: "m"},
		},
	}
	report = Run(cat, g, []*workflow.Workflow{guarded}, DefaultOptions())
	assert.Zero(t, kindCount(report, diag.KindMissingPrerequisite))

	// Ordering matters: checkpoint after mutate does not satisfy.
	inverted := &workflow.Workflow{
		Name: "inverted",
		Steps: []workflow.Step{
			{Capability: "mutate", StoreAs: "m"},
			{Capability: "checkpoint", StoreAs: "cp"},
		},
	}
	report = Run(cat, g, []*workflow.Workflow{inverted}, DefaultOptions())
	assert.Equal(t, 1, kindCount(report, diag.KindMissingPrerequisite))
}

func TestBindingErrors(t *testing.T) {
	cat, g := fixture(t)

	wf := &workflow.Workflow{
		Name: "bindings",
		Steps: []workflow.Step{
			{Capability: "emit.number", StoreAs: "step"},
			{Capability: "consume.number", StoreAs: "sink", Bindings: []workflow.Binding{
				{Field: "n", Expr: "${ghost.n}"},
			}},
		},
	}
	report := Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	assert.Equal(t, 1, kindCount(report, diag.KindUnresolvedReference))

	wf.Steps[1].Bindings[0].Expr = "${step.missing.deeper}"
	report = Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	require.Equal(t, 1, kindCount(report, diag.KindInvalidFieldPath))
	f := firstOfKind(t, report, diag.KindInvalidFieldPath)
	assert.Equal(t, "missing", f.Field, "must name the first failing segment")

	// Forward references are not resolvable.
	wf.Steps[1].Bindings[0].Expr = "${sink.n}"
	report = Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	assert.Equal(t, 1, kindCount(report, diag.KindUnresolvedReference))
}

func TestWorkflowInputBindings(t *testing.T) {
	cat, g := fixture(t)

	wf := &workflow.Workflow{
		Name:   "inputs",
		Inputs: []workflow.Param{{Name: "seed", Type: typesys.Number()}},
		Steps: []workflow.Step{
			{Capability: "consume.number", StoreAs: "sink",
				Bindings: []workflow.Binding{{Field: "n", Expr: "${inputs.seed}"}}},
		},
	}
	report := Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	assert.True(t, report.Pass())

	wf.Steps[0].Bindings[0].Expr = "${inputs.unknown}"
	report = Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	assert.Equal(t, 1, kindCount(report, diag.KindUnresolvedReference))
}

func TestRequiredFieldWithoutBinding(t *testing.T) {
	cat, g := fixture(t)

	wf := &workflow.Workflow{
		Name:  "unbound",
		Steps: []workflow.Step{{Capability: "consume.number", StoreAs: "sink"}},
	}
	report := Run(cat, g, []*workflow.Workflow{wf}, DefaultOptions())
	require.Equal(t, 1, kindCount(report, diag.KindConsumerTypeMismatch))
	f := firstOfKind(t, report, diag.KindConsumerTypeMismatch)
	assert.Contains(t, f.Message, "no binding")
}

func TestSiblingWorkflowsAreIndependent(t *testing.T) {
	cat, g := fixture(t)

	broken := &workflow.Workflow{
		Name:  "broken",
		Steps: []workflow.Step{{Capability: "nope", StoreAs: "x"}},
	}
	clean := &workflow.Workflow{
		Name: "clean",
		Steps: []workflow.Step{
			{Capability: "emit.number", StoreAs: "step"},
			{Capability: "consume.number", StoreAs: "sink",
				Bindings: []workflow.Binding{{Field: "n", Expr: "${step.n}"}}},
		},
	}

	report := Run(cat, g, []*workflow.Workflow{broken, clean}, DefaultOptions())
	assert.Equal(t, 1, kindCount(report, diag.KindUnknownCapabilityReference))
	assert.False(t, report.Pass())

	// The clean sibling contributed no findings of its own.
	for _, f := range report.Findings {
		assert.NotEqual(t, "clean", f.Workflow)
	}
}

func TestParallelRunIsDeterministic(t *testing.T) {
	cat, g := fixture(t)

	workflows := make([]*workflow.Workflow, 0, 8)
	for i := 0; i < 8; i++ {
		name := string(rune('a' + i))
		workflows = append(workflows, &workflow.Workflow{
			Name: name,
			Steps: []workflow.Step{
				{Capability: "emit.number", StoreAs: "s1"},
				{Capability: "consume.string", StoreAs: "s2",
					Bindings: []workflow.Binding{{Field: "n", Expr: "${s1.n}"}}},
			},
		})
	}

	sequential := Run(cat, g, workflows, DefaultOptions())

	opts := DefaultOptions()
	opts.Parallelism = 4
	parallel := Run(cat, g, workflows, opts)

	require.Equal(t, len(sequential.Findings), len(parallel.Findings))
	for i := range sequential.Findings {
		assert.Equal(t, sequential.Findings[i], parallel.Findings[i])
	}
}

func TestMalformedWorkflowIsIsolated(t *testing.T) {
	cat, g := fixture(t)

	malformed := &workflow.Workflow{
		Name: "dup",
		Steps: []workflow.Step{
			{Capability: "emit.number", StoreAs: "x"},
			{Capability: "checkpoint", StoreAs: "x"},
		},
	}
	report := Run(cat, g, []*workflow.Workflow{malformed}, DefaultOptions())
	assert.Equal(t, 1, kindCount(report, diag.KindMalformedWorkflow))
	assert.False(t, report.Pass())
}
