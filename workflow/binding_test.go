package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/capspec/typesys"
)

func TestParseExpression_StoreAs(t *testing.T) {
	ref, err := ParseExpression("${scan.matches}")
	require.NoError(t, err)
	assert.Equal(t, "scan", ref.StoreAs)
	assert.Equal(t, []string{"matches"}, ref.Path)
	assert.Nil(t, ref.Declared)
	assert.False(t, ref.IsInput())

	ref, err = ParseExpression("${scan.report.items.0.name}")
	require.NoError(t, err)
	assert.Equal(t, []string{"report", "items", "0", "name"}, ref.Path)
}

func TestParseExpression_WholeOutput(t *testing.T) {
	ref, err := ParseExpression("${scan}")
	require.NoError(t, err)
	assert.Equal(t, "scan", ref.StoreAs)
	assert.Empty(t, ref.Path)
}

func TestParseExpression_WorkflowInput(t *testing.T) {
	ref, err := ParseExpression("${inputs.root}")
	require.NoError(t, err)
	assert.True(t, ref.IsInput())
	assert.Equal(t, "root", ref.Input)
	assert.Empty(t, ref.Path)

	ref, err = ParseExpression("${inputs.options.depth}")
	require.NoError(t, err)
	assert.Equal(t, "options", ref.Input)
	assert.Equal(t, []string{"depth"}, ref.Path)
}

func TestParseExpression_Annotation(t *testing.T) {
	ref, err := ParseExpression("${scan.n: number}")
	require.NoError(t, err)
	require.NotNil(t, ref.Declared)
	assert.True(t, typesys.Equal(*ref.Declared, typesys.Number()))

	ref, err = ParseExpression("${scan.items: array<string>}")
	require.NoError(t, err)
	require.NotNil(t, ref.Declared)
	assert.True(t, typesys.Equal(*ref.Declared, typesys.Array(typesys.String())))
}

func TestParseExpression_Errors(t *testing.T) {
	bad := []string{
		"",
		"scan.matches",
		"${}",
		"${scan..matches}",
		"${.matches}",
		"${scan.n: }",
		"${scan.n: bogus}",
		"${inputs}",
	}

	for _, expr := range bad {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseExpression(expr)
			assert.Error(t, err)
		})
	}
}

func TestWorkflowValidate(t *testing.T) {
	wf := &Workflow{
		Name: "audit",
		Steps: []Step{
			{Capability: "scan.files", StoreAs: "scan"},
			{Capability: "score.risk", StoreAs: "score",
				Gates:     []Gate{{When: "scan.empty", Action: GateSkip}},
				OnFailure: []FailureRule{{When: "timeout", Action: FailRetry}}},
		},
	}
	assert.NoError(t, wf.Validate())

	dup := &Workflow{Name: "d", Steps: []Step{
		{Capability: "a", StoreAs: "x"},
		{Capability: "b", StoreAs: "x"},
	}}
	assert.Error(t, dup.Validate())

	noSteps := &Workflow{Name: "empty"}
	assert.Error(t, noSteps.Validate())

	badGate := &Workflow{Name: "g", Steps: []Step{
		{Capability: "a", StoreAs: "x", Gates: []Gate{{When: "c", Action: "halt"}}},
	}}
	assert.Error(t, badGate.Validate())

	badFailure := &Workflow{Name: "f", Steps: []Step{
		{Capability: "a", StoreAs: "x", OnFailure: []FailureRule{{When: "c", Action: "explode"}}},
	}}
	assert.Error(t, badFailure.Validate())
}

func TestStepBindingLookup(t *testing.T) {
	s := Step{Bindings: []Binding{
		{Field: "root", Expr: "${inputs.root}"},
		{Field: "depth", Expr: "${inputs.depth}"},
	}}

	b, ok := s.Binding("depth")
	assert.True(t, ok)
	assert.Equal(t, "${inputs.depth}", b.Expr)

	_, ok = s.Binding("missing")
	assert.False(t, ok)
}
