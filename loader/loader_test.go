package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/graph"
	"github.com/c360studio/capspec/typesys"
	"github.com/c360studio/capspec/validate"
)

const catalogYAML = `
capabilities:
  - id: fs.read
    layer: analysis
    risk: low
    inputs:
      path: {type: string, required: true}
    outputs:
      content: {type: string}
      metadata:
        properties:
          size: {type: integer}
          tags: {type: array<string>}
  - id: report.render
    layer: presentation
    risk: medium
    mutating: true
    inputs:
      body: {type: string, required: true}
    outputs: {}
relations:
  - {source: report.render, target: fs.read, kind: requires}
coercions:
  - {from: number, to: string, via: number.to.string}
`

const workflowYAML = `
workflows:
  - name: render-file
    inputs:
      - {name: target, type: string}
    steps:
      - capability: fs.read
        store_as: scan
        with:
          path: "${inputs.target}"
      - capability: report.render
        store_as: out
        with:
          body: "${scan.content}"
        on_failure:
          - {when: error, action: stop}
`

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestLoad_AssemblesBundle(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"catalog.yaml":            catalogYAML,
		"workflows/render.yaml":   workflowYAML,
		"workflows/notes.txt":     "not a document",
		"workflows/unrelated.xml": "<x/>",
	})

	bundle, err := New(nil).Load([]string{filepath.Join(dir, "**", "*.yaml")})
	require.NoError(t, err)

	assert.Equal(t, 2, bundle.Catalog.Len())
	assert.Len(t, bundle.Graph.Edges(), 1)
	assert.Len(t, bundle.Workflows, 1)
	assert.Equal(t, 1, bundle.Coercions.Len())
	assert.Len(t, bundle.Files, 2)

	cap, ok := bundle.Catalog.Lookup("fs.read")
	require.True(t, ok)
	assert.True(t, cap.Inputs.Fields["path"].Required)

	// Inline properties become a structured object type.
	meta := cap.Outputs.Fields["metadata"].Type
	require.Equal(t, typesys.KindObject, meta.Kind)
	assert.True(t, typesys.Equal(meta.Props["tags"], typesys.Array(typesys.String())))

	// Provenance fields are injected during assembly.
	_, ok = cap.Outputs.Fields[catalog.FieldEvidence]
	assert.True(t, ok)

	wf := bundle.Workflows[0]
	assert.Equal(t, "render-file", wf.Name)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "${scan.content}", wf.Steps[1].Bindings[0].Expr)

	// Loaded bundles validate end to end.
	opts := validate.DefaultOptions()
	opts.Coercions = bundle.Coercions
	report := validate.Run(bundle.Catalog, bundle.Graph, bundle.Workflows, opts)
	assert.True(t, report.Pass(), "findings: %+v", report.Findings)
}

func TestLoad_Directory(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"catalog.yml": catalogYAML,
	})

	bundle, err := New(nil).Load([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, 2, bundle.Catalog.Len())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			content: "capabilities:\n  - id: [broken",
			wantErr: "parse",
		},
		{
			name:    "bad type expression",
			content: "capabilities:\n  - id: x\n    layer: l\n    inputs:\n      a: {type: 'array<'}\n    outputs: {}",
			wantErr: "input",
		},
		{
			name:    "bad relation kind",
			content: "relations:\n  - {source: a, target: b, kind: sometimes}",
			wantErr: "sometimes",
		},
		{
			name:    "coercion without via",
			content: "coercions:\n  - {from: number, to: string}",
			wantErr: "via",
		},
		{
			name:    "duplicate capability id",
			content: "capabilities:\n  - {id: x, layer: l, inputs: {}, outputs: {}}\n  - {id: x, layer: l, inputs: {}, outputs: {}}",
			wantErr: "assemble catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeDocs(t, map[string]string{"doc.yaml": tt.content})
			_, err := New(nil).Load([]string{filepath.Join(dir, "doc.yaml")})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_NoMatches(t *testing.T) {
	dir := t.TempDir()
	_, err := New(nil).Load([]string{filepath.Join(dir, "*.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents")
}

func TestEmptyRiskDefaultsToLow(t *testing.T) {
	dir := writeDocs(t, map[string]string{
		"doc.yaml": "capabilities:\n  - {id: x, layer: l, inputs: {}, outputs: {}}",
	})
	bundle, err := New(nil).Load([]string{filepath.Join(dir, "doc.yaml")})
	require.NoError(t, err)

	cap, ok := bundle.Catalog.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, catalog.RiskLow, cap.Risk)
}

func TestGraphEdgeFromDocument(t *testing.T) {
	dir := writeDocs(t, map[string]string{"catalog.yaml": catalogYAML})
	bundle, err := New(nil).Load([]string{filepath.Join(dir, "catalog.yaml")})
	require.NoError(t, err)

	assert.True(t, bundle.Graph.HasEdge("report.render", "fs.read", graph.KindRequires))
	assert.Equal(t, []string{"fs.read"}, bundle.Graph.Requires("report.render"))
}

func TestWatcher_EmitsDebouncedChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capabilities: []\n"), 0644))

	w, err := NewWatcher([]string{path}, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(path, []byte("capabilities: []\nrelations: []\n"), 0644))

	select {
	case changed := <-w.Changes():
		assert.Contains(t, changed, path)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatcher_IgnoresIdenticalRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yaml")
	content := []byte("capabilities: []\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	w, err := NewWatcher([]string{path}, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// Rewrite with identical bytes. No notification should arrive.
	require.NoError(t, os.WriteFile(path, content, 0644))

	select {
	case changed := <-w.Changes():
		t.Fatalf("unexpected notification: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}
}
