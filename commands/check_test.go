package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/config"
	"github.com/c360studio/capspec/diag"
)

const checkTestDoc = `
capabilities:
  - id: scan.files
    layer: analysis
    risk: low
    inputs: {}
    outputs:
      count: {type: integer}
  - id: summarize
    layer: presentation
    risk: low
    inputs:
      total: {type: integer, required: true}
    outputs: {}
workflows:
  - name: summary
    steps:
      - capability: scan.files
        store_as: scan
      - capability: summarize
        store_as: out
        with:
          total: "${scan.count}"
`

const checkBrokenDoc = `
capabilities:
  - id: a
    layer: l
    inputs: {}
    outputs: {}
relations:
  - {source: a, target: ghost, kind: requires}
`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunCheck(t *testing.T) {
	cfg := config.DefaultConfig()

	report, bundle, err := runCheck(cfg, []string{writeDoc(t, checkTestDoc)})
	require.NoError(t, err)
	assert.True(t, report.Pass(), "findings: %+v", report.Findings)
	require.Len(t, bundle.Workflows, 1)
	assert.Equal(t, catalog.RiskLow, bundle.Workflows[0].Risk(bundle.Catalog))

	report, _, err = runCheck(cfg, []string{writeDoc(t, checkBrokenDoc)})
	require.NoError(t, err)
	assert.False(t, report.Pass())
	assert.Equal(t, 1, report.Count(diag.SeverityFatal))
}

func TestRenderReport_Text(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	report := &diag.Report{
		Findings: []diag.Finding{
			{
				Kind:      diag.KindConsumerTypeMismatch,
				Severity:  diag.SeverityFatal,
				Workflow:  "summary",
				StepIndex: 1,
				Message:   "binding has type number, consumer expects string",
			},
			{
				Kind:       diag.KindOrphanCapability,
				Severity:   diag.SeverityWarning,
				StepIndex:  -1,
				Capability: "unused",
				Message:    "capability participates in no relations",
			},
		},
	}
	renderReport(cmd, report, "text")

	out := buf.String()
	assert.Contains(t, out, "ConsumerTypeMismatch")
	assert.Contains(t, out, "[summary step 1]")
	assert.Contains(t, out, "[unused]")
	assert.Contains(t, out, "1 fatal, 1 warning(s), 0 info")
}

func TestRenderReport_CleanText(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	renderReport(cmd, &diag.Report{}, "text")
	assert.Contains(t, buf.String(), "ok: no findings")
}

func TestRenderReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	report := &diag.Report{
		Findings: []diag.Finding{
			{Kind: diag.KindOrderingCycle, Severity: diag.SeverityFatal, StepIndex: -1, Message: "cycle"},
		},
	}
	renderReport(cmd, report, "json")

	var decoded diag.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Findings, 1)
	assert.Equal(t, diag.KindOrderingCycle, decoded.Findings[0].Kind)
}
