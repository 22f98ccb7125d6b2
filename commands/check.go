// Package commands implements the capspec CLI subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/capspec/config"
	"github.com/c360studio/capspec/diag"
	"github.com/c360studio/capspec/graph"
	"github.com/c360studio/capspec/loader"
	"github.com/c360studio/capspec/validate"
)

// NewCheckCommand creates the check subcommand: load documents, run
// validation, render the report.
func NewCheckCommand() *cobra.Command {
	var (
		format      string
		watch       bool
		duplicates  bool
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "check [patterns...]",
		Short: "Validate capability documents and workflows",
		Long: `Check loads capability, relation, workflow, and coercion documents,
verifies relationship graph integrity, resolves workflow bindings, and
checks every step against its consumer contract.

Document patterns default to the configured paths; arguments override
them. Exit status is 1 when any fatal finding is produced.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}

			cfg, err := config.NewLoader(nil).Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			patterns := cfg.Documents.Paths
			if len(args) > 0 {
				patterns = args
			}
			if parallelism > 0 {
				cfg.Validation.Parallelism = parallelism
			}
			if duplicates {
				cfg.Validation.DetectDuplicates = true
			}

			if watch {
				return runWatch(cmd, cfg, patterns, format)
			}

			report, bundle, err := runCheck(cfg, patterns)
			if err != nil {
				return err
			}
			if format == "text" {
				renderRisks(cmd, bundle)
			}
			renderReport(cmd, report, format)
			if !report.Pass() {
				return fmt.Errorf("validation failed: %d fatal finding(s)", report.Count(diag.SeverityFatal))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-validate when documents change")
	cmd.Flags().BoolVar(&duplicates, "duplicates", false, "Report duplicate relations between capability pairs")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Concurrent workflow validation bound (0 = use config)")

	return cmd
}

// runCheck loads the documents and runs one validation pass.
func runCheck(cfg *config.Config, patterns []string) (*diag.Report, *loader.Bundle, error) {
	bundle, err := loader.New(nil).Load(patterns)
	if err != nil {
		return nil, nil, err
	}

	opts := validate.Options{
		Graph: graph.CheckOptions{
			AsymmetrySeverity: cfg.AsymmetrySeverity(),
			DetectDuplicates:  cfg.Validation.DetectDuplicates,
		},
		Coercions:   bundle.Coercions,
		Parallelism: cfg.Validation.Parallelism,
	}
	return validate.Run(bundle.Catalog, bundle.Graph, bundle.Workflows, opts), bundle, nil
}

// renderRisks prints the derived risk tier of each workflow.
func renderRisks(cmd *cobra.Command, bundle *loader.Bundle) {
	out := cmd.OutOrStdout()
	for _, wf := range bundle.Workflows {
		fmt.Fprintf(out, "workflow %s: risk %s\n", wf.Name, wf.Risk(bundle.Catalog))
	}
	if len(bundle.Workflows) > 0 {
		fmt.Fprintln(out)
	}
}

// runWatch validates, then re-validates on every debounced document
// change until interrupted. Load errors do not stop the loop; the next
// save gets another chance.
func runWatch(cmd *cobra.Command, cfg *config.Config, patterns []string, format string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bundle, err := loader.New(nil).Load(patterns)
	if err != nil {
		return err
	}

	watcher, err := loader.NewWatcher(bundle.Files, cfg.Documents.WatchDebounce, nil)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Stop()
	watcher.Start(ctx)

	check := func() {
		report, loaded, err := runCheck(cfg, patterns)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "load error: %v\n", err)
			return
		}
		if format == "text" {
			renderRisks(cmd, loaded)
		}
		renderReport(cmd, report, format)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case changed, ok := <-watcher.Changes():
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n-- %d document(s) changed, re-validating --\n", len(changed))
			check()
		}
	}
}

// renderReport writes the report in the requested format.
func renderReport(cmd *cobra.Command, report *diag.Report, format string) {
	out := cmd.OutOrStdout()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	for _, f := range report.Findings {
		fmt.Fprintln(out, renderFinding(f))
	}
	for _, p := range report.Patches {
		fmt.Fprintln(out)
		fmt.Fprint(out, validate.RenderPatch(p))
	}

	fatal := report.Count(diag.SeverityFatal)
	warnings := report.Count(diag.SeverityWarning)
	infos := report.Count(diag.SeverityInfo)
	if report.Pass() && len(report.Findings) == 0 {
		fmt.Fprintln(out, "ok: no findings")
		return
	}
	fmt.Fprintf(out, "\n%d fatal, %d warning(s), %d info\n", fatal, warnings, infos)
}

// renderFinding formats one finding as a single line.
func renderFinding(f diag.Finding) string {
	loc := ""
	switch {
	case f.Workflow != "" && f.StepIndex >= 0:
		loc = fmt.Sprintf(" [%s step %d]", f.Workflow, f.StepIndex)
	case f.Workflow != "":
		loc = fmt.Sprintf(" [%s]", f.Workflow)
	case f.Capability != "":
		loc = fmt.Sprintf(" [%s]", f.Capability)
	}
	return fmt.Sprintf("%s: %s%s: %s", f.Severity, f.Kind, loc, f.Message)
}
