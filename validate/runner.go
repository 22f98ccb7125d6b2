package validate

import (
	"sync"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/diag"
	"github.com/c360studio/capspec/graph"
	"github.com/c360studio/capspec/workflow"
)

// Options configures a validation run.
type Options struct {
	// Graph configures the integrity checker.
	Graph graph.CheckOptions

	// Coercions is the registry consulted for patch suggestions. Nil
	// disables patch generation.
	Coercions *Registry

	// Parallelism bounds the number of workflows validated
	// concurrently. Values below 2 validate sequentially. The catalog
	// and graph are read-only, so workers share them without locking.
	Parallelism int
}

// DefaultOptions returns the default run configuration.
func DefaultOptions() Options {
	return Options{
		Graph:       graph.DefaultCheckOptions(),
		Parallelism: 1,
	}
}

// Run validates the relationship graph and every workflow, returning
// one report with all findings. Diagnostics are ordered: graph findings
// first, then workflows in declaration order, steps in step order.
// Ordering holds regardless of parallelism, so output is reproducible.
// A malformed workflow never stops validation of its siblings.
func Run(cat *catalog.Catalog, g *graph.Graph, workflows []*workflow.Workflow, opts Options) *diag.Report {
	report := graph.Check(g, opts.Graph)

	perWorkflow := make([]*diag.Report, len(workflows))
	if opts.Parallelism > 1 && len(workflows) > 1 {
		// One result buffer per workflow; merged after join so partial
		// writes never interleave.
		indexes := make(chan int)
		var wg sync.WaitGroup
		workers := opts.Parallelism
		if workers > len(workflows) {
			workers = len(workflows)
		}
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indexes {
					perWorkflow[i] = newWorkflowChecker(cat, g, workflows[i], opts.Coercions).run()
				}
			}()
		}
		for i := range workflows {
			indexes <- i
		}
		close(indexes)
		wg.Wait()
	} else {
		for i, wf := range workflows {
			perWorkflow[i] = newWorkflowChecker(cat, g, wf, opts.Coercions).run()
		}
	}

	for _, r := range perWorkflow {
		report.Merge(r)
	}
	return report
}
