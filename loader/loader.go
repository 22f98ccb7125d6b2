package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/capspec/catalog"
	"github.com/c360studio/capspec/graph"
	"github.com/c360studio/capspec/validate"
	"github.com/c360studio/capspec/workflow"
)

// Bundle is everything loaded from a set of documents, assembled and
// ready for validation.
type Bundle struct {
	Catalog   *catalog.Catalog
	Graph     *graph.Graph
	Workflows []*workflow.Workflow
	Coercions *validate.Registry

	// Files lists the documents the bundle was built from, sorted.
	Files []string
}

// Loader reads documents matched by glob patterns.
type Loader struct {
	logger *slog.Logger
}

// New creates a loader. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Source is one in-memory document, named for error context.
type Source struct {
	Name string
	Data []byte
}

// Load expands the patterns, parses every matched YAML document, and
// assembles the bundle. Parsing stops at the first malformed document;
// semantic defects are left for the validation engine.
func (l *Loader) Load(patterns []string) (*Bundle, error) {
	files, err := resolveFiles(patterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no documents match %v", patterns)
	}

	sources := make([]Source, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		sources = append(sources, Source{Name: file, Data: data})
	}

	bundle, err := l.LoadSources(sources)
	if err != nil {
		return nil, err
	}
	bundle.Files = files
	return bundle, nil
}

// LoadSources parses and assembles in-memory documents. This is the
// path used by the validation service, where requests carry document
// content instead of paths.
func (l *Loader) LoadSources(sources []Source) (*Bundle, error) {
	var (
		caps      []catalog.Capability
		edges     []graph.Edge
		workflows []*workflow.Workflow
		rules     []validate.Rule
	)

	for _, src := range sources {
		var doc document
		if err := yaml.Unmarshal(src.Data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", src.Name, err)
		}

		for _, cd := range doc.Capabilities {
			cap, err := cd.toCapability()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", src.Name, err)
			}
			caps = append(caps, cap)
		}
		for _, rd := range doc.Relations {
			edge, err := rd.toEdge()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", src.Name, err)
			}
			edges = append(edges, edge)
		}
		for _, wd := range doc.Workflows {
			wf, err := wd.toWorkflow()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", src.Name, err)
			}
			workflows = append(workflows, wf)
		}
		for _, cd := range doc.Coercions {
			rule, err := cd.toRule()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", src.Name, err)
			}
			rules = append(rules, rule)
		}

		l.logger.Debug("Loaded document",
			"source", src.Name,
			"capabilities", len(doc.Capabilities),
			"relations", len(doc.Relations),
			"workflows", len(doc.Workflows))
	}

	cat, err := catalog.New(caps)
	if err != nil {
		return nil, fmt.Errorf("assemble catalog: %w", err)
	}

	l.logger.Info("Documents loaded",
		"sources", len(sources),
		"capabilities", cat.Len(),
		"edges", len(edges),
		"workflows", len(workflows),
		"coercions", len(rules))

	return &Bundle{
		Catalog:   cat,
		Graph:     graph.New(cat, edges),
		Workflows: workflows,
		Coercions: validate.NewRegistry(rules),
	}, nil
}

// resolveFiles expands glob patterns to a sorted, deduplicated list of
// YAML files. Patterns without glob characters must name an existing
// file or directory; directories are read recursively.
func resolveFiles(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[") {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("resolve %q: %w", pattern, err)
			}
			if info.IsDir() {
				dirFiles, err := doublestar.FilepathGlob(filepath.Join(pattern, "**", "*.y{a,}ml"))
				if err != nil {
					return nil, fmt.Errorf("resolve %q: %w", pattern, err)
				}
				for _, f := range dirFiles {
					add(f)
				}
				continue
			}
			add(pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", pattern, err)
		}
		for _, m := range matches {
			if isYAML(m) {
				add(m)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
