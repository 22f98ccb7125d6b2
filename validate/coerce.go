package validate

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/c360studio/capspec/diag"
	"github.com/c360studio/capspec/typesys"
)

// Rule is one registered, deterministic type conversion.
type Rule struct {
	// From and To are the coerced types.
	From typesys.Type `json:"from"`
	To   typesys.Type `json:"to"`

	// Via is the capability reference performing the transform.
	Via string `json:"via"`
}

// Registry is the partial function of legal coercions. Absence of an
// entry means no automatic fix exists and the caller must fix the
// mismatch manually.
type Registry struct {
	rules []Rule
}

// NewRegistry builds a coercion registry from rules.
func NewRegistry(rules []Rule) *Registry {
	return &Registry{rules: rules}
}

// Lookup returns the rule converting from one type to another, matching
// structurally up to alias normalization.
func (r *Registry) Lookup(from, to typesys.Type) (Rule, bool) {
	for _, rule := range r.rules {
		if typesys.Equal(rule.From, from) && typesys.Equal(rule.To, to) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Suggest synthesizes a patch for a consumer type mismatch: insert a
// transform step immediately before the failing step, bind its input to
// the mismatched reference, and rebind the failing field to the
// transform's output. The original workflow is never touched.
func (r *Registry) Suggest(workflowName string, stepIndex int, field, inputRef string, actual, expected typesys.Type) (diag.SuggestedPatch, bool) {
	rule, ok := r.Lookup(actual, expected)
	if !ok {
		return diag.SuggestedPatch{}, false
	}

	storeAs := fmt.Sprintf("coerce_%s_%s", field, shortID())
	return diag.SuggestedPatch{
		Workflow:     workflowName,
		InsertBefore: stepIndex,
		Transform:    rule.Via,
		StoreAs:      storeAs,
		InputRef:     inputRef,
		RebindField:  field,
		RebindRef:    fmt.Sprintf("${%s.result}", storeAs),
		From:         actual.Render(),
		To:           expected.Render(),
	}, true
}

// shortID returns a compact unique suffix for generated store-as names.
func shortID() string {
	return uuid.NewString()[:8]
}

// RenderPatch renders a patch as human-readable text. This is an
// optional presentation step; the structured patch is the contract.
func RenderPatch(p diag.SuggestedPatch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "workflow %s: insert before step %d:\n", p.Workflow, p.InsertBefore)
	fmt.Fprintf(&sb, "  + capability: %s\n", p.Transform)
	fmt.Fprintf(&sb, "  + store_as: %s\n", p.StoreAs)
	fmt.Fprintf(&sb, "  + with: {value: %q}\n", p.InputRef)
	fmt.Fprintf(&sb, "  ~ rebind %s: %q -> %q  (%s -> %s)\n", p.RebindField, p.InputRef, p.RebindRef, p.From, p.To)
	return sb.String()
}
