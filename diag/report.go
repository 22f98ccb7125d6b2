package diag

// SuggestedPatch proposes inserting a coercion step in front of a step
// whose binding type does not satisfy the consumer contract. Patches are
// proposals only; the workflow they target is never mutated.
type SuggestedPatch struct {
	// Workflow is the workflow the patch applies to.
	Workflow string `json:"workflow"`

	// InsertBefore is the zero-based index of the failing step; the
	// transform step is inserted at this position.
	InsertBefore int `json:"insert_before"`

	// Transform is the capability reference performing the coercion.
	Transform string `json:"transform"`

	// StoreAs is the generated store-as name for the transform output.
	StoreAs string `json:"store_as"`

	// InputRef is the original (mismatched) binding expression, rebound
	// as the transform step's input.
	InputRef string `json:"input_ref"`

	// RebindField is the consuming step's input field rebound to the
	// transform output.
	RebindField string `json:"rebind_field"`

	// RebindRef is the replacement binding expression for RebindField.
	RebindRef string `json:"rebind_ref"`

	// From and To are the canonical renderings of the coerced types.
	From string `json:"from"`
	To   string `json:"to"`
}

// Report is the full outcome of one validation run: every finding across
// every document, in stable order, plus any suggested patches.
type Report struct {
	Findings []Finding        `json:"findings"`
	Patches  []SuggestedPatch `json:"patches,omitempty"`
}

// Pass reports whether the run contained no fatal finding.
func (r *Report) Pass() bool {
	for _, f := range r.Findings {
		if f.Fatal() {
			return false
		}
	}
	return true
}

// Count returns the number of findings at the given severity.
func (r *Report) Count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// Merge appends another report's findings and patches in order.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Findings = append(r.Findings, other.Findings...)
	r.Patches = append(r.Patches, other.Patches...)
}

// Add appends a finding.
func (r *Report) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}
