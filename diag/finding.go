// Package diag defines the diagnostic model shared by every capspec
// checker: typed findings, severities, suggested patches, and the
// aggregate report returned by a validation run.
package diag

import "strings"

// Severity classifies how a finding affects the overall verdict.
type Severity string

const (
	// SeverityFatal findings fail the validation run.
	SeverityFatal Severity = "fatal"

	// SeverityWarning findings are surfaced but do not fail the run.
	SeverityWarning Severity = "warning"

	// SeverityInfo findings are purely informational.
	SeverityInfo Severity = "info"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if a severity string is a known severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityFatal, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// ParseSeverity converts a string to a Severity, returning empty for
// invalid values.
func ParseSeverity(s string) Severity {
	sev := Severity(s)
	if sev.IsValid() {
		return sev
	}
	return ""
}

// Kind is the stable error-kind tag carried by every finding.
type Kind string

const (
	// KindMalformedCatalog indicates a capability record missing a
	// required contract field.
	KindMalformedCatalog Kind = "MalformedCatalog"

	// KindMalformedWorkflow indicates a workflow record whose intrinsic
	// structure is invalid (duplicate store-as, missing capability ref).
	KindMalformedWorkflow Kind = "MalformedWorkflow"

	// KindUnknownCapabilityReference indicates an edge or step naming a
	// capability absent from the catalog.
	KindUnknownCapabilityReference Kind = "UnknownCapabilityReference"

	// KindOrphanCapability indicates a capability with no edges at all.
	KindOrphanCapability Kind = "OrphanCapability"

	// KindAsymmetricEdge indicates a symmetric-kind edge without its
	// mirrored counterpart.
	KindAsymmetricEdge Kind = "AsymmetricEdge"

	// KindOrderingCycle indicates a cycle inside the requires or
	// precedes subgraph.
	KindOrderingCycle Kind = "OrderingCycle"

	// KindDuplicateRelation indicates a capability pair connected by
	// more than one relation kind.
	KindDuplicateRelation Kind = "DuplicateRelation"

	// KindUnresolvedReference indicates a binding referencing an
	// unknown store-as name or workflow input.
	KindUnresolvedReference Kind = "UnresolvedReference"

	// KindInvalidFieldPath indicates a binding path segment that does
	// not resolve in the producing schema.
	KindInvalidFieldPath Kind = "InvalidFieldPath"

	// KindAmbiguousType indicates a binding whose type cannot be
	// inferred because the producer schema is untyped.
	KindAmbiguousType Kind = "AmbiguousType"

	// KindAnnotationMismatch indicates a declared binding annotation
	// disagreeing with the inferred type.
	KindAnnotationMismatch Kind = "AnnotationMismatch"

	// KindConsumerTypeMismatch indicates a binding type incompatible
	// with the consuming capability's input contract.
	KindConsumerTypeMismatch Kind = "ConsumerTypeMismatch"

	// KindMissingPrerequisite indicates a required capability that does
	// not appear as an earlier step in the workflow.
	KindMissingPrerequisite Kind = "MissingPrerequisite"
)

// Finding is a single typed diagnostic produced by a validation run.
// Context fields that do not apply are left at their zero value;
// StepIndex uses -1 when the finding is not tied to a step.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`

	// Workflow is the owning workflow name, if any.
	Workflow string `json:"workflow,omitempty"`

	// StepIndex is the zero-based step position, -1 when not applicable.
	StepIndex int `json:"step_index"`

	// Capability is the capability id the finding concerns.
	Capability string `json:"capability,omitempty"`

	// Field is the input or schema field name involved.
	Field string `json:"field,omitempty"`

	// Expected and Actual carry canonical type renderings for type
	// findings.
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`

	// Ref is the raw binding expression the finding concerns.
	Ref string `json:"ref,omitempty"`

	// Cycle names the full cycle path for OrderingCycle findings.
	Cycle []string `json:"cycle,omitempty"`
}

// Fatal reports whether the finding fails the run.
func (f Finding) Fatal() bool {
	return f.Severity == SeverityFatal
}

// String renders the finding for log and text output.
func (f Finding) String() string {
	var sb strings.Builder
	sb.WriteString(string(f.Severity))
	sb.WriteString(" ")
	sb.WriteString(string(f.Kind))
	if f.Workflow != "" {
		sb.WriteString(" workflow=")
		sb.WriteString(f.Workflow)
	}
	if f.Capability != "" {
		sb.WriteString(" capability=")
		sb.WriteString(f.Capability)
	}
	if f.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Message)
	}
	return sb.String()
}
