// Package catalog provides the in-memory capability catalog: atomic,
// typed operations with declared risk and mutation semantics. The
// catalog is built once per validation run and queried read-only.
package catalog

import (
	"fmt"
	"sort"

	"github.com/c360studio/capspec/typesys"
)

// RiskTier represents the declared risk of invoking a capability.
type RiskTier string

const (
	// RiskLow is for read-only, reversible operations.
	RiskLow RiskTier = "low"

	// RiskMedium is for operations with contained side effects.
	RiskMedium RiskTier = "medium"

	// RiskHigh is for mutating or hard-to-reverse operations.
	RiskHigh RiskTier = "high"
)

// IsValid checks if a risk tier string is a known tier.
func (r RiskTier) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// String returns the string representation of the risk tier.
func (r RiskTier) String() string {
	return string(r)
}

// ParseRiskTier converts a string to a RiskTier, returning empty for
// invalid values.
func ParseRiskTier(s string) RiskTier {
	tier := RiskTier(s)
	if tier.IsValid() {
		return tier
	}
	return ""
}

// rank orders tiers for Max.
func (r RiskTier) rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	}
	return 0
}

// MaxRisk returns the higher of two risk tiers.
func MaxRisk(a, b RiskTier) RiskTier {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Field declares a single named field in a capability contract.
type Field struct {
	Type        typesys.Type `json:"type"`
	Required    bool         `json:"required,omitempty"`
	Description string       `json:"description,omitempty"`
}

// Schema is a typed input or output contract: a set of named fields.
type Schema struct {
	Fields map[string]Field `json:"fields"`
}

// FieldNames returns the schema's field names in sorted order for
// deterministic iteration.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the field spec for a name.
func (s Schema) Lookup(name string) (Field, bool) {
	f, ok := s.Fields[name]
	return f, ok
}

// Provenance fields every capability output carries unconditionally.
const (
	// FieldEvidence is the mandatory evidence-list output field.
	FieldEvidence = "evidence"

	// FieldConfidence is the mandatory confidence-score output field,
	// a number bounded to [0,1].
	FieldConfidence = "confidence"
)

// Capability is one atomic operation in the composition standard.
// Immutable once loaded.
type Capability struct {
	// ID is the unique capability identity.
	ID string `json:"id"`

	// Layer is the owning layer name.
	Layer string `json:"layer"`

	// Risk is the declared risk tier.
	Risk RiskTier `json:"risk"`

	// Mutating indicates the capability changes external state.
	Mutating bool `json:"mutating"`

	// Inputs is the typed input contract.
	Inputs Schema `json:"inputs"`

	// Outputs is the typed output contract. It always includes the
	// evidence and confidence provenance fields.
	Outputs Schema `json:"outputs"`
}

// MalformedCatalogError reports a capability record missing a required
// contract field at catalog construction time.
type MalformedCatalogError struct {
	ID    string
	Field string
}

func (e *MalformedCatalogError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed capability record: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed capability %q: missing or invalid %s", e.ID, e.Field)
}

// validate checks the record for required contract fields.
func (c *Capability) validate() error {
	if c.ID == "" {
		return &MalformedCatalogError{Field: "id"}
	}
	if c.Layer == "" {
		return &MalformedCatalogError{ID: c.ID, Field: "layer"}
	}
	if !c.Risk.IsValid() {
		return &MalformedCatalogError{ID: c.ID, Field: "risk"}
	}
	if c.Inputs.Fields == nil {
		return &MalformedCatalogError{ID: c.ID, Field: "inputs"}
	}
	if c.Outputs.Fields == nil {
		return &MalformedCatalogError{ID: c.ID, Field: "outputs"}
	}
	return nil
}

// ensureProvenance injects the mandatory evidence and confidence output
// fields when a record omits them.
func (c *Capability) ensureProvenance() {
	if _, ok := c.Outputs.Fields[FieldEvidence]; !ok {
		c.Outputs.Fields[FieldEvidence] = Field{
			Type:        typesys.Array(typesys.Object(nil)),
			Description: "Evidence items supporting the output",
		}
	}
	if _, ok := c.Outputs.Fields[FieldConfidence]; !ok {
		c.Outputs.Fields[FieldConfidence] = Field{
			Type:        typesys.Number(),
			Description: "Confidence score in [0,1]",
		}
	}
}
