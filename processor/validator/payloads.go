package validator

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/c360studio/capspec/diag"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

// ValidateRequest is the request payload for composition validation.
type ValidateRequest struct {
	// Paths lists document glob patterns to load, relative to the
	// component's base directory.
	// Either Paths or Documents must be provided.
	Paths []string `json:"paths,omitempty"`

	// Documents carries inline YAML document content keyed by a caller
	// chosen name, used for error context.
	// Either Paths or Documents must be provided.
	Documents map[string]string `json:"documents,omitempty"`

	// DetectDuplicates enables advisory duplicate-relation findings.
	DetectDuplicates bool `json:"detect_duplicates,omitempty"`
}

// ValidateResponse is the response payload for composition validation.
type ValidateResponse struct {
	// RequestID identifies this validation run in logs.
	RequestID string `json:"request_id"`

	// Pass indicates no fatal findings were produced.
	Pass bool `json:"pass"`

	// Findings are the diagnostics, graph findings first, then
	// workflows in declaration order.
	Findings []diag.Finding `json:"findings,omitempty"`

	// Patches are suggested coercion fixes. Inputs are never mutated.
	Patches []diag.SuggestedPatch `json:"patches,omitempty"`

	// Fatal, Warnings, and Infos count findings by severity.
	Fatal    int `json:"fatal"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`

	// Error is set if validation could not be performed at all.
	Error string `json:"error,omitempty"`
}

// Schema returns the message type for ValidateRequest.
func (p *ValidateRequest) Schema() message.Type {
	return ValidateRequestType
}

// Validate validates the ValidateRequest.
func (p *ValidateRequest) Validate() error {
	if len(p.Paths) == 0 && len(p.Documents) == 0 {
		return fmt.Errorf("either paths or documents is required")
	}
	return nil
}

// MarshalJSON marshals the ValidateRequest to JSON.
func (p *ValidateRequest) MarshalJSON() ([]byte, error) {
	type Alias ValidateRequest
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON unmarshals the ValidateRequest from JSON.
func (p *ValidateRequest) UnmarshalJSON(data []byte) error {
	type Alias ValidateRequest
	return json.Unmarshal(data, (*Alias)(p))
}

// Schema returns the message type for ValidateResponse.
func (p *ValidateResponse) Schema() message.Type {
	return ValidateResponseType
}

// Validate validates the ValidateResponse.
func (p *ValidateResponse) Validate() error {
	return nil
}

// MarshalJSON marshals the ValidateResponse to JSON.
func (p *ValidateResponse) MarshalJSON() ([]byte, error) {
	type Alias ValidateResponse
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON unmarshals the ValidateResponse from JSON.
func (p *ValidateResponse) UnmarshalJSON(data []byte) error {
	type Alias ValidateResponse
	return json.Unmarshal(data, (*Alias)(p))
}

// FromReport converts a validation report to a ValidateResponse.
func FromReport(requestID string, report *diag.Report) *ValidateResponse {
	return &ValidateResponse{
		RequestID: requestID,
		Pass:      report.Pass(),
		Findings:  report.Findings,
		Patches:   report.Patches,
		Fatal:     report.Count(diag.SeverityFatal),
		Warnings:  report.Count(diag.SeverityWarning),
		Infos:     report.Count(diag.SeverityInfo),
	}
}

// ValidateRequestType is the message type for validation requests.
var ValidateRequestType = message.Type{
	Domain:   "capability",
	Category: "validate.request",
	Version:  "v1",
}

// ValidateResponseType is the message type for validation responses.
var ValidateResponseType = message.Type{
	Domain:   "capability",
	Category: "validate.response",
	Version:  "v1",
}

func init() {
	// Register the validation request payload type
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "capability",
		Category:    "validate.request",
		Version:     "v1",
		Description: "Capability composition validation request",
		Factory:     func() any { return &ValidateRequest{} },
	}); err != nil {
		log.Printf("ERROR: failed to register ValidateRequest: %v", err)
	}

	// Register the validation response payload type
	if err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "capability",
		Category:    "validate.response",
		Version:     "v1",
		Description: "Capability composition validation response",
		Factory:     func() any { return &ValidateResponse{} },
	}); err != nil {
		log.Printf("ERROR: failed to register ValidateResponse: %v", err)
	}
}
