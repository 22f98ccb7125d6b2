package validator

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the capability-validator processor with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "capability-validator",
		Factory:     NewComponent,
		Schema:      validatorSchema,
		Type:        "processor",
		Protocol:    "capability",
		Domain:      "validation",
		Description: "Request/reply service for validating capability compositions",
		Version:     "1.0.0",
	})
}
