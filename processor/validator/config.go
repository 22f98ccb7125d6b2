package validator

import (
	"fmt"
	"reflect"

	"github.com/c360studio/semstreams/component"
)

// validatorSchema defines the configuration schema.
var validatorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the capability-validator processor.
type Config struct {
	Ports       *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`
	BaseDir     string                `json:"base_dir" schema:"type:string,description:Base directory for document paths (defaults to CAPSPEC_BASE_DIR or current directory),category:basic"`
	Parallelism int                   `json:"parallelism" schema:"type:integer,description:Concurrent workflow validation bound,category:advanced,default:1"`
	TimeoutSecs int                   `json:"timeout_secs" schema:"type:integer,description:Request timeout in seconds,category:basic,default:30"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.TimeoutSecs < 0 {
		return fmt.Errorf("timeout_secs must be non-negative")
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative")
	}
	return nil
}

// DefaultConfig returns the default configuration for capability-validator.
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "validate_requests",
					Type:        "nats",
					Subject:     "capspec.validate",
					Required:    true,
					Description: "Validation request/reply subject",
				},
			},
			Outputs: []component.PortDefinition{},
		},
		BaseDir:     "",
		Parallelism: 1,
		TimeoutSecs: 30,
	}
}
