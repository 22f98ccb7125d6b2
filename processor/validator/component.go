// Package validator provides a request/reply service for validating
// capability compositions: documents are loaded per request, checked for
// graph integrity and consumer contract conformance, and the full report
// is returned to the caller.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/capspec/diag"
	"github.com/c360studio/capspec/loader"
	"github.com/c360studio/capspec/validate"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
)

// Component implements the capability-validator processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger
	metrics    *Metrics

	baseDir string

	// Request subject
	requestSubject string

	// Lifecycle
	running      bool
	startTime    time.Time
	mu           sync.RWMutex
	cancel       context.CancelFunc
	subscription *natsclient.Subscription

	// Metrics
	requestsProcessed atomic.Int64
	validationsPassed atomic.Int64
	validationsFailed atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// NewComponent creates a new capability-validator processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults if not specified
	defaults := DefaultConfig()
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}
	if config.TimeoutSecs == 0 {
		config.TimeoutSecs = defaults.TimeoutSecs
	}
	if config.Parallelism == 0 {
		config.Parallelism = defaults.Parallelism
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Resolve base directory
	baseDir := config.BaseDir
	if baseDir == "" {
		baseDir = os.Getenv("CAPSPEC_BASE_DIR")
	}
	if baseDir == "" {
		var err error
		baseDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
	}

	// Resolve request subject from port definitions
	requestSubject := "capspec.validate"
	if config.Ports != nil && len(config.Ports.Inputs) > 0 {
		requestSubject = config.Ports.Inputs[0].Subject
	}

	return &Component{
		name:           "capability-validator",
		config:         config,
		natsClient:     deps.NATSClient,
		logger:         deps.GetLogger(),
		metrics:        defaultMetrics(),
		baseDir:        baseDir,
		requestSubject: requestSubject,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized capability-validator",
		"base_dir", c.baseDir,
		"request_subject", c.requestSubject)
	return nil
}

// Start begins handling validation requests.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	// Set running state while holding lock to prevent race condition
	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	sub, err := c.natsClient.SubscribeForRequests(subCtx, c.requestSubject, c.handleRequest)
	if err != nil {
		// Rollback running state on failure
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("subscribe to %s: %w", c.requestSubject, err)
	}

	c.mu.Lock()
	c.subscription = sub
	c.mu.Unlock()

	c.logger.Info("capability-validator started",
		"subject", c.requestSubject,
		"base_dir", c.baseDir)

	return nil
}

// handleRequest processes a validation request and returns response data.
// Accepts both raw ValidateRequest JSON and BaseMessage-wrapped requests.
func (c *Component) handleRequest(ctx context.Context, data []byte) ([]byte, error) {
	// Check for cancellation before processing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.requestsProcessed.Add(1)
	c.metrics.RequestsTotal.Inc()
	c.updateLastActivity()

	requestID := uuid.NewString()
	start := time.Now()

	// Try to parse as raw ValidateRequest first
	var req ValidateRequest
	if err := json.Unmarshal(data, &req); err == nil && (len(req.Paths) > 0 || len(req.Documents) > 0) {
		c.logger.Debug("Parsed as raw ValidateRequest",
			"request_id", requestID,
			"paths", len(req.Paths),
			"documents", len(req.Documents))
	} else {
		// Try to parse as BaseMessage-wrapped request
		var baseMsg message.BaseMessage
		if err := json.Unmarshal(data, &baseMsg); err != nil {
			return c.errorResponse(requestID, "failed to parse request: "+err.Error())
		}

		// Extract request payload
		payloadBytes, err := json.Marshal(baseMsg.Payload())
		if err != nil {
			return c.errorResponse(requestID, "failed to marshal payload: "+err.Error())
		}
		if err := json.Unmarshal(payloadBytes, &req); err != nil {
			return c.errorResponse(requestID, "failed to unmarshal request: "+err.Error())
		}
	}

	if err := req.Validate(); err != nil {
		return c.errorResponse(requestID, err.Error())
	}

	bundle, err := c.loadBundle(req)
	if err != nil {
		return c.errorResponse(requestID, err.Error())
	}

	opts := validate.DefaultOptions()
	opts.Coercions = bundle.Coercions
	opts.Parallelism = c.config.Parallelism
	opts.Graph.DetectDuplicates = req.DetectDuplicates

	report := validate.Run(bundle.Catalog, bundle.Graph, bundle.Workflows, opts)
	c.observeReport(report, time.Since(start))

	if report.Pass() {
		c.validationsPassed.Add(1)
	} else {
		c.validationsFailed.Add(1)
	}

	response := FromReport(requestID, report)

	c.logger.Debug("Validated composition",
		"request_id", requestID,
		"pass", response.Pass,
		"findings", len(response.Findings),
		"patches", len(response.Patches),
		"duration", time.Since(start))

	return c.marshalResponse(response)
}

// loadBundle assembles the documents named by the request. Relative
// paths are confined to the base directory.
func (c *Component) loadBundle(req ValidateRequest) (*loader.Bundle, error) {
	l := loader.New(c.logger)

	if len(req.Documents) > 0 {
		sources := make([]loader.Source, 0, len(req.Documents))
		for name, content := range req.Documents {
			sources = append(sources, loader.Source{Name: name, Data: []byte(content)})
		}
		return l.LoadSources(sources)
	}

	absBaseDir, err := filepath.Abs(c.baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	patterns := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(absBaseDir, p)
		}
		p = filepath.Clean(p)
		if !isPathWithin(p, absBaseDir) {
			c.logger.Warn("Path traversal attempt blocked",
				"requested_path", p,
				"base_dir", absBaseDir)
			return nil, fmt.Errorf("path must be within base directory")
		}
		patterns = append(patterns, p)
	}

	return l.Load(patterns)
}

// observeReport records prometheus metrics for one validation run.
func (c *Component) observeReport(report *diag.Report, elapsed time.Duration) {
	c.metrics.Duration.Observe(elapsed.Seconds())
	for _, f := range report.Findings {
		c.metrics.FindingsTotal.WithLabelValues(f.Severity.String()).Inc()
	}
	if len(report.Patches) > 0 {
		c.metrics.PatchesTotal.Add(float64(len(report.Patches)))
	}
}

// marshalResponse marshals a validation response.
// For request/reply services the raw payload is returned without a
// BaseMessage wrapper so callers can access fields directly.
func (c *Component) marshalResponse(response *ValidateResponse) ([]byte, error) {
	return json.Marshal(response)
}

// errorResponse builds an error response.
func (c *Component) errorResponse(requestID, errMsg string) ([]byte, error) {
	c.metrics.RequestErrorsTotal.Inc()
	response := &ValidateResponse{
		RequestID: requestID,
		Pass:      false,
		Error:     errMsg,
	}
	return c.marshalResponse(response)
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("capability-validator stopped",
		"requests_processed", c.requestsProcessed.Load(),
		"validations_passed", c.validationsPassed.Load(),
		"validations_failed", c.validationsFailed.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "capability-validator",
		Type:        "processor",
		Description: "Request/reply service for validating capability compositions",
		Version:     "1.0.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return validatorSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: 0,
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}

// isPathWithin checks if child path is within the parent directory.
// Both paths should be absolute and cleaned.
func isPathWithin(child, parent string) bool {
	// Ensure parent ends with separator for accurate prefix matching
	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent = parent + string(filepath.Separator)
	}
	return strings.HasPrefix(child, parent) || child == strings.TrimSuffix(parent, string(filepath.Separator))
}
