// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RoutingConfigFile is the on-disk routing configuration, following the
// apiVersion/kind pattern used by the rest of the platform.
type RoutingConfigFile struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   RoutingMetadata   `yaml:"metadata"`
	Spec       RoutingConfigSpec `yaml:"spec"`
}

// RoutingMetadata identifies a routing configuration.
type RoutingMetadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// RoutingConfigSpec carries the tunable parts of the routing pipeline:
// keyword sets for classification and the dispatch/handoff deadlines.
type RoutingConfigSpec struct {
	Keywords  KeywordConfig  `yaml:"keywords"`
	Execution ExecutionTimes `yaml:"execution"`
	Workers   []WorkerConfig `yaml:"workers"`
}

// KeywordConfig holds the keyword sets used by the scenario classifier and
// the complexity scorer. Matching is case-insensitive substring.
type KeywordConfig struct {
	Fault      []string `yaml:"fault"`
	Complaint  []string `yaml:"complaint"`
	Complex    []string `yaml:"complex"`
	Correction []string `yaml:"correction"`
}

// ExecutionTimes holds the timing contract of the dispatcher and the
// handoff bridge.
type ExecutionTimes struct {
	ParallelTimeoutSeconds int `yaml:"parallel_timeout_seconds"`
	HandoffTimeoutSeconds  int `yaml:"handoff_timeout_seconds"`
	WorkerTimeoutSeconds   int `yaml:"worker_timeout_seconds"`
}

// WorkerConfig declares one remote worker. Declaration order matters: the
// aggregator gives later workers reply precedence over earlier ones.
type WorkerConfig struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
}

// Default keyword sets, mirroring the reference deployment. Used when no
// config file is supplied or a set is left empty.
var (
	defaultFaultKeywords = []string{
		"error", "exception", "crash", "cannot", "failed", "failure",
		"500", "404", "403", "down", "outage", "freezes", "blank screen",
	}
	defaultComplaintKeywords = []string{
		"complaint", "dissatisfied", "refund", "bad review",
		"poor quality", "poor service", "terrible", "awful", "scam",
	}
	defaultComplexKeywords = []string{
		"why", "how do i", "how to", "is it possible", "can i", "could you",
	}
	defaultCorrectionKeywords = []string{
		"modify", "incorrect", "wrong", "rewrite",
	}
)

// Default deadlines, in the units of the reference behavior.
const (
	DefaultParallelTimeout = 20 * time.Second
	DefaultHandoffTimeout  = 300 * time.Second
	DefaultWorkerTimeout   = 15 * time.Second
)

// RoutingConfig is the resolved runtime configuration.
type RoutingConfig struct {
	FaultKeywords      []string
	ComplaintKeywords  []string
	ComplexKeywords    []string
	CorrectionKeywords []string
	ParallelTimeout    time.Duration
	HandoffTimeout     time.Duration
	WorkerTimeout      time.Duration
	Workers            []WorkerConfig
}

// DefaultRoutingConfig returns the built-in configuration.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		FaultKeywords:      defaultFaultKeywords,
		ComplaintKeywords:  defaultComplaintKeywords,
		ComplexKeywords:    defaultComplexKeywords,
		CorrectionKeywords: defaultCorrectionKeywords,
		ParallelTimeout:    DefaultParallelTimeout,
		HandoffTimeout:     DefaultHandoffTimeout,
		WorkerTimeout:      DefaultWorkerTimeout,
	}
}

// LoadRoutingConfig reads and validates a routing configuration file,
// filling in defaults for anything the file leaves out.
func LoadRoutingConfig(path string) (RoutingConfig, error) {
	cfg := DefaultRoutingConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read routing config: %v", err)
	}

	var file RoutingConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("failed to parse routing config: %v", err)
	}

	if file.Kind != "" && file.Kind != "RoutingConfig" {
		return cfg, fmt.Errorf("unexpected config kind: %s", file.Kind)
	}

	spec := file.Spec
	if len(spec.Keywords.Fault) > 0 {
		cfg.FaultKeywords = spec.Keywords.Fault
	}
	if len(spec.Keywords.Complaint) > 0 {
		cfg.ComplaintKeywords = spec.Keywords.Complaint
	}
	if len(spec.Keywords.Complex) > 0 {
		cfg.ComplexKeywords = spec.Keywords.Complex
	}
	if len(spec.Keywords.Correction) > 0 {
		cfg.CorrectionKeywords = spec.Keywords.Correction
	}
	if spec.Execution.ParallelTimeoutSeconds > 0 {
		cfg.ParallelTimeout = time.Duration(spec.Execution.ParallelTimeoutSeconds) * time.Second
	}
	if spec.Execution.HandoffTimeoutSeconds > 0 {
		cfg.HandoffTimeout = time.Duration(spec.Execution.HandoffTimeoutSeconds) * time.Second
	}
	if spec.Execution.WorkerTimeoutSeconds > 0 {
		cfg.WorkerTimeout = time.Duration(spec.Execution.WorkerTimeoutSeconds) * time.Second
	}
	cfg.Workers = spec.Workers

	return cfg, nil
}
