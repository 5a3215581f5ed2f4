// Copyright 2025 CareFlow
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultRoutingConfig(t *testing.T) {
	cfg := DefaultRoutingConfig()

	assert.Equal(t, 20*time.Second, cfg.ParallelTimeout)
	assert.Equal(t, 300*time.Second, cfg.HandoffTimeout)
	assert.Equal(t, 15*time.Second, cfg.WorkerTimeout)
	assert.NotEmpty(t, cfg.FaultKeywords)
	assert.NotEmpty(t, cfg.ComplaintKeywords)
	assert.NotEmpty(t, cfg.ComplexKeywords)
	assert.NotEmpty(t, cfg.CorrectionKeywords)
	assert.Empty(t, cfg.Workers)
}

func TestLoadRoutingConfig(t *testing.T) {
	path := writeConfigFile(t, `
apiVersion: careflow.io/v1
kind: RoutingConfig
metadata:
  name: test-routing
spec:
  keywords:
    fault:
      - "kaputt"
    complex:
      - "warum"
  execution:
    parallel_timeout_seconds: 5
    handoff_timeout_seconds: 60
  workers:
    - name: assistant
      endpoint: http://assistant:8080/invoke
    - name: engineer
      endpoint: http://engineer:8080/invoke
`)

	cfg, err := LoadRoutingConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"kaputt"}, cfg.FaultKeywords)
	assert.Equal(t, []string{"warum"}, cfg.ComplexKeywords)
	// Sets the file leaves out keep their defaults.
	assert.Equal(t, defaultComplaintKeywords, cfg.ComplaintKeywords)
	assert.Equal(t, defaultCorrectionKeywords, cfg.CorrectionKeywords)

	assert.Equal(t, 5*time.Second, cfg.ParallelTimeout)
	assert.Equal(t, 60*time.Second, cfg.HandoffTimeout)
	assert.Equal(t, DefaultWorkerTimeout, cfg.WorkerTimeout)

	require.Len(t, cfg.Workers, 2)
	assert.Equal(t, "assistant", cfg.Workers[0].Name)
	assert.Equal(t, "engineer", cfg.Workers[1].Name)
}

func TestLoadRoutingConfigMissingFile(t *testing.T) {
	cfg, err := LoadRoutingConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	// The error still hands back usable defaults.
	assert.Equal(t, DefaultParallelTimeout, cfg.ParallelTimeout)
}

func TestLoadRoutingConfigBadYAML(t *testing.T) {
	path := writeConfigFile(t, "{not yaml::")
	_, err := LoadRoutingConfig(path)
	assert.Error(t, err)
}

func TestLoadRoutingConfigWrongKind(t *testing.T) {
	path := writeConfigFile(t, `
apiVersion: careflow.io/v1
kind: AgentConfig
`)
	_, err := LoadRoutingConfig(path)
	assert.Error(t, err)
}
