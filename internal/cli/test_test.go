package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowdb/internal/harness"
)

const passingScenario = `
name: bitcoin_ok
description: "Add and read back"
steps:
  - action: add
    token: bitcoin
    value: 7000
  - action: query
    token: bitcoin
    expect:
      value: 7000
assertions:
  - type: final_state
    token: bitcoin
    value: 7000
`

const failingScenario = `
name: bitcoin_wrong
description: "Expects the wrong value"
steps:
  - action: add
    token: bitcoin
    value: 7000
  - action: query
    token: bitcoin
    expect:
      value: 1
`

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "", "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")

	out, _, err = execute(t, "", "test", dir, "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandPassing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bitcoin_ok.yaml", passingScenario)

	out, _, err := execute(t, "", "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ bitcoin_ok")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandFailing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bitcoin_ok.yaml", passingScenario)
	writeFile(t, dir, "bitcoin_wrong.yaml", failingScenario)

	out, _, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ bitcoin_wrong")
	assert.Contains(t, out, "expected value 1, got 7000")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bitcoin_ok.yaml", passingScenario)
	writeFile(t, dir, "bitcoin_wrong.yaml", failingScenario)

	out, _, err := execute(t, "", "test", dir, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bitcoin_ok.yaml", passingScenario)
	writeFile(t, dir, "bitcoin_wrong.yaml", failingScenario)

	out, _, err := execute(t, "", "test", dir, "--filter", "*_ok")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, _, err := execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	scenarioFile := writeFile(t, dir, "bitcoin_ok.yaml", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "bitcoin_ok.golden")

	out, _, err := execute(t, "", "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)

	scenario, err := harness.LoadScenario(scenarioFile)
	require.NoError(t, err)
	result, err := harness.Run(scenario)
	require.NoError(t, err)
	want, err := harness.MarshalSnapshot(scenario.Name, result.Trace)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(golden))

	// Matching golden passes
	_, _, err = execute(t, "", "test", dir)
	require.NoError(t, err)

	// Tampered golden fails
	require.NoError(t, os.WriteFile(goldenPath, []byte("{}"), 0644))
	out, _, err = execute(t, "", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "bitcoin.golden"),
		goldenFilePath(filepath.Join("scenarios", "bitcoin.yaml")))
}
