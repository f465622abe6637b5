// File: cmd/cmd_test.go
package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/plugin-eval/internal/pipeline"
	"github.com/xkilldash9x/plugin-eval/internal/store"
)

func TestRootCmd_Version(t *testing.T) {
	deps, _, _ := testDeps()
	out, err := executeCommand(t, deps, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "plugin-eval version dev")
}

func TestRootCmd_BadConfigFile(t *testing.T) {
	deps, _, _ := testDeps()
	cfg := writeConfig(t, "evaluation:\n  variation_provider: magic\n")
	_, err := executeCommand(t, deps, "--config", cfg, "pricing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluation.variation_provider must be one of")
}

func TestEvaluateCmd(t *testing.T) {
	t.Run("runs every scenario and writes the report", func(t *testing.T) {
		deps, client, stores := testDeps()
		dir := writePlugin(t)
		report := filepath.Join(t.TempDir(), "report.json")

		out, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig), "evaluate", dir, "-o", report)
		require.NoError(t, err)

		assert.Contains(t, out, "acme: 3 scenarios, 3 passed")
		assert.Contains(t, out, "==> executing (3)")
		assert.Len(t, client.prompts, 3)
		assert.Contains(t, client.prompts, "/acme:run-tests")
		assert.True(t, client.closed, "LLM clients are released")
		assert.False(t, stores.cleaned, "no store without --persist")

		b, err := os.ReadFile(report)
		require.NoError(t, err)
		var decoded pipeline.Report
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, "acme", decoded.Plugin)
		assert.Equal(t, 3, decoded.Summary.Passed)
		assert.Equal(t, 3*900, decoded.Summary.InputTokens)
	})

	t.Run("flags override config", func(t *testing.T) {
		deps, client, _ := testDeps()
		dir := writePlugin(t)

		out, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig),
			"evaluate", dir, "--prefix", "team", "--variations", "rules", "--quiet", "--model", "claude-haiku-4-5")
		require.NoError(t, err)

		assert.NotContains(t, out, "==>", "quiet disables the progress bar")
		assert.Contains(t, client.prompts, "/team:run-tests")
		assert.Greater(t, len(client.prompts), 3, "rule variations add scenarios")
	})

	t.Run("persists when asked", func(t *testing.T) {
		deps, _, stores := testDeps()
		stores.store.On("EnsureSchema", mock.Anything).Return(nil)
		stores.store.On("PersistReport", mock.Anything, mock.MatchedBy(func(r *pipeline.Report) bool {
			return r.Plugin == "acme" && r.Summary.Total == 3
		})).Return(nil)

		_, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig), "evaluate", writePlugin(t), "--persist", "-q")
		require.NoError(t, err)
		stores.store.AssertExpectations(t)
		assert.True(t, stores.cleaned)
	})

	t.Run("persist failure is returned", func(t *testing.T) {
		deps, _, stores := testDeps()
		stores.err = errors.New("database URL is not configured")

		_, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig), "evaluate", writePlugin(t), "--persist", "-q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize store")
	})

	t.Run("pass rate threshold", func(t *testing.T) {
		deps, _, _ := testDeps()
		deps.clients = fakeClients{client: &silentClient{}}

		_, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig), "evaluate", writePlugin(t), "-q", "--min-pass-rate", "0.5")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pass rate 0.0% is below the required 50.0%")
	})

	t.Run("missing plugin directory", func(t *testing.T) {
		deps, _, _ := testDeps()
		_, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig), "evaluate", filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot read plugin directory")
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		deps, _, _ := testDeps()
		_, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig), "evaluate")
		assert.Error(t, err)
	})
}

func TestAnalyzeCmd(t *testing.T) {
	deps, client, _ := testDeps()
	dir := writePlugin(t)

	out, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig), "analyze", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "acme: 1 skills, 1 agents, 1 commands (0 parse errors)")
	assert.Contains(t, out, `trigger: "review my code"`)
	assert.Contains(t, out, "invoke: /acme:run-tests")
	assert.Contains(t, out, "3 scenarios would run")
	assert.Empty(t, client.prompts, "analyze never calls a model")

	out, err = executeCommand(t, deps, "--config", writeConfig(t, testConfig), "analyze", dir, "--json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "acme", decoded["prefix"])
	assert.EqualValues(t, 3, decoded["scenarios"])
	assert.Len(t, decoded["skills"], 1)
}

func TestPricingCmd(t *testing.T) {
	deps, _, _ := testDeps()
	cfg := writeConfig(t, testConfig)

	out, err := executeCommand(t, deps, "--config", cfg, "pricing")
	require.NoError(t, err)
	assert.Contains(t, out, "claude-sonnet-4-5")
	assert.Contains(t, out, "INPUT/MTOK")

	out, err = executeCommand(t, deps, "--config", cfg, "pricing", "claude-sonnet-4-5", "--input", "1000000", "--output", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "claude-sonnet-4-5: 1000000 in / 0 out = $3.00")

	out, err = executeCommand(t, deps, "--config", cfg, "pricing", "mystery-model", "--input", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "not in the price table")
}

func TestHistoryCmd(t *testing.T) {
	deps, _, stores := testDeps()
	started := time.Date(2025, 11, 20, 9, 30, 0, 0, time.UTC)
	stores.store.On("RecentRuns", mock.Anything, "acme", 2).Return([]store.RunSummary{
		{RunID: "run-1", Plugin: "acme", TargetModel: "claude-sonnet-4-5", StartedAt: started, Total: 4, Passed: 3, TotalCost: 0.02},
	}, nil)
	stores.store.On("RecentRuns", mock.Anything, "empty", 10).Return(nil, nil)

	out, err := executeCommand(t, deps, "--config", writeConfig(t, testConfig), "history", "acme", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-11-20 09:30  run-1")
	assert.Contains(t, out, "3/4")
	assert.Contains(t, out, "(75%)")

	out, err = executeCommand(t, deps, "--config", writeConfig(t, testConfig), "history", "empty")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded for empty.")
	stores.store.AssertExpectations(t)

	_, err = executeCommand(t, deps, "--config", writeConfig(t, testConfig), "history", "acme", "-n", "0")
	assert.ErrorContains(t, err, "--limit must be positive")
}
