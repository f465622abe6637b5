// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
	"github.com/xkilldash9x/plugin-eval/internal/pipeline"
	"github.com/xkilldash9x/plugin-eval/internal/store"
)

const testConfig = `
logger:
  level: error
  format: json
evaluation:
  target_model: claude-sonnet-4-5
  variation_provider: none
tuning:
  timeouts:
    retry_initial_ms: 1
    retry_max_ms: 2
`

// writePlugin lays out a small plugin on disk and returns its root.
func writePlugin(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		".claude-plugin/plugin.json": `{"name": "acme"}`,
		"skills/code-review/SKILL.md": "---\nname: code-review\n" +
			"description: Use when the user asks to \"review my code\".\n---\nReview.\n",
		"agents/deployer.md":    "---\ndescription: Triggers on \"deploy the service to staging\".\n---\nDeploy.\n",
		"commands/run-tests.md": "---\ndescription: Run the test suite\n---\nRun tests.\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// executeCommand runs a fresh root command with deps and returns its output.
func executeCommand(t *testing.T, deps evaluateDeps, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	root := newRootCommand(deps)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// agentClient answers like an agent that always picks the right component.
type agentClient struct {
	mu      sync.Mutex
	prompts []string
	closed  bool
}

func (c *agentClient) Generate(_ context.Context, req llmclient.GenerationRequest) (llmclient.Response, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, req.UserPrompt)
	c.mu.Unlock()

	var invoke string
	switch msg := req.UserPrompt; {
	case strings.HasPrefix(msg, "/"):
		invoke = strings.Fields(msg)[0]
	case strings.Contains(msg, "review"):
		invoke = "skill:code-review"
	case strings.Contains(msg, "deploy"):
		invoke = "agent:deployer"
	}
	text := "Nothing to do."
	if invoke != "" {
		text = "INVOKE: " + invoke + "\nOn it."
	}
	return llmclient.Response{Text: text, Usage: llmclient.Usage{InputTokens: 900, OutputTokens: 30}}, nil
}

func (c *agentClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeClients struct{ client llmclient.Client }

func (f fakeClients) Create(context.Context, config.Interface) (llmclient.Client, func(), error) {
	return f.client, func() { _ = f.client.Close() }, nil
}

// mockStore is a testify mock of reportStore.
type mockStore struct{ mock.Mock }

func (m *mockStore) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) PersistReport(ctx context.Context, r *pipeline.Report) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) RecentRuns(ctx context.Context, plugin string, limit int) ([]store.RunSummary, error) {
	args := m.Called(ctx, plugin, limit)
	runs, _ := args.Get(0).([]store.RunSummary)
	return runs, args.Error(1)
}

type fakeStores struct {
	store   *mockStore
	err     error
	cleaned bool
}

func (f *fakeStores) Create(context.Context, config.Interface) (reportStore, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.store, func() { f.cleaned = true }, nil
}

func testDeps() (evaluateDeps, *agentClient, *fakeStores) {
	client := &agentClient{}
	stores := &fakeStores{store: &mockStore{}}
	return evaluateDeps{clients: fakeClients{client: client}, stores: stores}, client, stores
}

// silentClient never invokes anything.
type silentClient struct{}

func (silentClient) Generate(context.Context, llmclient.GenerationRequest) (llmclient.Response, error) {
	return llmclient.Response{Text: "I'll just answer directly."}, nil
}

func (silentClient) Close() error { return nil }
