// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
)

// -- Config Mock --

// MockConfig mocks config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	return m.Called().Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) LLM() config.LLMRouterConfig {
	return m.Called().Get(0).(config.LLMRouterConfig)
}

func (m *MockConfig) Evaluation() config.EvaluationConfig {
	return m.Called().Get(0).(config.EvaluationConfig)
}

func (m *MockConfig) Metrics() config.MetricsConfig {
	return m.Called().Get(0).(config.MetricsConfig)
}

func (m *MockConfig) Tuning() config.Tuning {
	return m.Called().Get(0).(config.Tuning)
}

// --- Setters ---

func (m *MockConfig) SetEvaluationTargetModel(s string)  { m.Called(s) }
func (m *MockConfig) SetEvaluationPluginPrefix(s string) { m.Called(s) }
func (m *MockConfig) SetEvaluationVariationProvider(p config.VariationProvider) {
	m.Called(p)
}
func (m *MockConfig) SetEvaluationOutput(s string)   { m.Called(s) }
func (m *MockConfig) SetBatchingMaxConcurrency(n int) { m.Called(n) }

// -- LLM Client Mock --

// MockLLMClient mocks llmclient.Client. A cancelled context fails before
// the call is recorded.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req llmclient.GenerationRequest) (llmclient.Response, error) {
	select {
	case <-ctx.Done():
		return llmclient.Response{}, ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.Get(0).(llmclient.Response), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}
