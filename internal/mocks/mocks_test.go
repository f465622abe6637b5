package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
)

var (
	_ config.Interface = (*MockConfig)(nil)
	_ llmclient.Client = (*MockLLMClient)(nil)
)

func TestMockLLMClient(t *testing.T) {
	m := &MockLLMClient{}
	m.On("Generate", mock.Anything, mock.Anything).Return(llmclient.Response{Text: "ok"}, nil).Once()

	resp, err := m.Generate(context.Background(), llmclient.GenerationRequest{UserPrompt: "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, llmclient.GenerationRequest{})
	assert.True(t, errors.Is(err, context.Canceled))
	m.AssertExpectations(t)
}

func TestMockConfig(t *testing.T) {
	m := &MockConfig{}
	m.On("Evaluation").Return(config.EvaluationConfig{TargetModel: "claude-haiku-4-5"})
	m.On("SetBatchingMaxConcurrency", 2).Return()

	assert.Equal(t, "claude-haiku-4-5", m.Evaluation().TargetModel)
	m.SetBatchingMaxConcurrency(2)
	m.AssertExpectations(t)
}
