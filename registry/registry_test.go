package registry

import (
	"context"
	"testing"

	workflow "github.com/goliatone/go-workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteDispatchesToSystem(t *testing.T) {
	reg := New()
	err := reg.RegisterFunc("crm", func(_ context.Context, action string, params map[string]any, _ *workflow.ExecutionContext) (map[string]any, error) {
		return map[string]any{"action": action, "lead": params["lead_id"]}, nil
	})
	require.NoError(t, err)

	out, err := reg.Execute(context.Background(), "crm", "qualify_lead", map[string]any{"lead_id": "L1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "qualify_lead", out["action"])
	assert.Equal(t, "L1", out["lead"])
}

func TestExecuteUnknownSystemIsConfigurationError(t *testing.T) {
	reg := New()

	_, err := reg.Execute(context.Background(), "billing", "charge", nil, nil)
	require.Error(t, err)
	assert.True(t, workflow.IsConfiguration(err))
}

func TestRegisterRejectsEmpty(t *testing.T) {
	reg := New()
	assert.Error(t, reg.Register("", nil))
	assert.Error(t, reg.Register("crm", nil))
}

func TestSystemsSorted(t *testing.T) {
	reg := New()
	noop := ExecutorFunc(func(context.Context, string, map[string]any, *workflow.ExecutionContext) (map[string]any, error) {
		return nil, nil
	})
	require.NoError(t, reg.Register("support", noop))
	require.NoError(t, reg.Register("crm", noop))
	require.NoError(t, reg.Register("marketing", noop))

	assert.Equal(t, []string{"crm", "marketing", "support"}, reg.Systems())
}

func TestExecuteWrapsPlainErrors(t *testing.T) {
	reg := New()
	require.NoError(t, reg.RegisterFunc("sales", func(context.Context, string, map[string]any, *workflow.ExecutionContext) (map[string]any, error) {
		return nil, assert.AnError
	}))

	_, err := reg.Execute(context.Background(), "sales", "close_deal", nil, nil)
	require.Error(t, err)
	assert.Equal(t, workflow.ErrCodeActionFailed, workflow.ErrorCode(err))
}
