package terminal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/agentkube/desktop/backend/internal/logging"
	"github.com/agentkube/desktop/backend/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderDefinition(t *testing.T) {
	provider := NewProvider(NewManager(logging.NewNop(), nil))

	def := provider.Definition()

	assert.Equal(t, "terminal", def.ID)
	assert.Equal(t, types.CategorySystem, def.Category)
	assert.NotEmpty(t, def.Capabilities)

	toolIDs := make(map[string]bool)
	for _, tool := range def.Tools {
		toolIDs[tool.ID] = true
	}

	expectedTools := []string{
		"terminal.create_session",
		"terminal.write",
		"terminal.read",
		"terminal.resize",
		"terminal.rename",
		"terminal.close",
		"terminal.close_all",
		"terminal.list_sessions",
		"terminal.get_session",
	}
	for _, toolID := range expectedTools {
		assert.True(t, toolIDs[toolID], "missing tool: %s", toolID)
	}
}

func TestProviderUnknownTool(t *testing.T) {
	provider := NewProvider(NewManager(logging.NewNop(), nil))

	_, err := provider.Execute(context.Background(), "terminal.bogus", nil, nil)
	assert.Error(t, err)
}

func TestProviderMissingParams(t *testing.T) {
	provider := NewProvider(NewManager(logging.NewNop(), nil))
	ctx := context.Background()

	for _, toolID := range []string{
		"terminal.write",
		"terminal.read",
		"terminal.resize",
		"terminal.rename",
		"terminal.close",
		"terminal.get_session",
	} {
		_, err := provider.Execute(ctx, toolID, map[string]interface{}{}, nil)
		assert.Error(t, err, "tool %s should reject empty params", toolID)
	}
}

func TestProviderSessionLifecycle(t *testing.T) {
	m := newTestManager(t)
	provider := NewProvider(m)
	ctx := context.Background()

	result, err := provider.Execute(ctx, "terminal.create_session", map[string]interface{}{
		"name": "provider-test",
		"cols": float64(100),
		"rows": float64(30),
	}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	sessionID := result.Data["id"].(string)
	assert.Equal(t, "provider-test", result.Data["name"])
	assert.Equal(t, 100, result.Data["cols"])

	result, err = provider.Execute(ctx, "terminal.write", map[string]interface{}{
		"session_id": sessionID,
		"data":       "echo via-provider\n",
	}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)

	deadline := time.Now().Add(5 * time.Second)
	var output string
	for time.Now().Before(deadline) {
		result, err = provider.Execute(ctx, "terminal.read", map[string]interface{}{
			"session_id": sessionID,
		}, nil)
		require.NoError(t, err)
		output += result.Data["output"].(string)
		if strings.Contains(output, "via-provider") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Contains(t, output, "via-provider")

	result, err = provider.Execute(ctx, "terminal.list_sessions", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["count"])

	result, err = provider.Execute(ctx, "terminal.close_all", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Data["count"])

	_, err = provider.Execute(ctx, "terminal.get_session", map[string]interface{}{
		"session_id": sessionID,
	}, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
