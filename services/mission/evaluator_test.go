package mission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	e := NewEvaluator()

	met, err := e.Evaluate("orders_placed >= 3 && total_spent > 100.0", map[string]any{
		"orders_placed": 5,
		"total_spent":   200.0,
	})
	require.NoError(t, err)
	require.True(t, met)

	met, err = e.Evaluate("orders_placed >= 3", map[string]any{"orders_placed": 1})
	require.NoError(t, err)
	require.False(t, met)
}

func TestEvaluateStringVariables(t *testing.T) {
	e := NewEvaluator()

	met, err := e.Evaluate(`tier == "gold"`, map[string]any{"tier": "gold"})
	require.NoError(t, err)
	require.True(t, met)
}

func TestEvaluateEmptyExpression(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("", map[string]any{})
	require.Error(t, err)
}

func TestEvaluateCompileError(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("orders_placed >=", map[string]any{"orders_placed": 1})
	require.Error(t, err)
}

func TestEvaluateNonBooleanResult(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("orders_placed + 1", map[string]any{"orders_placed": 1})
	require.Error(t, err)
}

func TestEvaluateUnknownVariable(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("unknown_field > 1", map[string]any{"orders_placed": 1})
	require.Error(t, err)
}
