package salesfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEligibilityExpression(t *testing.T) {
	require.Equal(t, "national >= 80",
		EligibilityExpression([]byte(`{"eligibility_expression": "national >= 80", "goal": 100}`)))

	require.Empty(t, EligibilityExpression([]byte(`{"goal": 100}`)))
	require.Empty(t, EligibilityExpression(nil))
	require.Empty(t, EligibilityExpression([]byte(`not json`)))
}

func TestEvaluator_Evaluate(t *testing.T) {
	e := NewEvaluator()

	ok, err := e.Evaluate("average_achievement >= 100.0", map[string]any{
		"average_achievement": 120.5,
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.Evaluate("amount > 1000.0 && national >= 90.0", map[string]any{
		"amount":   1500.0,
		"national": 85.0,
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvaluator_Errors(t *testing.T) {
	e := NewEvaluator()

	_, err := e.Evaluate("", nil)
	require.Error(t, err)

	_, err = e.Evaluate("unknown_var > 1", map[string]any{"amount": 1.0})
	require.Error(t, err)

	// Non-boolean results are rejected.
	_, err = e.Evaluate("amount + 1.0", map[string]any{"amount": 1.0})
	require.Error(t, err)
}

func TestRowContext(t *testing.T) {
	row := validRow("p1", "Ana")
	ctx := rowContext(row, 100)

	require.Equal(t, "p1", ctx["participant_id"])
	require.Equal(t, 100.0, ctx["average_achievement"])
	require.Equal(t, 1500.0, ctx["amount"])
	require.Equal(t, 110.0, ctx["national"])
	require.Equal(t, 90.0, ctx["individual"])
}
