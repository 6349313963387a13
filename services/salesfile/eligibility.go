package salesfile

import (
	"encoding/json"
	"fmt"

	"github.com/google/cel-go/cel"
)

// structuredRule is the slice of the extracted rule this package cares
// about: an optional CEL expression selecting eligible participants.
type structuredRule struct {
	EligibilityExpression string `json:"eligibility_expression"`
}

// EligibilityExpression pulls the CEL expression out of an extracted rule,
// empty when the rule does not restrict eligibility.
func EligibilityExpression(rule []byte) string {
	if len(rule) == 0 {
		return ""
	}
	var sr structuredRule
	if err := json.Unmarshal(rule, &sr); err != nil {
		return ""
	}
	return sr.EligibilityExpression
}

// Evaluator evaluates CEL eligibility expressions against row attributes.
type Evaluator struct{}

// NewEvaluator creates a new Evaluator instance.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate evaluates a CEL expression against the provided context map.
// The context map entries are exposed as top-level variables in the CEL
// program.
func (e *Evaluator) Evaluate(expression string, context map[string]any) (bool, error) {
	if expression == "" {
		return false, fmt.Errorf("expression must not be empty")
	}

	if context == nil {
		context = map[string]any{}
	}

	envOpts := make([]cel.EnvOption, 0, len(context))
	for key := range context {
		envOpts = append(envOpts, cel.Variable(key, cel.DynType))
	}

	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile expression: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.Eval(context)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	boolean, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return a boolean, got %T", result.Value())
	}

	return boolean, nil
}

// rowContext exposes a validated row to the eligibility expression.
func rowContext(row ParticipantRow, average float64) map[string]any {
	ctx := map[string]any{
		"participant_id":      row.ParticipantID,
		"name":                row.Name,
		"average_achievement": average,
	}
	if row.Amount != nil {
		ctx["amount"] = *row.Amount
	}
	for tier, pct := range row.Achievements {
		ctx[tier] = pct
	}
	return ctx
}
