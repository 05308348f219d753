package evaluate

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/techthiyanes/langtest/sample"
)

// NewCEL compiles a CEL expression into an evaluator. The expression
// must produce a bool and may reference:
//
//	original   the untouched input text
//	perturbed  the test case text
//	expected   the expected output, rendered as a string
//	actual     the model's output, rendered as a string
//	metadata   the sample's metadata map
//
// Example criteria:
//
//	actual == expected
//	actual.contains(expected) && size(actual) < 200
//	!actual.matches('(?i)as an ai')
//
// Compilation errors are returned to the caller, which treats them as
// fatal configuration errors before any generation work begins.
func NewCEL(expr string) (Func, error) {
	env, err := cel.NewEnv(
		cel.Variable("original", cel.StringType),
		cel.Variable("perturbed", cel.StringType),
		cel.Variable("expected", cel.StringType),
		cel.Variable("actual", cel.StringType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile criteria %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("criteria %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build criteria program: %w", err)
	}

	return func(s *sample.Sample, _ Config) (bool, error) {
		metadata := s.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		out, _, err := prg.Eval(map[string]any{
			"original":  s.Original,
			"perturbed": s.Perturbed,
			"expected":  s.ExpectedOutput.String(),
			"actual":    s.ActualOutput.String(),
			"metadata":  metadata,
		})
		if err != nil {
			return false, fmt.Errorf("evaluate criteria: %w", err)
		}
		pass, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("criteria returned %T, want bool", out.Value())
		}
		return pass, nil
	}, nil
}
