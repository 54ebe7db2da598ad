package source

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"MemeCurator/internal/domain"
)

// CELFilter keeps candidates for which a boolean CEL expression holds, e.g.
// `ups >= 100 && !title.contains("nsfw")`.
type CELFilter struct {
	Expression string
	program    cel.Program
}

// NewCELFilter compiles expression. An empty expression yields a nil filter.
func NewCELFilter(expression string) (*CELFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("url", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("author", cel.StringType),
		cel.Variable("ups", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create filter program: %w", err)
	}

	return &CELFilter{Expression: expression, program: program}, nil
}

// Match evaluates the expression against c. A nil filter matches everything.
func (f *CELFilter) Match(c domain.Candidate) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, _, err := f.program.Eval(map[string]any{
		"id":     c.ID,
		"title":  c.Title,
		"url":    c.URL,
		"source": c.Source,
		"author": c.Author,
		"ups":    int64(c.Ups),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate filter: %w", err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, want bool", f.Expression, out.Value())
	}
	return matched, nil
}
