package tools

import "context"

// Tool is a function the generation backend may invoke while composing a
// reply.
type Tool interface {
	Name() string
	Description() string
	ParameterSchema() string
	Execute(ctx context.Context, params map[string]any) (string, error)
}
