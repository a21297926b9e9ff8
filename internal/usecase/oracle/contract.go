package oracle

import "context"

// Generator sends a prompt to one model variant and returns its raw text.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}
