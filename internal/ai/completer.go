// Package ai defines the text-generation capability consumed by the
// generation workflow. The model behind it is a black box: its failures are
// surfaced to the caller and never retried here.
package ai

import "context"

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
