package domain

import "context"

// TokenStream is a single-pass producer of generated text fragments.
// Recv returns io.EOF once generation completed. Close releases the
// upstream connection and may be called at any time, more than once.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// GenerateRequest is one prompt for a language-model host.
type GenerateRequest struct {
	Model  string // explicit model; every host honors it
	Prompt string
	System string

	// PreferredModel is the caller's choice for hosts that have no
	// configured default of their own. OpenAI-compatible hosts ignore it.
	PreferredModel string
}

// ModelName is the model the request names, for messages and logs.
func (r GenerateRequest) ModelName() string {
	if r.Model != "" {
		return r.Model
	}
	return r.PreferredModel
}

// Generator opens streamed generations against a language-model host.
// Generate fails immediately when the host cannot be reached.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (TokenStream, error)
	Healthy(ctx context.Context) error
}
