package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bizassist/internal/domain"
)

// FailoverGenerator tries multiple generators in order while opening a
// stream. Once a stream is open it is returned as is; a stream that breaks
// after emitting fragments is never replayed on another host.
type FailoverGenerator struct {
	generators []domain.Generator
	logger     *slog.Logger
}

// NewFailoverGenerator creates a failover chain. At least one generator is required.
func NewFailoverGenerator(generators []domain.Generator, logger *slog.Logger) *FailoverGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailoverGenerator{
		generators: generators,
		logger:     logger,
	}
}

func (f *FailoverGenerator) Name() string {
	names := make([]string, len(f.generators))
	for i, g := range f.generators {
		names[i] = g.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

func (f *FailoverGenerator) Healthy(ctx context.Context) error {
	for _, g := range f.generators {
		if err := g.Healthy(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no healthy generator in failover chain")
}

// Generate returns the first stream that opens. The error of the last
// generator is wrapped so callers can still classify it.
func (f *FailoverGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.TokenStream, error) {
	if len(f.generators) == 0 {
		return nil, fmt.Errorf("failover chain is empty")
	}
	var lastErr error
	for i, g := range f.generators {
		stream, err := g.Generate(ctx, req)
		if err == nil {
			if i > 0 {
				f.logger.Info("failover: used fallback generator", "generator", g.Name(), "attempt", i+1)
			}
			return stream, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		f.logger.Warn("failover: generator failed, trying next",
			"generator", g.Name(),
			"attempt", i+1,
			"error", err,
		)
	}
	return nil, fmt.Errorf("all generators in failover chain failed: %w", lastErr)
}
