package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bizassist/internal/domain"
	"bizassist/internal/metrics"
	"bizassist/internal/provider"
)

// GenerationMessages are the failure texts shown when a stream cannot be opened.
type GenerationMessages struct {
	Unavailable  string // host refused the connection
	ModelMissing string // model not installed; %s is replaced by the model name
	Generic      string
}

// PromptBuilder turns a request into the generation call for a deployment.
type PromptBuilder func(ctx context.Context, req Request) domain.GenerateRequest

// Generation is the fallback handler that streams an answer from the
// language model.
type Generation struct {
	Generator domain.Generator
	Build     PromptBuilder
	Messages  GenerationMessages
	Limiter   *RateLimiter  // optional
	Timeout   time.Duration // upper bound for the whole stream; 0 means none
	Logger    *slog.Logger
}

// Handler returns the generation fallback as a Handler.
func (g *Generation) Handler() Handler {
	return func(ctx context.Context, req Request) (domain.Envelope, bool) {
		gr := g.Build(ctx, req)

		if g.Limiter != nil {
			if err := g.Limiter.Wait(ctx, req.Principal.Scope); err != nil {
				g.Logger.Warn("generation rate limit wait aborted", "scope", req.Principal.Scope, "error", err)
				return domain.Failure{Message: g.Messages.Generic}, true
			}
		}

		stream, err := g.open(ctx, gr)
		if err != nil {
			metrics.GenerationFailures.Inc()
			g.Logger.Error("generation failed to start",
				"generator", g.Generator.Name(),
				"model", gr.ModelName(),
				"principal", req.Principal.ID,
				"error", err,
			)
			return domain.Failure{Message: g.failureMessage(err, gr.ModelName())}, true
		}
		return domain.Stream{Tokens: stream}, true
	}
}

func (g *Generation) open(ctx context.Context, req domain.GenerateRequest) (domain.TokenStream, error) {
	metrics.GenerationRequests.Inc()
	start := time.Now()
	defer metrics.GenerationLatency.ObserveSince(start)

	cancel := context.CancelFunc(func() {})
	if g.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
	}
	stream, err := g.Generator.Generate(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return &boundedStream{TokenStream: stream, cancel: cancel}, nil
}

func (g *Generation) failureMessage(err error, model string) string {
	switch {
	case provider.IsConnectionRefused(err):
		return g.Messages.Unavailable
	case g.Messages.ModelMissing != "" && provider.IsModelNotFound(err):
		return fmt.Sprintf(g.Messages.ModelMissing, model)
	default:
		return g.Messages.Generic
	}
}

// boundedStream releases the generation deadline when the stream is closed.
type boundedStream struct {
	domain.TokenStream
	cancel context.CancelFunc
	once   sync.Once
}

func (s *boundedStream) Close() error {
	err := s.TokenStream.Close()
	s.once.Do(s.cancel)
	return err
}
