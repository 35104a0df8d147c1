// Package agent routes chat prompts to intent handlers and turns every
// outcome into a response envelope.
package agent

import (
	"context"
	"log/slog"

	"bizassist/internal/domain"
	"bizassist/internal/intent"
	"bizassist/internal/metrics"
)

// Request is one classified prompt from an authenticated principal.
type Request struct {
	Principal domain.Principal
	Prompt    string
	Intent    intent.Result
}

// Handler answers one intent. A handler that returns handled=false declines
// the prompt and classification resumes after its rule.
type Handler func(ctx context.Context, req Request) (env domain.Envelope, handled bool)

// Router classifies prompts and dispatches them to handlers.
type Router struct {
	classifier *intent.Classifier
	handlers   map[intent.Kind]Handler
	logger     *slog.Logger
}

type RouterConfig struct {
	Classifier *intent.Classifier
	Handlers   map[intent.Kind]Handler
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Handlers == nil {
		cfg.Handlers = make(map[intent.Kind]Handler)
	}
	return &Router{
		classifier: cfg.Classifier,
		handlers:   cfg.Handlers,
		logger:     cfg.Logger,
	}
}

// Route returns exactly one envelope for the prompt. It returns nil only when
// no handler is registered for the selected intent, which the transport
// treats as an internal error.
func (r *Router) Route(ctx context.Context, p domain.Principal, prompt string) domain.Envelope {
	metrics.PromptsTotal.Inc()
	res := r.classifier.Classify(prompt)
	for {
		h, ok := r.handlers[res.Kind]
		if !ok {
			r.logger.Error("no handler registered for intent", "intent", res.Kind)
			return nil
		}

		env, handled := h(ctx, Request{Principal: p, Prompt: prompt, Intent: res})
		if handled {
			r.logger.Debug("prompt routed", "intent", res.Kind, "principal", p.ID)
			metrics.IntentRouted(string(res.Kind)).Inc()
			return env
		}
		if res.Kind == intent.KindGeneration {
			r.logger.Error("generation handler declined prompt")
			return nil
		}

		r.logger.Debug("handler declined, resuming classification", "intent", res.Kind)
		res = r.classifier.ClassifyFrom(prompt, res.Rule+1)
	}
}
