package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bizassist/internal/domain"
	"bizassist/internal/intent"
)

const (
	BizAssistModel   = "llama3"
	MediConnectModel = "llama2"

	historyLookback = 2

	mediConnectSystem = "You are a helpful AI assistant for MediConnect, designed to provide general health information and help with clinic-related queries. " +
		"You are not a medical doctor and cannot provide medical diagnoses or treatment advice. Your responses are for informational purposes only. " +
		"Always consult with a qualified healthcare professional for any medical concerns or before making any decisions related to your health. " +
		"If asked about symptoms, you can provide general information but must strongly advise to consult a doctor for diagnosis."
)

// Deps are the collaborators shared by both deployments.
type Deps struct {
	Store      domain.DataStore
	Dispatcher domain.ActionDispatcher
	Generator  domain.Generator
	Limiter    *RateLimiter
	Model      string        // sent to every backend; empty leaves the choice to the backend
	Timeout    time.Duration // generation upper bound
	Now        func() time.Time
	Location   *time.Location // for rendering dates and times
	Logger     *slog.Logger
}

func (d *Deps) defaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
}

// NewBizAssist wires the business-owner assistant: reminders, sales, tasks
// and a llama3 fallback.
func NewBizAssist(d Deps) *Router {
	d.defaults()
	gen := &Generation{
		Generator: d.Generator,
		Limiter:   d.Limiter,
		Timeout:   d.Timeout,
		Logger:    d.Logger,
		Messages: GenerationMessages{
			Unavailable: "The AI service (Ollama) is currently unavailable. Please try again later.",
			Generic:     "I encountered an error while trying to connect to the AI service.",
		},
		Build: func(_ context.Context, req Request) domain.GenerateRequest {
			return domain.GenerateRequest{
				Model:          d.Model,
				PreferredModel: BizAssistModel,
				Prompt:         BizAssistPrompt(req.Principal, req.Prompt),
			}
		},
	}

	return NewRouter(RouterConfig{
		Classifier: intent.BizAssist(),
		Logger:     d.Logger,
		Handlers: map[intent.Kind]Handler{
			intent.KindReminder:   Reminder(d.Dispatcher, d.Logger),
			intent.KindMalformed:  Usage(),
			intent.KindSales:      Sales(d.Store, d.Now, d.Logger),
			intent.KindTasks:      Tasks(d.Store, d.Location, d.Logger),
			intent.KindGeneration: gen.Handler(),
		},
	})
}

// BizAssistPrompt inlines the system text into the prompt.
func BizAssistPrompt(p domain.Principal, prompt string) string {
	system := "You are BizAssist, a helpful business assistant for a small business owner. " +
		"Be concise and helpful. The user you are assisting is " + p.Email +
		" from tenant ID " + p.TenantID() + "."
	return system + "\n\nUser: " + prompt + "\nAssistant:"
}

// NewMediConnect wires the clinic patient assistant: FAQs, appointments,
// doctor availability and a llama2 fallback with a short history lookback.
func NewMediConnect(d Deps) *Router {
	d.defaults()
	gen := &Generation{
		Generator: d.Generator,
		Limiter:   d.Limiter,
		Timeout:   d.Timeout,
		Logger:    d.Logger,
		Messages: GenerationMessages{
			Unavailable:  "The AI health assistant service is currently unavailable. Please try again later.",
			ModelMissing: "The AI health assistant model '%s' is not available. Please contact support.",
			Generic:      "I encountered an error while trying to connect to the AI health assistant.",
		},
		Build: func(ctx context.Context, req Request) domain.GenerateRequest {
			history, err := d.Store.RecentMessages(ctx, req.Principal.Scope, historyLookback)
			if err != nil {
				// Generation proceeds without history.
				d.Logger.Warn("history lookup failed", "patient", req.Principal.PatientID(), "error", err)
				history = nil
			}
			return domain.GenerateRequest{
				Model:          d.Model,
				PreferredModel: MediConnectModel,
				System:         mediConnectSystem,
				Prompt:         MediConnectPrompt(history, req.Prompt),
			}
		},
	}

	return NewRouter(RouterConfig{
		Classifier: intent.MediConnect(),
		Logger:     d.Logger,
		Handlers: map[intent.Kind]Handler{
			intent.KindFAQ:          FAQ(d.Store, d.Logger),
			intent.KindAppointment:  Appointment(d.Store, d.Now, d.Location, d.Logger),
			intent.KindAvailability: Availability(d.Store, d.Logger),
			intent.KindGeneration:   gen.Handler(),
		},
	})
}

// MediConnectPrompt prefixes the prompt with the recent history lines.
func MediConnectPrompt(history []domain.MessageRecord, prompt string) string {
	if len(history) == 0 {
		return "Current User: " + prompt
	}
	lines := make([]string, len(history))
	for i, m := range history {
		who := "Previous Assistant"
		if m.Role == "user" {
			who = "Previous User"
		}
		lines[i] = fmt.Sprintf("%s: %s", who, m.Content)
	}
	return strings.Join(lines, "\n") + "\nCurrent User: " + prompt
}
