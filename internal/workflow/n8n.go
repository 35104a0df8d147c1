// Package workflow triggers side-effecting automations in an external n8n
// instance through its webhook nodes.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bizassist/internal/domain"
)

const defaultTimeout = 15 * time.Second

// N8N posts actions to n8n webhook URLs.
type N8N struct {
	reminderURL string
	client      *http.Client
	logger      *slog.Logger
}

type N8NConfig struct {
	ReminderWebhookURL string
	Timeout            time.Duration
	Client             *http.Client
	Logger             *slog.Logger
}

func NewN8N(cfg N8NConfig) *N8N {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &N8N{
		reminderURL: cfg.ReminderWebhookURL,
		client:      cfg.Client,
		logger:      cfg.Logger,
	}
}

// Configured reports whether a reminder webhook URL is set.
func (n *N8N) Configured() bool { return n.reminderURL != "" }

// reminderPayload is the body the reminder workflow expects. Exactly one of
// TenantID and PatientID is set.
type reminderPayload struct {
	UserID         string `json:"userId"`
	TenantID       string `json:"tenantId,omitempty"`
	PatientID      string `json:"patientId,omitempty"`
	ReminderText   string `json:"reminderText"`
	DateTimeString string `json:"dateTimeString"`
}

// DispatchReminder posts the reminder to the workflow. Any HTTP answer is a
// DispatchResult carrying the body's "message" field when present; an error
// means the workflow was not reached.
func (n *N8N) DispatchReminder(ctx context.Context, r domain.Reminder) (domain.DispatchResult, error) {
	if !n.Configured() {
		return domain.DispatchResult{}, fmt.Errorf("reminder webhook URL is not configured")
	}

	payload := reminderPayload{
		UserID:         r.Principal.ID,
		TenantID:       r.Principal.TenantID(),
		PatientID:      r.Principal.PatientID(),
		ReminderText:   r.Description,
		DateTimeString: r.When,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("marshal reminder: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.reminderURL, bytes.NewReader(body))
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	n.logger.Info("dispatching reminder", "user", payload.UserID, "when", r.When)
	resp, err := n.client.Do(req)
	if err != nil {
		return domain.DispatchResult{}, fmt.Errorf("reminder webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	result := domain.DispatchResult{StatusCode: resp.StatusCode, Message: messageField(raw)}
	if !result.OK() {
		n.logger.Warn("reminder webhook rejected request", "status", resp.StatusCode, "body", string(raw))
	}
	return result, nil
}

// messageField returns the "message" string of a JSON object body, or "".
func messageField(raw []byte) string {
	var body struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if s, ok := body.Message.(string); ok {
		return s
	}
	return ""
}
