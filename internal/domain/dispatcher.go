package domain

import "context"

// Reminder is a request to schedule a reminder in the external workflow engine.
// When is forwarded verbatim; the workflow engine resolves natural-language dates.
type Reminder struct {
	Principal   Principal
	Description string
	When        string
}

// DispatchResult is the workflow engine's answer to a dispatched action.
type DispatchResult struct {
	StatusCode int
	Message    string
}

// OK reports a 2xx answer.
func (r DispatchResult) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// ActionDispatcher triggers side-effecting workflows. An error means the
// workflow engine was not reached; any HTTP answer is a DispatchResult.
type ActionDispatcher interface {
	Configured() bool
	DispatchReminder(ctx context.Context, r Reminder) (DispatchResult, error)
}
