package domain

import (
	"context"
	"time"
)

// SalesQuerier aggregates tenant sales.
type SalesQuerier interface {
	SalesBetween(ctx context.Context, tenantID string, from, to time.Time) (SalesSummary, error)
}

// TaskQuerier lists incomplete tasks ordered by due time.
type TaskQuerier interface {
	PendingTasks(ctx context.Context, tenantID string, limit int) ([]Task, error)
}

// FAQSearcher matches any of the terms against question or answer text.
type FAQSearcher interface {
	SearchFAQs(ctx context.Context, terms []string, limit int) ([]FAQ, error)
}

// AppointmentQuerier finds the soonest appointment starting at or after a time.
// It returns nil, nil when there is none.
type AppointmentQuerier interface {
	NextAppointment(ctx context.Context, patientID string, after time.Time) (*Appointment, error)
}

// StaffQuerier lists staff members with a role.
type StaffQuerier interface {
	StaffByRole(ctx context.Context, role string, limit int) ([]Staff, error)
}

// HistoryStore keeps per-principal conversation history.
type HistoryStore interface {
	RecentMessages(ctx context.Context, scope string, limit int) ([]MessageRecord, error)
	AppendExchange(ctx context.Context, scope, prompt, answer string) error
}

// DataStore is the full query surface used by the intent handlers.
type DataStore interface {
	SalesQuerier
	TaskQuerier
	FAQSearcher
	AppointmentQuerier
	StaffQuerier
	HistoryStore
}
