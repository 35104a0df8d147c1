package domain

import (
	"math"
	"time"
)

type Sale struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenantId"`
	Amount   float64   `json:"amount"`
	SoldAt   time.Time `json:"date"`
}

// SalesSummary is the aggregate of sales in a time window.
type SalesSummary struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

type Task struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Title     string    `json:"title"`
	DueAt     time.Time `json:"dueAt"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskUpdate carries the optional fields of a partial task update.
type TaskUpdate struct {
	Title     *string
	DueAt     *time.Time
	Completed *bool
}

// Empty reports whether no field is set.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.DueAt == nil && u.Completed == nil
}

type Appointment struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patientId"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	Reason    string    `json:"reason,omitempty"`
	Status    string    `json:"status"`
}

type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Staff struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	TenantID     string    `json:"tenant_id"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Patient struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageRecord is one persisted turn of a conversation.
type MessageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // user | assistant
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// SalesChange returns the change from previous to current in percent,
// rounded to two decimals. Growth from nothing counts as 100%.
func SalesChange(current, previous float64) float64 {
	var pct float64
	switch {
	case previous > 0:
		pct = (current - previous) / previous * 100
	case current > 0:
		pct = 100
	}
	return math.Round(pct*100) / 100
}

// MonthWindow returns [first day of t's month, first day of the next month)
// in t's location.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}
