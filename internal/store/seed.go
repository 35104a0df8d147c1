package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizassist/internal/domain"
)

// SeedOptions describes the demo data written by Seed.
type SeedOptions struct {
	TenantID     string
	UserEmail    string
	UserName     string
	PasswordHash string
	PatientEmail string
	PatientName  string
	Now          time.Time
}

// SeedResult reports what Seed created.
type SeedResult struct {
	Skipped   bool
	UserID    string
	PatientID string
	Sales     int
	Tasks     int
	FAQs      int
}

var demoFAQs = []struct{ q, a string }{
	{"What are your opening hours?", "The clinic is open Monday to Friday from 8am to 6pm and Saturday from 9am to 1pm."},
	{"How to book an appointment?", "You can book an appointment through the patient portal or by asking this assistant."},
	{"Do you accept insurance?", "We accept most major insurance plans. Please bring your insurance card to your visit."},
	{"What is telehealth?", "Telehealth visits let you consult a doctor by video call from home."},
}

// Seed writes a demo tenant user with current-month sales and pending tasks,
// plus clinic FAQs, a doctor and a patient with an upcoming appointment.
// It does nothing when the demo user already exists.
func (s *Store) Seed(ctx context.Context, opts SeedOptions) (SeedResult, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if existing, err := s.UserByEmail(ctx, opts.UserEmail); err == nil {
		return SeedResult{Skipped: true, UserID: existing.ID}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return SeedResult{}, err
	}

	user, err := s.CreateUser(ctx, domain.User{
		Email:        opts.UserEmail,
		Name:         opts.UserName,
		TenantID:     opts.TenantID,
		Role:         "admin",
		PasswordHash: opts.PasswordHash,
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed user: %w", err)
	}
	res := SeedResult{UserID: user.ID}

	monthStart, _ := domain.MonthWindow(opts.Now)
	for i, amount := range []float64{1234.56, 899.99, 2450.00} {
		if _, err := s.RecordSale(ctx, domain.Sale{
			TenantID: opts.TenantID,
			Amount:   amount,
			SoldAt:   monthStart.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			return res, fmt.Errorf("seed sale: %w", err)
		}
		res.Sales++
	}

	for i, title := range []string{"Follow up email", "Prepare quarterly report", "Call supplier"} {
		if _, err := s.CreateTask(ctx, opts.TenantID, title, opts.Now.AddDate(0, 0, i+1)); err != nil {
			return res, fmt.Errorf("seed task: %w", err)
		}
		res.Tasks++
	}

	for _, f := range demoFAQs {
		if _, err := s.AddFAQ(ctx, f.q, f.a); err != nil {
			return res, fmt.Errorf("seed faq: %w", err)
		}
		res.FAQs++
	}

	if _, err := s.AddStaff(ctx, "Dr. Sarah Chen", "doctor"); err != nil {
		return res, fmt.Errorf("seed staff: %w", err)
	}

	patient, err := s.FindOrCreatePatient(ctx, opts.PatientEmail, opts.PatientName)
	if err != nil {
		return res, fmt.Errorf("seed patient: %w", err)
	}
	res.PatientID = patient.ID

	start := time.Date(opts.Now.Year(), opts.Now.Month(), opts.Now.Day()+3, 10, 0, 0, 0, opts.Now.Location())
	if _, err := s.CreateAppointment(ctx, patient.ID, start, start.Add(30*time.Minute), "annual check-up"); err != nil {
		return res, fmt.Errorf("seed appointment: %w", err)
	}

	if err := s.AppendExchange(ctx, opts.TenantID, "Hello, BizAssist!", "Welcome! How can I help today?"); err != nil {
		return res, fmt.Errorf("seed conversation: %w", err)
	}

	s.logger.Info("demo data seeded", "tenant", opts.TenantID, "user", user.ID, "patient", patient.ID)
	return res, nil
}
