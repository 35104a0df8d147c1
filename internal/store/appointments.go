package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bizassist/internal/domain"
)

const appointmentColumns = "id, patient_id, starts_at, ends_at, reason, status"

func scanAppointment(row interface{ Scan(...any) error }) (domain.Appointment, error) {
	var (
		a      domain.Appointment
		reason sql.NullString
	)
	if err := row.Scan(&a.ID, &a.PatientID, &a.StartsAt, &a.EndsAt, &reason, &a.Status); err != nil {
		return domain.Appointment{}, err
	}
	a.Reason = reason.String
	return a, nil
}

// NextAppointment returns the patient's soonest appointment starting at or
// after the given time, or nil when there is none.
func (s *Store) NextAppointment(ctx context.Context, patientID string, after time.Time) (*domain.Appointment, error) {
	a, err := scanAppointment(s.queryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = ? AND starts_at >= ?
		ORDER BY starts_at ASC
		LIMIT 1`,
		patientID, ts(after),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query next appointment: %w", err)
	}
	return &a, nil
}

// ListAppointments returns every appointment of a patient, earliest first.
func (s *Store) ListAppointments(ctx context.Context, patientID string) ([]domain.Appointment, error) {
	rows, err := s.query(ctx,
		"SELECT "+appointmentColumns+" FROM appointments WHERE patient_id = ? ORDER BY starts_at ASC", patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := []domain.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateAppointment books a pending appointment for a patient.
func (s *Store) CreateAppointment(ctx context.Context, patientID string, startsAt, endsAt time.Time, reason string) (domain.Appointment, error) {
	a := domain.Appointment{
		ID:        newID(),
		PatientID: patientID,
		StartsAt:  ts(startsAt),
		EndsAt:    ts(endsAt),
		Reason:    reason,
		Status:    "pending",
	}
	if _, err := s.exec(ctx,
		"INSERT INTO appointments ("+appointmentColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		a.ID, a.PatientID, a.StartsAt, a.EndsAt, nullable(a.Reason), a.Status,
	); err != nil {
		return domain.Appointment{}, fmt.Errorf("insert appointment: %w", classify(err))
	}
	return a, nil
}
