package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizassist/internal/domain"
)

// CreateUser inserts a business user. Emails are stored lowercased and must
// be unique; a duplicate yields ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Role == "" {
		u.Role = "user"
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = ts(time.Now())

	if _, err := s.exec(ctx, `
		INSERT INTO users (id, email, name, tenant_id, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, nullable(u.Name), u.TenantID, u.Role, u.PasswordHash, u.CreatedAt,
	); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", classify(err))
	}
	return u, nil
}

// UserByEmail loads a user including the password hash.
func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	var (
		u    domain.User
		name sql.NullString
	)
	err := s.queryRow(ctx, `
		SELECT id, email, name, tenant_id, role, password_hash, created_at
		FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &name, &u.TenantID, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return domain.User{}, classify(err)
	}
	u.Name = name.String
	return u, nil
}

// FindOrCreatePatient returns the patient with the given email, creating one
// with the given name when none exists.
func (s *Store) FindOrCreatePatient(ctx context.Context, email, name string) (domain.Patient, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := s.PatientByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Patient{}, err
	}

	p = domain.Patient{ID: newID(), Email: email, Name: name, CreatedAt: ts(time.Now())}
	if _, err := s.exec(ctx,
		"INSERT INTO patients (id, email, name, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.Email, p.Name, p.CreatedAt,
	); err != nil {
		err = classify(err)
		if errors.Is(err, ErrConflict) {
			// Lost a race with a concurrent session for the same email.
			return s.PatientByEmail(ctx, email)
		}
		return domain.Patient{}, fmt.Errorf("insert patient: %w", err)
	}
	return p, nil
}

func (s *Store) PatientByEmail(ctx context.Context, email string) (domain.Patient, error) {
	var p domain.Patient
	err := s.queryRow(ctx,
		"SELECT id, email, name, created_at FROM patients WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&p.ID, &p.Email, &p.Name, &p.CreatedAt)
	if err != nil {
		return domain.Patient{}, classify(err)
	}
	return p, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
