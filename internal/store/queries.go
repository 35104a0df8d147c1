package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bizassist/internal/domain"
)

// ts normalizes a time for storage. Postgres TIMESTAMP keeps microseconds and
// SQLite compares the stored text, so every value is UTC at that precision.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// SalesBetween sums tenant sales with from <= sold_at < to.
func (s *Store) SalesBetween(ctx context.Context, tenantID string, from, to time.Time) (domain.SalesSummary, error) {
	var (
		total sql.NullFloat64
		count int
	)
	err := s.queryRow(ctx, `
		SELECT SUM(amount), COUNT(*) FROM sales
		WHERE tenant_id = ? AND sold_at >= ? AND sold_at < ?`,
		tenantID, ts(from), ts(to),
	).Scan(&total, &count)
	if err != nil {
		return domain.SalesSummary{}, fmt.Errorf("sum sales: %w", err)
	}
	return domain.SalesSummary{Total: total.Float64, Count: count}, nil
}

// RecordSale inserts a sale for a tenant.
func (s *Store) RecordSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = newID()
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now()
	}
	sale.SoldAt = ts(sale.SoldAt)
	if _, err := s.exec(ctx,
		"INSERT INTO sales (id, tenant_id, amount, sold_at) VALUES (?, ?, ?, ?)",
		sale.ID, sale.TenantID, sale.Amount, sale.SoldAt,
	); err != nil {
		return domain.Sale{}, fmt.Errorf("insert sale: %w", classify(err))
	}
	return sale, nil
}

// PendingTasks lists incomplete tasks for a tenant, soonest due first.
func (s *Store) PendingTasks(ctx context.Context, tenantID string, limit int) ([]domain.Task, error) {
	rows, err := s.query(ctx, `
		SELECT id, tenant_id, title, due_at, completed, created_at FROM tasks
		WHERE tenant_id = ? AND completed = ?
		ORDER BY due_at ASC
		LIMIT ?`,
		tenantID, false, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	return scanTasks(rows)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// SearchFAQs returns FAQs whose question or answer contains any term,
// case-insensitively.
func (s *Store) SearchFAQs(ctx context.Context, terms []string, limit int) ([]domain.FAQ, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	var (
		conds []string
		args  []any
	)
	lower := "LOWER"
	if s.driver == DriverSQLite {
		lower = "fold"
	}
	for _, term := range terms {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		conds = append(conds, fmt.Sprintf(`%[1]s(question) LIKE ? ESCAPE '\' OR %[1]s(answer) LIKE ? ESCAPE '\'`, lower))
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	rows, err := s.query(ctx,
		"SELECT id, question, answer FROM faqs WHERE "+strings.Join(conds, " OR ")+" ORDER BY question LIMIT ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search faqs: %w", err)
	}
	defer rows.Close()

	var out []domain.FAQ
	for rows.Next() {
		var f domain.FAQ
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer); err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListFAQs returns every FAQ ordered by question.
func (s *Store) ListFAQs(ctx context.Context) ([]domain.FAQ, error) {
	rows, err := s.query(ctx, "SELECT id, question, answer FROM faqs ORDER BY question")
	if err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	defer rows.Close()

	out := []domain.FAQ{}
	for rows.Next() {
		var f domain.FAQ
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer); err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AddFAQ inserts an FAQ entry.
func (s *Store) AddFAQ(ctx context.Context, question, answer string) (domain.FAQ, error) {
	f := domain.FAQ{ID: newID(), Question: question, Answer: answer}
	if _, err := s.exec(ctx, "INSERT INTO faqs (id, question, answer) VALUES (?, ?, ?)", f.ID, f.Question, f.Answer); err != nil {
		return domain.FAQ{}, fmt.Errorf("insert faq: %w", classify(err))
	}
	return f, nil
}

// StaffByRole lists staff members with the given role.
func (s *Store) StaffByRole(ctx context.Context, role string, limit int) ([]domain.Staff, error) {
	rows, err := s.query(ctx, "SELECT id, name, role FROM staff WHERE role = ? ORDER BY name LIMIT ?", role, limit)
	if err != nil {
		return nil, fmt.Errorf("query staff: %w", err)
	}
	defer rows.Close()

	var out []domain.Staff
	for rows.Next() {
		var m domain.Staff
		if err := rows.Scan(&m.ID, &m.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddStaff inserts a staff member.
func (s *Store) AddStaff(ctx context.Context, name, role string) (domain.Staff, error) {
	m := domain.Staff{ID: newID(), Name: name, Role: role}
	if _, err := s.exec(ctx, "INSERT INTO staff (id, name, role) VALUES (?, ?, ?)", m.ID, m.Name, m.Role); err != nil {
		return domain.Staff{}, fmt.Errorf("insert staff: %w", classify(err))
	}
	return m, nil
}

