package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"bizassist/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	owner   = domain.Principal{ID: "u1", Scope: "tenant-1", Email: "owner@example.com", Kind: domain.KindUser}
	patient = domain.Principal{ID: "p1", Scope: "p1", Email: "pat@example.com", Kind: domain.KindPatient}
)

// fakeStore implements domain.DataStore with canned data.
type fakeStore struct {
	sales       domain.SalesSummary
	salesFrom   time.Time
	salesTo     time.Time
	tasks       []domain.Task
	faqs        []domain.FAQ
	faqTerms    []string
	appointment *domain.Appointment
	staff       []domain.Staff
	history     []domain.MessageRecord
	err         error
	historyErr  error
	calls       int
}

func (f *fakeStore) SalesBetween(_ context.Context, _ string, from, to time.Time) (domain.SalesSummary, error) {
	f.calls++
	f.salesFrom, f.salesTo = from, to
	return f.sales, f.err
}

func (f *fakeStore) PendingTasks(_ context.Context, _ string, limit int) ([]domain.Task, error) {
	f.calls++
	if len(f.tasks) > limit {
		return f.tasks[:limit], f.err
	}
	return f.tasks, f.err
}

func (f *fakeStore) SearchFAQs(_ context.Context, terms []string, limit int) ([]domain.FAQ, error) {
	f.calls++
	f.faqTerms = terms
	return f.faqs, f.err
}

func (f *fakeStore) NextAppointment(context.Context, string, time.Time) (*domain.Appointment, error) {
	f.calls++
	return f.appointment, f.err
}

func (f *fakeStore) StaffByRole(context.Context, string, int) ([]domain.Staff, error) {
	f.calls++
	return f.staff, f.err
}

func (f *fakeStore) RecentMessages(context.Context, string, int) ([]domain.MessageRecord, error) {
	return f.history, f.historyErr
}

func (f *fakeStore) AppendExchange(context.Context, string, string, string) error { return nil }

// fakeDispatcher records dispatched reminders.
type fakeDispatcher struct {
	configured bool
	result     domain.DispatchResult
	err        error
	sent       []domain.Reminder
}

func (f *fakeDispatcher) Configured() bool { return f.configured }

func (f *fakeDispatcher) DispatchReminder(_ context.Context, r domain.Reminder) (domain.DispatchResult, error) {
	f.sent = append(f.sent, r)
	return f.result, f.err
}

// fakeGenerator returns a canned stream or error and records the request.
type fakeGenerator struct {
	chunks []string
	err    error
	got    domain.GenerateRequest
	ctx    context.Context
}

func (f *fakeGenerator) Name() string                  { return "fake" }
func (f *fakeGenerator) Healthy(context.Context) error { return nil }

func (f *fakeGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.TokenStream, error) {
	f.got = req
	f.ctx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &chunkStream{chunks: append([]string(nil), f.chunks...)}, nil
}

type chunkStream struct {
	chunks []string
	closed bool
}

func (s *chunkStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *chunkStream) Close() error { s.closed = true; return nil }

func drain(s domain.TokenStream) (string, error) {
	var sb strings.Builder
	for {
		c, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(c)
	}
}

func replyText(env domain.Envelope) string {
	if r, ok := env.(domain.Reply); ok {
		return r.Text
	}
	return ""
}
