package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"bizassist/internal/domain"
)

// mockGenerator implements domain.Generator for testing.
type mockGenerator struct {
	name    string
	healthy bool
	genErr  error
	chunks  []string
	calls   int
}

func (m *mockGenerator) Name() string { return m.name }

func (m *mockGenerator) Healthy(ctx context.Context) error {
	if !m.healthy {
		return errors.New("unhealthy")
	}
	return nil
}

func (m *mockGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.TokenStream, error) {
	m.calls++
	if m.genErr != nil {
		return nil, m.genErr
	}
	return &sliceStream{chunks: append([]string(nil), m.chunks...)}, nil
}

type sliceStream struct {
	chunks []string
	err    error
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func drain(t *testing.T, s domain.TokenStream) string {
	t.Helper()
	var sb strings.Builder
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return sb.String()
		}
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		sb.WriteString(chunk)
	}
}

// --- Happy path ---

func TestFailoverGenerator_UsesFirstGenerator(t *testing.T) {
	g1 := &mockGenerator{name: "primary", chunks: []string{"from-", "primary"}}
	g2 := &mockGenerator{name: "secondary", chunks: []string{"from-secondary"}}
	fg := NewFailoverGenerator([]domain.Generator{g1, g2}, testLogger())

	stream, err := fg.Generate(context.Background(), domain.GenerateRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(t, stream); got != "from-primary" {
		t.Fatalf("expected 'from-primary', got %q", got)
	}
	if g2.calls != 0 {
		t.Errorf("secondary should not be called, got %d calls", g2.calls)
	}
}

func TestFailoverGenerator_FallsBackOnOpenError(t *testing.T) {
	g1 := &mockGenerator{name: "primary", genErr: errors.New("connection refused")}
	g2 := &mockGenerator{name: "secondary", chunks: []string{"from-secondary"}}
	fg := NewFailoverGenerator([]domain.Generator{g1, g2}, testLogger())

	stream, err := fg.Generate(context.Background(), domain.GenerateRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(t, stream); got != "from-secondary" {
		t.Fatalf("expected 'from-secondary', got %q", got)
	}
}

// --- Failure paths ---

func TestFailoverGenerator_AllFailWrapsLastError(t *testing.T) {
	notFound := &APIError{Provider: "ollama", StatusCode: 404, Message: "model 'llama2' not found"}
	g1 := &mockGenerator{name: "p1", genErr: errors.New("fail 1")}
	g2 := &mockGenerator{name: "p2", genErr: notFound}
	fg := NewFailoverGenerator([]domain.Generator{g1, g2}, testLogger())

	_, err := fg.Generate(context.Background(), domain.GenerateRequest{})
	if err == nil {
		t.Fatal("expected error when all generators fail")
	}
	if !IsModelNotFound(err) {
		t.Errorf("expected wrapped model-not-found error, got %v", err)
	}
}

func TestFailoverGenerator_MidStreamErrorIsNotRetried(t *testing.T) {
	broken := errors.New("connection reset")
	g1 := &mockGenerator{name: "p1", chunks: []string{"partial"}}
	g2 := &mockGenerator{name: "p2", chunks: []string{"other"}}
	fg := NewFailoverGenerator([]domain.Generator{g1, g2}, testLogger())

	stream, err := fg.Generate(context.Background(), domain.GenerateRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stream.(*sliceStream).err = broken

	if chunk, _ := stream.Recv(); chunk != "partial" {
		t.Fatalf("expected 'partial', got %q", chunk)
	}
	if _, err := stream.Recv(); !errors.Is(err, broken) {
		t.Errorf("expected mid-stream error to surface, got %v", err)
	}
	if g2.calls != 0 {
		t.Errorf("secondary must not be called after a stream opened, got %d calls", g2.calls)
	}
}

func TestFailoverGenerator_Empty(t *testing.T) {
	fg := NewFailoverGenerator(nil, testLogger())
	if _, err := fg.Generate(context.Background(), domain.GenerateRequest{}); err == nil {
		t.Fatal("expected error for empty chain")
	}
}

func TestFailoverGenerator_Healthy(t *testing.T) {
	fg := NewFailoverGenerator([]domain.Generator{
		&mockGenerator{name: "a", healthy: false},
		&mockGenerator{name: "b", healthy: true},
	}, testLogger())
	if err := fg.Healthy(context.Background()); err != nil {
		t.Errorf("expected healthy chain, got %v", err)
	}

	fg = NewFailoverGenerator([]domain.Generator{&mockGenerator{name: "a"}}, testLogger())
	if err := fg.Healthy(context.Background()); err == nil {
		t.Error("expected unhealthy chain")
	}
}

func TestFailoverGenerator_Name(t *testing.T) {
	fg := NewFailoverGenerator([]domain.Generator{
		&mockGenerator{name: "ollama"},
		&mockGenerator{name: "openai"},
	}, testLogger())
	if got := fg.Name(); got != "failover(ollama→openai)" {
		t.Errorf("unexpected name %q", got)
	}
}
