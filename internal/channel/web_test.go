package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bizassist/internal/auth"
	"bizassist/internal/config"
	"bizassist/internal/domain"
	"bizassist/internal/store"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type routerFunc func(ctx context.Context, p domain.Principal, prompt string) domain.Envelope

func (f routerFunc) Route(ctx context.Context, p domain.Principal, prompt string) domain.Envelope {
	return f(ctx, p, prompt)
}

func echoRouter() routerFunc {
	return func(_ context.Context, p domain.Principal, prompt string) domain.Envelope {
		return domain.Reply{Text: p.Scope + ": " + prompt}
	}
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "test.db"),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type testServer struct {
	handler  http.Handler
	store    *store.Store
	users    *auth.Tokens
	patients *auth.Tokens
}

func newTestServer(t *testing.T, deployment string, router PromptRouter) *testServer {
	t.Helper()
	ts := &testServer{
		store:    testStore(t),
		users:    auth.NewUserTokens("user-secret"),
		patients: auth.NewPatientTokens("patient-secret"),
	}
	srv := NewServer(ServerConfig{
		Version:         "test",
		Deployment:      deployment,
		Router:          router,
		Store:           ts.store,
		Users:           ts.users,
		Patients:        ts.patients,
		MetricsEndpoint: "/metrics",
		Now:             func() time.Time { return fixedNow },
		Location:        time.UTC,
		Logger:          testLogger(),
	})
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) userToken(t *testing.T, tenant string) string {
	t.Helper()
	tok, err := ts.users.Issue(domain.Principal{ID: "u-" + tenant, Scope: tenant, Role: "admin", Email: tenant + "@example.com", Kind: domain.KindUser}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())
	rec := ts.do(t, http.MethodGet, "/api/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected body %v", body)
	}
	if body["timestamp"] != "2024-03-15T12:00:00.000Z" {
		t.Errorf("unexpected timestamp %q", body["timestamp"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected abc-123, got %q", got)
	}
}

func TestChat_RequiresToken(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())
	rec := ts.do(t, http.MethodPost, "/api/chat", "", map[string]string{"prompt": "hi"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestChat_RejectsBlankPrompt(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())
	tok := ts.userToken(t, "tenant-a")

	for _, body := range []any{map[string]string{"prompt": "   "}, map[string]int{"prompt": 3}, "{bad"} {
		rec := ts.do(t, http.MethodPost, "/api/chat", tok, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", body, rec.Code)
		}
		if msg := decode[errorBody](t, rec).Message; msg != "Prompt is required and must be a non-empty string." {
			t.Errorf("unexpected message %q", msg)
		}
	}
}

func TestChat_ReplyIsRecorded(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())
	tok := ts.userToken(t, "tenant-a")

	rec := ts.do(t, http.MethodPost, "/api/chat", tok, map[string]string{"prompt": "  hello  "})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[replyBody](t, rec).Content; got != "tenant-a: hello" {
		t.Errorf("expected trimmed prompt routed with tenant scope, got %q", got)
	}

	msgs, err := ts.store.RecentMessages(context.Background(), "tenant-a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Content != "hello" || msgs[1].Content != "tenant-a: hello" {
		t.Errorf("unexpected history %+v", msgs)
	}
}

func TestChat_StreamIsRelayedAndRecorded(t *testing.T) {
	router := routerFunc(func(context.Context, domain.Principal, string) domain.Envelope {
		return domain.Stream{Tokens: &fakeStream{fragments: []string{"Hello ", "there"}}}
	})
	ts := newTestServer(t, config.DeploymentBizAssist, router)
	tok := ts.userToken(t, "tenant-a")

	rec := ts.do(t, http.MethodPost, "/api/chat", tok, map[string]string{"prompt": "tell me a story"})
	events := sseEvents(t, rec.Body.String())
	if len(events) != 2 || events[1]["content"] != "there" {
		t.Fatalf("unexpected events %v", events)
	}

	msgs, _ := ts.store.RecentMessages(context.Background(), "tenant-a", 10)
	if len(msgs) != 2 || msgs[1].Content != "Hello there" {
		t.Errorf("expected full answer recorded, got %+v", msgs)
	}
}

func TestChat_FailureIsNotRecorded(t *testing.T) {
	router := routerFunc(func(context.Context, domain.Principal, string) domain.Envelope {
		return domain.Failure{Message: "down"}
	})
	ts := newTestServer(t, config.DeploymentBizAssist, router)

	rec := ts.do(t, http.MethodPost, "/api/chat", ts.userToken(t, "tenant-a"), map[string]string{"prompt": "hi"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	msgs, _ := ts.store.RecentMessages(context.Background(), "tenant-a", 10)
	if len(msgs) != 0 {
		t.Errorf("expected no history, got %+v", msgs)
	}
}

func TestChat_PanicIsRecovered(t *testing.T) {
	router := routerFunc(func(context.Context, domain.Principal, string) domain.Envelope {
		panic("boom")
	})
	ts := newTestServer(t, config.DeploymentBizAssist, router)
	rec := ts.do(t, http.MethodPost, "/api/chat", ts.userToken(t, "tenant-a"), map[string]string{"prompt": "hi"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestChat_MediConnectUsesPatientTokens(t *testing.T) {
	ts := newTestServer(t, config.DeploymentMediConnect, echoRouter())

	if rec := ts.do(t, http.MethodPost, "/api/chat", ts.userToken(t, "tenant-a"), map[string]string{"prompt": "hi"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("user token: expected 401, got %d", rec.Code)
	}

	tok, _ := ts.patients.Issue(domain.Principal{Scope: "p1", Email: "p@example.com"}, time.Hour)
	rec := ts.do(t, http.MethodPost, "/api/chat", tok, map[string]string{"prompt": "hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[replyBody](t, rec).Content; got != "p1: hi" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())

	tests := []struct {
		body map[string]string
		msg  string
	}{
		{map[string]string{"email": "nope", "password": "secret1", "tenant_id": "t"}, "Valid email is required"},
		{map[string]string{"email": "a@b.c", "password": "short", "tenant_id": "t"}, "Password must be at least 6 characters long"},
		{map[string]string{"email": "a@b.c", "password": "secret1"}, "Tenant ID is required"},
	}
	for _, tt := range tests {
		rec := ts.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
		if rec.Code != http.StatusBadRequest || decode[errorBody](t, rec).Message != tt.msg {
			t.Errorf("%v: expected 400 %q, got %d %s", tt.body, tt.msg, rec.Code, rec.Body.String())
		}
	}

	reg := map[string]string{"email": "Owner@Shop.com", "password": "secret1", "tenant_id": "shop", "name": "Owner"}
	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", reg)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "secret1") || strings.Contains(rec.Body.String(), "$2a$") {
		t.Error("registration response leaked the password hash")
	}
	if rec := ts.do(t, http.MethodPost, "/api/auth/register", "", reg); rec.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "owner@shop.com", "password": "wrong!"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@shop.com", "password": "secret1"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: expected 401, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "owner@shop.com", "password": "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	login := decode[struct {
		Token string            `json:"token"`
		User  map[string]string `json:"user"`
	}](t, rec)
	if login.User["tenant_id"] != "shop" || login.User["role"] != "user" {
		t.Errorf("unexpected user %v", login.User)
	}
	p, err := ts.users.Verify(login.Token)
	if err != nil {
		t.Fatalf("issued token did not verify: %v", err)
	}
	if p.TenantID() != "shop" || p.Email != "owner@shop.com" {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestKPISummary(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())
	ctx := context.Background()
	for _, s := range []domain.Sale{
		{TenantID: "shop", Amount: 1000, SoldAt: time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)},
		{TenantID: "shop", Amount: 900, SoldAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)},
		{TenantID: "shop", Amount: 600, SoldAt: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)},
		{TenantID: "other", Amount: 5000, SoldAt: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)},
	} {
		if _, err := ts.store.RecordSale(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/kpi/summary?range=month", ts.userToken(t, "shop"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := decode[KPISummary](t, rec)
	want := KPISummary{TotalSales: 1500, SalesChangePercentage: 50, Range: "month", PreviousMonthTotal: 1000}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestTasksCRUD(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())
	tok := ts.userToken(t, "shop")
	other := ts.userToken(t, "other")

	if rec := ts.do(t, http.MethodPost, "/api/tasks", tok, map[string]string{"dueAt": "2024-03-20T10:00:00Z"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing title: expected 400, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/tasks", tok, map[string]string{"title": "x", "dueAt": "soon"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad dueAt: expected 400, got %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/tasks", tok, map[string]string{"title": "Order stock", "dueAt": "2024-03-20T10:00:00Z"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	task := decode[domain.Task](t, rec)
	if task.Title != "Order stock" || task.Completed {
		t.Errorf("unexpected task %+v", task)
	}
	path := "/api/tasks/" + task.ID

	if rec := ts.do(t, http.MethodGet, path, other, nil); rec.Code != http.StatusNotFound {
		t.Errorf("other tenant: expected 404, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, path, tok, nil); rec.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", rec.Code)
	}

	list := decode[[]domain.Task](t, ts.do(t, http.MethodGet, "/api/tasks", tok, nil))
	if len(list) != 1 {
		t.Errorf("expected 1 task, got %d", len(list))
	}
	if list := decode[[]domain.Task](t, ts.do(t, http.MethodGet, "/api/tasks", other, nil)); len(list) != 0 {
		t.Errorf("expected other tenant to see no tasks, got %d", len(list))
	}

	if rec := ts.do(t, http.MethodPut, path, tok, map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty update: expected 400, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPut, path, tok, map[string]any{"title": " "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank title: expected 400, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPut, path, other, map[string]any{"completed": true}); rec.Code != http.StatusNotFound {
		t.Errorf("other tenant update: expected 404, got %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPut, path, tok, map[string]any{"completed": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if updated := decode[domain.Task](t, rec); !updated.Completed || updated.Title != "Order stock" {
		t.Errorf("unexpected updated task %+v", updated)
	}

	if rec := ts.do(t, http.MethodDelete, path, other, nil); rec.Code != http.StatusNotFound {
		t.Errorf("other tenant delete: expected 404, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, path, tok, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, path, tok, nil); rec.Code != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", rec.Code)
	}
}

func TestBusinessRoutesAbsentInMediConnect(t *testing.T) {
	ts := newTestServer(t, config.DeploymentMediConnect, echoRouter())
	if rec := ts.do(t, http.MethodGet, "/api/tasks", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestPatientSessionAndAppointments(t *testing.T) {
	ts := newTestServer(t, config.DeploymentMediConnect, echoRouter())

	if rec := ts.do(t, http.MethodPost, "/api/patient/session", "", map[string]string{"email": "bad"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad email: expected 400, got %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/patient/session", "", map[string]string{"email": "pat@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("session: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	session := decode[struct {
		Token   string            `json:"token"`
		Patient map[string]string `json:"patient"`
	}](t, rec)
	if session.Patient["name"] != "Patient" {
		t.Errorf("expected default name, got %q", session.Patient["name"])
	}

	again := decode[struct {
		Patient map[string]string `json:"patient"`
	}](t, ts.do(t, http.MethodPost, "/api/patient/session", "", map[string]string{"email": "PAT@example.com"}))
	if again.Patient["id"] != session.Patient["id"] {
		t.Errorf("expected the same patient, got %s and %s", session.Patient["id"], again.Patient["id"])
	}

	tok := session.Token
	if rec := ts.do(t, http.MethodPost, "/api/appointments", tok, map[string]string{
		"startsAt": "2024-04-02T10:00:00Z", "endsAt": "2024-04-02T09:00:00Z",
	}); rec.Code != http.StatusBadRequest || decode[errorBody](t, rec).Message != "endsAt must be after startsAt." {
		t.Errorf("reversed window: expected 400, got %d %s", rec.Code, rec.Body.String())
	}

	for _, start := range []string{"2024-04-09T10:00:00Z", "2024-04-02T10:00:00Z"} {
		end := strings.Replace(start, "10:00", "10:30", 1)
		rec := ts.do(t, http.MethodPost, "/api/appointments", tok, map[string]string{"startsAt": start, "endsAt": end, "reason": "check-up"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("book: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if appt := decode[domain.Appointment](t, rec); appt.Status != "pending" {
			t.Errorf("expected pending status, got %q", appt.Status)
		}
	}

	appts := decode[[]domain.Appointment](t, ts.do(t, http.MethodGet, "/api/patient/appointments", tok, nil))
	if len(appts) != 2 || !appts[0].StartsAt.Before(appts[1].StartsAt) {
		t.Errorf("expected 2 appointments in ascending order, got %+v", appts)
	}

	if rec := ts.do(t, http.MethodGet, "/api/patient/appointments", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}
}

func TestListFAQs(t *testing.T) {
	ts := newTestServer(t, config.DeploymentMediConnect, echoRouter())

	if got := ts.do(t, http.MethodGet, "/api/faqs", "", nil).Body.String(); strings.TrimSpace(got) != "[]" {
		t.Errorf("expected empty list, got %s", got)
	}
	if _, err := ts.store.AddFAQ(context.Background(), "What are your hours?", "9 to 5."); err != nil {
		t.Fatal(err)
	}
	faqs := decode[[]domain.FAQ](t, ts.do(t, http.MethodGet, "/api/faqs", "", nil))
	if len(faqs) != 1 || faqs[0].Answer != "9 to 5." {
		t.Errorf("unexpected faqs %+v", faqs)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, config.DeploymentBizAssist, echoRouter())
	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bizassist_uptime_seconds") {
		t.Errorf("expected uptime metric, got %s", rec.Body.String())
	}
}
