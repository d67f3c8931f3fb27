package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"tasklens/internal/analytics"
	"tasklens/internal/cache"
	"tasklens/internal/config"
	"tasklens/internal/db"
	"tasklens/internal/domain"
	"tasklens/internal/migrate"
)

const testSecret = "test-secret"

var serverNow = time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine analytics.Engine
	Cache  *cache.Cache
	client *http.Client
	close  func()
}

func (s *testServer) Close() { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := analytics.New(conn, cfg)
	e.Now = func() time.Time { return serverNow }
	c := cache.New(cfg.Cache.MaxEntries)
	c.Now = func() time.Time { return serverNow }
	handler, err := New(Config{
		Engine:   e,
		Cache:    c,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		Cache:  c,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	seedServerFixture(t, ts)
	return ts
}

func seedServerFixture(t *testing.T, ts *testServer) {
	t.Helper()
	ctx := context.Background()
	tx, err := ts.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()
	r := ts.Engine.Repo
	assignee := "bob"
	if err := r.InsertProfile(ctx, tx, domain.Profile{ID: "ada", FullName: "Ada Lin", Email: "ada@example.com", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	if err := r.InsertProfile(ctx, tx, domain.Profile{ID: "bob", FullName: "Bob Osei", Email: "bob@example.com", Role: domain.RoleMember}); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	if err := r.InsertTask(ctx, tx, domain.Task{
		ID: "t1", Title: "Ship exporter", Status: domain.TaskCompleted, Priority: domain.PriorityHigh,
		AssignedTo: &assignee, CreatedBy: "ada",
		CreatedAt: "2025-06-10T09:00:00Z", UpdatedAt: "2025-06-16T10:00:00Z",
	}); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := r.InsertTask(ctx, tx, domain.Task{
		ID: "t2", Title: "Fix retries", Status: domain.TaskInProgress, Priority: domain.PriorityMedium,
		CreatedBy: "ada", CreatedAt: "2025-06-17T09:00:00Z", UpdatedAt: "2025-06-17T09:00:00Z",
	}); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit fixture: %v", err)
	}
}

func mintTestToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := MintToken(testSecret, domain.Caller{ID: userID, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func get(t *testing.T, ts *testServer, path, token string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := ts.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthNeedsNoAuth(t *testing.T) {
	ts := newTestServer(t)
	res, body := get(t, ts, "/v1/health", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", res.StatusCode, body)
	}
	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "ok" {
		t.Fatalf("health body: %s", body)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	res, body := get(t, ts, "/v1/analytics/dashboard", "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d body=%s", res.StatusCode, body)
	}
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, body)
	}
	if e.Error != "unauthorized" {
		t.Fatalf("error code = %q", e.Error)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	ts := newTestServer(t)
	res, _ := get(t, ts, "/v1/analytics/dashboard", "not-a-jwt")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", res.StatusCode)
	}
}

func TestMemberForbiddenOnAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "bob", domain.RoleMember)
	for _, route := range []string{
		"/v1/analytics/user-workload",
		"/v1/analytics/employees-summary",
		"/v1/analytics/recommendations",
		"/v1/analytics/late-tasks",
		"/v1/analytics/cache-stats",
	} {
		res, body := get(t, ts, route, token)
		if res.StatusCode != http.StatusForbidden {
			t.Errorf("%s: status = %d body=%s", route, res.StatusCode, body)
		}
	}
}

func TestDashboardEnvelope(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "ada", domain.RoleAdmin)
	res, body := get(t, ts, "/v1/analytics/dashboard", token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", res.StatusCode, body)
	}
	var out struct {
		Data analytics.Dashboard `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, body)
	}
	if out.Data.TotalTasks != 2 || out.Data.CompletedTasks != 1 {
		t.Fatalf("dashboard: %+v", out.Data)
	}
}

func TestMemberScopeNarrowsDashboard(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "bob", domain.RoleMember)
	res, body := get(t, ts, "/v1/analytics/dashboard", token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", res.StatusCode, body)
	}
	var out struct {
		Data analytics.Dashboard `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Bob only sees his assigned task.
	if out.Data.TotalTasks != 1 {
		t.Fatalf("member dashboard: %+v", out.Data)
	}
}

func TestCachedResponseIsReplayedVerbatim(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "ada", domain.RoleAdmin)
	_, first := get(t, ts, "/v1/analytics/dashboard", token)

	// New data lands after the first request.
	ctx := context.Background()
	tx, err := ts.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := ts.Engine.Repo.InsertTask(ctx, tx, domain.Task{
		ID: "t3", Title: "New work", Status: domain.TaskNotStarted, Priority: domain.PriorityLow,
		CreatedBy: "ada", CreatedAt: "2025-06-18T11:00:00Z", UpdatedAt: "2025-06-18T11:00:00Z",
	}); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, second := get(t, ts, "/v1/analytics/dashboard", token)
	if string(first) != string(second) {
		t.Fatalf("cached response changed:\n%s\n%s", first, second)
	}

	// Past the TTL the fresh data shows up.
	expired := serverNow.Add(6 * time.Minute)
	ts.Cache.Now = func() time.Time { return expired }
	_, third := get(t, ts, "/v1/analytics/dashboard", token)
	if string(first) == string(third) {
		t.Fatal("response not recomputed after TTL")
	}
	var out struct {
		Data analytics.Dashboard `json:"data"`
	}
	if err := json.Unmarshal(third, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data.TotalTasks != 3 {
		t.Fatalf("recomputed dashboard: %+v", out.Data)
	}
}

func TestCacheIsScopedPerCaller(t *testing.T) {
	ts := newTestServer(t)
	adminToken := mintTestToken(t, "ada", domain.RoleAdmin)
	memberToken := mintTestToken(t, "bob", domain.RoleMember)
	_, adminBody := get(t, ts, "/v1/analytics/dashboard", adminToken)
	_, memberBody := get(t, ts, "/v1/analytics/dashboard", memberToken)
	if string(adminBody) == string(memberBody) {
		t.Fatal("admin cache entry served to member")
	}
}

func TestTrendDaysClamped(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "ada", domain.RoleAdmin)
	res, body := get(t, ts, "/v1/analytics/task-completion-trend?days=4000", token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", res.StatusCode, body)
	}
	var out struct {
		Data []analytics.TrendBucket `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Data) != 365 {
		t.Fatalf("bucket count = %d, want 365", len(out.Data))
	}
}

func TestTrendRejectsNonNumericDays(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "ada", domain.RoleAdmin)
	res, body := get(t, ts, "/v1/analytics/task-completion-trend?days=abc", token)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", res.StatusCode, body)
	}
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error envelope: %v body=%s", err, body)
	}
	if e.Error != "bad_request" {
		t.Fatalf("error code = %q body=%s", e.Error, body)
	}
}

func TestTrendDefaultWindow(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "ada", domain.RoleAdmin)
	_, body := get(t, ts, "/v1/analytics/task-completion-trend", token)
	var out struct {
		Data []analytics.TrendBucket `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, body)
	}
	if len(out.Data) != 30 {
		t.Fatalf("bucket count = %d, want 30", len(out.Data))
	}
}

func TestUncachedRoutesLeaveCacheUntouched(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "ada", domain.RoleAdmin)
	for i := 0; i < 2; i++ {
		res, body := get(t, ts, "/v1/analytics/recommendations", token)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d body=%s", res.StatusCode, body)
		}
	}
	get(t, ts, "/v1/analytics/employees-summary", token)
	get(t, ts, "/v1/analytics/late-tasks", token)
	s := ts.Cache.Stats()
	if s.Hits != 0 || s.Misses != 0 || s.Entries != 0 {
		t.Fatalf("uncached routes touched the cache: %+v", s)
	}
}

func TestCacheStatsRoute(t *testing.T) {
	ts := newTestServer(t)
	token := mintTestToken(t, "ada", domain.RoleAdmin)
	get(t, ts, "/v1/analytics/dashboard", token) // miss
	get(t, ts, "/v1/analytics/dashboard", token) // hit
	res, body := get(t, ts, "/v1/analytics/cache-stats", token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body=%s", res.StatusCode, body)
	}
	var out struct {
		Data cache.Stats `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Data.Hits < 1 || out.Data.Misses < 1 {
		t.Fatalf("stats: %+v", out.Data)
	}
}
