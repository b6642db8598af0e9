package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"previsioni/internal/core"
	"previsioni/internal/engine"
	"previsioni/internal/log"
	"previsioni/internal/services"
	"previsioni/internal/sheets"
	"previsioni/internal/sheets/memory"
)

type failingSource struct{}

func (failingSource) Name() string { return "broken" }

func (failingSource) Records(context.Context) ([]core.Record, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) Ping(context.Context) error { return errors.New("connection refused") }

func testRecords() []core.Record {
	return []core.Record{
		{ID: "1", Amount: "15", Date: "2025-01-05", Type: "expense", Category: "Subscription", Description: "Netflix"},
		{ID: "2", Amount: "15", Date: "2025-02-04", Type: "expense", Category: "Subscription", Description: "Netflix"},
		{ID: "3", Amount: "15", Date: "2025-03-06", Type: "expense", Category: "Subscription", Description: "Netflix"},
		{ID: "4", Amount: "2000", Date: "2025-01-27", Type: "revenue", Category: "Work", Description: "Salary"},
		{ID: "5", Amount: "2000", Date: "2025-02-27", Type: "revenue", Category: "Work", Description: "Salary"},
		{ID: "6", Amount: "100", Date: "2025-01-10", Type: "expense", Category: "Food", Description: "Groceries"},
		{ID: "7", Amount: "200", Date: "2025-02-10", Type: "expense", Category: "Food", Description: "Market"},
	}
}

func newTestServer(t *testing.T, src sheets.TransactionSource) *Server {
	t.Helper()
	svc, err := services.NewForecastService(src, engine.DefaultOptions(), services.CacheConfig{Size: 4, TTL: time.Minute}, nil, log.Discard())
	if err != nil {
		t.Fatalf("NewForecastService: %v", err)
	}
	svc.WithClock(func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) })
	srv := NewServer(":0", svc, log.Discard(), Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, memory.New(testRecords()...))

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := get(t, srv, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Body.String() != "ok" {
			t.Errorf("%s body=%q", path, rr.Body.String())
		}
	}

	broken := newTestServer(t, failingSource{})
	if rr := get(t, broken, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz on broken source status=%d", rr.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	srv := newTestServer(t, memory.New(testRecords()...))

	rr := get(t, srv, "/api/report?now=2025-03-15&horizon=2")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}

	var body struct {
		Now     string            `json:"now"`
		Series  []json.RawMessage `json:"series"`
		Summary struct {
			Month            string `json:"month"`
			ExpectedExpenses string `json:"expectedExpenses"`
			ExpectedRevenue  string `json:"expectedRevenue"`
		} `json:"summary"`
		Categories struct {
			Horizon int `json:"horizon"`
		} `json:"categories"`
		Warnings []json.RawMessage `json:"warnings"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Now != "2025-03-15" {
		t.Errorf("now=%q", body.Now)
	}
	if len(body.Series) != 2 {
		t.Errorf("series=%d, want 2", len(body.Series))
	}
	if body.Summary.Month != "2025-04" || body.Summary.ExpectedExpenses != "15" {
		t.Errorf("summary=%+v", body.Summary)
	}
	// Salary next expected 2025-03-27 is outside April
	if body.Summary.ExpectedRevenue != "0" {
		t.Errorf("expected revenue=%q", body.Summary.ExpectedRevenue)
	}
	if body.Categories.Horizon != 2 {
		t.Errorf("horizon=%d", body.Categories.Horizon)
	}
	if body.Warnings == nil {
		t.Error("warnings must be an empty list, not null")
	}
}

func TestRecurringEndpoint(t *testing.T) {
	srv := newTestServer(t, memory.New(testRecords()...))

	rr := get(t, srv, "/api/recurring")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var series []struct {
		Description      string `json:"description"`
		Frequency        string `json:"frequency"`
		NextExpectedDate string `json:"nextExpectedDate"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &series); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := map[string]string{}
	for _, s := range series {
		got[s.Description] = s.NextExpectedDate
		if s.Frequency != "monthly" {
			t.Errorf("%s frequency=%s", s.Description, s.Frequency)
		}
	}
	if got["Netflix"] != "2025-04-06" || got["Salary"] != "2025-03-27" {
		t.Errorf("next dates=%v", got)
	}
}

func TestForecastEndpoint(t *testing.T) {
	srv := newTestServer(t, memory.New(testRecords()...))

	rr := get(t, srv, "/api/forecast?month=2025-03")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var summary struct {
		Month           string `json:"month"`
		ExpectedRevenue string `json:"expectedRevenue"`
		Balance         string `json:"balance"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Month != "2025-03" || summary.ExpectedRevenue != "2000" || summary.Balance != "2000" {
		t.Errorf("summary=%+v", summary)
	}

	rr = get(t, srv, "/api/forecast?month=2025-03&months=3")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var list []struct {
		Month string `json:"month"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 3 || list[0].Month != "2025-03" || list[2].Month != "2025-05" {
		t.Errorf("list=%+v", list)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t, memory.New(testRecords()...))

	rr := get(t, srv, "/api/categories?now=2025-03-15&horizon=3")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var report struct {
		Categories []struct {
			Category       string   `json:"category"`
			MonthlyAverage string   `json:"monthlyAverage"`
			Projection     []string `json:"projection"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Categories) != 2 || report.Categories[0].Category != "Food" {
		t.Fatalf("categories=%+v", report.Categories)
	}
	if report.Categories[0].MonthlyAverage != "150" || len(report.Categories[0].Projection) != 3 {
		t.Errorf("food=%+v", report.Categories[0])
	}
}

func TestInvalidParameters(t *testing.T) {
	srv := newTestServer(t, memory.New(testRecords()...))

	tests := []struct {
		target string
		want   string
	}{
		{"/api/report?now=15-03-2025", "invalid now"},
		{"/api/report?horizon=abc", "invalid horizon"},
		{"/api/report?horizon=0", "invalid horizon"},
		{"/api/report?horizon=61", "horizon 61"},
		{"/api/forecast?month=2025-13", "invalid month"},
		{"/api/forecast?months=x", "invalid months"},
		{"/api/forecast?months=25", "months 25"},
		{"/api/categories?now=yesterday", "invalid now"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := get(t, srv, tt.target)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400", rr.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.Contains(body.Error, tt.want) {
				t.Errorf("error=%q, want it to contain %q", body.Error, tt.want)
			}
		})
	}
}

func TestSourceFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(t, failingSource{})

	rr := get(t, srv, "/api/report")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "transaction source unavailable") {
		t.Errorf("body=%s", rr.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, memory.New())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/report", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status=%d, want 405", rr.Code)
	}
}

func TestMetricsReportsCacheHits(t *testing.T) {
	srv := newTestServer(t, memory.New(testRecords()...))

	get(t, srv, "/api/report?now=2025-03-15")
	get(t, srv, "/api/report?now=2025-03-15")

	rr := get(t, srv, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	for _, line := range []string{
		"previsioni_report_cache_entries 1",
		"previsioni_report_cache_hits_total 1",
		"previsioni_report_cache_misses_total 1",
		`previsioni_requests_total{code="200",method="GET",route="/api/report"} 2`,
	} {
		if !strings.Contains(rr.Body.String(), line) {
			t.Errorf("metrics missing %q:\n%s", line, rr.Body.String())
		}
	}
}

func TestRateLimit(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.stop()
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	metrics := &securityMetrics{}

	if !rl.allow("1.2.3.4", metrics) || !rl.allow("1.2.3.4", metrics) {
		t.Fatal("first two requests must pass")
	}
	if rl.allow("1.2.3.4", metrics) {
		t.Error("third request in the window must be rejected")
	}
	if !rl.allow("5.6.7.8", metrics) {
		t.Error("other clients are independent")
	}
	now = now.Add(time.Minute)
	if !rl.allow("1.2.3.4", metrics) {
		t.Error("new window must reset the counter")
	}
	if metrics.rateLimitHits != 1 {
		t.Errorf("rateLimitHits=%d", metrics.rateLimitHits)
	}

	now = now.Add(11 * time.Minute)
	rl.cleanupStaleEntries()
	if n := rl.activeClients(); n != 0 {
		t.Errorf("activeClients=%d after cleanup", n)
	}
}

func TestSuspiciousRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		agent  string
		want   bool
	}{
		{"plain api call", "/api/report?now=2025-03-15", "curl/8.0", false},
		{"path traversal", "/api/../../etc/passwd", "", true},
		{"scanner agent", "/api/report", "sqlmap/1.7", true},
		{"injection in query", "/api/report?now=1'%20union%20select", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.URL.Path = strings.SplitN(tt.target, "?", 2)[0]
			if i := strings.Index(tt.target, "?"); i >= 0 {
				r.URL.RawQuery = tt.target[i+1:]
			}
			r.Header.Set("User-Agent", tt.agent)
			if got := detectSuspiciousRequest(r, nil); got != tt.want {
				t.Errorf("detectSuspiciousRequest=%v, want %v", got, tt.want)
			}
		})
	}
}
