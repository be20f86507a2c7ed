package metrics

import (
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"dinner-planner/internal/api"
	"dinner-planner/internal/database"
	"dinner-planner/internal/llm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db.SQL)
}

func TestDailyUsage(t *testing.T) {
	s := newTestStore(t)

	s.ObserveRequest(api.RequestMetric{Method: http.MethodPost, Endpoint: "/suggestions/generate", StatusCode: 200, Latency: 120 * time.Millisecond})
	s.ObserveRequest(api.RequestMetric{Method: http.MethodPost, Endpoint: "/suggestions/generate", StatusCode: 500, Latency: 80 * time.Millisecond})
	s.ObserveRequest(api.RequestMetric{Method: http.MethodGet, Endpoint: "/plans", Err: errors.New("dial tcp")})

	if err := s.RecordUsage("import", llm.TokenUsage{PromptTokens: 100, CompletionTokens: 20, Model: "m"}, time.Second); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := s.RecordUsage("import", llm.TokenUsage{}, time.Second); err != nil {
		t.Fatalf("Expected no error for empty usage, got %v", err)
	}

	usage, err := s.GetDailyUsage(1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(usage) != 1 {
		t.Fatalf("Expected 1 day, got %d", len(usage))
	}
	u := usage[0]
	if u.TotalPrompt != 100 || u.TotalCompletion != 20 || u.TotalExecution != 1 {
		t.Errorf("Unexpected token totals %+v", u)
	}
	if u.Requests != 3 || u.FailedRequests != 2 {
		t.Errorf("Expected 3 requests with 2 failures, got %+v", u)
	}

	stats, err := s.GetEndpointStats(1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(stats) != 2 || stats[0].Endpoint != "/suggestions/generate" || stats[0].AvgLatencyMS != 100 {
		t.Errorf("Unexpected endpoint stats %+v", stats)
	}
}

func TestCleanup(t *testing.T) {
	s := newTestStore(t)

	old := time.Now().AddDate(0, 0, -40)
	if err := s.Record(UsageMetric{Operation: "import", Model: "m", PromptTokens: 1, Timestamp: old}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	s.ObserveRequest(api.RequestMetric{Method: http.MethodGet, Endpoint: "/plans", StatusCode: 200})

	deleted, err := s.Cleanup(30)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted row, got %d", deleted)
	}
}
