// Package metrics records backend request and LLM usage metrics in the local
// database.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"dinner-planner/internal/api"
	"dinner-planner/internal/llm"
)

// UsageMetric records metadata for a single LLM call.
type UsageMetric struct {
	Operation        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Timestamp        time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// ObserveRequest implements api.Observer. Failures to record are logged and
// never reach the request path.
func (s *Store) ObserveRequest(m api.RequestMetric) {
	errText := ""
	if m.Err != nil {
		errText = m.Err.Error()
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO request_metrics (method, endpoint, status_code, latency_ms, error, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.Method, m.Endpoint, m.StatusCode, m.Latency.Milliseconds(), errText, s.now().UTC().Unix())
	if err != nil {
		log.Printf("Failed to record request metric for %s %s: %v", m.Method, m.Endpoint, err)
	}
}

// Record saves an LLM usage metric to the database.
func (s *Store) Record(m UsageMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO llm_usage (operation, model, prompt_tokens, completion_tokens, latency_ms, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.Operation, m.Model, m.PromptTokens, m.CompletionTokens, m.LatencyMS, ts.Unix())
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// RecordUsage records token usage of one LLM call. Calls that report no
// tokens are skipped.
func (s *Store) RecordUsage(operation string, usage llm.TokenUsage, latency time.Duration) error {
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		return nil
	}
	return s.Record(UsageMetric{
		Operation:        operation,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
	})
}

// DailyUsage represents totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
	Requests        int
	FailedRequests  int
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(days int) ([]DailyUsage, error) {
	since := s.now().AddDate(0, 0, -days).UTC().Unix()
	ctx := context.Background()

	byDay := make(map[string]*DailyUsage)
	var order []string
	get := func(day string) *DailyUsage {
		u, ok := byDay[day]
		if !ok {
			u = &DailyUsage{Date: day}
			byDay[day] = u
			order = append(order, day)
		}
		return u
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date(timestamp, 'unixepoch') AS day, COUNT(*), SUM(prompt_tokens), SUM(completion_tokens)
		 FROM llm_usage WHERE timestamp >= ? GROUP BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	for rows.Next() {
		var day string
		var count int
		var prompt, completion sql.NullInt64
		if err := rows.Scan(&day, &count, &prompt, &completion); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		u := get(day)
		u.TotalExecution = count
		u.TotalPrompt = int(prompt.Int64)
		u.TotalCompletion = int(completion.Int64)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT date(timestamp, 'unixepoch') AS day, COUNT(*),
		        SUM(CASE WHEN status_code = 0 OR status_code >= 400 THEN 1 ELSE 0 END)
		 FROM request_metrics WHERE timestamp >= ? GROUP BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		var count int
		var failed sql.NullInt64
		if err := rows.Scan(&day, &count, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan requests: %w", err)
		}
		u := get(day)
		u.Requests = count
		u.FailedRequests = int(failed.Int64)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]DailyUsage, 0, len(order))
	for _, day := range order {
		results = append(results, *byDay[day])
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })
	return results, nil
}

// EndpointStats summarizes the calls to one endpoint.
type EndpointStats struct {
	Method       string
	Endpoint     string
	Count        int
	Failures     int
	AvgLatencyMS int64
}

// GetEndpointStats aggregates request metrics of the last N days by endpoint.
func (s *Store) GetEndpointStats(days int) ([]EndpointStats, error) {
	since := s.now().AddDate(0, 0, -days).UTC().Unix()
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT method, endpoint, COUNT(*),
		        SUM(CASE WHEN status_code = 0 OR status_code >= 400 THEN 1 ELSE 0 END),
		        CAST(AVG(latency_ms) AS INTEGER)
		 FROM request_metrics WHERE timestamp >= ?
		 GROUP BY method, endpoint ORDER BY COUNT(*) DESC, endpoint`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint stats: %w", err)
	}
	defer rows.Close()

	var stats []EndpointStats
	for rows.Next() {
		var st EndpointStats
		var failures, avg sql.NullInt64
		if err := rows.Scan(&st.Method, &st.Endpoint, &st.Count, &failures, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint stats: %w", err)
		}
		st.Failures = int(failures.Int64)
		st.AvgLatencyMS = avg.Int64
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many rows were deleted.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	threshold := s.now().AddDate(0, 0, -olderThanDays).UTC().Unix()

	var total int64
	for _, table := range []string{"request_metrics", "llm_usage"} {
		res, err := s.db.ExecContext(context.Background(), `DELETE FROM `+table+` WHERE timestamp < ?`, threshold)
		if err != nil {
			return total, fmt.Errorf("failed to clean up %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
