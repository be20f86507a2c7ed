// Package storage archives approved weeks on disk so they can be shared or
// looked at again without the backend.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dinner-planner/internal/api"
	"dinner-planner/internal/approval"
)

// ExportStore keeps one JSON record, one text digest and one PDF per week.
type ExportStore struct {
	basePath string
	layout   string
}

// WeekExport is the JSON record of an approved week.
type WeekExport struct {
	WeekStart  string     `json:"week_start"`
	ApprovedAt time.Time  `json:"approved_at"`
	Digest     string     `json:"digest"`
	Plans      []api.Plan `json:"plans"`
}

// NewExportStore creates the store and ensures the base directory exists.
func NewExportStore(basePath string) (*ExportStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", basePath, err)
	}
	return &ExportStore{basePath: basePath, layout: approval.DefaultLayout}, nil
}

func (s *ExportStore) path(weekStart, ext string) string {
	return filepath.Join(s.basePath, fmt.Sprintf("week_%s.%s", weekStart, ext))
}

// Save writes the week, replacing any earlier export of the same week, and
// returns the path of the PDF.
func (s *ExportStore) Save(result *approval.Result) (string, error) {
	if result.WeekStart == "" {
		return "", fmt.Errorf("cannot export a week without a start date")
	}

	digest := result.Digest(s.layout)
	record := WeekExport{
		WeekStart:  result.WeekStart,
		ApprovedAt: time.Now().UTC(),
		Digest:     digest,
		Plans:      result.Plans,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal week: %w", err)
	}
	if err := os.WriteFile(s.path(result.WeekStart, "json"), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write week file: %w", err)
	}
	if err := os.WriteFile(s.path(result.WeekStart, "txt"), []byte(digest+"\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to write digest file: %w", err)
	}

	var pdf bytes.Buffer
	if err := result.WritePDF(&pdf, s.layout); err != nil {
		return "", err
	}
	pdfPath := s.path(result.WeekStart, "pdf")
	if err := os.WriteFile(pdfPath, pdf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write pdf file: %w", err)
	}
	return pdfPath, nil
}

// Load reads back an exported week.
func (s *ExportStore) Load(weekStart string) (*WeekExport, error) {
	data, err := os.ReadFile(s.path(weekStart, "json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read week file: %w", err)
	}

	var record WeekExport
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal week: %w", err)
	}
	return &record, nil
}

// Exists checks if a week has been exported.
func (s *ExportStore) Exists(weekStart string) bool {
	_, err := os.Stat(s.path(weekStart, "json"))
	return !os.IsNotExist(err)
}

// List returns the exported week starts, newest first.
func (s *ExportStore) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.basePath, "week_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob exports: %w", err)
	}

	weeks := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".json")
		weeks = append(weeks, strings.TrimPrefix(name, "week_"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(weeks)))
	return weeks, nil
}

// Remove deletes every file of an exported week.
func (s *ExportStore) Remove(weekStart string) error {
	for _, ext := range []string{"json", "txt", "pdf"} {
		if err := os.Remove(s.path(weekStart, ext)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove export %s: %w", ext, err)
		}
	}
	return nil
}
