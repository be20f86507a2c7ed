package storage

import (
	"os"
	"strings"
	"testing"

	"dinner-planner/internal/api"
	"dinner-planner/internal/approval"
)

func sampleResult(weekStart string) *approval.Result {
	return approval.NewResult(weekStart, []api.Plan{
		{ID: "p1", Date: weekStart, RecipeID: &api.PlanRecipe{ID: "r1", Recipe: &api.Recipe{ID: "r1", Title: "Tacos"}}, IsConfirmed: true},
	})
}

func TestExportStore(t *testing.T) {
	tempDir := t.TempDir()
	store, err := NewExportStore(tempDir)
	if err != nil {
		t.Fatalf("NewExportStore failed: %v", err)
	}

	t.Run("Save and Load", func(t *testing.T) {
		pdfPath, err := store.Save(sampleResult("2024-06-10"))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if _, err := os.Stat(pdfPath); err != nil {
			t.Errorf("Expected pdf at %s: %v", pdfPath, err)
		}

		record, err := store.Load("2024-06-10")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !strings.Contains(record.Digest, "Tacos") || len(record.Plans) != 1 {
			t.Errorf("Unexpected record %+v", record)
		}
		if !store.Exists("2024-06-10") {
			t.Error("Expected week to exist")
		}
	})

	t.Run("List newest first", func(t *testing.T) {
		if _, err := store.Save(sampleResult("2024-06-17")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		weeks, err := store.List()
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(weeks) != 2 || weeks[0] != "2024-06-17" {
			t.Errorf("Unexpected weeks %v", weeks)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := store.Remove("2024-06-10"); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if store.Exists("2024-06-10") {
			t.Error("Expected week to be removed")
		}
	})

	t.Run("Missing week start", func(t *testing.T) {
		if _, err := store.Save(&approval.Result{}); err == nil {
			t.Error("Expected an error without a week start")
		}
	})
}
