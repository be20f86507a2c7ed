package approval

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"dinner-planner/internal/api"
)

func weekPlans() []api.Plan {
	return []api.Plan{
		{ID: "p3", Date: "2024-06-12", Label: "Eating Out", IsConfirmed: true},
		{ID: "p1", Date: "2024-06-10", RecipeID: &api.PlanRecipe{ID: "r1", Recipe: &api.Recipe{ID: "r1", Title: "Tacos"}}, IsConfirmed: true},
		{ID: "p2", Date: "2024-06-11", RecipeID: &api.PlanRecipe{ID: "r2"}, IsConfirmed: true},
		{ID: "p4", Date: "2024-06-13", IsConfirmed: true},
	}
}

type mockFetcher struct {
	calls   atomic.Int32
	recipes map[string]*api.Recipe
	err     error
}

func (m *mockFetcher) GetRecipe(_ context.Context, id string) (*api.Recipe, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.recipes[id], nil
}

func TestDigest(t *testing.T) {
	result := NewResult("2024-06-10", weekPlans())

	got := result.Digest("2006-01-02")
	expected := "2024-06-10: Tacos\n" +
		"2024-06-11: " + NoMealPlanned + "\n" +
		"2024-06-12: Eating Out\n" +
		"2024-06-13: " + NoMealPlanned
	if got != expected {
		t.Errorf("Expected digest:\n%s\ngot:\n%s", expected, got)
	}
}

func TestDigestDefaultLayout(t *testing.T) {
	result := NewResult("2024-06-10", weekPlans()[1:2])

	if got := result.Digest(""); got != "Mon, Jun 10: Tacos" {
		t.Errorf("Unexpected digest '%s'", got)
	}
}

func TestResolveTitles(t *testing.T) {
	t.Run("FillsBareIDs", func(t *testing.T) {
		fetcher := &mockFetcher{recipes: map[string]*api.Recipe{"r2": {ID: "r2", Title: "Soup"}}}
		result := NewResult("2024-06-10", weekPlans())

		if err := result.ResolveTitles(context.Background(), fetcher); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if fetcher.calls.Load() != 1 {
			t.Errorf("Expected 1 lookup, got %d", fetcher.calls.Load())
		}
		if result.Plans[1].Title() != "Soup" {
			t.Errorf("Expected resolved title 'Soup', got '%s'", result.Plans[1].Title())
		}
	})

	t.Run("PropagatesError", func(t *testing.T) {
		fetcher := &mockFetcher{err: errors.New("offline")}
		result := NewResult("2024-06-10", weekPlans())

		if err := result.ResolveTitles(context.Background(), fetcher); err == nil {
			t.Fatal("Expected an error, got nil")
		}
		if result.Plans[1].Title() != "" {
			t.Errorf("Expected title to stay empty, got '%s'", result.Plans[1].Title())
		}
	})
}

func TestWritePDF(t *testing.T) {
	result := NewResult("2024-06-10", weekPlans())

	var buf bytes.Buffer
	if err := result.WritePDF(&buf, ""); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Errorf("Expected PDF header, got %q", buf.Bytes()[:min(8, buf.Len())])
	}
}
