// Package approval presents an approved week and renders it for sharing.
package approval

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"dinner-planner/internal/api"
	"dinner-planner/internal/dateutil"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/sync/errgroup"
)

// DefaultLayout renders dates like "Mon, Jun 10".
const DefaultLayout = "Mon, Jan 2"

// NoMealPlanned is shown for a day with neither a recipe nor a label.
const NoMealPlanned = "No meal planned"

// RecipeFetcher loads a recipe by id.
type RecipeFetcher interface {
	GetRecipe(ctx context.Context, id string) (*api.Recipe, error)
}

// Result is the persisted week as returned by approval.
type Result struct {
	WeekStart string
	Plans     []api.Plan
}

// NewResult orders plans by date.
func NewResult(weekStart string, plans []api.Plan) *Result {
	sorted := make([]api.Plan, len(plans))
	copy(sorted, plans)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	return &Result{WeekStart: weekStart, Plans: sorted}
}

// Line is one rendered day of the digest.
type Line struct {
	Date  string
	Label string
}

// DayLabel is the recipe title, else the label, else NoMealPlanned.
func DayLabel(p api.Plan) string {
	if t := p.Title(); t != "" {
		return t
	}
	if p.Label != "" {
		return p.Label
	}
	return NoMealPlanned
}

// Lines renders each plan with its date formatted by layout.
func (r *Result) Lines(layout string) []Line {
	if layout == "" {
		layout = DefaultLayout
	}
	lines := make([]Line, 0, len(r.Plans))
	for _, p := range r.Plans {
		lines = append(lines, Line{
			Date:  dateutil.FormatDateString(p.Date, layout),
			Label: DayLabel(p),
		})
	}
	return lines
}

// Digest is the shareable plain-text week, one "<date>: <meal>" line per day.
func (r *Result) Digest(layout string) string {
	lines := r.Lines(layout)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Date + ": " + l.Label
	}
	return strings.Join(out, "\n")
}

// ResolveTitles loads the recipe for every plan that came back with a bare
// id so the digest can show its title. Lookups run concurrently.
func (r *Result) ResolveTitles(ctx context.Context, fetcher RecipeFetcher) error {
	ids := make(map[string]struct{})
	for _, p := range r.Plans {
		if p.HasRecipe() && p.RecipeID.Recipe == nil {
			ids[p.RecipeID.ID] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		recipes = make(map[string]*api.Recipe, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for id := range ids {
		g.Go(func() error {
			recipe, err := fetcher.GetRecipe(gctx, id)
			if err != nil {
				return fmt.Errorf("resolve recipe %s: %w", id, err)
			}
			mu.Lock()
			recipes[id] = recipe
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range r.Plans {
		p := &r.Plans[i]
		if !p.HasRecipe() || p.RecipeID.Recipe != nil {
			continue
		}
		if recipe, ok := recipes[p.RecipeID.ID]; ok {
			p.RecipeID = &api.PlanRecipe{ID: p.RecipeID.ID, Recipe: recipe}
		}
	}
	return nil
}

// WritePDF renders the digest as a single A4 page.
func (r *Result) WritePDF(w io.Writer, layout string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	title := "Dinner plan"
	if r.WeekStart != "" {
		title += " - week of " + dateutil.FormatDateString(r.WeekStart, "January 2, 2006")
	}
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 12)
	for _, l := range r.Lines(layout) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(45, 8, tr(l.Date), "B", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 8, tr(l.Label), "B", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}
