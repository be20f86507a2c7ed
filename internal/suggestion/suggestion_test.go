package suggestion

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"dinner-planner/internal/api"
	"dinner-planner/internal/notify"
)

// mockClient is a scriptable backend.
type mockClient struct {
	mu sync.Mutex

	generateFunc    func(api.SuggestionConstraints) ([]api.DaySuggestion, error)
	alternativeFunc func(api.AlternativeRequest) (*api.Recipe, error)
	approveFunc     func([]api.DaySuggestion) (*api.ApproveResponse, error)
	listPlansFunc   func(start string, days int) ([]api.Plan, error)

	generateCalls    []api.SuggestionConstraints
	alternativeCalls []api.AlternativeRequest
	approveCalls     [][]api.DaySuggestion
	listPlansCalls   int
}

func (m *mockClient) GenerateSuggestions(_ context.Context, c api.SuggestionConstraints) ([]api.DaySuggestion, error) {
	m.mu.Lock()
	m.generateCalls = append(m.generateCalls, c)
	m.mu.Unlock()
	return m.generateFunc(c)
}

func (m *mockClient) GetAlternative(_ context.Context, req api.AlternativeRequest) (*api.Recipe, error) {
	m.mu.Lock()
	m.alternativeCalls = append(m.alternativeCalls, req)
	m.mu.Unlock()
	return m.alternativeFunc(req)
}

func (m *mockClient) ApproveSuggestions(_ context.Context, s []api.DaySuggestion) (*api.ApproveResponse, error) {
	m.mu.Lock()
	m.approveCalls = append(m.approveCalls, s)
	m.mu.Unlock()
	return m.approveFunc(s)
}

func (m *mockClient) ListPlans(_ context.Context, start string, days int) ([]api.Plan, error) {
	m.mu.Lock()
	m.listPlansCalls++
	m.mu.Unlock()
	return m.listPlansFunc(start, days)
}

var weekDates = []string{
	"2024-06-10", "2024-06-11", "2024-06-12", "2024-06-13",
	"2024-06-14", "2024-06-15", "2024-06-16",
}

// fakeWeek mimics the backend: skipped days get a label, the rest a recipe.
func fakeWeek(c api.SuggestionConstraints) ([]api.DaySuggestion, error) {
	skip := make(map[int]bool)
	for _, d := range c.DaysToSkip {
		skip[d] = true
	}
	out := make([]api.DaySuggestion, 0, 7)
	for i, date := range weekDates {
		if skip[i] {
			out = append(out, api.DaySuggestion{Date: date, IsSkipped: true, Label: "Eating Out"})
			continue
		}
		id := "r" + date[8:]
		out = append(out, api.DaySuggestion{Date: date, RecipeID: id, Recipe: &api.Recipe{ID: id, Title: "Recipe " + id}})
	}
	return out, nil
}

func newTestSession(t *testing.T, client *mockClient) *Session {
	t.Helper()
	suggestions, _ := fakeWeek(api.SuggestionConstraints{DaysToSkip: []int{5, 6}})
	constraints := api.SuggestionConstraints{StartDate: weekDates[0], DaysToSkip: []int{5, 6}}
	return NewSession(client, nil, constraints, suggestions, WithRefreshRetry(3, time.Millisecond))
}

func TestDaysToSkip(t *testing.T) {
	c, err := NewConstraints(&mockClient{}, nil, "2024-06-10")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := c.DaysToSkip(); len(got) != 0 {
		t.Errorf("Expected no skipped days by default, got %v", got)
	}

	if err := c.SetDinnerDays([]int{4, 0, 2}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := c.DaysToSkip(); !reflect.DeepEqual(got, []int{1, 3, 5, 6}) {
		t.Errorf("Expected [1 3 5 6], got %v", got)
	}

	c.ToggleDay(1)
	c.ToggleDay(4)
	if got := c.DinnerDays(); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("Expected [0 1 2], got %v", got)
	}

	if err := c.ToggleDay(7); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("Expected ErrInvalidDay, got %v", err)
	}
}

func TestSubmit(t *testing.T) {
	t.Run("SkipsWeekend", func(t *testing.T) {
		client := &mockClient{generateFunc: fakeWeek}
		c, _ := NewConstraints(client, nil, "2024-06-10")
		c.ToggleDay(5)
		c.ToggleDay(6)
		c.SetVegetarianOnly(true)

		session, err := c.Submit(context.Background())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if c.State() != Done {
			t.Errorf("Expected state done, got %s", c.State())
		}
		if !reflect.DeepEqual(client.generateCalls[0].DaysToSkip, []int{5, 6}) || !client.generateCalls[0].VegetarianOnly {
			t.Errorf("Unexpected constraints sent %+v", client.generateCalls[0])
		}

		days := session.Suggestions()
		if len(days) != 7 {
			t.Fatalf("Expected 7 days, got %d", len(days))
		}
		for _, d := range days[5:] {
			if !d.IsSkipped || d.Recipe != nil || d.RecipeID != "" {
				t.Errorf("Expected %s skipped without recipe, got %+v", d.Date, d)
			}
		}
		if DisplayOf(days[0]) != DisplayRecipe || DisplayOf(days[6]) != DisplaySkipped {
			t.Errorf("Unexpected display states")
		}
	})

	t.Run("NoDaysSelected", func(t *testing.T) {
		client := &mockClient{}
		c, _ := NewConstraints(client, nil, "2024-06-10")
		c.SetDinnerDays(nil)

		if c.CanGenerate() {
			t.Error("Expected CanGenerate to be false with no days")
		}
		if _, err := c.Submit(context.Background()); !errors.Is(err, ErrNoDaysSelected) {
			t.Errorf("Expected ErrNoDaysSelected, got %v", err)
		}
		if len(client.generateCalls) != 0 {
			t.Errorf("Expected no backend call, got %d", len(client.generateCalls))
		}
	})

	t.Run("FailureReturnsToEditing", func(t *testing.T) {
		client := &mockClient{generateFunc: func(api.SuggestionConstraints) ([]api.DaySuggestion, error) {
			return nil, errors.New("boom")
		}}
		rec := &notify.Recorder{}
		c, _ := NewConstraints(client, rec, "2024-06-10")

		if _, err := c.Submit(context.Background()); err == nil {
			t.Fatal("Expected an error, got nil")
		}
		if c.State() != Editing {
			t.Errorf("Expected state editing, got %s", c.State())
		}
		notices := rec.Notices()
		if len(notices) != 1 || !notices[0].Blocking {
			t.Errorf("Expected one blocking notice, got %+v", notices)
		}
	})

	t.Run("RejectsWhileGenerating", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		client := &mockClient{generateFunc: func(c api.SuggestionConstraints) ([]api.DaySuggestion, error) {
			close(started)
			<-release
			return fakeWeek(c)
		}}
		c, _ := NewConstraints(client, nil, "2024-06-10")

		done := make(chan error, 1)
		go func() {
			_, err := c.Submit(context.Background())
			done <- err
		}()
		<-started

		if c.CanGenerate() {
			t.Error("Expected CanGenerate to be false while generating")
		}
		if _, err := c.Submit(context.Background()); !errors.Is(err, ErrGenerationInFlight) {
			t.Errorf("Expected ErrGenerationInFlight, got %v", err)
		}
		close(release)
		if err := <-done; err != nil {
			t.Errorf("Expected first submit to succeed, got %v", err)
		}
	})
}

func TestRequestAlternative(t *testing.T) {
	t.Run("AccumulatesExclusions", func(t *testing.T) {
		next := []string{"B", "C"}
		client := &mockClient{alternativeFunc: func(req api.AlternativeRequest) (*api.Recipe, error) {
			id := next[0]
			next = next[1:]
			return &api.Recipe{ID: id, Title: "Recipe " + id}, nil
		}}
		session := NewSession(client, nil,
			api.SuggestionConstraints{StartDate: "2024-06-10", PreferSimple: true},
			[]api.DaySuggestion{{Date: "2024-06-10", RecipeID: "A", Recipe: &api.Recipe{ID: "A"}}},
		)

		if _, err := session.RequestAlternative(context.Background(), "2024-06-10"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if _, err := session.RequestAlternative(context.Background(), "2024-06-10"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if got := client.alternativeCalls[0].ExcludedRecipeIDs; !reflect.DeepEqual(got, []string{"A"}) {
			t.Errorf("Expected first exclusion [A], got %v", got)
		}
		if got := client.alternativeCalls[1].ExcludedRecipeIDs; !reflect.DeepEqual(got, []string{"A", "B"}) {
			t.Errorf("Expected second exclusion [A B], got %v", got)
		}
		if !client.alternativeCalls[0].PreferSimple {
			t.Error("Expected filters to be forwarded")
		}

		day, _ := session.Day("2024-06-10")
		if day.RecipeID != "C" || day.Recipe.ID != "C" {
			t.Errorf("Expected day to show C, got %+v", day)
		}
	})

	t.Run("FailureLeavesDayUnchanged", func(t *testing.T) {
		client := &mockClient{alternativeFunc: func(api.AlternativeRequest) (*api.Recipe, error) {
			return nil, errors.New("timeout")
		}}
		session := newTestSession(t, client)
		before, _ := session.Day("2024-06-10")

		if _, err := session.RequestAlternative(context.Background(), "2024-06-10"); err == nil {
			t.Fatal("Expected an error, got nil")
		}
		after, _ := session.Day("2024-06-10")
		if !reflect.DeepEqual(before, after) {
			t.Errorf("Expected day unchanged, before %+v after %+v", before, after)
		}
	})

	t.Run("StaleResponseDiscarded", func(t *testing.T) {
		firstStarted := make(chan struct{})
		releaseFirst := make(chan struct{})
		var calls int
		var mu sync.Mutex
		client := &mockClient{alternativeFunc: func(api.AlternativeRequest) (*api.Recipe, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				close(firstStarted)
				<-releaseFirst
				return &api.Recipe{ID: "slow"}, nil
			}
			return &api.Recipe{ID: "fast"}, nil
		}}
		session := newTestSession(t, client)

		errs := make(chan error, 1)
		go func() {
			_, err := session.RequestAlternative(context.Background(), "2024-06-10")
			errs <- err
		}()
		<-firstStarted

		if _, err := session.RequestAlternative(context.Background(), "2024-06-10"); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		close(releaseFirst)

		if err := <-errs; !errors.Is(err, ErrSupersededRequest) {
			t.Errorf("Expected ErrSupersededRequest, got %v", err)
		}
		day, _ := session.Day("2024-06-10")
		if day.RecipeID != "fast" {
			t.Errorf("Expected latest response to win, got %s", day.RecipeID)
		}
	})

	t.Run("NotOfferedForSkippedOrEmpty", func(t *testing.T) {
		client := &mockClient{}
		session := NewSession(client, nil, api.SuggestionConstraints{StartDate: "2024-06-10"}, []api.DaySuggestion{
			{Date: "2024-06-10"},
			{Date: "2024-06-11", IsSkipped: true},
		})

		for _, date := range []string{"2024-06-10", "2024-06-11"} {
			if _, err := session.RequestAlternative(context.Background(), date); !errors.Is(err, ErrNoAlternative) {
				t.Errorf("%s: expected ErrNoAlternative, got %v", date, err)
			}
		}
		if _, err := session.RequestAlternative(context.Background(), "2024-07-01"); !errors.Is(err, ErrUnknownDate) {
			t.Errorf("Expected ErrUnknownDate, got %v", err)
		}
	})
}

func TestRefresh(t *testing.T) {
	t.Run("ServerWins", func(t *testing.T) {
		client := &mockClient{listPlansFunc: func(start string, days int) ([]api.Plan, error) {
			if start != "2024-06-10" || days != 7 {
				t.Errorf("Unexpected window %s +%d", start, days)
			}
			return []api.Plan{
				{Date: "2024-06-10", RecipeID: &api.PlanRecipe{ID: "Y", Recipe: &api.Recipe{ID: "Y", Title: "Server pick"}}},
				{Date: "2024-06-11", Label: "Leftovers"},
			}, nil
		}}
		session := NewSession(client, nil, api.SuggestionConstraints{StartDate: "2024-06-10"}, []api.DaySuggestion{
			{Date: "2024-06-10", RecipeID: "X", Recipe: &api.Recipe{ID: "X"}},
			{Date: "2024-06-11", RecipeID: "Z", Recipe: &api.Recipe{ID: "Z"}},
		})

		if err := session.Refresh(context.Background()); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		day, _ := session.Day("2024-06-10")
		if day.RecipeID != "Y" || day.Recipe == nil || day.Recipe.Title != "Server pick" {
			t.Errorf("Expected server recipe Y, got %+v", day)
		}
		other, _ := session.Day("2024-06-11")
		if other.RecipeID != "Z" {
			t.Errorf("Expected day without server recipe untouched, got %+v", other)
		}
		if got := session.ExcludedRecipeIDs("2024-06-10"); !reflect.DeepEqual(got, []string{"X", "Y"}) {
			t.Errorf("Expected exclusions [X Y], got %v", got)
		}

		if err := session.Refresh(context.Background()); err != nil {
			t.Fatalf("Expected no error on second refresh, got %v", err)
		}
		day, _ = session.Day("2024-06-10")
		if day.RecipeID != "Y" {
			t.Errorf("Expected refresh to be idempotent, got %s", day.RecipeID)
		}
	})

	t.Run("SkippedDaysStaySkipped", func(t *testing.T) {
		client := &mockClient{
			listPlansFunc: func(string, int) ([]api.Plan, error) {
				return []api.Plan{{Date: "2024-06-15", RecipeID: &api.PlanRecipe{ID: "old", Recipe: &api.Recipe{ID: "old"}}}}, nil
			},
			approveFunc: func(s []api.DaySuggestion) (*api.ApproveResponse, error) {
				return &api.ApproveResponse{}, nil
			},
		}
		session := newTestSession(t, client)

		if err := session.Refresh(context.Background()); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		day, _ := session.Day("2024-06-15")
		if !day.IsSkipped || day.RecipeID != "" || DisplayOf(day) != DisplaySkipped {
			t.Errorf("Expected Saturday to stay skipped, got %+v", day)
		}

		if _, err := session.Approve(context.Background()); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		sat := client.approveCalls[0][5]
		if !sat.IsSkipped || sat.RecipeID != "" {
			t.Errorf("Expected skipped Saturday in approval, got %+v", sat)
		}
	})

	t.Run("RetriesTransientFailures", func(t *testing.T) {
		var attempts int
		client := &mockClient{listPlansFunc: func(string, int) ([]api.Plan, error) {
			attempts++
			if attempts < 3 {
				return nil, &api.Error{StatusCode: 503, Message: "unavailable"}
			}
			return []api.Plan{{Date: "2024-06-10", RecipeID: &api.PlanRecipe{ID: "Y"}}}, nil
		}}
		session := newTestSession(t, client)

		if err := session.Refresh(context.Background()); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got %d", attempts)
		}
		day, _ := session.Day("2024-06-10")
		if day.RecipeID != "Y" || day.Recipe != nil {
			t.Errorf("Expected bare server id Y, got %+v", day)
		}
	})

	t.Run("ClientErrorIsNotRetried", func(t *testing.T) {
		client := &mockClient{listPlansFunc: func(string, int) ([]api.Plan, error) {
			return nil, &api.Error{StatusCode: 401, Message: "expired"}
		}}
		session := newTestSession(t, client)
		before := session.Suggestions()

		if err := session.Refresh(context.Background()); !errors.Is(err, api.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
		if client.listPlansCalls != 1 {
			t.Errorf("Expected a single attempt, got %d", client.listPlansCalls)
		}
		if !reflect.DeepEqual(before, session.Suggestions()) {
			t.Error("Expected local state untouched after failed refresh")
		}
	})
}

func TestPickManually(t *testing.T) {
	client := &mockClient{listPlansFunc: func(string, int) ([]api.Plan, error) {
		return []api.Plan{{Date: "2024-06-15", RecipeID: &api.PlanRecipe{ID: "picked", Recipe: &api.Recipe{ID: "picked", Title: "Paella"}}}}, nil
	}}
	session := newTestSession(t, client)

	var got PickRequest
	err := session.PickManually(context.Background(), "2024-06-15", PickerFunc(func(_ context.Context, req PickRequest) error {
		got = req
		return nil
	}))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got.Date != "2024-06-15" || len(got.Suggestions) != 7 {
		t.Errorf("Unexpected pick request %+v", got)
	}

	day, _ := session.Day("2024-06-15")
	if day.IsSkipped || day.RecipeID != "picked" || DisplayOf(day) != DisplayRecipe {
		t.Errorf("Expected picked recipe after refresh, got %+v", day)
	}
}

func TestApprove(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := &mockClient{approveFunc: func(s []api.DaySuggestion) (*api.ApproveResponse, error) {
			plans := make([]api.Plan, 0, len(s))
			for _, d := range s {
				p := api.Plan{Date: d.Date, Label: d.Label, IsConfirmed: true}
				if d.RecipeID != "" {
					p.RecipeID = &api.PlanRecipe{ID: d.RecipeID}
				}
				plans = append(plans, p)
			}
			return &api.ApproveResponse{Plans: plans}, nil
		}}
		session := newTestSession(t, client)

		result, err := session.Approve(context.Background())
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(client.approveCalls[0]) != 7 {
			t.Errorf("Expected all 7 days sent, got %d", len(client.approveCalls[0]))
		}
		if len(result.Plans) != 7 {
			t.Fatalf("Expected 7 plans, got %d", len(result.Plans))
		}
		for _, p := range result.Plans[5:] {
			if p.HasRecipe() {
				t.Errorf("Expected skipped day %s without recipe", p.Date)
			}
		}
		if session.Phase() != Approved {
			t.Errorf("Expected phase approved, got %s", session.Phase())
		}
		if _, err := session.RequestAlternative(context.Background(), "2024-06-10"); !errors.Is(err, ErrNotInteractive) {
			t.Errorf("Expected ErrNotInteractive after approval, got %v", err)
		}
	})

	t.Run("FailureKeepsEdits", func(t *testing.T) {
		client := &mockClient{
			alternativeFunc: func(api.AlternativeRequest) (*api.Recipe, error) {
				return &api.Recipe{ID: "alt"}, nil
			},
			approveFunc: func([]api.DaySuggestion) (*api.ApproveResponse, error) {
				return nil, errors.New("boom")
			},
		}
		rec := &notify.Recorder{}
		session := newTestSession(t, client)
		session.notifier = rec
		session.RequestAlternative(context.Background(), "2024-06-12")
		before := session.Suggestions()

		if _, err := session.Approve(context.Background()); err == nil {
			t.Fatal("Expected an error, got nil")
		}
		if session.Phase() != Interactive {
			t.Errorf("Expected phase interactive, got %s", session.Phase())
		}
		if !reflect.DeepEqual(before, session.Suggestions()) {
			t.Error("Expected local edits preserved")
		}
		if n := rec.Notices(); len(n) != 1 || !n[0].Blocking {
			t.Errorf("Expected one blocking notice, got %+v", n)
		}
	})

	t.Run("DoubleSubmit", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		client := &mockClient{approveFunc: func([]api.DaySuggestion) (*api.ApproveResponse, error) {
			close(started)
			<-release
			return &api.ApproveResponse{}, nil
		}}
		session := newTestSession(t, client)

		done := make(chan error, 1)
		go func() {
			_, err := session.Approve(context.Background())
			done <- err
		}()
		<-started

		if _, err := session.Approve(context.Background()); !errors.Is(err, ErrApprovalInFlight) {
			t.Errorf("Expected ErrApprovalInFlight, got %v", err)
		}
		close(release)
		if err := <-done; err != nil {
			t.Errorf("Expected first approval to succeed, got %v", err)
		}
		if len(client.approveCalls) != 1 {
			t.Errorf("Expected a single approve call, got %d", len(client.approveCalls))
		}
	})
}

func TestSnapshotRestore(t *testing.T) {
	client := &mockClient{alternativeFunc: func(api.AlternativeRequest) (*api.Recipe, error) {
		return &api.Recipe{ID: "B"}, nil
	}}
	session := newTestSession(t, client)
	session.RequestAlternative(context.Background(), "2024-06-10")

	restored := RestoreSession(client, nil, session.Snapshot())

	if !reflect.DeepEqual(session.Suggestions(), restored.Suggestions()) {
		t.Error("Expected suggestions to survive restore")
	}
	if got := restored.ExcludedRecipeIDs("2024-06-10"); !reflect.DeepEqual(got, []string{"r10", "B"}) {
		t.Errorf("Expected exclusions [r10 B], got %v", got)
	}
	if restored.Phase() != Interactive {
		t.Errorf("Expected interactive, got %s", restored.Phase())
	}
}
