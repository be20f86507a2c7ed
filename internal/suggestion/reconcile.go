package suggestion

import (
	"context"
	"errors"
	"log"
	"net/http"
	"slices"

	"dinner-planner/internal/api"

	"github.com/cenkalti/backoff/v5"
)

// Refresh pulls the authoritative plans for the week and overwrites local
// days whose server plan carries a recipe. The server always wins, except on
// days the user chose not to cook: those stay skipped. It is safe to call as
// often as the wizard is shown again; concurrent calls share one fetch.
// Transient failures are retried, then logged and returned, and local state
// is left untouched.
func (s *Session) Refresh(ctx context.Context) error {
	return s.refreshFor(ctx, "")
}

// refreshFor is Refresh after a manual pick for picked, which may turn a
// skipped day into a cooking day.
func (s *Session) refreshFor(ctx context.Context, picked string) error {
	_, err, _ := s.refresh.Do("refresh|"+picked, func() (any, error) {
		return nil, s.reconcile(ctx, picked)
	})
	return err
}

func (s *Session) reconcile(ctx context.Context, picked string) error {
	s.mu.Lock()
	if s.phase != Interactive {
		s.mu.Unlock()
		return nil
	}
	start := s.startDateLocked()
	days := len(s.suggestions)
	tries := s.refreshTries
	s.mu.Unlock()

	if days == 0 {
		return nil
	}
	if tries == 0 {
		tries = 1
	}
	if days < 7 {
		days = 7
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.refreshInitial

	plans, err := backoff.Retry(ctx, func() ([]api.Plan, error) {
		plans, err := s.client.ListPlans(ctx, start, days)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return plans, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	if err != nil {
		log.Printf("Failed to refresh suggestions from %s: %v", start, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Interactive {
		return nil
	}
	updated := s.applyPlansLocked(plans, picked)
	if updated > 0 {
		log.Printf("Refreshed %d day(s) of week %s from server", updated, start)
	}
	return nil
}

func (s *Session) applyPlansLocked(plans []api.Plan, picked string) int {
	updated := 0
	for _, p := range plans {
		if !p.HasRecipe() {
			continue
		}
		i := s.indexLocked(p.Date)
		if i < 0 {
			continue
		}

		day := s.suggestions[i]
		if day.IsSkipped && p.Date != picked {
			continue
		}
		if day.RecipeID == p.RecipeID.ID && (day.Recipe != nil || p.RecipeID.Recipe == nil) {
			continue
		}
		day.RecipeID = p.RecipeID.ID
		day.Recipe = nil
		if p.RecipeID.Recipe != nil {
			r := *p.RecipeID.Recipe
			r.Ingredients = slices.Clone(r.Ingredients)
			day.Recipe = &r
		}
		day.IsSkipped = false
		day.Label = ""
		s.suggestions[i] = day

		if !slices.Contains(s.excluded[p.Date], day.RecipeID) {
			s.excluded[p.Date] = append(s.excluded[p.Date], day.RecipeID)
		}
		// Server state replaces whatever alternative may still be in flight.
		s.seq[p.Date]++
		updated++
	}
	return updated
}

// retryable reports whether a plan fetch is worth trying again.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
