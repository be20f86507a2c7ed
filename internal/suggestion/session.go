package suggestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"dinner-planner/internal/api"
	"dinner-planner/internal/approval"
	"dinner-planner/internal/notify"

	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownDate       = errors.New("date is not part of the suggestion set")
	ErrApprovalInFlight  = errors.New("approval already in progress")
	ErrNotInteractive    = errors.New("suggestion set is no longer editable")
	ErrNoAlternative     = errors.New("alternatives are only offered for days with a recipe")
	ErrSupersededRequest = errors.New("a newer request for this date replaced this one")
)

// Phase is the state of a suggestion session.
type Phase int

const (
	Interactive Phase = iota
	Approving
	Approved
)

func (p Phase) String() string {
	switch p {
	case Interactive:
		return "interactive"
	case Approving:
		return "approving"
	case Approved:
		return "approved"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Display is how a single day should be rendered.
type Display int

const (
	DisplayEmpty Display = iota
	DisplaySkipped
	DisplayRecipe
)

// DisplayOf picks the one display state that describes d.
func DisplayOf(d api.DaySuggestion) Display {
	switch {
	case d.IsSkipped:
		return DisplaySkipped
	case d.RecipeID != "" || d.Recipe != nil:
		return DisplayRecipe
	default:
		return DisplayEmpty
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRefreshRetry sets how often and how fast Refresh retries a failed plan fetch.
func WithRefreshRetry(maxTries uint, initial time.Duration) SessionOption {
	return func(s *Session) {
		s.refreshTries = maxTries
		s.refreshInitial = initial
	}
}

// Session owns one suggestion set from generation until approval.
type Session struct {
	mu       sync.Mutex
	client   Client
	notifier notify.Notifier

	constraints api.SuggestionConstraints
	suggestions []api.DaySuggestion
	excluded    map[string][]string
	seq         map[string]uint64
	phase       Phase
	result      *approval.Result

	refresh        singleflight.Group
	refreshTries   uint
	refreshInitial time.Duration
}

// NewSession wraps a freshly generated suggestion set. The excluded ids for
// each date start with the recipe shown for it, if any.
func NewSession(client Client, notifier notify.Notifier, constraints api.SuggestionConstraints, suggestions []api.DaySuggestion, opts ...SessionOption) *Session {
	excluded := make(map[string][]string, len(suggestions))
	for _, d := range suggestions {
		if d.RecipeID != "" {
			excluded[d.Date] = []string{d.RecipeID}
		}
	}
	return newSession(client, notifier, constraints, suggestions, excluded, opts)
}

func newSession(client Client, notifier notify.Notifier, constraints api.SuggestionConstraints, suggestions []api.DaySuggestion, excluded map[string][]string, opts []SessionOption) *Session {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	s := &Session{
		client:         client,
		notifier:       notifier,
		constraints:    constraints,
		suggestions:    cloneSuggestions(suggestions),
		excluded:       excluded,
		seq:            make(map[string]uint64),
		refreshTries:   3,
		refreshInitial: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Constraints() api.SuggestionConstraints {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.constraints
	c.DaysToSkip = slices.Clone(c.DaysToSkip)
	return c
}

// Suggestions returns a copy of the current suggestion set.
func (s *Session) Suggestions() []api.DaySuggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSuggestions(s.suggestions)
}

// Day returns the current suggestion for date.
func (s *Session) Day(date string) (api.DaySuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(date)
	if i < 0 {
		return api.DaySuggestion{}, ErrUnknownDate
	}
	return cloneSuggestion(s.suggestions[i]), nil
}

// ExcludedRecipeIDs returns the ids already shown for date in this session.
func (s *Session) ExcludedRecipeIDs(date string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.excluded[date])
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Result is the approved week, nil until Approve succeeds.
func (s *Session) Result() *approval.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// StartDate is the first date of the suggestion set.
func (s *Session) StartDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startDateLocked()
}

func (s *Session) startDateLocked() string {
	if len(s.suggestions) > 0 {
		return s.suggestions[0].Date
	}
	return s.constraints.StartDate
}

func (s *Session) indexLocked(date string) int {
	for i := range s.suggestions {
		if s.suggestions[i].Date == date {
			return i
		}
	}
	return -1
}

// RequestAlternative replaces the recipe for date with one not yet shown in
// this session. Only the latest request for a date applies; a response that
// arrives after a newer request was issued is dropped. Failures are logged
// and leave the day as it was.
func (s *Session) RequestAlternative(ctx context.Context, date string) (*api.Recipe, error) {
	s.mu.Lock()
	if s.phase != Interactive {
		s.mu.Unlock()
		return nil, ErrNotInteractive
	}
	i := s.indexLocked(date)
	if i < 0 {
		s.mu.Unlock()
		return nil, ErrUnknownDate
	}
	if DisplayOf(s.suggestions[i]) != DisplayRecipe {
		s.mu.Unlock()
		return nil, ErrNoAlternative
	}
	s.seq[date]++
	ticket := s.seq[date]
	req := api.AlternativeRequest{
		Date:              date,
		ExcludedRecipeIDs: slices.Clone(s.excluded[date]),
		AlternativeFilters: api.AlternativeFilters{
			AvoidRepeats:   s.constraints.AvoidRepeats,
			PreferSimple:   s.constraints.PreferSimple,
			VegetarianOnly: s.constraints.VegetarianOnly,
		},
	}
	s.mu.Unlock()

	recipe, err := s.client.GetAlternative(ctx, req)
	if err != nil {
		log.Printf("Failed to fetch alternative for %s: %v", date, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq[date] != ticket || s.phase != Interactive {
		log.Printf("Discarding stale alternative %s for %s", recipe.ID, date)
		return nil, ErrSupersededRequest
	}
	i = s.indexLocked(date)
	if i < 0 {
		return nil, ErrUnknownDate
	}

	updated := s.suggestions[i]
	updated.RecipeID = recipe.ID
	r := *recipe
	updated.Recipe = &r
	updated.Label = ""
	s.suggestions[i] = updated

	if !slices.Contains(s.excluded[date], recipe.ID) {
		s.excluded[date] = append(s.excluded[date], recipe.ID)
	}
	out := r
	return &out, nil
}

// PickRequest is handed to the manual picker.
type PickRequest struct {
	Date        string
	Suggestions []api.DaySuggestion
}

// Picker lets the user choose a recipe for a date and persists the choice
// on the server itself.
type Picker interface {
	Pick(ctx context.Context, req PickRequest) error
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context, req PickRequest) error

func (f PickerFunc) Pick(ctx context.Context, req PickRequest) error { return f(ctx, req) }

// PickManually hands date to picker and then refreshes from the server,
// which is the only place the picker's choice becomes visible.
func (s *Session) PickManually(ctx context.Context, date string, picker Picker) error {
	s.mu.Lock()
	if s.phase != Interactive {
		s.mu.Unlock()
		return ErrNotInteractive
	}
	if s.indexLocked(date) < 0 {
		s.mu.Unlock()
		return ErrUnknownDate
	}
	req := PickRequest{Date: date, Suggestions: cloneSuggestions(s.suggestions)}
	s.mu.Unlock()

	pickErr := picker.Pick(ctx, req)
	if pickErr != nil {
		log.Printf("Manual pick for %s did not complete: %v", date, pickErr)
	}
	if err := s.refreshFor(ctx, date); err != nil {
		log.Printf("Refresh after manual pick for %s failed: %v", date, err)
	}
	return pickErr
}

// Approve sends the whole set, skipped days included, to the server. While
// the call is running the session is Approving and a second Approve fails
// with ErrApprovalInFlight. A failed approval keeps every local edit.
func (s *Session) Approve(ctx context.Context) (*approval.Result, error) {
	s.mu.Lock()
	switch s.phase {
	case Approving:
		s.mu.Unlock()
		return nil, ErrApprovalInFlight
	case Approved:
		result := s.result
		s.mu.Unlock()
		return result, nil
	}
	payload := cloneSuggestions(s.suggestions)
	weekStart := s.startDateLocked()
	s.phase = Approving
	s.mu.Unlock()

	resp, err := s.client.ApproveSuggestions(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.phase = Interactive
		log.Printf("Failed to approve week %s: %v", weekStart, err)
		s.notifier.Notify(ctx, notify.Error("Could not approve plan", err.Error()))
		return nil, err
	}

	s.phase = Approved
	s.result = approval.NewResult(weekStart, resp.Plans)
	return s.result, nil
}

// State is the serializable form of a Session.
type State struct {
	Constraints api.SuggestionConstraints `json:"constraints"`
	Suggestions []api.DaySuggestion       `json:"suggestions"`
	Excluded    map[string][]string       `json:"excluded"`
	Phase       Phase                     `json:"phase"`
	Plans       []api.Plan                `json:"plans,omitempty"`
}

// Snapshot captures the session so a surface can persist it between
// interactions. An in-flight approval is recorded as Interactive.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	excluded := make(map[string][]string, len(s.excluded))
	for k, v := range s.excluded {
		excluded[k] = slices.Clone(v)
	}
	st := State{
		Constraints: s.constraints,
		Suggestions: cloneSuggestions(s.suggestions),
		Excluded:    excluded,
		Phase:       s.phase,
	}
	if st.Phase == Approving {
		st.Phase = Interactive
	}
	if s.result != nil {
		st.Plans = slices.Clone(s.result.Plans)
	}
	return st
}

// RestoreSession rebuilds a Session from a snapshot.
func RestoreSession(client Client, notifier notify.Notifier, st State, opts ...SessionOption) *Session {
	excluded := make(map[string][]string, len(st.Excluded))
	for k, v := range st.Excluded {
		excluded[k] = slices.Clone(v)
	}
	s := newSession(client, notifier, st.Constraints, st.Suggestions, excluded, opts)
	if st.Phase == Approved {
		s.phase = Approved
		weekStart := st.Constraints.StartDate
		if len(st.Suggestions) > 0 {
			weekStart = st.Suggestions[0].Date
		}
		s.result = approval.NewResult(weekStart, st.Plans)
	}
	return s
}

func cloneSuggestion(d api.DaySuggestion) api.DaySuggestion {
	if d.Recipe != nil {
		r := *d.Recipe
		r.Ingredients = slices.Clone(r.Ingredients)
		d.Recipe = &r
	}
	return d
}

func cloneSuggestions(in []api.DaySuggestion) []api.DaySuggestion {
	out := make([]api.DaySuggestion, len(in))
	for i, d := range in {
		out[i] = cloneSuggestion(d)
	}
	return out
}
