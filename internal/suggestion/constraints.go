// Package suggestion holds the weekly planning wizard: choosing cooking days,
// working through a generated suggestion set and approving it.
package suggestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"dinner-planner/internal/api"
	"dinner-planner/internal/dateutil"
	"dinner-planner/internal/notify"
)

var (
	ErrNoDaysSelected     = errors.New("no cooking days selected")
	ErrGenerationInFlight = errors.New("suggestions are already being generated")
	ErrInvalidDay         = errors.New("day index must be between 0 (Monday) and 6 (Sunday)")
)

// Client is the part of the backend the wizard talks to.
type Client interface {
	GenerateSuggestions(ctx context.Context, constraints api.SuggestionConstraints) ([]api.DaySuggestion, error)
	GetAlternative(ctx context.Context, req api.AlternativeRequest) (*api.Recipe, error)
	ApproveSuggestions(ctx context.Context, suggestions []api.DaySuggestion) (*api.ApproveResponse, error)
	ListPlans(ctx context.Context, start string, days int) ([]api.Plan, error)
}

// StepState is the state of the constraints step.
type StepState int

const (
	Editing StepState = iota
	Generating
	Done
)

func (s StepState) String() string {
	switch s {
	case Editing:
		return "editing"
	case Generating:
		return "generating"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("StepState(%d)", int(s))
	}
}

// Constraints collects the cooking days and filters for one target week.
type Constraints struct {
	mu       sync.Mutex
	client   Client
	notifier notify.Notifier
	opts     []SessionOption

	startDate      string
	selected       [7]bool
	avoidRepeats   bool
	preferSimple   bool
	vegetarianOnly bool
	state          StepState
}

// NewConstraints starts the step for the week beginning at startDate with
// all seven days selected.
func NewConstraints(client Client, notifier notify.Notifier, startDate string, opts ...SessionOption) (*Constraints, error) {
	if _, err := dateutil.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}

	c := &Constraints{
		client:    client,
		notifier:  notifier,
		opts:      opts,
		startDate: startDate,
	}
	for i := range c.selected {
		c.selected[i] = true
	}
	return c, nil
}

func (c *Constraints) State() StepState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Constraints) StartDate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startDate
}

// ToggleDay flips whether day (0=Monday..6=Sunday) is a cooking day.
func (c *Constraints) ToggleDay(day int) error {
	if day < 0 || day > 6 {
		return ErrInvalidDay
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected[day] = !c.selected[day]
	return nil
}

// SetDinnerDays replaces the selected cooking days.
func (c *Constraints) SetDinnerDays(days []int) error {
	var selected [7]bool
	for _, d := range days {
		if d < 0 || d > 6 {
			return ErrInvalidDay
		}
		selected[d] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = selected
	return nil
}

// IsSelected reports whether day is currently a cooking day.
func (c *Constraints) IsSelected(day int) bool {
	if day < 0 || day > 6 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected[day]
}

// DinnerDays returns the selected cooking days in ascending order.
func (c *Constraints) DinnerDays() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := make([]int, 0, 7)
	for d, ok := range c.selected {
		if ok {
			days = append(days, d)
		}
	}
	return days
}

// DaysToSkip is the ascending complement of the selected days against 0..6.
func (c *Constraints) DaysToSkip() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.daysToSkipLocked()
}

func (c *Constraints) daysToSkipLocked() []int {
	skip := make([]int, 0, 7)
	for d, ok := range c.selected {
		if !ok {
			skip = append(skip, d)
		}
	}
	sort.Ints(skip)
	return skip
}

func (c *Constraints) SetAvoidRepeats(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.avoidRepeats = v
}

func (c *Constraints) SetPreferSimple(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preferSimple = v
}

func (c *Constraints) SetVegetarianOnly(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vegetarianOnly = v
}

// CanGenerate is false while generating or when no day is selected.
func (c *Constraints) CanGenerate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != Generating && len(c.daysToSkipLocked()) < 7
}

// Value returns the request body Submit would send.
func (c *Constraints) Value() api.SuggestionConstraints {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valueLocked()
}

func (c *Constraints) valueLocked() api.SuggestionConstraints {
	return api.SuggestionConstraints{
		StartDate:      c.startDate,
		DaysToSkip:     c.daysToSkipLocked(),
		AvoidRepeats:   c.avoidRepeats,
		PreferSimple:   c.preferSimple,
		VegetarianOnly: c.vegetarianOnly,
	}
}

// Submit generates suggestions for the current constraints. On success the
// step moves to Done and the returned Session owns the suggestion set. On
// failure the step goes back to Editing and a blocking notice is raised.
func (c *Constraints) Submit(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.state == Generating {
		c.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	if len(c.daysToSkipLocked()) == 7 {
		c.mu.Unlock()
		return nil, ErrNoDaysSelected
	}
	constraints := c.valueLocked()
	c.state = Generating
	c.mu.Unlock()

	suggestions, err := c.client.GenerateSuggestions(ctx, constraints)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = Editing
		log.Printf("Failed to generate suggestions for week %s: %v", constraints.StartDate, err)
		c.notifier.Notify(ctx, notify.Error("Could not generate suggestions", err.Error()))
		return nil, err
	}

	c.state = Done
	return NewSession(c.client, c.notifier, constraints, suggestions, c.opts...), nil
}

// Reset returns a finished step to Editing so the week can be regenerated.
func (c *Constraints) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Done {
		c.state = Editing
	}
}
