// Package stores edits the aisle order of the household's grocery stores.
package stores

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"dinner-planner/internal/api"
	"dinner-planner/internal/notify"
	"dinner-planner/internal/optimistic"
)

var ErrUnknownStore = errors.New("unknown store")

// Direction moves a category towards the start (Up) or end (Down) of the list.
type Direction int

const (
	Up Direction = iota
	Down
)

// Client is the backend surface the editor needs.
type Client interface {
	ListStores(ctx context.Context) ([]api.Store, error)
	UpdateStoreCategoryOrder(ctx context.Context, storeID string, order []string) (*api.Store, error)
}

// Editor keeps the visible category order for each store.
type Editor struct {
	client   Client
	notifier notify.Notifier

	mu     sync.Mutex
	stores []api.Store
	orders map[string]*optimistic.Value[[]string]
}

func NewEditor(client Client, notifier notify.Notifier) *Editor {
	return &Editor{
		client:   client,
		notifier: notifier,
		orders:   make(map[string]*optimistic.Value[[]string]),
	}
}

// Load fetches the stores and resets every visible order to the server's.
func (e *Editor) Load(ctx context.Context) ([]api.Store, error) {
	stores, err := e.client.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stores: %w", err)
	}

	type reset struct {
		v     *optimistic.Value[[]string]
		order []string
	}
	var resets []reset
	defer func() {
		for _, r := range resets {
			r.v.Set(r.order)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stores = stores
	for _, s := range stores {
		if v, ok := e.orders[s.ID]; ok {
			resets = append(resets, reset{v: v, order: s.CategoryOrder})
			continue
		}
		opts := []optimistic.Option[[]string]{optimistic.WithClone(slices.Clone[[]string])}
		if e.notifier != nil {
			opts = append(opts, optimistic.WithNotifier[[]string](e.notifier))
		}
		e.orders[s.ID] = optimistic.New(slices.Clone(s.CategoryOrder), opts...)
	}
	return slices.Clone(stores), nil
}

// Stores returns the stores from the last Load.
func (e *Editor) Stores() []api.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.stores)
}

func (e *Editor) order(storeID string) (*optimistic.Value[[]string], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.orders[storeID]
	if !ok {
		return nil, ErrUnknownStore
	}
	return v, nil
}

// Categories returns the visible category order of a store.
func (e *Editor) Categories(storeID string) ([]string, error) {
	v, err := e.order(storeID)
	if err != nil {
		return nil, err
	}
	return v.Get(), nil
}

// Subscribe reports every visible change to a store's order.
func (e *Editor) Subscribe(storeID string, fn func([]string)) (func(), error) {
	v, err := e.order(storeID)
	if err != nil {
		return nil, err
	}
	return v.Subscribe(fn), nil
}

// MoveCategory swaps the category at index with its neighbour in dir. The
// new order is visible immediately and rolled back if saving fails. Moves
// past either end are no-ops.
func (e *Editor) MoveCategory(ctx context.Context, storeID string, index int, dir Direction) error {
	v, err := e.order(storeID)
	if err != nil {
		return err
	}

	current := v.Get()
	target := index - 1
	if dir == Down {
		target = index + 1
	}
	if index < 0 || index >= len(current) || target < 0 || target >= len(current) {
		return nil
	}

	return v.Apply(ctx,
		func(order []string) ([]string, error) {
			return Swap(order, index, target)
		},
		func(ctx context.Context, order []string) error {
			_, err := e.client.UpdateStoreCategoryOrder(ctx, storeID, order)
			return err
		},
	)
}

// Swap exchanges two entries of order in place.
func Swap(order []string, i, j int) ([]string, error) {
	if i < 0 || j < 0 || i >= len(order) || j >= len(order) {
		return nil, fmt.Errorf("swap %d and %d: index out of range for %d categories", i, j, len(order))
	}
	order[i], order[j] = order[j], order[i]
	return order, nil
}
