package stores

import (
	"context"
	"errors"
	"slices"
	"testing"

	"dinner-planner/internal/api"
)

type mockClient struct {
	stores    []api.Store
	updateErr error
	onUpdate  func(storeID string, order []string)
	updates   int
}

func (m *mockClient) ListStores(context.Context) ([]api.Store, error) {
	return m.stores, nil
}

func (m *mockClient) UpdateStoreCategoryOrder(_ context.Context, storeID string, order []string) (*api.Store, error) {
	m.updates++
	if m.onUpdate != nil {
		m.onUpdate(storeID, order)
	}
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &api.Store{ID: storeID, CategoryOrder: order}, nil
}

func loadedEditor(t *testing.T, client *mockClient) *Editor {
	t.Helper()
	client.stores = []api.Store{{ID: "s1", Name: "Corner", CategoryOrder: []string{"A", "B", "C"}}}
	e := NewEditor(client, nil)
	if _, err := e.Load(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return e
}

func TestMoveCategory(t *testing.T) {
	t.Run("MoveUp", func(t *testing.T) {
		client := &mockClient{}
		e := loadedEditor(t, client)

		var visibleDuringRequest []string
		client.onUpdate = func(string, []string) {
			visibleDuringRequest, _ = e.Categories("s1")
		}

		if err := e.MoveCategory(context.Background(), "s1", 1, Up); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !slices.Equal(visibleDuringRequest, []string{"B", "A", "C"}) {
			t.Errorf("Expected [B A C] before the response, got %v", visibleDuringRequest)
		}
		got, _ := e.Categories("s1")
		if !slices.Equal(got, []string{"B", "A", "C"}) {
			t.Errorf("Expected [B A C], got %v", got)
		}
	})

	t.Run("RollbackOnFailure", func(t *testing.T) {
		client := &mockClient{updateErr: errors.New("network down")}
		e := loadedEditor(t, client)

		if err := e.MoveCategory(context.Background(), "s1", 1, Up); err == nil {
			t.Fatal("Expected an error, got nil")
		}
		got, _ := e.Categories("s1")
		if !slices.Equal(got, []string{"A", "B", "C"}) {
			t.Errorf("Expected revert to [A B C], got %v", got)
		}
	})

	t.Run("OutOfRangeIsNoop", func(t *testing.T) {
		client := &mockClient{}
		e := loadedEditor(t, client)

		e.MoveCategory(context.Background(), "s1", 0, Up)
		e.MoveCategory(context.Background(), "s1", 2, Down)
		e.MoveCategory(context.Background(), "s1", 9, Down)

		if client.updates != 0 {
			t.Errorf("Expected no updates, got %d", client.updates)
		}
		got, _ := e.Categories("s1")
		if !slices.Equal(got, []string{"A", "B", "C"}) {
			t.Errorf("Expected unchanged order, got %v", got)
		}
	})

	t.Run("UnknownStore", func(t *testing.T) {
		e := loadedEditor(t, &mockClient{})
		if err := e.MoveCategory(context.Background(), "nope", 1, Up); !errors.Is(err, ErrUnknownStore) {
			t.Errorf("Expected ErrUnknownStore, got %v", err)
		}
	})
}
