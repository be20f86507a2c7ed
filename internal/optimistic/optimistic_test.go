package optimistic

import (
	"context"
	"errors"
	"slices"
	"testing"

	"dinner-planner/internal/notify"
)

func swapFirstTwo(s []string) ([]string, error) {
	s[0], s[1] = s[1], s[0]
	return s, nil
}

func TestApply(t *testing.T) {
	t.Run("VisibleBeforePersist", func(t *testing.T) {
		v := New([]string{"A", "B", "C"}, WithClone(slices.Clone[[]string]))

		var seenDuringPersist []string
		err := v.Apply(context.Background(), swapFirstTwo, func(context.Context, []string) error {
			seenDuringPersist = v.Get()
			return nil
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !slices.Equal(seenDuringPersist, []string{"B", "A", "C"}) {
			t.Errorf("Expected [B A C] while persisting, got %v", seenDuringPersist)
		}
		if !slices.Equal(v.Get(), []string{"B", "A", "C"}) {
			t.Errorf("Expected [B A C] after persist, got %v", v.Get())
		}
	})

	t.Run("RollbackOnFailure", func(t *testing.T) {
		rec := &notify.Recorder{}
		v := New([]string{"A", "B", "C"}, WithClone(slices.Clone[[]string]), WithNotifier[[]string](rec))

		var published [][]string
		unsubscribe := v.Subscribe(func(s []string) { published = append(published, s) })
		defer unsubscribe()

		err := v.Apply(context.Background(), swapFirstTwo, func(context.Context, []string) error {
			return errors.New("network down")
		})
		if err == nil {
			t.Fatal("Expected an error, got nil")
		}
		if !slices.Equal(v.Get(), []string{"A", "B", "C"}) {
			t.Errorf("Expected rollback to [A B C], got %v", v.Get())
		}
		if len(published) != 2 || !slices.Equal(published[0], []string{"B", "A", "C"}) || !slices.Equal(published[1], []string{"A", "B", "C"}) {
			t.Errorf("Expected speculative then rollback publish, got %v", published)
		}
		if len(rec.Notices()) != 1 {
			t.Errorf("Expected one notice, got %d", len(rec.Notices()))
		}
	})

	t.Run("MutateErrorChangesNothing", func(t *testing.T) {
		v := New(3)
		persisted := false
		err := v.Apply(context.Background(),
			func(int) (int, error) { return 0, errors.New("invalid") },
			func(context.Context, int) error { persisted = true; return nil },
		)
		if err == nil || persisted || v.Get() != 3 {
			t.Errorf("Expected no change, got err=%v persisted=%v value=%d", err, persisted, v.Get())
		}
	})
}
