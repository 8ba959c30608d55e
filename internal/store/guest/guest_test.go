package guest_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Utre17/tasksmart/internal/models"
	"github.com/Utre17/tasksmart/internal/storage/kv"
	"github.com/Utre17/tasksmart/internal/store"
	"github.com/Utre17/tasksmart/internal/store/guest"
)

const testGuestID = "guest-ab12cd34"

func openTestStore(t *testing.T) (*guest.Store, *kv.Store) {
	t.Helper()
	kvStore, err := kv.Open(filepath.Join(t.TempDir(), "device.db"), nil)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() {
		_ = kvStore.Close()
	})
	return guest.New(kvStore, testGuestID, nil), kvStore
}

func mustCreate(t *testing.T, s *guest.Store, title string) models.Task {
	t.Helper()
	task, err := s.Create(context.Background(), models.Draft{
		Title:    title,
		Category: models.CategoryPersonal,
		Priority: models.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return task
}

func TestCreateAssignsUniqueNegativeIDs(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		task := mustCreate(t, s, "task")
		if task.ID >= 0 {
			t.Fatalf("guest id must be negative, got %d", task.ID)
		}
		if seen[task.ID] {
			t.Fatalf("duplicate id %d", task.ID)
		}
		seen[task.ID] = true
		if task.OwnerKey != testGuestID {
			t.Fatalf("owner key %q", task.OwnerKey)
		}
		if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
			t.Fatal("timestamps not stamped")
		}
	}

	// IDs stay unique even after a delete frees a slot.
	first := mustCreate(t, s, "short lived")
	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	next := mustCreate(t, s, "replacement")
	if next.ID == first.ID {
		t.Fatalf("id %d reused after delete", next.ID)
	}
}

func TestListPreservesCreationOrder(t *testing.T) {
	s, _ := openTestStore(t)

	titles := []string{"one", "two", "three"}
	for _, title := range titles {
		mustCreate(t, s, title)
	}

	tasks, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != len(titles) {
		t.Fatalf("expected %d tasks, got %d", len(titles), len(tasks))
	}
	for i, title := range titles {
		if tasks[i].Title != title {
			t.Fatalf("position %d: got %q want %q", i, tasks[i].Title, title)
		}
	}
}

func TestUpdateMissingIDIsNotFound(t *testing.T) {
	s, _ := openTestStore(t)

	title := "new"
	_, err := s.Update(context.Background(), -99, models.Changes{Title: &title})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	task := mustCreate(t, s, "finish me")

	first, err := s.Complete(ctx, task.ID, true)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if !first.Completed {
		t.Fatal("not completed after first call")
	}

	second, err := s.Complete(ctx, task.ID, true)
	if err != nil {
		t.Fatalf("second complete must not error: %v", err)
	}
	if !second.Completed {
		t.Fatal("completed flag flipped back")
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Fatal("updated_at went backwards")
	}
}

func TestClearCompleted(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	keep := mustCreate(t, s, "keep")
	done1 := mustCreate(t, s, "done 1")
	done2 := mustCreate(t, s, "done 2")
	for _, id := range []int64{done1.ID, done2.ID} {
		if _, err := s.Complete(ctx, id, true); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	removed, err := s.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("clear completed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	tasks, _ := s.List(ctx)
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Fatalf("wrong survivors: %+v", tasks)
	}
}

func TestClearAllWipesCollection(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "a")
	mustCreate(t, s, "b")

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	tasks, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty store, got %d tasks", len(tasks))
	}
}

func TestCorruptDataTreatedAsEmpty(t *testing.T) {
	s, kvStore := openTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "will be lost")

	if err := kvStore.Set(ctx, "tasks/"+testGuestID, []byte("{{{ not json")); err != nil {
		t.Fatalf("corrupt blob: %v", err)
	}

	tasks, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list must not propagate corruption: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty list, got %d", len(tasks))
	}

	// The store keeps working after corruption.
	if task := mustCreate(t, s, "fresh start"); task.ID >= 0 {
		t.Fatalf("bad id after recovery: %d", task.ID)
	}
}

func TestExportForTransferStripsIdentity(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	task, err := s.Create(ctx, models.Draft{
		Title:    "Call dentist",
		Category: models.CategoryHealth,
		Priority: models.PriorityHigh,
		DueDate:  "Tomorrow",
		Notes:    "morning preferred",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	drafts, err := s.ExportForTransfer(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}
	want := models.Export(task)
	if drafts[0] != want {
		t.Fatalf("export mismatch: %+v", drafts[0])
	}
}
