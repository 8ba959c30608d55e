package taskman_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Utre17/tasksmart/internal/models"
	"github.com/Utre17/tasksmart/internal/session"
	"github.com/Utre17/tasksmart/internal/store"
	"github.com/Utre17/tasksmart/internal/taskman"
)

type fakeSession struct {
	state session.State
}

func (f *fakeSession) State() session.State { return f.state }

// fakeStore is an in-memory store.Store that counts calls so tests can see
// which backend served an operation and whether List hit the backend at all.
type fakeStore struct {
	name      string
	tasks     []models.Task
	nextID    int64
	listCalls int
	err       error
}

func (f *fakeStore) List(ctx context.Context) ([]models.Task, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Task(nil), f.tasks...), nil
}

func (f *fakeStore) Create(ctx context.Context, draft models.Draft) (models.Task, error) {
	if f.err != nil {
		return models.Task{}, f.err
	}
	f.nextID++
	task := models.Task{ID: f.nextID, OwnerKey: f.name, Title: draft.Title, Category: draft.Category, Priority: draft.Priority}
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeStore) Update(ctx context.Context, id int64, changes models.Changes) (models.Task, error) {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			if changes.Title != nil {
				f.tasks[i].Title = *changes.Title
			}
			if changes.Completed != nil {
				f.tasks[i].Completed = *changes.Completed
			}
			return f.tasks[i], nil
		}
	}
	return models.Task{}, store.ErrNotFound
}

func (f *fakeStore) Complete(ctx context.Context, id int64, completed bool) (models.Task, error) {
	return f.Update(ctx, id, models.Changes{Completed: &completed})
}

func (f *fakeStore) Delete(ctx context.Context, id int64) error {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) ClearCompleted(ctx context.Context) (int, error) {
	kept := f.tasks[:0]
	removed := 0
	for _, t := range f.tasks {
		if t.Completed {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	f.tasks = kept
	return removed, nil
}

func draft(title string) models.Draft {
	return models.Draft{Title: title, Category: models.CategoryPersonal, Priority: models.PriorityMedium}
}

func setup() (*fakeSession, *fakeStore, *fakeStore, *taskman.Manager) {
	sessions := &fakeSession{state: session.State{Guest: true, GuestID: "guest-x"}}
	guestStore := &fakeStore{name: "guest"}
	remoteStore := &fakeStore{name: "remote"}
	return sessions, guestStore, remoteStore, taskman.New(sessions, guestStore, remoteStore, nil)
}

func TestGuestModeRoutesToGuestStore(t *testing.T) {
	_, guestStore, remoteStore, m := setup()
	ctx := context.Background()

	if _, err := m.Create(ctx, draft("local")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(guestStore.tasks) != 1 {
		t.Fatal("guest store missed the create")
	}
	if len(remoteStore.tasks) != 0 {
		t.Fatal("remote store must not be touched in guest mode")
	}
}

func TestSessionFlipRedirectsNextCall(t *testing.T) {
	sessions, guestStore, remoteStore, m := setup()
	ctx := context.Background()

	if _, err := m.List(ctx); err != nil {
		t.Fatalf("guest list: %v", err)
	}
	if guestStore.listCalls != 1 {
		t.Fatalf("guest store not queried: %d calls", guestStore.listCalls)
	}

	// Registration flips the session; the very next call must hit the
	// server backend without rebuilding the manager.
	sessions.state = session.State{Authenticated: true, Account: "account-1", Token: "tok"}

	if _, err := m.List(ctx); err != nil {
		t.Fatalf("authenticated list: %v", err)
	}
	if remoteStore.listCalls != 1 {
		t.Fatalf("remote store not queried after flip: %d calls", remoteStore.listCalls)
	}
	if guestStore.listCalls != 1 {
		t.Fatal("guest store queried after flip")
	}
}

func TestNeitherModeSurfacesAuthFailure(t *testing.T) {
	sessions, _, remoteStore, m := setup()
	sessions.state = session.State{}
	remoteStore.err = store.ErrUnauthorized

	_, err := m.List(context.Background())
	if !errors.Is(err, store.ErrUnauthorized) {
		t.Fatalf("expected surfaced auth failure, got %v", err)
	}
}

func TestReadYourWriteAfterCreate(t *testing.T) {
	_, guestStore, _, m := setup()
	ctx := context.Background()

	if _, err := m.List(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := m.Create(ctx, draft("new task")); err != nil {
		t.Fatalf("create: %v", err)
	}

	tasks, err := m.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "new task" {
		t.Fatalf("list stale after create: %+v", tasks)
	}
	if guestStore.listCalls != 1 {
		t.Fatalf("expected cached read, backend hit %d times", guestStore.listCalls)
	}
}

func TestReadYourWriteAfterDeleteAndClear(t *testing.T) {
	_, _, _, m := setup()
	ctx := context.Background()

	a, _ := m.Create(ctx, draft("a"))
	b, _ := m.Create(ctx, draft("b"))
	if _, err := m.List(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	if err := m.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, _ := m.List(ctx)
	if len(tasks) != 1 || tasks[0].ID != b.ID {
		t.Fatalf("list stale after delete: %+v", tasks)
	}

	if _, err := m.Complete(ctx, b.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	tasks, _ = m.List(ctx)
	if len(tasks) != 1 || !tasks[0].Completed {
		t.Fatalf("list stale after complete: %+v", tasks)
	}

	if _, err := m.ClearCompleted(ctx); err != nil {
		t.Fatalf("clear completed: %v", err)
	}
	tasks, _ = m.List(ctx)
	if len(tasks) != 0 {
		t.Fatalf("list stale after clear: %+v", tasks)
	}
}

func TestCachesAreScopedPerBackend(t *testing.T) {
	sessions, _, remoteStore, m := setup()
	ctx := context.Background()

	if _, err := m.Create(ctx, draft("guest only")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.List(ctx); err != nil {
		t.Fatalf("guest list: %v", err)
	}

	sessions.state = session.State{Authenticated: true, Account: "account-1", Token: "tok"}
	remoteStore.tasks = []models.Task{{ID: 10, Title: "server task"}}

	tasks, err := m.List(ctx)
	if err != nil {
		t.Fatalf("authenticated list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "server task" {
		t.Fatalf("guest cache leaked into account scope: %+v", tasks)
	}
}

func TestInvalidateCacheForcesRefetch(t *testing.T) {
	_, guestStore, _, m := setup()
	ctx := context.Background()

	if _, err := m.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	m.InvalidateCache()
	if _, err := m.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if guestStore.listCalls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", guestStore.listCalls)
	}
}
