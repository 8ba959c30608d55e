package migrate_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Utre17/tasksmart/internal/migrate"
	"github.com/Utre17/tasksmart/internal/models"
	"github.com/Utre17/tasksmart/internal/session"
	"github.com/Utre17/tasksmart/internal/storage/kv"
	"github.com/Utre17/tasksmart/internal/store/guest"
)

// fakeTarget records created drafts and can be told to fail specific
// indexes, simulating per-item server failures mid-run.
type fakeTarget struct {
	created   []models.Draft
	prints    []string
	failIndex map[int]error
	calls     int
}

func (f *fakeTarget) CreateWithFingerprint(ctx context.Context, draft models.Draft, fingerprint string) (models.Task, error) {
	idx := f.calls
	f.calls++
	if err, ok := f.failIndex[idx]; ok {
		return models.Task{}, err
	}
	f.created = append(f.created, draft)
	f.prints = append(f.prints, fingerprint)
	return models.Task{ID: int64(len(f.created)), Title: draft.Title}, nil
}

type fixture struct {
	guest    *guest.Store
	sessions *session.Provider
	target   *fakeTarget
	coord    *migrate.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kvStore, err := kv.Open(filepath.Join(t.TempDir(), "device.db"), nil)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() {
		_ = kvStore.Close()
	})

	sessions := session.NewProvider(kvStore, nil)
	guestID, err := sessions.BeginGuest(context.Background())
	if err != nil {
		t.Fatalf("begin guest: %v", err)
	}

	guestStore := guest.New(kvStore, guestID, nil)
	target := &fakeTarget{failIndex: map[int]error{}}
	return &fixture{
		guest:    guestStore,
		sessions: sessions,
		target:   target,
		coord:    migrate.New(guestStore, target, sessions, nil),
	}
}

func (f *fixture) seed(t *testing.T, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := f.guest.Create(context.Background(), models.Draft{
			Title:    fmt.Sprintf("task %d", i+1),
			Category: models.CategoryPersonal,
			Priority: models.PriorityMedium,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestEmptyGuestStoreIsZeroReport(t *testing.T) {
	f := newFixture(t)

	report, err := f.coord.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Attempted != 0 || report.Succeeded != 0 {
		t.Fatalf("expected zero report, got %+v", report)
	}
	if f.target.calls != 0 {
		t.Fatalf("expected no server writes, got %d", f.target.calls)
	}
}

func TestFullMigrationClearsGuestData(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3)
	ctx := context.Background()

	report, err := f.coord.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Attempted != 3 || report.Succeeded != 3 || len(report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !report.Complete() {
		t.Fatal("report must be complete")
	}

	tasks, err := f.guest.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("guest store not cleared: %d tasks left", len(tasks))
	}
	if f.sessions.State().GuestID != "" {
		t.Fatal("guest identity survived a full migration")
	}
}

func TestPartialFailureKeepsGuestData(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 5)
	f.target.failIndex[2] = errors.New("backend unavailable")
	ctx := context.Background()

	report, err := f.coord.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Attempted != 5 || report.Succeeded != 4 {
		t.Fatalf("expected attempted=5 succeeded=4, got %+v", report)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected one failure, got %+v", report.Failures)
	}
	failure := report.Failures[0]
	if failure.Index != 2 || failure.Title != "task 3" || failure.Reason == "" {
		t.Fatalf("failure record wrong: %+v", failure)
	}

	// One failed item keeps all guest data for a later retry.
	tasks, _ := f.guest.List(ctx)
	if len(tasks) != 5 {
		t.Fatalf("guest store must be untouched, got %d tasks", len(tasks))
	}
	if f.sessions.State().GuestID == "" {
		t.Fatal("guest identity must survive a partial failure")
	}

	// The four successful items landed exactly once each.
	if len(f.target.created) != 4 {
		t.Fatalf("expected 4 server creates, got %d", len(f.target.created))
	}
}

func TestMigrationTransfersContentFaithfully(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	original := models.Draft{
		Title:    "Call dentist",
		Category: models.CategoryHealth,
		Priority: models.PriorityHigh,
		DueDate:  "Tomorrow",
		Notes:    "morning preferred",
	}
	if _, err := f.guest.Create(ctx, original); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.coord.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.target.created) != 1 {
		t.Fatalf("expected one transfer, got %d", len(f.target.created))
	}
	if f.target.created[0] != original {
		t.Fatalf("content changed in transit: %+v", f.target.created[0])
	}
	if f.target.prints[0] != migrate.Fingerprint(original) {
		t.Fatal("fingerprint not attached")
	}
}

func TestFingerprintIsStablePerContent(t *testing.T) {
	a := models.Draft{Title: "same", Category: models.CategoryWork, Priority: models.PriorityLow}
	b := a
	if migrate.Fingerprint(a) != migrate.Fingerprint(b) {
		t.Fatal("identical drafts must share a fingerprint")
	}
	b.Notes = "different"
	if migrate.Fingerprint(a) == migrate.Fingerprint(b) {
		t.Fatal("different drafts must not collide")
	}
}
