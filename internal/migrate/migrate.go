// Package migrate moves a guest's on-device tasks into a newly registered
// account. The transfer is best-effort per item: one failed create records
// a reason and the loop continues, and guest data is only cleared when
// every item made it across.
package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Utre17/tasksmart/internal/models"
	"github.com/Utre17/tasksmart/internal/session"
	"github.com/Utre17/tasksmart/internal/store/guest"
)

// TargetStore is the write surface migration needs from the server store
// adapter. The fingerprint lets the server skip items a previous partial
// run already transferred.
type TargetStore interface {
	CreateWithFingerprint(ctx context.Context, draft models.Draft, fingerprint string) (models.Task, error)
}

// ItemFailure records why one exported item could not be transferred.
type ItemFailure struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Report summarizes one migration run. It is transient: the caller uses it
// for user-facing messaging and then drops it.
type Report struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// Complete reports whether every attempted item succeeded.
func (r Report) Complete() bool {
	return r.Succeeded == r.Attempted
}

// Coordinator drains the guest store into the server store once, right
// after registration. It holds no locks; the caller guarantees a single
// in-flight run.
type Coordinator struct {
	guest    *guest.Store
	target   TargetStore
	sessions *session.Provider
	logger   *slog.Logger
}

// New constructs a coordinator borrowing read access to the guest store and
// write access to the server store for the lifetime of one Run call.
func New(guestStore *guest.Store, target TargetStore, sessions *session.Provider, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{guest: guestStore, target: target, sessions: sessions, logger: logger}
}

// Run transfers every exported guest task to the server store, sequentially
// to bound network load. On full success the guest collection and identity
// are cleared; on any failure the guest data is kept so a later retry can
// pick up the remaining items.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	drafts, err := c.guest.ExportForTransfer(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("export guest tasks: %w", err)
	}
	if len(drafts) == 0 {
		return Report{}, nil
	}

	report := Report{Attempted: len(drafts)}
	for i, draft := range drafts {
		if _, err := c.target.CreateWithFingerprint(ctx, draft, Fingerprint(draft)); err != nil {
			report.Failures = append(report.Failures, ItemFailure{
				Index:  i,
				Title:  draft.Title,
				Reason: err.Error(),
			})
			c.logger.Warn("migration item failed",
				slog.Int("index", i),
				slog.String("title", draft.Title),
				slog.String("reason", err.Error()))
			continue
		}
		report.Succeeded++
	}

	if !report.Complete() {
		c.logger.Info("migration incomplete, guest data kept",
			slog.Int("attempted", report.Attempted),
			slog.Int("succeeded", report.Succeeded))
		return report, nil
	}

	if err := c.guest.ClearAll(ctx); err != nil {
		return report, fmt.Errorf("clear guest tasks: %w", err)
	}
	if err := c.sessions.ClearGuestIdentity(ctx); err != nil {
		return report, fmt.Errorf("clear guest identity: %w", err)
	}
	c.logger.Info("migration complete", slog.Int("transferred", report.Succeeded))
	return report, nil
}

// Fingerprint derives a stable content hash for one exported item so the
// server can detect items a previous partial run already created.
func Fingerprint(d models.Draft) string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		d.Title, string(d.Category), string(d.Priority), d.DueDate, d.Notes,
	}, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))
}
