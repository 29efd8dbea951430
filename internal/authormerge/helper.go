// Package authormerge tracks a versioned background rebuild that must restart
// whenever the identity graph changes underneath it.
//
// Every learned ACI/phone association bumps the latest version. A rebuild
// records the version it started from and may only mark itself finished if
// that version is still current; otherwise FinishRebuild returns a
// *VersionConflictError and the rebuild starts over.
package authormerge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/recon/internal/store"
)

const (
	latestVersionKey   = "latestVersion"
	finishedVersionKey = "finishedVersion"
	nextRowIDKey       = "nextRowId"
	progressVersionKey = "progressVersion"
)

// DefaultMaxAttempts bounds RunRebuild.
const DefaultMaxAttempts = 5

// Helper persists rebuild bookkeeping in the key-value store.
type Helper struct {
	metadata store.KeyValueStore
	progress store.KeyValueStore
}

// NewHelper returns a Helper over the default collections.
func NewHelper() *Helper {
	return &Helper{
		metadata: store.NewKeyValueStore("AuthorMergeMetadata"),
		progress: store.NewKeyValueStore("AuthorMergeNextRowId"),
	}
}

// Rebuild is an in-progress rebuild: the version it is building and the
// row id to resume from.
type Rebuild struct {
	Version   uint64
	NextRowID int64
}

// LatestVersion returns the version of the identity graph.
func (h *Helper) LatestVersion(ctx context.Context, tx *store.ReadTx) (uint64, error) {
	return h.metadata.GetUint64(ctx, tx, latestVersionKey)
}

// FinishedVersion returns the version the last completed rebuild covered.
func (h *Helper) FinishedVersion(ctx context.Context, tx *store.ReadTx) (uint64, error) {
	return h.metadata.GetUint64(ctx, tx, finishedVersionKey)
}

// NeedsRebuild reports whether associations were learned since the last
// completed rebuild.
func (h *Helper) NeedsRebuild(ctx context.Context, tx *store.ReadTx) (bool, error) {
	latest, err := h.LatestVersion(ctx, tx)
	if err != nil {
		return false, err
	}
	finished, err := h.FinishedVersion(ctx, tx)
	if err != nil {
		return false, err
	}
	return finished < latest, nil
}

// BumpVersion advances the latest version. Called for every learned
// association.
func (h *Helper) BumpVersion(ctx context.Context, tx *store.WriteTx) (uint64, error) {
	latest, err := h.LatestVersion(ctx, tx.Reader())
	if err != nil {
		return 0, fmt.Errorf("bump author merge version: %w", err)
	}
	latest++
	if err := h.metadata.SetUint64(ctx, tx, latestVersionKey, latest); err != nil {
		return 0, fmt.Errorf("bump author merge version: %w", err)
	}
	return latest, nil
}

// StartRebuild returns the version to build and where to resume. Progress
// saved for an older version is ignored and the walk starts from row 0.
func (h *Helper) StartRebuild(ctx context.Context, tx *store.ReadTx) (Rebuild, error) {
	latest, err := h.LatestVersion(ctx, tx)
	if err != nil {
		return Rebuild{}, fmt.Errorf("start rebuild: %w", err)
	}
	saved, err := h.progress.GetUint64(ctx, tx, progressVersionKey)
	if err != nil {
		return Rebuild{}, fmt.Errorf("start rebuild: %w", err)
	}
	if saved != latest {
		return Rebuild{Version: latest}, nil
	}
	next, err := h.progress.GetUint64(ctx, tx, nextRowIDKey)
	if err != nil {
		return Rebuild{}, fmt.Errorf("start rebuild: %w", err)
	}
	return Rebuild{Version: latest, NextRowID: int64(next)}, nil
}

// SaveProgress records the next row id to resume from, tagged with the
// version being built.
func (h *Helper) SaveProgress(ctx context.Context, tx *store.WriteTx, version uint64, nextRowID int64) error {
	if err := h.progress.SetUint64(ctx, tx, progressVersionKey, version); err != nil {
		return fmt.Errorf("save rebuild progress: %w", err)
	}
	if err := h.progress.SetUint64(ctx, tx, nextRowIDKey, uint64(nextRowID)); err != nil {
		return fmt.Errorf("save rebuild progress: %w", err)
	}
	return nil
}

func (h *Helper) resetProgress(ctx context.Context, tx *store.WriteTx) error {
	if err := h.progress.Remove(ctx, tx, nextRowIDKey); err != nil {
		return err
	}
	return h.progress.Remove(ctx, tx, progressVersionKey)
}

// FinishRebuild marks expectedVersion as built. If the latest version moved
// on, progress is reset and a *VersionConflictError is returned.
func (h *Helper) FinishRebuild(ctx context.Context, tx *store.WriteTx, expectedVersion uint64) error {
	latest, err := h.LatestVersion(ctx, tx.Reader())
	if err != nil {
		return fmt.Errorf("finish rebuild: %w", err)
	}
	if err := h.resetProgress(ctx, tx); err != nil {
		return fmt.Errorf("finish rebuild: %w", err)
	}
	if latest != expectedVersion {
		return NewVersionConflictError(expectedVersion, latest)
	}
	if err := h.metadata.SetUint64(ctx, tx, finishedVersionKey, expectedVersion); err != nil {
		return fmt.Errorf("finish rebuild: %w", err)
	}
	return nil
}

// StepFunc processes one batch starting after fromRowID inside tx. It
// returns the last row id processed and whether the walk is complete.
type StepFunc func(ctx context.Context, tx *store.WriteTx, fromRowID int64) (lastRowID int64, done bool, err error)

// RunRebuild walks the data with step until done, one write transaction per
// batch, then finishes the rebuild. Version conflicts restart the walk from
// the beginning, up to maxAttempts times (DefaultMaxAttempts if <= 0).
func (h *Helper) RunRebuild(ctx context.Context, st *store.Store, maxAttempts int, step StepFunc) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := h.runOnce(ctx, st, step)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		slog.Warn("author merge rebuild conflicted, restarting",
			"attempt", attempt,
			"error", err,
		)
	}
	return &RetriesExhaustedError{Code: ErrCodeRetriesExhausted, Attempts: maxAttempts, Last: lastErr}
}

func (h *Helper) runOnce(ctx context.Context, st *store.Store, step StepFunc) error {
	var rebuild Rebuild
	if err := st.Read(ctx, func(tx *store.ReadTx) error {
		var err error
		rebuild, err = h.StartRebuild(ctx, tx)
		return err
	}); err != nil {
		return err
	}

	cursor := rebuild.NextRowID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var done bool
		err := st.Write(ctx, func(tx *store.WriteTx) error {
			last, finished, err := step(ctx, tx, cursor)
			if err != nil {
				return err
			}
			done = finished
			cursor = last
			if finished {
				return h.FinishRebuild(ctx, tx, rebuild.Version)
			}
			return h.SaveProgress(ctx, tx, rebuild.Version, last)
		})
		if err != nil {
			var conflict *VersionConflictError
			if errors.As(err, &conflict) {
				// The failed transaction rolled back the progress reset.
				if resetErr := st.Write(ctx, func(tx *store.WriteTx) error {
					return h.progress.Remove(ctx, tx, nextRowIDKey)
				}); resetErr != nil {
					return resetErr
				}
			}
			return err
		}
		if done {
			slog.Info("author merge rebuild finished", "version", rebuild.Version)
			return nil
		}
	}
}
