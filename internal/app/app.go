// Package app builds the process-wide dependencies once and hands them to
// the commands that need them.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/recon/internal/authormerge"
	"github.com/roach88/recon/internal/blocking"
	"github.com/roach88/recon/internal/cascade"
	"github.com/roach88/recon/internal/config"
	"github.com/roach88/recon/internal/directory"
	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
)

// Options configures Open. Zero values fall back to production defaults.
type Options struct {
	Config   config.Config
	Clock    cascade.Clock
	Notifier blocking.StorageServiceNotifier

	// Listeners run after the cascade listeners for every learned association.
	Listeners []recipient.Listener
}

// App is the dependency container.
type App struct {
	Config      config.Config
	Store       *store.Store
	Local       *recipient.LocalIdentifiers
	Merger      *recipient.Merger
	Blocking    *blocking.Manager
	AuthorMerge *authormerge.Helper
	Directory   *directory.Applier

	groups *cascade.GroupMemberDeduplicator
}

// Open opens the database named by the config and wires the merger with
// every association listener.
func Open(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg.Database == "" {
		return nil, fmt.Errorf("open app: no database configured")
	}
	clock := opts.Clock
	if clock == nil {
		clock = cascade.SystemClock{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}

	local, err := cfg.LocalIdentifiers()
	if err != nil {
		return nil, fmt.Errorf("open app: %w", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open app: %w", err)
	}

	helper := authormerge.NewHelper()
	groups := cascade.NewGroupMemberDeduplicator()
	listeners := []recipient.Listener{
		cascade.NewThreadMerger(clock, cascade.DefaultThreadPairMergers()...),
		groups,
		cascade.NewPhoneNumberChangeNotifier(clock),
		cascade.NewProfileMerger(),
		cascade.NewAuthorMergeListener(helper),
	}
	merger := recipient.NewMerger(local, append(listeners, opts.Listeners...)...)

	applier := directory.NewApplier(st, merger, clock)
	if cfg.Directory.LookupBatch > 0 {
		applier.LookupBatch = cfg.Directory.LookupBatch
	}
	if cfg.Directory.ConcurrentLookups > 0 {
		applier.ConcurrentLookups = cfg.Directory.ConcurrentLookups
	}

	slog.Debug("app ready", "db", cfg.Database, "listeners", len(merger.Listeners()))
	return &App{
		Config:      cfg,
		Store:       st,
		Local:       local,
		Merger:      merger,
		Blocking:    blocking.NewManager(notifier),
		AuthorMerge: helper,
		Directory:   applier,
		groups:      groups,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}

// RunAuthorMergeRebuild brings group rosters up to date with every learned
// association, if a rebuild is pending.
func (a *App) RunAuthorMergeRebuild(ctx context.Context) error {
	step := cascade.GroupMemberBackfill(a.groups, a.Config.Directory.RebuildBatch)
	return a.AuthorMerge.RunRebuild(ctx, a.Store, a.Config.Directory.RebuildAttempts, step)
}

// LogNotifier stands in for a storage-service backup by logging what would
// be uploaded.
type LogNotifier struct{}

// RecordPendingUpdates logs the changed identifiers.
func (LogNotifier) RecordPendingUpdates(addresses []ids.Address, groupIDs [][]byte) {
	for _, addr := range addresses {
		slog.Info("storage service update pending", "address", addr.String())
	}
	for _, g := range groupIDs {
		slog.Info("storage service update pending", "group_id", fmt.Sprintf("%x", g))
	}
}
