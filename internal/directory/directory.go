package directory

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/recon/internal/cascade"
	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
)

// Result is one directory answer: phone is registered to aci.
type Result struct {
	Aci   ids.Aci
	Phone ids.E164
	Trust ids.Trust
}

// Lookup resolves phone numbers to accounts. Phones without an account are
// omitted from the returned results.
type Lookup interface {
	Lookup(ctx context.Context, phones []ids.E164) ([]Result, error)
}

// Failure pairs a result with the error that stopped it.
type Failure struct {
	Result Result
	Err    error
}

// Report summarizes an Apply or Refresh run.
type Report struct {
	Applied      int
	Unregistered int
	Failures     []Failure
}

// Lookup batching defaults.
const (
	DefaultLookupBatch       = 500
	DefaultConcurrentLookups = 4
)

// Applier feeds directory answers through the merger.
type Applier struct {
	// LookupBatch is the number of phones per Lookup call in Refresh.
	LookupBatch int
	// ConcurrentLookups bounds the Lookup calls in flight.
	ConcurrentLookups int

	st     *store.Store
	merger *recipient.Merger
	clock  cascade.Clock
}

// NewApplier creates an Applier. A nil clock uses the system clock.
func NewApplier(st *store.Store, merger *recipient.Merger, clock cascade.Clock) *Applier {
	if clock == nil {
		clock = cascade.SystemClock{}
	}
	return &Applier{
		LookupBatch:       DefaultLookupBatch,
		ConcurrentLookups: DefaultConcurrentLookups,
		st:                st,
		merger:            merger,
		clock:             clock,
	}
}

// Apply merges every result in its own transaction and marks the account's
// primary device registered. Failures are logged and collected; the
// remaining results still apply. Context cancellation stops the run.
func (a *Applier) Apply(ctx context.Context, results []Result) (Report, error) {
	var report Report
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := a.st.Write(ctx, func(tx *store.WriteTx) error {
			rec, err := a.merger.Merge(ctx, tx, res.Trust, ids.BothAddress(res.Aci, res.Phone))
			if err != nil {
				return err
			}
			_, err = recipient.MarkRegistered(ctx, tx, rec, recipient.PrimaryDeviceID)
			return err
		})
		if err != nil {
			slog.Warn("directory result not applied",
				"aci", res.Aci,
				"phone", res.Phone,
				"error", err,
			)
			report.Failures = append(report.Failures, Failure{Result: res, Err: err})
			continue
		}
		report.Applied++
	}
	slog.Info("applied directory results", "applied", report.Applied, "failed", len(report.Failures))
	return report, nil
}

// Refresh looks up phones and applies the answers. Phones the directory no
// longer knows are marked unregistered on the row that holds them.
func (a *Applier) Refresh(ctx context.Context, lookup Lookup, phones []ids.E164) (Report, error) {
	results, err := a.lookupBatched(ctx, lookup, phones)
	if err != nil {
		return Report{}, fmt.Errorf("directory lookup: %w", err)
	}

	report, err := a.Apply(ctx, results)
	if err != nil {
		return report, err
	}

	found := make(map[ids.E164]struct{}, len(results))
	for _, res := range results {
		found[res.Phone] = struct{}{}
	}
	for _, phone := range phones {
		if _, ok := found[phone]; ok {
			continue
		}
		var marked bool
		err := a.st.Write(ctx, func(tx *store.WriteTx) error {
			rec, err := tx.Reader().RecipientByPhone(ctx, phone)
			if err != nil || rec == nil || !rec.IsRegistered() {
				return err
			}
			if _, err := recipient.MarkUnregistered(ctx, tx, *rec, a.clock.Now()); err != nil {
				return err
			}
			marked = true
			return nil
		})
		if err != nil {
			return report, fmt.Errorf("mark %s unregistered: %w", phone, err)
		}
		if marked {
			report.Unregistered++
		}
	}
	return report, nil
}

// lookupBatched splits phones into batches looked up concurrently. Results
// keep batch order so Apply sees them in the order phones were given.
func (a *Applier) lookupBatched(ctx context.Context, lookup Lookup, phones []ids.E164) ([]Result, error) {
	size := a.LookupBatch
	if size <= 0 {
		size = DefaultLookupBatch
	}
	var batches [][]ids.E164
	for start := 0; start < len(phones); start += size {
		batches = append(batches, phones[start:min(start+size, len(phones))])
	}

	answers := make([][]Result, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	if a.ConcurrentLookups > 0 {
		g.SetLimit(a.ConcurrentLookups)
	}
	for i, batch := range batches {
		g.Go(func() error {
			res, err := lookup.Lookup(gctx, batch)
			if err != nil {
				return err
			}
			answers[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Result
	for _, res := range answers {
		out = append(out, res...)
	}
	slog.Debug("directory lookup done", "phones", len(phones), "batches", len(batches), "found", len(out))
	return out, nil
}

// StaticLookup answers from a fixed result set, as loaded by LoadResults.
type StaticLookup []Result

// Lookup returns the results whose phone was asked for.
func (s StaticLookup) Lookup(_ context.Context, phones []ids.E164) ([]Result, error) {
	wanted := make(map[ids.E164]struct{}, len(phones))
	for _, p := range phones {
		wanted[p] = struct{}{}
	}
	var out []Result
	for _, res := range s {
		if _, ok := wanted[res.Phone]; ok {
			out = append(out, res)
		}
	}
	return out, nil
}
