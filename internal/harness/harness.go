package harness

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/roach88/recon/internal/app"
	"github.com/roach88/recon/internal/config"
	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/recipient"
	"github.com/roach88/recon/internal/store"
	"github.com/roach88/recon/internal/testutil"
)

// Harness executes one scenario against a fresh in-memory store.
type Harness struct {
	app     *app.App
	aliases *aliases
	clock   *testutil.DeterministicClock
	result  *Result
	step    int
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh in-memory store wired like the production app
//  2. Insert the setup rows directly, without listeners
//  3. Feed each step through the merger in its own transaction
//  4. Capture the final state and evaluate assertions
//
// Setup failures are returned as errors; step failures and assertion
// failures are recorded on the result.
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		aliases: newAliases(),
		clock:   testutil.NewDeterministicClock(),
		result:  NewResult(),
	}

	cfg := config.Default()
	cfg.Database = ":memory:"
	if scenario.Local != nil {
		aci, phone, pni, err := h.aliases.identity(*scenario.Local)
		if err != nil {
			return nil, fmt.Errorf("local identity: %w", err)
		}
		if aci != nil {
			cfg.Local.Aci = aci.String()
		}
		if phone != nil {
			cfg.Local.Phone = phone.String()
		}
		if pni != nil {
			cfg.Local.Pni = pni.String()
		}
	}

	a, err := app.Open(app.Options{
		Config:    cfg,
		Clock:     h.clock,
		Listeners: []recipient.Listener{recipient.ListenerFunc(h.record)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer a.Close()
	h.app = a

	ctx := context.Background()
	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	for i, step := range scenario.Steps {
		h.step = i + 1
		if err := h.executeStep(ctx, step); err != nil {
			h.result.AddError(fmt.Sprintf("step %d: %v", h.step, err))
		}
	}

	if err := h.capture(ctx); err != nil {
		return nil, fmt.Errorf("failed to capture final state: %w", err)
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// record is the trace listener. It runs after every cascade listener.
func (h *Harness) record(_ context.Context, _ *store.WriteTx, m recipient.MergedRecipient) error {
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Step:     h.step,
		Aci:      h.aliases.aciName(&m.Aci),
		OldPhone: h.aliases.phoneName(m.OldPhone),
		NewPhone: h.aliases.phoneName(m.NewPhone),
		Created:  m.OldRecipient == nil,
		Local:    m.IsLocalRecipient,
	})
	return nil
}

func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	return h.app.Store.Write(ctx, func(tx *store.WriteTx) error {
		for i, id := range setup.Recipients {
			aci, phone, pni, err := h.aliases.identity(id)
			if err != nil {
				return fmt.Errorf("recipient %d: %w", i, err)
			}
			if aci == nil && phone == nil {
				return fmt.Errorf("recipient %d: aci or phone is required", i)
			}
			rec := store.Recipient{Aci: aci, Phone: phone, Pni: pni}
			if err := tx.InsertRecipient(ctx, &rec); err != nil {
				return fmt.Errorf("recipient %d: %w", i, err)
			}
		}

		for i, ts := range setup.Threads {
			if err := h.insertThread(ctx, tx, ts); err != nil {
				return fmt.Errorf("thread %d: %w", i, err)
			}
		}
		return nil
	})
}

func (h *Harness) insertThread(ctx context.Context, tx *store.WriteTx, ts ThreadSetup) error {
	th := store.Thread{ShouldBeVisible: ts.Visible, CreatedAt: h.clock.Now()}
	if ts.Group != "" {
		groupID, err := hex.DecodeString(ts.Group)
		if err != nil || len(groupID) == 0 {
			return fmt.Errorf("invalid group id %q", ts.Group)
		}
		th.GroupID = groupID
	} else {
		aci, phone, _, err := h.aliases.identity(Identity{Aci: ts.Aci, Phone: ts.Phone})
		if err != nil {
			return err
		}
		if aci == nil && phone == nil {
			return fmt.Errorf("contact thread needs aci or phone")
		}
		th.ContactAci, th.ContactPhone = aci, phone
	}
	if err := tx.InsertThread(ctx, &th); err != nil {
		return err
	}

	for j, m := range ts.Members {
		aci, phone, _, err := h.aliases.identity(m)
		if err != nil {
			return fmt.Errorf("member %d: %w", j, err)
		}
		member := store.GroupMember{GroupThreadID: th.UniqueID, Aci: aci, Phone: phone}
		if err := tx.InsertGroupMember(ctx, &member); err != nil {
			return fmt.Errorf("member %d: %w", j, err)
		}
	}

	for j := 0; j < ts.Messages; j++ {
		msg := store.Interaction{
			ThreadUniqueID: th.UniqueID,
			Kind:           store.InteractionMessage,
			Body:           fmt.Sprintf("message %d", j+1),
			Timestamp:      h.clock.Now(),
		}
		if err := tx.InsertInteraction(ctx, &msg); err != nil {
			return fmt.Errorf("message %d: %w", j, err)
		}
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	trust := ids.TrustHigh
	if step.Trust == "low" {
		trust = ids.TrustLow
	}

	return h.app.Store.Write(ctx, func(tx *store.WriteTx) error {
		if step.Pni != "" {
			phone, err := h.aliases.phone(step.Phone)
			if err != nil {
				return err
			}
			pni, err := h.aliases.pni(step.Pni)
			if err != nil {
				return err
			}
			_, err = h.app.Merger.AssociatePni(ctx, tx, phone, pni)
			return err
		}

		aci, phone, _, err := h.aliases.identity(Identity{Aci: step.Aci, Phone: step.Phone})
		if err != nil {
			return err
		}
		addr, err := ids.NewAddress(aci, phone)
		if err != nil {
			return err
		}
		_, err = h.app.Merger.Merge(ctx, tx, trust, addr)
		return err
	})
}

// capture renders the final state in alias form.
func (h *Harness) capture(ctx context.Context) error {
	final := Snapshot{Recipients: []string{}, Threads: []string{}, Interactions: []string{}}
	err := h.app.Store.Read(ctx, func(tx *store.ReadTx) error {
		recipients, err := tx.AllRecipients(ctx)
		if err != nil {
			return err
		}
		for _, r := range recipients {
			line := h.aliases.pair(r.Aci, r.Phone)
			if r.Pni != nil {
				line += " " + h.aliases.name(string(*r.Pni))
			}
			final.Recipients = append(final.Recipients, line)
		}

		threads, err := tx.AllThreads(ctx)
		if err != nil {
			return err
		}
		for _, th := range threads {
			final.Threads = append(final.Threads, h.threadLabel(th))

			interactions, err := tx.InteractionsForThread(ctx, th.UniqueID)
			if err != nil {
				return err
			}
			for _, in := range interactions {
				final.Interactions = append(final.Interactions,
					fmt.Sprintf("%s: %s: %s", h.threadLabel(th), in.Kind, h.aliases.replace(in.Body)))
			}

			if th.IsGroup() {
				members, err := tx.GroupMembers(ctx, th.UniqueID)
				if err != nil {
					return err
				}
				pairs := make([]string, 0, len(members))
				for _, m := range members {
					pairs = append(pairs, h.aliases.pair(m.Aci, m.Phone))
				}
				sort.Strings(pairs)
				h.result.members[hex.EncodeToString(th.GroupID)] = pairs
			}
		}
		return nil
	})
	h.result.Final = final
	return err
}

func (h *Harness) threadLabel(th store.Thread) string {
	label := "contact " + h.aliases.pair(th.ContactAci, th.ContactPhone)
	if th.IsGroup() {
		label = "group " + hex.EncodeToString(th.GroupID)
	}
	if !th.ShouldBeVisible {
		label += " hidden"
	}
	return label
}
