package cli

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recon/internal/app"
	"github.com/roach88/recon/internal/blocking"
	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/store"
)

// BlockOptions holds flags shared by block and unblock.
type BlockOptions struct {
	*RootOptions
	Aci   string
	Phone string
	Group string
	Title string
}

// BlockResult reports a block or unblock.
type BlockResult struct {
	Target  string `json:"target"`
	Blocked bool   `json:"blocked"`
	Changed bool   `json:"changed"`
}

// RenderText writes a one-line summary.
func (r BlockResult) RenderText(w io.Writer) error {
	verb := "unblocked"
	if r.Blocked {
		verb = "blocked"
	}
	if !r.Changed {
		_, err := fmt.Fprintf(w, "%s already %s\n", r.Target, verb)
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s\n", verb, r.Target)
	return err
}

// NewBlockCommand creates the block command.
func NewBlockCommand(rootOpts *RootOptions) *cobra.Command {
	return newBlockCommand(rootOpts, true)
}

// NewUnblockCommand creates the unblock command.
func NewUnblockCommand(rootOpts *RootOptions) *cobra.Command {
	return newBlockCommand(rootOpts, false)
}

func newBlockCommand(rootOpts *RootOptions, block bool) *cobra.Command {
	opts := &BlockOptions{RootOptions: rootOpts}
	use, short := "unblock", "Unblock a contact or group"
	if block {
		use, short = "block", "Block a contact or group"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: fmt.Sprintf(`%s.

Pass --aci and/or --phone for a contact, or --group with a hex group id.

Example:
  recon %s --db ./recon.db --phone +16505550001
  recon %s --db ./recon.db --group 0a1b2c`, short, use, use),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlock(opts, cmd, block)
		},
	}

	cmd.Flags().StringVar(&opts.Aci, "aci", "", "account identifier (UUID)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number in E.164")
	cmd.Flags().StringVar(&opts.Group, "group", "", "group id (hex)")
	if block {
		cmd.Flags().StringVar(&opts.Title, "title", "", "group title to remember")
	}
	return cmd
}

func runBlock(opts *BlockOptions, cmd *cobra.Command, block bool) error {
	var (
		addr    ids.Address
		groupID []byte
		target  string
		err     error
	)
	switch {
	case opts.Group != "" && (opts.Aci != "" || opts.Phone != ""):
		return NewExitError(ExitCommandError, "--group cannot be combined with --aci or --phone")
	case opts.Group != "":
		groupID, err = hex.DecodeString(opts.Group)
		if err != nil || len(groupID) == 0 {
			return WrapExitError(ExitCommandError, "invalid --group", err)
		}
		target = "group " + opts.Group
	default:
		addr, err = ids.ParseAddress(opts.Aci, opts.Phone)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid address", err)
		}
		target = addr.String()
	}

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	var changed bool
	err = a.Store.Write(ctx, func(tx *store.WriteTx) error {
		var err error
		switch {
		case groupID != nil && block:
			changed, err = a.Blocking.AddBlockedGroup(ctx, tx, groupID, blocking.GroupRecord{Title: opts.Title}, true)
		case groupID != nil:
			changed, err = a.Blocking.RemoveBlockedGroup(ctx, tx, groupID, true)
		case block:
			changed, err = a.Blocking.AddBlockedAddress(ctx, tx, addr, true)
		default:
			changed, err = a.Blocking.RemoveBlockedAddress(ctx, tx, addr, true)
		}
		return err
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to update blocked list", err)
	}
	return formatterFor(cmd, opts.RootOptions).Success(BlockResult{Target: target, Blocked: block, Changed: changed})
}

// BlockedList is the output of the blocked command.
type BlockedList struct {
	Acis        []string `json:"acis"`
	Phones      []string `json:"phones"`
	Groups      []string `json:"groups"`
	ChangeToken uint64   `json:"change_token"`
	NeedsSync   bool     `json:"needs_sync"`
}

// RenderText writes one line per entry and a status footer.
func (l BlockedList) RenderText(w io.Writer) error {
	for _, a := range l.Acis {
		fmt.Fprintf(w, "aci %s\n", a)
	}
	for _, p := range l.Phones {
		fmt.Fprintf(w, "phone %s\n", p)
	}
	for _, g := range l.Groups {
		fmt.Fprintf(w, "group %s\n", g)
	}
	sync := "in sync"
	if l.NeedsSync {
		sync = "needs sync"
	}
	_, err := fmt.Fprintf(w, "change token %d, %s\n", l.ChangeToken, sync)
	return err
}

// NewBlockedCommand creates the blocked command.
func NewBlockedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "blocked",
		Short: "List blocked contacts and groups",
		Long: `List the blocked ACIs, phone numbers and groups with the current
change token and whether linked devices still need to be told.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocked(rootOpts, cmd)
		},
	}
}

func runBlocked(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(a)

	list, err := blockedList(cmd, a)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read blocked list", err)
	}
	return formatterFor(cmd, opts).Success(list)
}

func blockedList(cmd *cobra.Command, a *app.App) (BlockedList, error) {
	ctx := commandContext(cmd)
	list := BlockedList{Acis: []string{}, Phones: []string{}, Groups: []string{}}
	err := a.Store.Read(ctx, func(tx *store.ReadTx) error {
		state, err := a.Blocking.State(ctx, tx)
		if err != nil {
			return err
		}
		if list.NeedsSync, err = a.Blocking.NeedsSync(ctx, tx); err != nil {
			return err
		}
		for _, aci := range state.Acis() {
			list.Acis = append(list.Acis, aci.String())
		}
		for _, p := range state.Phones() {
			list.Phones = append(list.Phones, p.String())
		}
		for _, g := range state.GroupIDs() {
			list.Groups = append(list.Groups, hex.EncodeToString(g))
		}
		list.ChangeToken = state.ChangeToken()
		return nil
	})
	return list, err
}

// SyncBlockedOptions holds flags for the sync-blocked command.
type SyncBlockedOptions struct {
	*RootOptions
	Incoming string
}

// SyncResult reports a sync-blocked run.
type SyncResult struct {
	Direction   string `json:"direction"` // "incoming" | "outgoing" | "none"
	Changed     bool   `json:"changed"`
	ChangeToken uint64 `json:"change_token"`
	Acis        int    `json:"acis"`
	Phones      int    `json:"phones"`
	Groups      int    `json:"groups"`
}

// RenderText writes a one-line summary.
func (r SyncResult) RenderText(w io.Writer) error {
	var err error
	switch r.Direction {
	case "incoming":
		_, err = fmt.Fprintf(w, "applied incoming sync (changed: %t), change token %d\n", r.Changed, r.ChangeToken)
	case "outgoing":
		_, err = fmt.Fprintf(w, "sent %d acis, %d phones, %d groups at change token %d\n", r.Acis, r.Phones, r.Groups, r.ChangeToken)
	default:
		_, err = fmt.Fprintf(w, "blocked list already in sync at change token %d\n", r.ChangeToken)
	}
	return err
}

// incomingSync is the YAML shape of a blocked-list sync from a linked device.
type incomingSync struct {
	Acis   []string `yaml:"acis"`
	Phones []string `yaml:"phones"`
	Groups []string `yaml:"groups"`
}

// NewSyncBlockedCommand creates the sync-blocked command.
func NewSyncBlockedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncBlockedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync-blocked",
		Short: "Exchange the blocked list with linked devices",
		Long: `Without flags, send the blocked list if it changed since the last
sync and record it as sent. With --incoming, replace the blocked list with
the one a linked device sent (YAML with acis, phones and hex groups).

Example:
  recon sync-blocked --db ./recon.db
  recon sync-blocked --db ./recon.db --incoming ./from-desktop.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncBlocked(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Incoming, "incoming", "", "apply an incoming sync from this YAML file")
	return cmd
}

func runSyncBlocked(opts *SyncBlockedOptions, cmd *cobra.Command) error {
	var incoming *incomingSync
	if opts.Incoming != "" {
		parsed, err := loadIncomingSync(opts.Incoming)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load incoming sync", err)
		}
		incoming = parsed
	}

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	var result SyncResult
	err = a.Store.Write(ctx, func(tx *store.WriteTx) error {
		if incoming != nil {
			acis, phones, groups, err := incoming.parse()
			if err != nil {
				return err
			}
			changed, err := a.Blocking.ProcessIncomingSync(ctx, tx, acis, phones, groups)
			if err != nil {
				return err
			}
			state, err := a.Blocking.State(ctx, tx.Reader())
			if err != nil {
				return err
			}
			result = SyncResult{Direction: "incoming", Changed: changed, ChangeToken: state.ChangeToken()}
			return nil
		}

		needs, err := a.Blocking.NeedsSync(ctx, tx.Reader())
		if err != nil {
			return err
		}
		snap, err := a.Blocking.Snapshot(ctx, tx)
		if err != nil {
			return err
		}
		if !needs {
			result = SyncResult{Direction: "none", ChangeToken: snap.ChangeToken}
			return nil
		}
		if err := a.Blocking.DidSendSync(ctx, tx, snap.ChangeToken); err != nil {
			return err
		}
		result = SyncResult{
			Direction:   "outgoing",
			ChangeToken: snap.ChangeToken,
			Acis:        len(snap.Acis),
			Phones:      len(snap.Phones),
			Groups:      len(snap.GroupIDs),
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitFailure, "blocked list sync failed", err)
	}
	return formatterFor(cmd, opts.RootOptions).Success(result)
}

func loadIncomingSync(path string) (*incomingSync, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync file: %w", err)
	}
	var in incomingSync
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &in, nil
}

func (in *incomingSync) parse() ([]ids.Aci, []ids.E164, [][]byte, error) {
	acis := make([]ids.Aci, 0, len(in.Acis))
	for _, s := range in.Acis {
		aci, err := ids.ParseAci(s)
		if err != nil {
			return nil, nil, nil, err
		}
		acis = append(acis, aci)
	}
	phones := make([]ids.E164, 0, len(in.Phones))
	for _, s := range in.Phones {
		p, err := ids.ParseE164(s)
		if err != nil {
			return nil, nil, nil, err
		}
		phones = append(phones, p)
	}
	groups := make([][]byte, 0, len(in.Groups))
	for _, s := range in.Groups {
		g, err := hex.DecodeString(s)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid group id %q: %w", s, err)
		}
		groups = append(groups, g)
	}
	return acis, phones, groups, nil
}
