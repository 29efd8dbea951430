package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recon/internal/store"
)

// RecipientView is the CLI rendering of one recipient row.
type RecipientView struct {
	ID         int64    `json:"id"`
	Aci        string   `json:"aci,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Pni        string   `json:"pni,omitempty"`
	DeviceIDs  []uint32 `json:"device_ids"`
	Registered bool     `json:"registered"`
}

func newRecipientView(r store.Recipient) RecipientView {
	v := RecipientView{ID: r.ID, DeviceIDs: r.DeviceIDs, Registered: r.IsRegistered()}
	if r.Aci != nil {
		v.Aci = r.Aci.String()
	}
	if r.Phone != nil {
		v.Phone = r.Phone.String()
	}
	if r.Pni != nil {
		v.Pni = r.Pni.String()
	}
	if v.DeviceIDs == nil {
		v.DeviceIDs = []uint32{}
	}
	return v
}

// RenderText writes the row on one line.
func (v RecipientView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintln(w, v.line())
	return err
}

func (v RecipientView) line() string {
	devices := make([]string, 0, len(v.DeviceIDs))
	for _, d := range v.DeviceIDs {
		devices = append(devices, strconv.FormatUint(uint64(d), 10))
	}
	state := "registered"
	if !v.Registered {
		state = "unregistered"
	}
	return fmt.Sprintf("%d aci=%s phone=%s pni=%s devices=%s %s",
		v.ID, orDash(v.Aci), orDash(v.Phone), orDash(v.Pni), orDash(strings.Join(devices, ",")), state)
}

// RecipientList renders the full table.
type RecipientList struct {
	Recipients []RecipientView `json:"recipients"`
}

// RenderText writes one line per row followed by a count.
func (l RecipientList) RenderText(w io.Writer) error {
	for _, v := range l.Recipients {
		if _, err := fmt.Fprintln(w, v.line()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d recipients\n", len(l.Recipients))
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// NewRecipientsCommand creates the recipients command.
func NewRecipientsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipients",
		Short: "List recipient rows",
		Long: `List every recipient row in row order.

Example:
  recon recipients --db ./recon.db
  recon recipients --db ./recon.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipients(rootOpts, cmd)
		},
	}
	return cmd
}

func runRecipients(opts *RootOptions, cmd *cobra.Command) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	var rows []store.Recipient
	if err := a.Store.Read(ctx, func(tx *store.ReadTx) error {
		var err error
		rows, err = tx.AllRecipients(ctx)
		return err
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to list recipients", err)
	}

	list := RecipientList{Recipients: make([]RecipientView, 0, len(rows))}
	for _, r := range rows {
		list.Recipients = append(list.Recipients, newRecipientView(r))
	}
	return formatterFor(cmd, opts).Success(list)
}
