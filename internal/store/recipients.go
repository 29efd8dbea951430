package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/recon/internal/ids"
)

const recipientColumns = `id, unique_id, aci, phone_number, pni, device_ids, unregistered_at`

// RecipientByAci returns the row holding aci, or nil if none does.
func (r *ReadTx) RecipientByAci(ctx context.Context, aci ids.Aci) (*Recipient, error) {
	return r.fetchRecipient(ctx, "aci", string(aci))
}

// RecipientByPhone returns the row holding phone, or nil if none does.
func (r *ReadTx) RecipientByPhone(ctx context.Context, phone ids.E164) (*Recipient, error) {
	return r.fetchRecipient(ctx, "phone_number", string(phone))
}

// RecipientByPni returns the row holding pni, or nil if none does.
func (r *ReadTx) RecipientByPni(ctx context.Context, pni ids.Pni) (*Recipient, error) {
	return r.fetchRecipient(ctx, "pni", string(pni))
}

// RecipientByID returns the row with the given row id, or nil.
func (r *ReadTx) RecipientByID(ctx context.Context, id int64) (*Recipient, error) {
	row := r.queryRow(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE id = ?`, id)
	rec, err := scanRecipient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch recipient by id: %w", err)
	}
	return &rec, nil
}

// RecipientForAddress returns the row matching the address: by aci first,
// then by phone number.
func (r *ReadTx) RecipientForAddress(ctx context.Context, addr ids.Address) (*Recipient, error) {
	if aci, ok := addr.Aci(); ok {
		rec, err := r.RecipientByAci(ctx, aci)
		if err != nil || rec != nil {
			return rec, err
		}
	}
	if phone, ok := addr.Phone(); ok {
		return r.RecipientByPhone(ctx, phone)
	}
	return nil, nil
}

// column is always a constant from this file.
func (r *ReadTx) fetchRecipient(ctx context.Context, column, value string) (*Recipient, error) {
	row := r.queryRow(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE `+column+` = ?`, value)
	rec, err := scanRecipient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch recipient by %s: %w", column, err)
	}
	return &rec, nil
}

// AllRecipients returns every recipient ordered by row id.
// Returns an empty slice (not nil) if the table is empty.
func (r *ReadTx) AllRecipients(ctx context.Context) ([]Recipient, error) {
	rows, err := r.query(ctx, `SELECT `+recipientColumns+` FROM recipients ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query recipients: %w", err)
	}
	defer rows.Close()

	recipients := []Recipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return recipients, nil
}

// RecipientsAfter returns up to limit rows with an id greater than afterID,
// ordered by id. Used for resumable batch walks.
func (r *ReadTx) RecipientsAfter(ctx context.Context, afterID int64, limit int) ([]Recipient, error) {
	rows, err := r.query(ctx, `
		SELECT `+recipientColumns+` FROM recipients
		WHERE id > ?
		ORDER BY id ASC
		LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recipients after %d: %w", afterID, err)
	}
	defer rows.Close()

	recipients := []Recipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return recipients, nil
}

// InsertRecipient inserts rec and fills in its ID (and UniqueID if empty).
func (w *WriteTx) InsertRecipient(ctx context.Context, rec *Recipient) error {
	if rec.UniqueID == "" {
		rec.UniqueID = uuid.Must(uuid.NewV7()).String()
	}
	if rec.DeviceIDs == nil {
		rec.DeviceIDs = []uint32{}
	}
	devices, err := marshalDeviceIDs(rec.DeviceIDs)
	if err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}

	result, err := w.exec(ctx, `
		INSERT INTO recipients (unique_id, aci, phone_number, pni, device_ids, unregistered_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.UniqueID,
		nullAci(rec.Aci),
		nullE164(rec.Phone),
		nullPni(rec.Pni),
		devices,
		nullTime(rec.UnregisteredAt),
	)
	if err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}

	rec.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert recipient: last insert id: %w", err)
	}
	return nil
}

// UpdateRecipient writes every mutable column of rec back to its row.
func (w *WriteTx) UpdateRecipient(ctx context.Context, rec Recipient) error {
	devices, err := marshalDeviceIDs(rec.DeviceIDs)
	if err != nil {
		return fmt.Errorf("update recipient: %w", err)
	}

	result, err := w.exec(ctx, `
		UPDATE recipients
		SET aci = ?, phone_number = ?, pni = ?, device_ids = ?, unregistered_at = ?
		WHERE id = ?
	`,
		nullAci(rec.Aci),
		nullE164(rec.Phone),
		nullPni(rec.Pni),
		devices,
		nullTime(rec.UnregisteredAt),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update recipient %d: %w", rec.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recipient %d: rows affected: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update recipient %d: %w", rec.ID, sql.ErrNoRows)
	}
	return nil
}

// DeleteRecipient removes the row with the given id.
func (w *WriteTx) DeleteRecipient(ctx context.Context, id int64) error {
	if _, err := w.exec(ctx, `DELETE FROM recipients WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete recipient %d: %w", id, err)
	}
	return nil
}

func scanRecipient(s scanner) (Recipient, error) {
	var rec Recipient
	var aci, phone, pni sql.NullString
	var devices string
	var unregisteredAt sql.NullInt64

	if err := s.Scan(&rec.ID, &rec.UniqueID, &aci, &phone, &pni, &devices, &unregisteredAt); err != nil {
		return Recipient{}, err
	}

	rec.Aci = aciFromNull(aci)
	rec.Phone = e164FromNull(phone)
	rec.Pni = pniFromNull(pni)
	rec.UnregisteredAt = timeFromNull(unregisteredAt)
	if err := json.Unmarshal([]byte(devices), &rec.DeviceIDs); err != nil {
		return Recipient{}, fmt.Errorf("decode device ids: %w", err)
	}
	return rec, nil
}

func marshalDeviceIDs(deviceIDs []uint32) (string, error) {
	if deviceIDs == nil {
		deviceIDs = []uint32{}
	}
	data, err := json.Marshal(deviceIDs)
	if err != nil {
		return "", fmt.Errorf("encode device ids: %w", err)
	}
	return string(data), nil
}
