package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/recon/internal/ids"
)

const threadColumns = `id, unique_id, contact_aci, contact_phone_number, group_id, should_be_visible, created_at`

// ThreadByUniqueID returns the thread with the given unique id, or nil.
func (r *ReadTx) ThreadByUniqueID(ctx context.Context, uniqueID string) (*Thread, error) {
	row := r.queryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE unique_id = ?`, uniqueID)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", uniqueID, err)
	}
	return &t, nil
}

// GroupThread returns the group thread for groupID, or nil.
func (r *ReadTx) GroupThread(ctx context.Context, groupID []byte) (*Thread, error) {
	row := r.queryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE group_id = ?`, groupID)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch group thread: %w", err)
	}
	return &t, nil
}

// ContactThreadsByAci returns contact threads keyed by aci, oldest first.
func (r *ReadTx) ContactThreadsByAci(ctx context.Context, aci ids.Aci) ([]Thread, error) {
	return r.queryThreads(ctx, `
		SELECT `+threadColumns+` FROM threads
		WHERE group_id IS NULL AND contact_aci = ?
		ORDER BY id ASC
	`, string(aci))
}

// ContactThreadsByPhone returns contact threads keyed by phone, oldest first.
func (r *ReadTx) ContactThreadsByPhone(ctx context.Context, phone ids.E164) ([]Thread, error) {
	return r.queryThreads(ctx, `
		SELECT `+threadColumns+` FROM threads
		WHERE group_id IS NULL AND contact_phone_number = ?
		ORDER BY id ASC
	`, string(phone))
}

// AllThreads returns every thread ordered by row id.
func (r *ReadTx) AllThreads(ctx context.Context) ([]Thread, error) {
	return r.queryThreads(ctx, `SELECT `+threadColumns+` FROM threads ORDER BY id ASC`)
}

func (r *ReadTx) queryThreads(ctx context.Context, query string, args ...any) ([]Thread, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	threads := []Thread{}
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return threads, nil
}

// InsertThread inserts t and fills in its ID (and UniqueID if empty).
// A zero CreatedAt is replaced with the current time.
func (w *WriteTx) InsertThread(ctx context.Context, t *Thread) error {
	if t.UniqueID == "" {
		t.UniqueID = uuid.Must(uuid.NewV7()).String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	result, err := w.exec(ctx, `
		INSERT INTO threads (unique_id, contact_aci, contact_phone_number, group_id, should_be_visible, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		t.UniqueID,
		nullAci(t.ContactAci),
		nullE164(t.ContactPhone),
		blobOrNull(t.GroupID),
		boolToInt(t.ShouldBeVisible),
		t.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}

	t.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert thread: last insert id: %w", err)
	}
	return nil
}

// UpdateThread writes the identity and visibility of t back to its row.
func (w *WriteTx) UpdateThread(ctx context.Context, t Thread) error {
	_, err := w.exec(ctx, `
		UPDATE threads
		SET contact_aci = ?, contact_phone_number = ?, should_be_visible = ?
		WHERE unique_id = ?
	`,
		nullAci(t.ContactAci),
		nullE164(t.ContactPhone),
		boolToInt(t.ShouldBeVisible),
		t.UniqueID,
	)
	if err != nil {
		return fmt.Errorf("update thread %s: %w", t.UniqueID, err)
	}
	return nil
}

// RemoveThread deletes a thread together with every per-thread row keyed by
// it: associated data, disappearing-message configuration, reply info and
// its pinned slot. Interactions must be moved or deleted by the caller.
func (w *WriteTx) RemoveThread(ctx context.Context, uniqueID string) error {
	statements := []string{
		`DELETE FROM thread_associated_data WHERE thread_unique_id = ?`,
		`DELETE FROM disappearing_messages_configurations WHERE thread_unique_id = ?`,
		`DELETE FROM threads WHERE unique_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := w.exec(ctx, stmt, uniqueID); err != nil {
			return fmt.Errorf("remove thread %s: %w", uniqueID, err)
		}
	}

	if err := w.RemoveThreadReplyInfo(ctx, uniqueID); err != nil {
		return fmt.Errorf("remove thread %s: %w", uniqueID, err)
	}

	pinned, err := w.PinnedThreadIDs(ctx)
	if err != nil {
		return fmt.Errorf("remove thread %s: %w", uniqueID, err)
	}
	kept := pinned[:0]
	for _, id := range pinned {
		if id != uniqueID {
			kept = append(kept, id)
		}
	}
	if len(kept) != len(pinned) {
		if err := w.SetPinnedThreadIDs(ctx, kept); err != nil {
			return fmt.Errorf("remove thread %s: %w", uniqueID, err)
		}
	}
	return nil
}

func scanThread(s scanner) (Thread, error) {
	var t Thread
	var aci, phone sql.NullString
	var visible int
	var createdAt int64

	if err := s.Scan(&t.ID, &t.UniqueID, &aci, &phone, &t.GroupID, &visible, &createdAt); err != nil {
		return Thread{}, err
	}
	t.ContactAci = aciFromNull(aci)
	t.ContactPhone = e164FromNull(phone)
	t.ShouldBeVisible = visible != 0
	t.CreatedAt = time.UnixMilli(createdAt)
	return t, nil
}
