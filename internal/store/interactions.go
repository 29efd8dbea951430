package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertInteraction inserts i and fills in its ID (and UniqueID if empty).
func (w *WriteTx) InsertInteraction(ctx context.Context, i *Interaction) error {
	if i.UniqueID == "" {
		i.UniqueID = uuid.Must(uuid.NewV7()).String()
	}
	result, err := w.exec(ctx, `
		INSERT INTO interactions (unique_id, thread_unique_id, kind, body, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, i.UniqueID, i.ThreadUniqueID, string(i.Kind), i.Body, i.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	i.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert interaction: last insert id: %w", err)
	}
	return nil
}

// InteractionsForThread returns a thread's interactions in insertion order.
func (r *ReadTx) InteractionsForThread(ctx context.Context, threadUniqueID string) ([]Interaction, error) {
	rows, err := r.query(ctx, `
		SELECT id, unique_id, thread_unique_id, kind, body, timestamp
		FROM interactions WHERE thread_unique_id = ?
		ORDER BY id ASC
	`, threadUniqueID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	interactions := []Interaction{}
	for rows.Next() {
		var i Interaction
		var kind string
		var ts int64
		if err := rows.Scan(&i.ID, &i.UniqueID, &i.ThreadUniqueID, &kind, &i.Body, &ts); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		i.Kind = InteractionKind(kind)
		i.Timestamp = time.UnixMilli(ts)
		interactions = append(interactions, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return interactions, nil
}

// MoveInteractions reassigns every interaction of one thread to another.
// Returns the number of interactions moved.
func (w *WriteTx) MoveInteractions(ctx context.Context, fromThreadID, intoThreadID string) (int64, error) {
	result, err := w.exec(ctx, `
		UPDATE interactions SET thread_unique_id = ? WHERE thread_unique_id = ?
	`, intoThreadID, fromThreadID)
	if err != nil {
		return 0, fmt.Errorf("move interactions %s -> %s: %w", fromThreadID, intoThreadID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("move interactions: rows affected: %w", err)
	}
	return n, nil
}
