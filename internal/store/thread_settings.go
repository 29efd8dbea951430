package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ThreadAssociatedData returns the stored settings for a thread, or nil if
// the thread never had any set.
func (r *ReadTx) ThreadAssociatedData(ctx context.Context, threadUniqueID string) (*ThreadAssociatedData, error) {
	row := r.queryRow(ctx, `
		SELECT thread_unique_id, is_archived, is_marked_unread, muted_until, audio_playback_rate
		FROM thread_associated_data WHERE thread_unique_id = ?
	`, threadUniqueID)

	var d ThreadAssociatedData
	var archived, unread int
	var mutedUntil int64
	err := row.Scan(&d.ThreadUniqueID, &archived, &unread, &mutedUntil, &d.AudioPlaybackRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch thread associated data %s: %w", threadUniqueID, err)
	}
	d.IsArchived = archived != 0
	d.IsMarkedUnread = unread != 0
	d.MutedUntil = uint64(mutedUntil)
	return &d, nil
}

// ThreadAssociatedDataOrDefault returns the stored settings or the defaults.
func (r *ReadTx) ThreadAssociatedDataOrDefault(ctx context.Context, threadUniqueID string) (ThreadAssociatedData, error) {
	d, err := r.ThreadAssociatedData(ctx, threadUniqueID)
	if err != nil {
		return ThreadAssociatedData{}, err
	}
	if d == nil {
		return DefaultThreadAssociatedData(threadUniqueID), nil
	}
	return *d, nil
}

// UpsertThreadAssociatedData writes d, replacing any existing row.
func (w *WriteTx) UpsertThreadAssociatedData(ctx context.Context, d ThreadAssociatedData) error {
	_, err := w.exec(ctx, `
		INSERT INTO thread_associated_data
		(thread_unique_id, is_archived, is_marked_unread, muted_until, audio_playback_rate)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(thread_unique_id) DO UPDATE SET
			is_archived = excluded.is_archived,
			is_marked_unread = excluded.is_marked_unread,
			muted_until = excluded.muted_until,
			audio_playback_rate = excluded.audio_playback_rate
	`,
		d.ThreadUniqueID,
		boolToInt(d.IsArchived),
		boolToInt(d.IsMarkedUnread),
		int64(d.MutedUntil),
		d.AudioPlaybackRate,
	)
	if err != nil {
		return fmt.Errorf("upsert thread associated data %s: %w", d.ThreadUniqueID, err)
	}
	return nil
}

// DisappearingMessagesConfiguration returns the stored timer for a thread,
// or nil if none was ever set.
func (r *ReadTx) DisappearingMessagesConfiguration(ctx context.Context, threadUniqueID string) (*DisappearingMessagesConfiguration, error) {
	row := r.queryRow(ctx, `
		SELECT thread_unique_id, is_enabled, duration_seconds, timer_version
		FROM disappearing_messages_configurations WHERE thread_unique_id = ?
	`, threadUniqueID)

	var c DisappearingMessagesConfiguration
	var enabled int
	err := row.Scan(&c.ThreadUniqueID, &enabled, &c.DurationSeconds, &c.TimerVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch disappearing messages configuration %s: %w", threadUniqueID, err)
	}
	c.Enabled = enabled != 0
	return &c, nil
}

// DisappearingMessagesConfigurationOrDefault returns the stored timer or a
// disabled default.
func (r *ReadTx) DisappearingMessagesConfigurationOrDefault(ctx context.Context, threadUniqueID string) (DisappearingMessagesConfiguration, error) {
	c, err := r.DisappearingMessagesConfiguration(ctx, threadUniqueID)
	if err != nil {
		return DisappearingMessagesConfiguration{}, err
	}
	if c == nil {
		return DefaultDisappearingMessagesConfiguration(threadUniqueID), nil
	}
	return *c, nil
}

// UpsertDisappearingMessagesConfiguration writes c, replacing any existing row.
func (w *WriteTx) UpsertDisappearingMessagesConfiguration(ctx context.Context, c DisappearingMessagesConfiguration) error {
	_, err := w.exec(ctx, `
		INSERT INTO disappearing_messages_configurations
		(thread_unique_id, is_enabled, duration_seconds, timer_version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_unique_id) DO UPDATE SET
			is_enabled = excluded.is_enabled,
			duration_seconds = excluded.duration_seconds,
			timer_version = excluded.timer_version
	`, c.ThreadUniqueID, boolToInt(c.Enabled), c.DurationSeconds, c.TimerVersion)
	if err != nil {
		return fmt.Errorf("upsert disappearing messages configuration %s: %w", c.ThreadUniqueID, err)
	}
	return nil
}
