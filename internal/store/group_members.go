package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/recon/internal/ids"
)

const groupMemberColumns = `id, group_thread_id, aci, phone_number, last_interaction_at`

// GroupMembers returns the roster of one group thread ordered by row id.
func (r *ReadTx) GroupMembers(ctx context.Context, groupThreadID string) ([]GroupMember, error) {
	rows, err := r.query(ctx, `
		SELECT `+groupMemberColumns+` FROM group_members
		WHERE group_thread_id = ?
		ORDER BY id ASC
	`, groupThreadID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	members := []GroupMember{}
	for rows.Next() {
		m, err := scanGroupMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return members, nil
}

// GroupThreadIDsContaining returns the distinct group threads with a member
// row keyed by aci or by phone. Either argument may be nil.
func (r *ReadTx) GroupThreadIDsContaining(ctx context.Context, aci *ids.Aci, phone *ids.E164) ([]string, error) {
	rows, err := r.query(ctx, `
		SELECT DISTINCT group_thread_id FROM group_members
		WHERE (? IS NOT NULL AND aci = ?) OR (? IS NOT NULL AND phone_number = ?)
		ORDER BY group_thread_id ASC
	`, nullAci(aci), nullAci(aci), nullE164(phone), nullE164(phone))
	if err != nil {
		return nil, fmt.Errorf("query groups for member: %w", err)
	}
	defer rows.Close()

	groupIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group thread id: %w", err)
		}
		groupIDs = append(groupIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group thread ids: %w", err)
	}
	return groupIDs, nil
}

// InsertGroupMember inserts m and fills in its ID.
func (w *WriteTx) InsertGroupMember(ctx context.Context, m *GroupMember) error {
	result, err := w.exec(ctx, `
		INSERT INTO group_members (group_thread_id, aci, phone_number, last_interaction_at)
		VALUES (?, ?, ?, ?)
	`, m.GroupThreadID, nullAci(m.Aci), nullE164(m.Phone), m.LastInteractionAt)
	if err != nil {
		return fmt.Errorf("insert group member: %w", err)
	}
	m.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert group member: last insert id: %w", err)
	}
	return nil
}

// UpdateGroupMember writes the identity and interaction time of m.
func (w *WriteTx) UpdateGroupMember(ctx context.Context, m GroupMember) error {
	_, err := w.exec(ctx, `
		UPDATE group_members SET aci = ?, phone_number = ?, last_interaction_at = ?
		WHERE id = ?
	`, nullAci(m.Aci), nullE164(m.Phone), m.LastInteractionAt, m.ID)
	if err != nil {
		return fmt.Errorf("update group member %d: %w", m.ID, err)
	}
	return nil
}

// DeleteGroupMember removes one member row.
func (w *WriteTx) DeleteGroupMember(ctx context.Context, id int64) error {
	if _, err := w.exec(ctx, `DELETE FROM group_members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete group member %d: %w", id, err)
	}
	return nil
}

func scanGroupMember(s scanner) (GroupMember, error) {
	var m GroupMember
	var aci, phone sql.NullString
	if err := s.Scan(&m.ID, &m.GroupThreadID, &aci, &phone, &m.LastInteractionAt); err != nil {
		return GroupMember{}, err
	}
	m.Aci = aciFromNull(aci)
	m.Phone = e164FromNull(phone)
	return m, nil
}
