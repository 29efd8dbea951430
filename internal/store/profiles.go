package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/recon/internal/ids"
)

const profileColumns = `id, aci, phone_number, profile_key, given_name, family_name`

// ProfileByAci returns the profile keyed by aci, or nil.
func (r *ReadTx) ProfileByAci(ctx context.Context, aci ids.Aci) (*UserProfile, error) {
	return r.fetchProfile(ctx, "aci", string(aci))
}

// ProfileByPhone returns the profile keyed by phone, or nil.
func (r *ReadTx) ProfileByPhone(ctx context.Context, phone ids.E164) (*UserProfile, error) {
	return r.fetchProfile(ctx, "phone_number", string(phone))
}

func (r *ReadTx) fetchProfile(ctx context.Context, column, value string) (*UserProfile, error) {
	row := r.queryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE `+column+` = ?`, value)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile by %s: %w", column, err)
	}
	return &p, nil
}

// AllProfiles returns every profile ordered by row id.
func (r *ReadTx) AllProfiles(ctx context.Context) ([]UserProfile, error) {
	rows, err := r.query(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []UserProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

// InsertProfile inserts p and fills in its ID.
func (w *WriteTx) InsertProfile(ctx context.Context, p *UserProfile) error {
	result, err := w.exec(ctx, `
		INSERT INTO user_profiles (aci, phone_number, profile_key, given_name, family_name)
		VALUES (?, ?, ?, ?, ?)
	`, nullAci(p.Aci), nullE164(p.Phone), blobOrNull(p.ProfileKey), p.GivenName, p.FamilyName)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	p.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert profile: last insert id: %w", err)
	}
	return nil
}

// UpdateProfile writes every column of p back to its row.
func (w *WriteTx) UpdateProfile(ctx context.Context, p UserProfile) error {
	_, err := w.exec(ctx, `
		UPDATE user_profiles
		SET aci = ?, phone_number = ?, profile_key = ?, given_name = ?, family_name = ?
		WHERE id = ?
	`, nullAci(p.Aci), nullE164(p.Phone), blobOrNull(p.ProfileKey), p.GivenName, p.FamilyName, p.ID)
	if err != nil {
		return fmt.Errorf("update profile %d: %w", p.ID, err)
	}
	return nil
}

// DeleteProfile removes one profile row.
func (w *WriteTx) DeleteProfile(ctx context.Context, id int64) error {
	if _, err := w.exec(ctx, `DELETE FROM user_profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete profile %d: %w", id, err)
	}
	return nil
}

func scanProfile(s scanner) (UserProfile, error) {
	var p UserProfile
	var aci, phone sql.NullString
	if err := s.Scan(&p.ID, &aci, &phone, &p.ProfileKey, &p.GivenName, &p.FamilyName); err != nil {
		return UserProfile{}, err
	}
	p.Aci = aciFromNull(aci)
	p.Phone = e164FromNull(phone)
	return p, nil
}
