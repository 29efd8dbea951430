package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// KeyValueStore is a namespaced view over the key_value table.
// Values are raw bytes; JSON and integer helpers sit on top.
type KeyValueStore struct {
	collection string
}

// NewKeyValueStore returns a view over one collection.
func NewKeyValueStore(collection string) KeyValueStore {
	return KeyValueStore{collection: collection}
}

// Collection returns the namespace of s.
func (s KeyValueStore) Collection() string {
	return s.collection
}

// Get returns the raw value for key. ok is false if the key is absent.
func (s KeyValueStore) Get(ctx context.Context, tx *ReadTx, key string) (value []byte, ok bool, err error) {
	err = tx.queryRow(ctx, `
		SELECT value FROM key_value WHERE collection = ? AND key = ?
	`, s.collection, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s/%s: %w", s.collection, key, err)
	}
	return value, true, nil
}

// Has reports whether key is present.
func (s KeyValueStore) Has(ctx context.Context, tx *ReadTx, key string) (bool, error) {
	_, ok, err := s.Get(ctx, tx, key)
	return ok, err
}

// GetJSON decodes the value for key into v. ok is false if the key is absent.
func (s KeyValueStore) GetJSON(ctx context.Context, tx *ReadTx, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, tx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("kv decode %s/%s: %w", s.collection, key, err)
	}
	return true, nil
}

// GetUint64 returns the integer value for key, or 0 if absent.
func (s KeyValueStore) GetUint64(ctx context.Context, tx *ReadTx, key string) (uint64, error) {
	raw, ok, err := s.Get(ctx, tx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("kv decode %s/%s: %w", s.collection, key, err)
	}
	return n, nil
}

// Set writes the raw value for key.
func (s KeyValueStore) Set(ctx context.Context, tx *WriteTx, key string, value []byte) error {
	_, err := tx.exec(ctx, `
		INSERT INTO key_value (collection, key, value) VALUES (?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET value = excluded.value
	`, s.collection, key, value)
	if err != nil {
		return fmt.Errorf("kv set %s/%s: %w", s.collection, key, err)
	}
	return nil
}

// SetJSON encodes v and writes it for key.
func (s KeyValueStore) SetJSON(ctx context.Context, tx *WriteTx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv encode %s/%s: %w", s.collection, key, err)
	}
	return s.Set(ctx, tx, key, data)
}

// SetUint64 writes an integer value for key.
func (s KeyValueStore) SetUint64(ctx context.Context, tx *WriteTx, key string, n uint64) error {
	return s.Set(ctx, tx, key, []byte(strconv.FormatUint(n, 10)))
}

// Remove deletes key. Removing an absent key is not an error.
func (s KeyValueStore) Remove(ctx context.Context, tx *WriteTx, key string) error {
	_, err := tx.exec(ctx, `DELETE FROM key_value WHERE collection = ? AND key = ?`, s.collection, key)
	if err != nil {
		return fmt.Errorf("kv remove %s/%s: %w", s.collection, key, err)
	}
	return nil
}

// RemoveAll deletes every key of the collection.
func (s KeyValueStore) RemoveAll(ctx context.Context, tx *WriteTx) error {
	_, err := tx.exec(ctx, `DELETE FROM key_value WHERE collection = ?`, s.collection)
	if err != nil {
		return fmt.Errorf("kv remove all %s: %w", s.collection, err)
	}
	return nil
}
