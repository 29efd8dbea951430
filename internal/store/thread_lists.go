package store

import (
	"context"
	"fmt"
)

var (
	pinnedThreadsKV = NewKeyValueStore("PinnedThreadManager")
	replyInfoKV     = NewKeyValueStore("ThreadReplyInfo")
)

const pinnedThreadIDsKey = "pinnedThreadIds"

// PinnedThreadIDs returns the ordered list of pinned thread unique ids.
func (r *ReadTx) PinnedThreadIDs(ctx context.Context) ([]string, error) {
	threadIDs := []string{}
	if _, err := pinnedThreadsKV.GetJSON(ctx, r, pinnedThreadIDsKey, &threadIDs); err != nil {
		return nil, fmt.Errorf("pinned thread ids: %w", err)
	}
	return threadIDs, nil
}

// SetPinnedThreadIDs replaces the pinned list.
func (w *WriteTx) SetPinnedThreadIDs(ctx context.Context, threadIDs []string) error {
	if threadIDs == nil {
		threadIDs = []string{}
	}
	if err := pinnedThreadsKV.SetJSON(ctx, w, pinnedThreadIDsKey, threadIDs); err != nil {
		return fmt.Errorf("set pinned thread ids: %w", err)
	}
	return nil
}

// ThreadReplyInfo returns the draft reply reference of a thread, or nil.
func (r *ReadTx) ThreadReplyInfo(ctx context.Context, threadUniqueID string) (*ThreadReplyInfo, error) {
	var info ThreadReplyInfo
	ok, err := replyInfoKV.GetJSON(ctx, r, threadUniqueID, &info)
	if err != nil {
		return nil, fmt.Errorf("thread reply info: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// SetThreadReplyInfo stores the draft reply reference of a thread.
func (w *WriteTx) SetThreadReplyInfo(ctx context.Context, threadUniqueID string, info ThreadReplyInfo) error {
	if err := replyInfoKV.SetJSON(ctx, w, threadUniqueID, info); err != nil {
		return fmt.Errorf("set thread reply info: %w", err)
	}
	return nil
}

// RemoveThreadReplyInfo deletes the draft reply reference of a thread.
func (w *WriteTx) RemoveThreadReplyInfo(ctx context.Context, threadUniqueID string) error {
	return replyInfoKV.Remove(ctx, w, threadUniqueID)
}
