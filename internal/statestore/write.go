package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/syntrixbase/chatstore/internal/statestore/types"
)

// SaveChanges commits every entry of changes as one atomic batch and syncs
// it to disk before returning. Member entries also move the (room, user)
// pair between the joined and invited indexes inside the same batch, so an
// index never disagrees with the member record it was derived from.
//
// If any write fails nothing from the batch becomes visible. Once the batch
// is being built, ctx is no longer consulted.
func (s *Store) SaveChanges(ctx context.Context, changes *ChangeSet) error {
	const op = "save_changes"
	db, release, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer release()

	if changes == nil || changes.IsEmpty() {
		return nil
	}

	start := time.Now()
	commitID := uuid.NewString()

	batch := db.NewBatch()
	defer batch.Close()

	written := make(map[Region]int)
	err = changes.each(func(e entry) error {
		key := e.key()
		if e.region == RegionMembers {
			if err := applyMembership(batch, e.parts[0], e.parts[1], e.value.(types.MemberEvent)); err != nil {
				return storageError(op, key, err)
			}
		}
		value, err := json.Marshal(e.value)
		if err != nil {
			return encodingError(op, key, err)
		}
		if err := batch.Set(key, value, nil); err != nil {
			return storageError(op, key, err)
		}
		written[e.region]++
		return nil
	})
	if err != nil {
		CommitsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Failed to build change set batch", "commit_id", commitID, "error", err)
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		CommitsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Failed to commit change set", "commit_id", commitID, "error", err)
		return storageError(op, nil, fmt.Errorf("failed to commit batch: %w", err))
	}

	elapsed := time.Since(start)
	CommitsTotal.WithLabelValues("ok").Inc()
	CommitLatency.Observe(elapsed.Seconds())
	total := 0
	for region, n := range written {
		EntriesWritten.WithLabelValues(string(region)).Add(float64(n))
		total += n
	}

	s.logger.Info("Saved changes", "commit_id", commitID, "entries", total, "duration", elapsed)
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.Debug("Saved change set digest", "commit_id", commitID, "digest", changes.DigestString())
	}
	return nil
}

// membershipIndex returns the index region a membership state belongs in,
// or "" for states that are in neither index.
func membershipIndex(m types.MembershipState) Region {
	switch m {
	case types.MembershipJoin:
		return RegionJoinedUserIDs
	case types.MembershipInvite:
		return RegionInvitedUserIDs
	default:
		return ""
	}
}

// applyMembership writes the index transition for one member event:
// the pair is set in the index its membership maps to and removed from the
// other, or removed from both.
func applyMembership(batch Batch, roomID, userID string, event types.MemberEvent) error {
	target := membershipIndex(event.Content.Membership)
	for _, region := range []Region{RegionJoinedUserIDs, RegionInvitedUserIDs} {
		key := roomUserKey(region, roomID, userID)
		if region == target {
			if err := batch.Set(key, []byte(userID), nil); err != nil {
				return fmt.Errorf("failed to set %s entry: %w", region, err)
			}
			continue
		}
		if err := batch.Delete(key, nil); err != nil {
			return fmt.Errorf("failed to delete %s entry: %w", region, err)
		}
	}
	return nil
}
