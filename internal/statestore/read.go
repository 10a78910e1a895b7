package statestore

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/cockroachdb/pebble"
	"github.com/syntrixbase/chatstore/internal/statestore/types"
)

// GetSession returns the stored session, or nil if none was saved.
func (s *Store) GetSession(ctx context.Context) (*types.Session, error) {
	return getJSON[types.Session](ctx, s, "get_session", sessionKey())
}

// GetPresenceEvent returns the last presence event of userID, or nil.
func (s *Store) GetPresenceEvent(ctx context.Context, userID string) (*types.PresenceEvent, error) {
	return getJSON[types.PresenceEvent](ctx, s, "get_presence_event", RegionPresence.key(userID))
}

// GetStateEvent returns the state event of eventType and key in roomID, or nil.
func (s *Store) GetStateEvent(ctx context.Context, roomID, eventType, key string) (*types.StateEvent, error) {
	return getJSON[types.StateEvent](ctx, s, "get_state_event", stateKey(RegionRoomState, roomID, eventType, key))
}

// GetMemberEvent returns the membership event of userID in roomID, or nil.
func (s *Store) GetMemberEvent(ctx context.Context, roomID, userID string) (*types.MemberEvent, error) {
	return getJSON[types.MemberEvent](ctx, s, "get_member_event", roomUserKey(RegionMembers, roomID, userID))
}

// GetAccountDataEvent returns the global account data event of eventType, or nil.
func (s *Store) GetAccountDataEvent(ctx context.Context, eventType string) (*types.AccountDataEvent, error) {
	return getJSON[types.AccountDataEvent](ctx, s, "get_account_data_event", RegionAccountData.key(eventType))
}

// GetRoomAccountDataEvent returns the account data event of eventType in roomID, or nil.
func (s *Store) GetRoomAccountDataEvent(ctx context.Context, roomID, eventType string) (*types.AccountDataEvent, error) {
	return getJSON[types.AccountDataEvent](ctx, s, "get_room_account_data_event", RegionRoomAccountData.key(roomID, eventType))
}

// GetRoomInfo returns the summary of roomID, or nil.
func (s *Store) GetRoomInfo(ctx context.Context, roomID string) (*types.RoomInfo, error) {
	return getJSON[types.RoomInfo](ctx, s, "get_room_info", roomKey(RegionRoomInfo, roomID))
}

// GetStrippedRoomInfo returns the summary of a room known only through an invite.
func (s *Store) GetStrippedRoomInfo(ctx context.Context, roomID string) (*types.RoomInfo, error) {
	return getJSON[types.RoomInfo](ctx, s, "get_stripped_room_info", roomKey(RegionStrippedRoomInfo, roomID))
}

// GetStrippedMemberEvent returns the invite-preview membership of userID in roomID, or nil.
func (s *Store) GetStrippedMemberEvent(ctx context.Context, roomID, userID string) (*types.StrippedMemberEvent, error) {
	return getJSON[types.StrippedMemberEvent](ctx, s, "get_stripped_member_event", roomUserKey(RegionStrippedMembers, roomID, userID))
}

// GetStrippedStateEvent returns the invite-preview state event of eventType and key, or nil.
func (s *Store) GetStrippedStateEvent(ctx context.Context, roomID, eventType, key string) (*types.StrippedStateEvent, error) {
	return getJSON[types.StrippedStateEvent](ctx, s, "get_stripped_state_event", stateKey(RegionStrippedRoomState, roomID, eventType, key))
}

// GetJoinedUserIDs yields the users currently joined to roomID.
func (s *Store) GetJoinedUserIDs(ctx context.Context, roomID string) iter.Seq2[string, error] {
	return scan(ctx, s, "get_joined_user_ids", RegionJoinedUserIDs.prefix(roomID), decodeUserID)
}

// GetInvitedUserIDs yields the users currently invited to roomID.
func (s *Store) GetInvitedUserIDs(ctx context.Context, roomID string) iter.Seq2[string, error] {
	return scan(ctx, s, "get_invited_user_ids", RegionInvitedUserIDs.prefix(roomID), decodeUserID)
}

// GetRoomInfos yields every stored room summary.
func (s *Store) GetRoomInfos(ctx context.Context) iter.Seq2[types.RoomInfo, error] {
	return scan(ctx, s, "get_room_infos", RegionRoomInfo.prefix(), decodeJSON[types.RoomInfo])
}

// GetStrippedRoomInfos yields every invite-preview room summary.
func (s *Store) GetStrippedRoomInfos(ctx context.Context) iter.Seq2[types.RoomInfo, error] {
	return scan(ctx, s, "get_stripped_room_infos", RegionStrippedRoomInfo.prefix(), decodeJSON[types.RoomInfo])
}

// GetStateEvents yields every state event of eventType in roomID, ordered by
// escaped state key.
func (s *Store) GetStateEvents(ctx context.Context, roomID, eventType string) iter.Seq2[types.StateEvent, error] {
	return scan(ctx, s, "get_state_events", RegionRoomState.prefix(roomID, eventType), decodeJSON[types.StateEvent])
}

func getJSON[T any](ctx context.Context, s *Store, op string, key []byte) (*T, error) {
	raw, found, err := s.getRaw(ctx, op, key)
	if err != nil || !found {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		err = encodingError(op, key, err)
		readFailed(op, err)
		return nil, err
	}
	return &v, nil
}

func decodeUserID(value []byte) (string, error) {
	return string(value), nil
}

func decodeJSON[T any](value []byte) (T, error) {
	var v T
	err := json.Unmarshal(value, &v)
	return v, err
}

// scan returns a lazy sequence over every key under prefix. Each range over
// the sequence opens one Pebble iterator, so it observes a single committed
// state and never a partially applied batch.
//
// A value that fails to decode is yielded as an encoding error and the
// sequence moves on if the consumer keeps ranging; engine errors end it.
func scan[T any](ctx context.Context, s *Store, op string, prefix []byte, decode func([]byte) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		db, release, err := s.acquire(ctx, op)
		if err != nil {
			yield(zero, err)
			return
		}
		defer release()

		it, err := db.NewIter(&pebble.IterOptions{
			LowerBound: prefix,
			UpperBound: upperBound(prefix),
		})
		if err != nil {
			err = storageError(op, prefix, err)
			readFailed(op, err)
			yield(zero, err)
			return
		}
		defer it.Close()

		for it.First(); it.Valid(); it.Next() {
			v, err := decode(it.Value())
			if err != nil {
				err = encodingError(op, it.Key(), err)
				readFailed(op, err)
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			err = storageError(op, prefix, err)
			readFailed(op, err)
			yield(zero, err)
		}
	}
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
