package statestore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/syntrixbase/chatstore/internal/statestore/types"
)

// Record is one exported key/value pair. Key holds the unescaped key
// components. Value is the stored JSON document, or a JSON string for
// index entries and filter ids.
type Record struct {
	Region Region          `json:"region"`
	Key    []string        `json:"key"`
	Value  json.RawMessage `json:"value"`
}

// rawValue reports whether a record stores a plain string instead of JSON.
func rawValue(region Region, parts []string) bool {
	if region.Derived() {
		return true
	}
	return region == RegionSession && len(parts) > 0 && parts[0] == filterRecordName
}

// Export writes every key in the store to w as JSON lines, in key order,
// from one consistent view of the engine.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	const op = "export"
	db, release, err := s.acquire(ctx, op)
	if err != nil {
		return 0, err
	}
	defer release()

	it, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, storageError(op, nil, err)
	}
	defer it.Close()

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	n := 0
	for it.First(); it.Valid(); it.Next() {
		region, parts, err := DecodeKey(it.Key())
		if err != nil {
			return n, encodingError(op, it.Key(), err)
		}
		rec := Record{Region: region, Key: parts}
		if rawValue(region, parts) {
			rec.Value, err = json.Marshal(string(it.Value()))
			if err != nil {
				return n, encodingError(op, it.Key(), err)
			}
		} else {
			if !json.Valid(it.Value()) {
				return n, encodingError(op, it.Key(), fmt.Errorf("stored value is not valid JSON"))
			}
			rec.Value = append(json.RawMessage(nil), it.Value()...)
		}
		if err := enc.Encode(rec); err != nil {
			return n, fmt.Errorf("failed to write record: %w", err)
		}
		n++
	}
	if err := it.Error(); err != nil {
		return n, storageError(op, nil, err)
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("failed to flush export: %w", err)
	}
	return n, nil
}

// Import reads records written by Export and commits them through
// SaveChanges as a single change set, so the joined and invited indexes are
// rebuilt from the imported member records rather than copied. Filter ids
// are restored after the commit.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	changes := NewChangeSet()
	filters := make(map[string]string)

	dec := json.NewDecoder(r)
	n := 0
	for {
		var rec Record
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return 0, encodingError("import", nil, fmt.Errorf("record %d: %w", n+1, err))
		}
		n++
		if err := addRecord(changes, filters, rec); err != nil {
			return 0, encodingError("import", []byte(rec.Region), fmt.Errorf("record %d: %w", n, err))
		}
	}

	if err := s.SaveChanges(ctx, changes); err != nil {
		return 0, err
	}
	for _, name := range sortedKeys(filters) {
		if err := s.SaveFilter(ctx, name, filters[name]); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func addRecord(changes *ChangeSet, filters map[string]string, rec Record) error {
	want := map[Region]int{
		RegionSession:           1,
		RegionAccountData:       1,
		RegionMembers:           2,
		RegionJoinedUserIDs:     2,
		RegionInvitedUserIDs:    2,
		RegionRoomInfo:          1,
		RegionRoomState:         3,
		RegionRoomAccountData:   2,
		RegionPresence:          1,
		RegionStrippedRoomInfo:  1,
		RegionStrippedMembers:   2,
		RegionStrippedRoomState: 3,
	}
	n, ok := want[rec.Region]
	if !ok {
		return fmt.Errorf("unknown region %q", rec.Region)
	}
	if rec.Region == RegionSession && len(rec.Key) == 2 && rec.Key[0] == filterRecordName {
		var id string
		if err := json.Unmarshal(rec.Value, &id); err != nil {
			return err
		}
		filters[rec.Key[1]] = id
		return nil
	}
	if len(rec.Key) != n {
		return fmt.Errorf("%s key has %d components, want %d", rec.Region, len(rec.Key), n)
	}

	switch rec.Region {
	case RegionJoinedUserIDs, RegionInvitedUserIDs:
		// Derived from member records.
		return nil
	case RegionSession:
		var v types.Session
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		changes.SetSession(v)
	case RegionAccountData:
		var v types.AccountDataEvent
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		changes.AccountData[rec.Key[0]] = v
	case RegionMembers:
		var v types.MemberEvent
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		changes.AddMember(rec.Key[0], rec.Key[1], v)
	case RegionRoomInfo:
		var v types.RoomInfo
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		changes.RoomInfos[rec.Key[0]] = v
	case RegionRoomState:
		var v types.StateEvent
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		setNested(changes.State, rec.Key, v)
	case RegionRoomAccountData:
		var v types.AccountDataEvent
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		if changes.RoomAccountData[rec.Key[0]] == nil {
			changes.RoomAccountData[rec.Key[0]] = make(map[string]types.AccountDataEvent)
		}
		changes.RoomAccountData[rec.Key[0]][rec.Key[1]] = v
	case RegionPresence:
		var v types.PresenceEvent
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		changes.Presence[rec.Key[0]] = v
	case RegionStrippedRoomInfo:
		var v types.RoomInfo
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		changes.InvitedRooms[rec.Key[0]] = v
	case RegionStrippedMembers:
		var v types.StrippedMemberEvent
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		if changes.StrippedMembers[rec.Key[0]] == nil {
			changes.StrippedMembers[rec.Key[0]] = make(map[string]types.StrippedMemberEvent)
		}
		changes.StrippedMembers[rec.Key[0]][rec.Key[1]] = v
	case RegionStrippedRoomState:
		var v types.StrippedStateEvent
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return err
		}
		setNested(changes.StrippedState, rec.Key, v)
	}
	return nil
}

// setNested stores v under room -> type -> state key, keeping the keys the
// record was exported under rather than those inside the event.
func setNested[V any](m map[string]map[string]map[string]V, key []string, v V) {
	byType, ok := m[key[0]]
	if !ok {
		byType = make(map[string]map[string]V)
		m[key[0]] = byType
	}
	byKey, ok := byType[key[1]]
	if !ok {
		byKey = make(map[string]V)
		byType[key[1]] = byKey
	}
	byKey[key[2]] = v
}
