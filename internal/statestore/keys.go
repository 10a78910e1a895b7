package statestore

import (
	"fmt"
	"net/url"
	"strings"
)

// Region is a named partition of the store keyspace. Every key starts with
// "{region}/".
type Region string

const (
	RegionSession           Region = "session"
	RegionAccountData       Region = "account_data"
	RegionMembers           Region = "members"
	RegionJoinedUserIDs     Region = "joined_user_ids"
	RegionInvitedUserIDs    Region = "invited_user_ids"
	RegionRoomInfo          Region = "room_info"
	RegionRoomState         Region = "room_state"
	RegionRoomAccountData   Region = "room_account_data"
	RegionPresence          Region = "presence"
	RegionStrippedRoomInfo  Region = "stripped_room_info"
	RegionStrippedMembers   Region = "stripped_members"
	RegionStrippedRoomState Region = "stripped_room_state"
)

var regions = []Region{
	RegionSession,
	RegionAccountData,
	RegionMembers,
	RegionJoinedUserIDs,
	RegionInvitedUserIDs,
	RegionRoomInfo,
	RegionRoomState,
	RegionRoomAccountData,
	RegionPresence,
	RegionStrippedRoomInfo,
	RegionStrippedMembers,
	RegionStrippedRoomState,
}

// Regions returns every region in the layout.
func Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// Derived reports whether the region is an index rebuilt from member records.
func (r Region) Derived() bool {
	return r == RegionJoinedUserIDs || r == RegionInvitedUserIDs
}

func (r Region) valid() bool {
	for _, known := range regions {
		if r == known {
			return true
		}
	}
	return false
}

const (
	sessionRecordName = "session"
	filterRecordName  = "filter"
)

// encodePathComponent escapes a key component so it never contains '/'.
func encodePathComponent(s string) string {
	return url.PathEscape(s)
}

// decodePathComponent reverses encodePathComponent.
func decodePathComponent(s string) (string, error) {
	return url.PathUnescape(s)
}

// key builds {region}/{esc(part)}/{esc(part)}...
func (r Region) key(parts ...string) []byte {
	size := len(r)
	for _, p := range parts {
		size += 1 + len(p)
	}
	key := make([]byte, 0, size)
	key = append(key, r...)
	for _, p := range parts {
		key = append(key, '/')
		key = append(key, encodePathComponent(p)...)
	}
	return key
}

// prefix builds the scan prefix {region}/{esc(part)}.../ covering every key
// whose leading components equal parts exactly.
func (r Region) prefix(parts ...string) []byte {
	return append(r.key(parts...), '/')
}

// upperBound returns the exclusive upper bound for a prefix scan. Prefixes
// always end in '/', so incrementing the last byte never overflows.
func upperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	upper[len(upper)-1]++
	return upper
}

func sessionKey() []byte {
	return RegionSession.key(sessionRecordName)
}

func filterKey(name string) []byte {
	return RegionSession.key(filterRecordName, name)
}

// roomKey addresses one record per room: room_info/{room}.
func roomKey(region Region, roomID string) []byte {
	return region.key(roomID)
}

// roomUserKey addresses per (room, user) records and index entries.
func roomUserKey(region Region, roomID, userID string) []byte {
	return region.key(roomID, userID)
}

// stateKey addresses per (room, type, state key) records.
func stateKey(region Region, roomID, eventType, stateKey string) []byte {
	return region.key(roomID, eventType, stateKey)
}

// DecodeKey splits a raw store key into its region and unescaped components.
// It needs no knowledge of the value types, so external tooling can walk a
// store directory with it.
func DecodeKey(key []byte) (Region, []string, error) {
	s := string(key)
	head, rest, ok := strings.Cut(s, "/")
	if !ok {
		return "", nil, fmt.Errorf("key %q has no region separator", s)
	}
	region := Region(head)
	if !region.valid() {
		return "", nil, fmt.Errorf("key %q has unknown region %q", s, head)
	}
	raw := strings.Split(rest, "/")
	parts := make([]string, len(raw))
	for i, p := range raw {
		decoded, err := decodePathComponent(p)
		if err != nil {
			return "", nil, fmt.Errorf("key %q: bad component %d: %w", s, i, err)
		}
		parts[i] = decoded
	}
	return region, parts, nil
}
