package statestore

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/syntrixbase/chatstore/internal/statestore/types"
)

// ChangeSet accumulates the mutations of one sync cycle (or one
// administrative update) until they are committed by Store.SaveChanges.
// Every map is keyed by the logical identity of its entry, so adding the
// same identity twice keeps only the last value.
//
// A ChangeSet is not safe for concurrent use.
type ChangeSet struct {
	Session     *types.Session
	AccountData map[string]types.AccountDataEvent // event type
	Presence    map[string]types.PresenceEvent    // sender

	Members         map[string]map[string]types.MemberEvent                  // room -> user
	State           map[string]map[string]map[string]types.StateEvent        // room -> type -> state key
	RoomAccountData map[string]map[string]types.AccountDataEvent             // room -> type
	RoomInfos       map[string]types.RoomInfo                                // room
	StrippedState   map[string]map[string]map[string]types.StrippedStateEvent // room -> type -> state key
	StrippedMembers map[string]map[string]types.StrippedMemberEvent          // room -> user
	InvitedRooms    map[string]types.RoomInfo                                // room
}

// NewChangeSet returns an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	c := &ChangeSet{}
	c.init()
	return c
}

// FromSession returns a ChangeSet that only carries a session.
func FromSession(session types.Session) *ChangeSet {
	c := NewChangeSet()
	c.SetSession(session)
	return c
}

// init makes the zero ChangeSet usable.
func (c *ChangeSet) init() {
	if c.AccountData == nil {
		c.AccountData = make(map[string]types.AccountDataEvent)
	}
	if c.Presence == nil {
		c.Presence = make(map[string]types.PresenceEvent)
	}
	if c.Members == nil {
		c.Members = make(map[string]map[string]types.MemberEvent)
	}
	if c.State == nil {
		c.State = make(map[string]map[string]map[string]types.StateEvent)
	}
	if c.RoomAccountData == nil {
		c.RoomAccountData = make(map[string]map[string]types.AccountDataEvent)
	}
	if c.RoomInfos == nil {
		c.RoomInfos = make(map[string]types.RoomInfo)
	}
	if c.StrippedState == nil {
		c.StrippedState = make(map[string]map[string]map[string]types.StrippedStateEvent)
	}
	if c.StrippedMembers == nil {
		c.StrippedMembers = make(map[string]map[string]types.StrippedMemberEvent)
	}
	if c.InvitedRooms == nil {
		c.InvitedRooms = make(map[string]types.RoomInfo)
	}
}

// SetSession replaces the session to persist.
func (c *ChangeSet) SetSession(session types.Session) {
	c.Session = &session
}

// AddPresence records the latest presence of the event sender.
func (c *ChangeSet) AddPresence(event types.PresenceEvent) {
	c.init()
	c.Presence[event.Sender] = event
}

// AddRoom records the summary of a joined or left room.
func (c *ChangeSet) AddRoom(info types.RoomInfo) {
	c.init()
	c.RoomInfos[info.RoomID] = info
}

// AddInvitedRoom records the summary of a room only known through an invite.
func (c *ChangeSet) AddInvitedRoom(info types.RoomInfo) {
	c.init()
	c.InvitedRooms[info.RoomID] = info
}

// AddAccountData records a global account data event keyed by its type.
func (c *ChangeSet) AddAccountData(event types.AccountDataEvent) {
	c.init()
	c.AccountData[event.Type] = event
}

// AddRoomAccountData records a per-room account data event keyed by its type.
func (c *ChangeSet) AddRoomAccountData(roomID string, event types.AccountDataEvent) {
	c.init()
	inner, ok := c.RoomAccountData[roomID]
	if !ok {
		inner = make(map[string]types.AccountDataEvent)
		c.RoomAccountData[roomID] = inner
	}
	inner[event.Type] = event
}

// AddStateEvent records a room state event keyed by type and state key.
func (c *ChangeSet) AddStateEvent(roomID string, event types.StateEvent) {
	c.init()
	byType, ok := c.State[roomID]
	if !ok {
		byType = make(map[string]map[string]types.StateEvent)
		c.State[roomID] = byType
	}
	byKey, ok := byType[event.Type]
	if !ok {
		byKey = make(map[string]types.StateEvent)
		byType[event.Type] = byKey
	}
	byKey[event.StateKey] = event
}

// AddStrippedStateEvent records an invite-preview state event.
func (c *ChangeSet) AddStrippedStateEvent(roomID string, event types.StrippedStateEvent) {
	c.init()
	byType, ok := c.StrippedState[roomID]
	if !ok {
		byType = make(map[string]map[string]types.StrippedStateEvent)
		c.StrippedState[roomID] = byType
	}
	byKey, ok := byType[event.Type]
	if !ok {
		byKey = make(map[string]types.StrippedStateEvent)
		byType[event.Type] = byKey
	}
	byKey[event.StateKey] = event
}

// AddMember records the membership of userID in roomID. The user id is the
// record key and the index entry value; it normally equals event.StateKey.
func (c *ChangeSet) AddMember(roomID, userID string, event types.MemberEvent) {
	c.init()
	inner, ok := c.Members[roomID]
	if !ok {
		inner = make(map[string]types.MemberEvent)
		c.Members[roomID] = inner
	}
	inner[userID] = event
}

// AddStrippedMember records an invite-preview member keyed by its state key.
func (c *ChangeSet) AddStrippedMember(roomID string, event types.StrippedMemberEvent) {
	c.init()
	inner, ok := c.StrippedMembers[roomID]
	if !ok {
		inner = make(map[string]types.StrippedMemberEvent)
		c.StrippedMembers[roomID] = inner
	}
	inner[event.StateKey] = event
}

// Len returns the number of logical entries in the set.
func (c *ChangeSet) Len() int {
	n := len(c.AccountData) + len(c.Presence) + len(c.RoomInfos) + len(c.InvitedRooms)
	if c.Session != nil {
		n++
	}
	for _, inner := range c.Members {
		n += len(inner)
	}
	for _, inner := range c.RoomAccountData {
		n += len(inner)
	}
	for _, inner := range c.StrippedMembers {
		n += len(inner)
	}
	for _, byType := range c.State {
		for _, byKey := range byType {
			n += len(byKey)
		}
	}
	for _, byType := range c.StrippedState {
		for _, byKey := range byType {
			n += len(byKey)
		}
	}
	return n
}

// IsEmpty reports whether committing the set would write nothing.
func (c *ChangeSet) IsEmpty() bool {
	return c.Len() == 0
}

// Digest returns a fingerprint of the set contents. Two sets holding the
// same entries have the same digest regardless of insertion order.
// Entries that cannot be encoded contribute only their keys.
func (c *ChangeSet) Digest() uint64 {
	h := xxhash.New()
	// The visitor never returns an error.
	_ = c.each(func(e entry) error {
		h.Write(e.key())
		h.Write([]byte{0})
		if b, err := json.Marshal(e.value); err == nil {
			h.Write(b)
		}
		h.Write([]byte{0})
		return nil
	})
	return h.Sum64()
}

// DigestString formats Digest the way commit logs print it.
func (c *ChangeSet) DigestString() string {
	return strconv.FormatUint(c.Digest(), 16)
}

// entry is one record of a ChangeSet, addressed by region and key components.
type entry struct {
	region Region
	parts  []string
	value  any
}

func (e entry) key() []byte {
	return e.region.key(e.parts...)
}

// each visits every entry in commit order: session, members, account data,
// room account data, state, room infos, presence, then the stripped
// variants. Map keys are sorted so the order is deterministic. Iteration
// stops at the first error fn returns.
func (c *ChangeSet) each(fn func(entry) error) error {
	var visit []entry
	if c.Session != nil {
		visit = append(visit, entry{RegionSession, []string{sessionRecordName}, *c.Session})
	}
	for _, room := range sortedKeys(c.Members) {
		for _, user := range sortedKeys(c.Members[room]) {
			visit = append(visit, entry{RegionMembers, []string{room, user}, c.Members[room][user]})
		}
	}
	for _, typ := range sortedKeys(c.AccountData) {
		visit = append(visit, entry{RegionAccountData, []string{typ}, c.AccountData[typ]})
	}
	for _, room := range sortedKeys(c.RoomAccountData) {
		for _, typ := range sortedKeys(c.RoomAccountData[room]) {
			visit = append(visit, entry{RegionRoomAccountData, []string{room, typ}, c.RoomAccountData[room][typ]})
		}
	}
	for _, room := range sortedKeys(c.State) {
		for _, typ := range sortedKeys(c.State[room]) {
			for _, sk := range sortedKeys(c.State[room][typ]) {
				visit = append(visit, entry{RegionRoomState, []string{room, typ, sk}, c.State[room][typ][sk]})
			}
		}
	}
	for _, room := range sortedKeys(c.RoomInfos) {
		visit = append(visit, entry{RegionRoomInfo, []string{room}, c.RoomInfos[room]})
	}
	for _, user := range sortedKeys(c.Presence) {
		visit = append(visit, entry{RegionPresence, []string{user}, c.Presence[user]})
	}
	for _, room := range sortedKeys(c.InvitedRooms) {
		visit = append(visit, entry{RegionStrippedRoomInfo, []string{room}, c.InvitedRooms[room]})
	}
	for _, room := range sortedKeys(c.StrippedMembers) {
		for _, user := range sortedKeys(c.StrippedMembers[room]) {
			visit = append(visit, entry{RegionStrippedMembers, []string{room, user}, c.StrippedMembers[room][user]})
		}
	}
	for _, room := range sortedKeys(c.StrippedState) {
		for _, typ := range sortedKeys(c.StrippedState[room]) {
			for _, sk := range sortedKeys(c.StrippedState[room][typ]) {
				visit = append(visit, entry{RegionStrippedRoomState, []string{room, typ, sk}, c.StrippedState[room][typ][sk]})
			}
		}
	}
	for _, e := range visit {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
