package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/chatstore/internal/statestore/types"
)

func TestGetters_AbsentReturnsNil(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	session, err := s.GetSession(ctx)
	assert.NoError(t, err)
	assert.Nil(t, session)

	presence, err := s.GetPresenceEvent(ctx, "@nobody:x")
	assert.NoError(t, err)
	assert.Nil(t, presence)

	st, err := s.GetStateEvent(ctx, "!r:x", "m.room.name", "")
	assert.NoError(t, err)
	assert.Nil(t, st)

	member, err := s.GetMemberEvent(ctx, "!r:x", "@u:x")
	assert.NoError(t, err)
	assert.Nil(t, member)

	info, err := s.GetRoomInfo(ctx, "!r:x")
	assert.NoError(t, err)
	assert.Nil(t, info)

	ids, err := Collect(s.GetJoinedUserIDs(ctx, "!r:x"))
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGetStateEvent_DistinguishesStateKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	c := NewChangeSet()
	c.AddStateEvent("!r:x", stateEvent("m.custom", "", `{"k":"empty"}`))
	c.AddStateEvent("!r:x", stateEvent("m.custom", "a", `{"k":"a"}`))
	c.AddStateEvent("!r:x", stateEvent("m.custom.other", "", `{"k":"other"}`))
	require.NoError(t, s.SaveChanges(ctx, c))

	ev, err := s.GetStateEvent(ctx, "!r:x", "m.custom", "")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.JSONEq(t, `{"k":"empty"}`, string(ev.Content))

	ev, err = s.GetStateEvent(ctx, "!r:x", "m.custom", "a")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.JSONEq(t, `{"k":"a"}`, string(ev.Content))

	events, err := Collect(s.GetStateEvents(ctx, "!r:x", "m.custom"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "", events[0].StateKey)
	assert.Equal(t, "a", events[1].StateKey)
}

func TestGetJoinedUserIDs_Sorted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	c := NewChangeSet()
	for _, u := range []string{"@c:x", "@a:x", "@b:x"} {
		c.AddMember("!r:x", u, memberEvent(u, types.MembershipJoin))
	}
	require.NoError(t, s.SaveChanges(ctx, c))

	assert.Equal(t, []string{"@a:x", "@b:x", "@c:x"}, joinedUsers(t, s, "!r:x"))
}

func TestGetJoinedUserIDs_EarlyBreak(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	c := NewChangeSet()
	for _, u := range []string{"@a:x", "@b:x", "@c:x"} {
		c.AddMember("!r:x", u, memberEvent(u, types.MembershipJoin))
	}
	require.NoError(t, s.SaveChanges(ctx, c))

	var first string
	for id, err := range s.GetJoinedUserIDs(ctx, "!r:x") {
		require.NoError(t, err)
		first = id
		break
	}
	assert.Equal(t, "@a:x", first)

	// Close waits on in-flight reads, so it only returns if the abandoned
	// iteration released the engine.
	require.NoError(t, s.Close())
}

func TestGetRoomInfo_CorruptedRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	c := NewChangeSet()
	c.AddRoom(types.RoomInfo{RoomID: "!a:x", Name: "A"})
	c.AddRoom(types.RoomInfo{RoomID: "!c:x", Name: "C"})
	require.NoError(t, s.SaveChanges(ctx, c))
	putRaw(t, s, roomKey(RegionRoomInfo, "!b:x"), []byte("{broken"))

	_, err := s.GetRoomInfo(ctx, "!b:x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncoding)
	assert.NotErrorIs(t, err, ErrStorage)

	// Collect stops at the bad record.
	infos, err := Collect(s.GetRoomInfos(ctx))
	assert.ErrorIs(t, err, ErrEncoding)
	require.Len(t, infos, 1)
	assert.Equal(t, "A", infos[0].Name)

	// A consumer that keeps ranging skips it.
	var names []string
	var failures int
	for info, err := range s.GetRoomInfos(ctx) {
		if err != nil {
			failures++
			continue
		}
		names = append(names, info.Name)
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, []string{"A", "C"}, names)
}

func TestGetSession_StorageError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := newMockDB()
	s := openMockStore(t, db)
	db.getErr = errors.New("read failed")

	_, err := s.GetSession(ctx)
	assert.ErrorIs(t, err, ErrStorage)

	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get_session", storeErr.Op)
}

func TestScan_NewIterError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := newMockDB()
	s := openMockStore(t, db)
	db.newIterErr = errors.New("no iterator")

	ids, err := Collect(s.GetInvitedUserIDs(ctx, "!r:x"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, ids)
}

func TestScan_IteratorError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := newMockDB()
	s := openMockStore(t, db)

	c := NewChangeSet()
	c.AddMember("!r:x", "@a:x", memberEvent("@a:x", types.MembershipJoin))
	require.NoError(t, s.SaveChanges(ctx, c))
	db.iterErr = errors.New("corrupt sstable")

	ids, err := Collect(s.GetJoinedUserIDs(ctx, "!r:x"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, []string{"@a:x"}, ids)
}

func TestScan_CanceledContext(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(s.GetRoomInfos(ctx))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStrippedReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	c := NewChangeSet()
	c.AddInvitedRoom(types.RoomInfo{RoomID: "!inv:x", RoomType: types.RoomInvited})
	c.AddStrippedStateEvent("!inv:x", types.StrippedStateEvent{
		Type:    "m.room.topic",
		Sender:  "@b:x",
		Content: json.RawMessage(`{"topic":"hi"}`),
	})
	require.NoError(t, s.SaveChanges(ctx, c))

	ev, err := s.GetStrippedStateEvent(ctx, "!inv:x", "m.room.topic", "")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "@b:x", ev.Sender)

	// Full state of the same room is untouched.
	full, err := s.GetStateEvent(ctx, "!inv:x", "m.room.topic", "")
	require.NoError(t, err)
	assert.Nil(t, full)

	info, err := s.GetRoomInfo(ctx, "!inv:x")
	require.NoError(t, err)
	assert.Nil(t, info)
}
