package statestore

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/chatstore/internal/statestore/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestStore opens an ephemeral store closed at test cleanup.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(WithLogger(discardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// openMockStore opens a store backed by db.
func openMockStore(t *testing.T, db *mockDB) *Store {
	t.Helper()
	s, err := Open(WithLogger(discardLogger()), withDB(db))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSession() types.Session {
	return types.Session{
		UserID:      "@example:localhost",
		DeviceID:    "DEVICEID",
		AccessToken: "TEST_TOKEN",
	}
}

func memberEvent(userID string, membership types.MembershipState) types.MemberEvent {
	return types.MemberEvent{
		EventID:        "$h29iv0s8:example.com",
		Sender:         userID,
		OriginServerTS: 1700000000000,
		StateKey:       userID,
		Content:        types.MemberEventContent{Membership: membership},
	}
}

func stateEvent(eventType, key, content string) types.StateEvent {
	return types.StateEvent{
		Type:           eventType,
		StateKey:       key,
		EventID:        "$state:example.com",
		Sender:         "@example:localhost",
		OriginServerTS: 1700000000000,
		Content:        json.RawMessage(content),
	}
}

// putRaw writes a raw value bypassing SaveChanges, for corrupting records.
func putRaw(t *testing.T, s *Store, key []byte, value []byte) {
	t.Helper()
	b := s.eng.db.NewBatch()
	defer b.Close()
	require.NoError(t, b.Set(key, value, nil))
	require.NoError(t, b.Commit(nil))
}
