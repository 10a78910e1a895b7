// Package types holds the already-parsed domain values the state store persists.
package types

import "encoding/json"

// Session is the logged-in account the store belongs to.
type Session struct {
	UserID      string `json:"user_id"`
	DeviceID    string `json:"device_id"`
	AccessToken string `json:"access_token"`
}

// MembershipState is the membership field of an m.room.member event.
type MembershipState string

const (
	MembershipJoin   MembershipState = "join"
	MembershipInvite MembershipState = "invite"
	MembershipLeave  MembershipState = "leave"
	MembershipBan    MembershipState = "ban"
	MembershipKnock  MembershipState = "knock"
)

// MemberEventContent is the content of an m.room.member event.
type MemberEventContent struct {
	Membership  MembershipState `json:"membership"`
	DisplayName *string         `json:"displayname,omitempty"`
	AvatarURL   *string         `json:"avatar_url,omitempty"`
	IsDirect    *bool           `json:"is_direct,omitempty"`
}

// MemberEvent is a synced m.room.member state event. StateKey is the
// target user id.
type MemberEvent struct {
	EventID        string              `json:"event_id"`
	Sender         string              `json:"sender"`
	OriginServerTS int64               `json:"origin_server_ts"`
	StateKey       string              `json:"state_key"`
	Content        MemberEventContent  `json:"content"`
	PrevContent    *MemberEventContent `json:"prev_content,omitempty"`
	Unsigned       json.RawMessage     `json:"unsigned,omitempty"`
}

// StrippedMemberEvent is the invite-preview form of a member event.
type StrippedMemberEvent struct {
	Sender   string             `json:"sender"`
	StateKey string             `json:"state_key"`
	Content  MemberEventContent `json:"content"`
}

// StateEvent is any synced room state event. Content is kept raw.
type StateEvent struct {
	Type           string          `json:"type"`
	StateKey       string          `json:"state_key"`
	EventID        string          `json:"event_id"`
	Sender         string          `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
	PrevContent    json.RawMessage `json:"prev_content,omitempty"`
	Unsigned       json.RawMessage `json:"unsigned,omitempty"`
}

// StrippedStateEvent is the invite-preview form of a state event.
type StrippedStateEvent struct {
	Type     string          `json:"type"`
	StateKey string          `json:"state_key"`
	Sender   string          `json:"sender"`
	Content  json.RawMessage `json:"content"`
}

// AccountDataEvent is a global or room scoped account data event.
type AccountDataEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// PresenceContent is the content of an m.presence event.
type PresenceContent struct {
	Presence        string  `json:"presence"`
	LastActiveAgo   *int64  `json:"last_active_ago,omitempty"`
	StatusMsg       *string `json:"status_msg,omitempty"`
	CurrentlyActive *bool   `json:"currently_active,omitempty"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
	DisplayName     *string `json:"displayname,omitempty"`
}

// PresenceEvent is the last known presence of Sender.
type PresenceEvent struct {
	Sender  string          `json:"sender"`
	Content PresenceContent `json:"content"`
}

// RoomType tells which sync section a room came from.
type RoomType string

const (
	RoomJoined  RoomType = "joined"
	RoomInvited RoomType = "invited"
	RoomLeft    RoomType = "left"
)

// RoomSummary mirrors the summary block of a sync response.
type RoomSummary struct {
	Heroes             []string `json:"heroes,omitempty"`
	JoinedMemberCount  uint64   `json:"joined_member_count"`
	InvitedMemberCount uint64   `json:"invited_member_count"`
}

// UnreadNotifications holds the per-room notification counters.
type UnreadNotifications struct {
	HighlightCount    uint64 `json:"highlight_count"`
	NotificationCount uint64 `json:"notification_count"`
}

// RoomInfo is the per-room summary kept next to the room state.
type RoomInfo struct {
	RoomID         string              `json:"room_id"`
	RoomType       RoomType            `json:"room_type"`
	Summary        RoomSummary         `json:"summary"`
	Name           string              `json:"name,omitempty"`
	Topic          string              `json:"topic,omitempty"`
	CanonicalAlias string              `json:"canonical_alias,omitempty"`
	AvatarURL      string              `json:"avatar_url,omitempty"`
	Encrypted      bool                `json:"encrypted"`
	MembersSynced  bool                `json:"members_synced"`
	LastPrevBatch  string              `json:"last_prev_batch,omitempty"`
	Notifications  UnreadNotifications `json:"unread_notifications"`
}
