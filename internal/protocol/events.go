// Package protocol defines the wire events of the signaling channel. One
// tagged struct per event name; opaque peer-negotiation payloads stay
// json.RawMessage and are never inspected.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/vkotler/micstage/internal/domain"
)

// Inbound event names.
const (
	EvtJoinRoom    = "join_room"
	EvtLeaveRoom   = "leave_room"
	EvtSendMessage = "send_message"
	EvtJoinMic     = "join_mic"
	EvtLeaveMic    = "leave_mic"
	EvtGetUserSlot = "get_user_slot"
	EvtPing        = "ping"
	EvtOffer       = "webrtc_offer"
	EvtAnswer      = "webrtc_answer"
	EvtICE         = "webrtc_ice"
)

// Outbound event names.
const (
	EvtRoomSnapshot  = "room_snapshot"
	EvtNewMessage    = "new_message"
	EvtMicUpdate     = "mic_update"
	EvtUserJoinedMic = "user_joined_mic"
	EvtUserLeftMic   = "user_left_mic"
	EvtMicError      = "mic_error"
	EvtMemberUpdate  = "member_update"
	EvtUserSlotInfo  = "user_slot_info"
	EvtError         = "error"
	EvtPong          = "pong"
)

// Envelope carries just the discriminator; the adapter decodes it first and
// then unmarshals the full typed event.
type Envelope struct {
	Type string `json:"type"`
}

type JoinRoom struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
	Token    string `json:"token,omitempty"`
}

type LeaveRoom struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
}

type SendMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type JoinMic struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Slot     int    `json:"slot"`
	UserName string `json:"userName,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

type LeaveMic struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Slot   int    `json:"slot,omitempty"`
}

type GetUserSlot struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

// Signal is the relayed peer-negotiation envelope, both directions. Target
// addresses the receiving connection; From is stamped by the relay.
type Signal struct {
	Type    string          `json:"type"`
	Target  string          `json:"target"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type RoomSnapshot struct {
	Type     string           `json:"type"`
	RoomID   domain.RoomID    `json:"roomId"`
	YourName string           `json:"yourName"`
	Messages []domain.Message `json:"messages"`
	MicSlots map[int]string   `json:"micSlots"`
	Users    []domain.Member  `json:"users"`
}

type NewMessage struct {
	Type string `json:"type"`
	domain.Message
}

type MicUpdate struct {
	Type     string         `json:"type"`
	MicSlots map[int]string `json:"micSlots"`
}

type UserJoinedMic struct {
	Type     string `json:"type"`
	Slot     int    `json:"slot"`
	UserName string `json:"userName"`
	UserID   string `json:"userId,omitempty"`
}

type UserLeftMic struct {
	Type     string `json:"type"`
	Slot     int    `json:"slot"`
	UserName string `json:"userName"`
}

type MemberUpdate struct {
	Type  string          `json:"type"`
	Users []domain.Member `json:"users"`
	Count int             `json:"count"`
}

type UserSlotInfo struct {
	Type     string `json:"type"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName"`
	Slot     int    `json:"slot"`
}

// ErrorEvent surfaces taxonomy errors to the offending sender only: a short
// machine-checkable code plus human text.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Pong struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes carried by ErrorEvent (type "error" or "mic_error").
const (
	CodeBadPayload  = "bad_payload"
	CodeRoomMissing = "room_not_found"
	CodeNotAMember  = "not_a_member"
	CodeSlotTaken   = "slot_taken"
	CodeInvalidSlot = "invalid_slot"
	CodeAuthFailed  = "auth_failed"
	CodeRateLimited = "rate_limited"
)
