// Package app mediates between transports and room state: the connection
// registry, the event router and the signaling forwarder.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vkotler/micstage/internal/auth"
	"github.com/vkotler/micstage/internal/core"
	"github.com/vkotler/micstage/internal/domain"
	"github.com/vkotler/micstage/internal/protocol"
)

// Router is stateless logic over inbound events: it validates the sender
// against the registry, mutates the room store, and computes the fan-out.
// All room state lives behind Rooms; nothing here mutates room internals
// directly.
type Router struct {
	Registry *Registry
	Rooms    *core.Store
	Auth     auth.Gateway
}

// Join handles join_room. The snapshot goes only to the joining connection;
// existing members get the system "has joined" line and a member update, never
// a duplicate snapshot.
func (rt *Router) Join(ctx context.Context, sid domain.SessionID, ev protocol.JoinRoom) {
	roomID := domain.NormalizeRoomID(ev.RoomID)
	if roomID == "" {
		rt.sendError(sid, protocol.CodeBadPayload, "room id required")
		return
	}
	name := strings.TrimSpace(ev.UserName)
	if name == "" {
		name = defaultName(sid)
	}
	if len(name) > domain.MaxNameLen {
		name = name[:domain.MaxNameLen]
	}

	var identity string
	if ev.Token != "" {
		id, err := rt.Auth.VerifyIdentity(ctx, ev.Token)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("join rejected")
			rt.sendError(sid, protocol.CodeAuthFailed, "identity verification failed")
			return
		}
		identity = id
	}

	// One room per connection: joining while joined runs the full leave path
	// first, so slot release and room cleanup are never skipped.
	if _, ok := rt.Registry.RoomOf(sid); ok {
		rt.Leave(sid)
	}

	member, err := domain.NewMember(sid, name, identity)
	if err != nil {
		rt.sendError(sid, protocol.CodeBadPayload, err.Error())
		return
	}

	snap := rt.Rooms.Join(roomID, member)
	rt.Registry.SetRoom(sid, roomID)
	log.Info().Str("module", "app.router").Str("sid", string(sid)).Str("room", string(roomID)).Str("name", name).Msg("join")

	rt.send(sid, protocol.RoomSnapshot{
		Type:     protocol.EvtRoomSnapshot,
		RoomID:   snap.RoomID,
		YourName: snap.YourName,
		Messages: snap.Messages,
		MicSlots: snap.Slots,
		Users:    snap.Members,
	})

	if msg, err := rt.Rooms.AppendSystem(roomID, name+" has joined the room"); err == nil {
		rt.broadcastExcept(roomID, newMessage(msg), sid)
	}
	rt.broadcast(roomID, rt.memberUpdate(roomID))
}

// Leave handles leave_room and is invoked verbatim on disconnect; it is the
// single cleanup path and is idempotent.
func (rt *Router) Leave(sid domain.SessionID) {
	roomID, ok := rt.Registry.RoomOf(sid)
	if !ok {
		return
	}
	rt.Registry.ClearRoom(sid)

	name, freed, err := rt.Rooms.Leave(roomID, sid)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.router").Str("sid", string(sid)).Str("room", string(roomID)).Msg("leave on gone room")
		return
	}
	log.Info().Str("module", "app.router").Str("sid", string(sid)).Str("room", string(roomID)).Str("name", name).Msg("leave")

	if freed > 0 {
		rt.broadcast(roomID, protocol.UserLeftMic{Type: protocol.EvtUserLeftMic, Slot: freed, UserName: name})
		rt.broadcast(roomID, protocol.MicUpdate{Type: protocol.EvtMicUpdate, MicSlots: rt.Rooms.MicSlots(roomID)})
	}
	if msg, err := rt.Rooms.AppendSystem(roomID, name+" has left the room"); err == nil {
		rt.broadcast(roomID, newMessage(msg))
	}
	rt.broadcast(roomID, rt.memberUpdate(roomID))
}

// SendMessage handles chat. Fan-out includes the sender.
func (rt *Router) SendMessage(sid domain.SessionID, ev protocol.SendMessage) {
	roomID, ok := rt.Registry.RoomOf(sid)
	if !ok {
		rt.sendError(sid, protocol.CodeNotAMember, "join a room first")
		return
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	msg, err := rt.Rooms.AppendUser(roomID, sid, text)
	if err != nil {
		rt.sendError(sid, codeFor(err), err.Error())
		return
	}
	rt.broadcast(roomID, newMessage(msg))
}

// JoinMic handles mic-slot assignment. On conflict only the sender hears
// about it and the slot map stays untouched.
func (rt *Router) JoinMic(sid domain.SessionID, ev protocol.JoinMic) {
	roomID, ok := rt.Registry.RoomOf(sid)
	if !ok {
		rt.sendMicError(sid, protocol.CodeNotAMember, "you are not in this room")
		return
	}
	member, freed, slots, err := rt.Rooms.AssignMic(roomID, sid, ev.Slot)
	if err != nil {
		rt.sendMicError(sid, codeFor(err), err.Error())
		return
	}
	if freed > 0 {
		rt.broadcast(roomID, protocol.UserLeftMic{Type: protocol.EvtUserLeftMic, Slot: freed, UserName: member.Name})
	}
	rt.broadcast(roomID, protocol.MicUpdate{Type: protocol.EvtMicUpdate, MicSlots: slots})
	rt.broadcast(roomID, protocol.UserJoinedMic{
		Type:     protocol.EvtUserJoinedMic,
		Slot:     ev.Slot,
		UserName: member.Name,
		UserID:   member.IdentityID,
	})
	if msg, err := rt.Rooms.AppendSystem(roomID, fmt.Sprintf("%s joined mic slot %d", member.Name, ev.Slot)); err == nil {
		rt.broadcast(roomID, newMessage(msg))
	}
}

// LeaveMic releases a slot; fan-out happens only when something was freed.
func (rt *Router) LeaveMic(sid domain.SessionID, ev protocol.LeaveMic) {
	roomID, ok := rt.Registry.RoomOf(sid)
	if !ok {
		rt.sendMicError(sid, protocol.CodeNotAMember, "you are not in this room")
		return
	}
	member, freed, slots, err := rt.Rooms.ReleaseMic(roomID, sid, ev.Slot)
	if err != nil {
		rt.sendMicError(sid, codeFor(err), err.Error())
		return
	}
	if freed == 0 {
		return
	}
	rt.broadcast(roomID, protocol.UserLeftMic{Type: protocol.EvtUserLeftMic, Slot: freed, UserName: member.Name})
	rt.broadcast(roomID, protocol.MicUpdate{Type: protocol.EvtMicUpdate, MicSlots: slots})
	if msg, err := rt.Rooms.AppendSystem(roomID, fmt.Sprintf("%s left mic slot %d", member.Name, freed)); err == nil {
		rt.broadcast(roomID, newMessage(msg))
	}
}

// UserSlot answers a read-only "which slot does this user hold" query,
// unicast to the asker. Unknown users and rooms stay silent.
func (rt *Router) UserSlot(sid domain.SessionID, ev protocol.GetUserSlot) {
	roomID := domain.NormalizeRoomID(ev.RoomID)
	name, slot, ok := rt.Rooms.FindSlot(roomID, ev.UserName, ev.UserID)
	if !ok {
		return
	}
	rt.send(sid, protocol.UserSlotInfo{
		Type:     protocol.EvtUserSlotInfo,
		UserID:   ev.UserID,
		UserName: name,
		Slot:     slot,
	})
}

func defaultName(sid domain.SessionID) string {
	s := string(sid)
	if len(s) > 6 {
		s = s[:6]
	}
	return "User_" + s
}

func codeFor(err error) string {
	var taken *domain.SlotTakenError
	switch {
	case errors.As(err, &taken):
		return protocol.CodeSlotTaken
	case errors.Is(err, domain.ErrInvalidSlot):
		return protocol.CodeInvalidSlot
	case errors.Is(err, domain.ErrNotAMember):
		return protocol.CodeNotAMember
	case errors.Is(err, domain.ErrRoomNotFound):
		return protocol.CodeRoomMissing
	default:
		return protocol.CodeBadPayload
	}
}

func newMessage(msg domain.Message) protocol.NewMessage {
	return protocol.NewMessage{Type: protocol.EvtNewMessage, Message: msg}
}

func (rt *Router) memberUpdate(roomID domain.RoomID) protocol.MemberUpdate {
	users := rt.Rooms.Members(roomID)
	return protocol.MemberUpdate{Type: protocol.EvtMemberUpdate, Users: users, Count: len(users)}
}

func (rt *Router) sendError(sid domain.SessionID, code, message string) {
	rt.send(sid, protocol.ErrorEvent{Type: protocol.EvtError, Code: code, Message: message})
}

func (rt *Router) sendMicError(sid domain.SessionID, code, message string) {
	rt.send(sid, protocol.ErrorEvent{Type: protocol.EvtMicError, Code: code, Message: message})
}

func (rt *Router) send(sid domain.SessionID, v any) {
	conn, ok := rt.Registry.Get(sid)
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("marshal event")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("sid", string(sid)).Msg("send failed, canceling connection")
		rt.Registry.Cancel(sid)
	}
}

func (rt *Router) broadcast(room domain.RoomID, v any) {
	rt.broadcastExcept(room, v, "")
}

// broadcastExcept fans an event out to every connection bound to the room.
// A member whose buffer is full gets canceled and cleaned up through the
// normal disconnect path rather than stalling the room.
func (rt *Router) broadcastExcept(room domain.RoomID, v any, except domain.SessionID) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Msg("marshal event")
		return
	}
	for _, c := range rt.Registry.InRoom(room) {
		if c.SID == except {
			continue
		}
		if err := c.Conn.TrySend(b); err != nil {
			log.Warn().Err(err).Str("module", "app.router").Str("sid", string(c.SID)).Msg("slow consumer, canceling")
			rt.Registry.Cancel(c.SID)
		}
	}
}
