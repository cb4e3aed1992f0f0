package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkotler/micstage/internal/domain"
)

func member(t *testing.T, sid domain.SessionID, name string) *domain.Member {
	t.Helper()
	m, err := domain.NewMember(sid, name, "")
	require.NoError(t, err)
	return m
}

func TestStoreRoomLifecycle(t *testing.T) {
	s := NewStore(10, 200)
	assert.Zero(t, s.Len())

	snap := s.Join("r1", member(t, "conn-a", "alice"))
	assert.Equal(t, domain.RoomID("r1"), snap.RoomID)
	assert.Empty(t, snap.Messages)
	assert.Len(t, snap.Members, 1)
	assert.Equal(t, 1, s.Len())

	s.Join("r1", member(t, "conn-b", "bob"))
	room, ok := s.Get("r1")
	require.True(t, ok)
	assert.Equal(t, 2, room.MemberCount())

	name, _, err := s.Leave("r1", "conn-a")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	assert.Equal(t, 1, s.Len())

	// Last member leaving deletes the room and all its state.
	_, _, err = s.Leave("r1", "conn-b")
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	_, ok = s.Get("r1")
	assert.False(t, ok)

	// A later join with the same id gets a fresh room with empty history.
	_, err = s.AppendSystem("r1", "ghost")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	snap = s.Join("r1", member(t, "conn-c", "carol"))
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Slots)
}

func TestStoreLeaveIsIdempotent(t *testing.T) {
	s := NewStore(10, 200)
	s.Join("r1", member(t, "conn-a", "alice"))
	s.Join("r1", member(t, "conn-b", "bob"))

	_, _, err := s.Leave("r1", "conn-a")
	require.NoError(t, err)
	_, _, err = s.Leave("r1", "conn-a")
	assert.ErrorIs(t, err, domain.ErrNotAMember)

	_, _, err = s.Leave("nope", "conn-a")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestStoreLeaveCascadesMicRelease(t *testing.T) {
	s := NewStore(10, 200)
	s.Join("r1", member(t, "conn-a", "alice"))
	s.Join("r1", member(t, "conn-b", "bob"))

	_, _, slots, err := s.AssignMic("r1", "conn-a", 1)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "alice"}, slots)

	_, freed, err := s.Leave("r1", "conn-a")
	require.NoError(t, err)
	assert.Equal(t, 1, freed)
	assert.Empty(t, s.MicSlots("r1"))
}

func TestStoreMicOperations(t *testing.T) {
	s := NewStore(10, 200)
	s.Join("r1", member(t, "conn-a", "alice"))
	s.Join("r1", member(t, "conn-b", "bob"))

	m, freed, slots, err := s.AssignMic("r1", "conn-a", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", m.Name)
	assert.Zero(t, freed)
	assert.Equal(t, map[int]string{1: "alice"}, slots)

	// Taken by someone else: error, no mutation.
	_, _, _, err = s.AssignMic("r1", "conn-b", 1)
	var taken *domain.SlotTakenError
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, map[int]string{1: "alice"}, s.MicSlots("r1"))

	// Moving slots vacates the old one atomically.
	_, freed, slots, err = s.AssignMic("r1", "conn-a", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, freed)
	assert.Equal(t, map[int]string{2: "alice"}, slots)

	// Non-member cannot touch the board.
	_, _, _, err = s.AssignMic("r1", "conn-x", 3)
	assert.ErrorIs(t, err, domain.ErrNotAMember)

	_, freed, _, err = s.ReleaseMic("r1", "conn-a", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, freed)
	assert.Empty(t, s.MicSlots("r1"))
}

func TestStoreFindSlot(t *testing.T) {
	s := NewStore(10, 200)
	m, err := domain.NewMember("conn-a", "alice", "id-alice")
	require.NoError(t, err)
	s.Join("r1", m)
	_, _, _, err = s.AssignMic("r1", "conn-a", 7)
	require.NoError(t, err)

	name, slot, ok := s.FindSlot("r1", "alice", "")
	require.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.Equal(t, 7, slot)

	name, slot, ok = s.FindSlot("r1", "", "id-alice")
	require.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.Equal(t, 7, slot)

	_, _, ok = s.FindSlot("r1", "bob", "")
	assert.False(t, ok)
	_, _, ok = s.FindSlot("gone", "alice", "")
	assert.False(t, ok)
}

func TestStoreMessageLog(t *testing.T) {
	s := NewStore(10, 100)
	s.Join("r1", member(t, "conn-a", "alice"))

	_, err := s.AppendUser("r1", "conn-x", "hi")
	assert.ErrorIs(t, err, domain.ErrNotAMember)

	msg, err := s.AppendUser("r1", "conn-a", "hello")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Author)
	assert.False(t, msg.System)

	sys, err := s.AppendSystem("r1", "alice has joined the room")
	require.NoError(t, err)
	assert.Equal(t, domain.SystemAuthor, sys.Author)
	assert.True(t, sys.System)

	room, _ := s.Get("r1")
	got := room.RecentMessages(50)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, "alice has joined the room", got[1].Text)
}

func TestStoreHistoryBounded(t *testing.T) {
	s := NewStore(10, 100)
	s.Join("r1", member(t, "conn-a", "alice"))
	for i := 0; i < 150; i++ {
		_, err := s.AppendUser("r1", "conn-a", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	snap := s.Join("r1", member(t, "conn-b", "bob"))
	require.Len(t, snap.Messages, 50)
	assert.Equal(t, "msg 100", snap.Messages[0].Text)
	assert.Equal(t, "msg 149", snap.Messages[49].Text)

	room, _ := s.Get("r1")
	assert.Len(t, room.RecentMessages(1000), 100)
}

func TestStoreListAndDetail(t *testing.T) {
	s := NewStore(10, 200)
	s.Join("r1", member(t, "conn-a", "alice"))
	s.Join("r1", member(t, "conn-b", "bob"))
	s.Join("r2", member(t, "conn-c", "carol"))
	_, _, _, err := s.AssignMic("r1", "conn-a", 1)
	require.NoError(t, err)

	infos := s.List()
	require.Len(t, infos, 2)
	byID := map[domain.RoomID]RoomInfo{}
	for _, info := range infos {
		byID[info.ID] = info
	}
	assert.Equal(t, 2, byID["r1"].MemberCount)
	assert.Equal(t, 1, byID["r1"].ActiveMics)
	assert.Equal(t, 1, byID["r2"].MemberCount)

	detail, err := s.Detail("r1")
	require.NoError(t, err)
	require.Len(t, detail.Users, 2)
	assert.Equal(t, "alice", detail.Users[0].Name) // insertion order
	assert.Equal(t, map[int]string{1: "alice"}, detail.MicSlots)

	_, err = s.Detail("missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
