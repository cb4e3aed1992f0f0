package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vkotler/micstage/internal/domain"
)

// Store owns the room table. A room exists in the store iff it has at least
// one member: rooms are created lazily on first join and deleted, with all
// their state, when the last member leaves. Membership changes hold the store
// lock so a join can never race a last-leave deletion; message and mic traffic
// only reads the table and serializes on the room's own mutex.
type Store struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room

	slots        int
	historyLimit int
}

func NewStore(slots, historyLimit int) *Store {
	return &Store{
		rooms:        make(map[domain.RoomID]*Room),
		slots:        slots,
		historyLimit: historyLimit,
	}
}

func (s *Store) Get(id domain.RoomID) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

// Join adds the member to the room, creating it first if needed, and returns
// the join-time snapshot. Idempotent on room creation.
func (s *Store) Join(id domain.RoomID, m *domain.Member) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		room = newRoom(id, s.slots, s.historyLimit)
		s.rooms[id] = room
		log.Info().Str("module", "core.store").Str("room", string(id)).Msg("room created")
	}
	// Still under the store lock: a concurrent last-leave cannot delete the
	// room between the lookup and the membership insert.
	return room.Join(m)
}

// Leave removes the member and deletes the room when it becomes empty.
// Cascades the mic release; the freed slot is reported for fan-out.
func (s *Store) Leave(id domain.RoomID, sid domain.SessionID) (name string, freed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return "", 0, domain.ErrRoomNotFound
	}
	name, freed, ok = room.Leave(sid)
	if !ok {
		return "", 0, domain.ErrNotAMember
	}
	if room.MemberCount() == 0 {
		delete(s.rooms, id)
		log.Info().Str("module", "core.store").Str("room", string(id)).Msg("room deleted (empty)")
	}
	return name, freed, nil
}

// AppendUser appends a member-authored chat message.
func (s *Store) AppendUser(id domain.RoomID, sid domain.SessionID, text string) (domain.Message, error) {
	room, ok := s.Get(id)
	if !ok {
		return domain.Message{}, domain.ErrRoomNotFound
	}
	return room.AppendUser(sid, text)
}

// AppendSystem appends a synthesized system line. A missing room is reported,
// not created: system lines never resurrect a deleted room.
func (s *Store) AppendSystem(id domain.RoomID, text string) (domain.Message, error) {
	room, ok := s.Get(id)
	if !ok {
		return domain.Message{}, domain.ErrRoomNotFound
	}
	return room.AppendSystem(text), nil
}

func (s *Store) AssignMic(id domain.RoomID, sid domain.SessionID, slot int) (domain.Member, int, map[int]string, error) {
	room, ok := s.Get(id)
	if !ok {
		return domain.Member{}, 0, nil, domain.ErrRoomNotFound
	}
	return room.AssignMic(sid, slot)
}

func (s *Store) ReleaseMic(id domain.RoomID, sid domain.SessionID, slot int) (domain.Member, int, map[int]string, error) {
	room, ok := s.Get(id)
	if !ok {
		return domain.Member{}, 0, nil, domain.ErrRoomNotFound
	}
	return room.ReleaseMic(sid, slot)
}

func (s *Store) FindSlot(id domain.RoomID, name, identityID string) (string, int, bool) {
	room, ok := s.Get(id)
	if !ok {
		return "", 0, false
	}
	return room.FindSlot(name, identityID)
}

func (s *Store) MicSlots(id domain.RoomID) map[int]string {
	room, ok := s.Get(id)
	if !ok {
		return nil
	}
	return room.MicSlots()
}

func (s *Store) Members(id domain.RoomID) []domain.Member {
	room, ok := s.Get(id)
	if !ok {
		return nil
	}
	return room.Members()
}

func (s *Store) List() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomInfo, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room.Info())
	}
	return out
}

func (s *Store) Detail(id domain.RoomID) (RoomDetail, error) {
	room, ok := s.Get(id)
	if !ok {
		return RoomDetail{}, domain.ErrRoomNotFound
	}
	return room.Detail(), nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
