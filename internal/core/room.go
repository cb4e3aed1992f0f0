package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vkotler/micstage/internal/domain"
)

// snapshotMessages bounds how much history a joining connection receives.
const snapshotMessages = 50

// Room is threadsafe in-memory room state: members, mic board and the chat
// log. All mutations of one room go through its single mutex, so each room is
// a single-writer critical section while independent rooms run in parallel.
// It never touches adapter-owned resources.
type Room struct {
	id domain.RoomID

	mu       sync.Mutex
	members  map[domain.SessionID]*domain.Member
	order    []domain.SessionID
	mics     *micBoard
	messages []domain.Message

	historyLimit int
	createdAt    time.Time
	updatedAt    time.Time
}

// Snapshot is the one-time state dump delivered to a connection at join time.
type Snapshot struct {
	RoomID   domain.RoomID
	YourName string
	Messages []domain.Message
	Slots    map[int]string
	Members  []domain.Member
}

// RoomInfo is a read-only listing view (no member details).
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
	ActiveMics  int           `json:"active_mics"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// RoomDetail is the per-room inspection view for the HTTP surface.
type RoomDetail struct {
	ID           domain.RoomID   `json:"id"`
	Users        []domain.Member `json:"users"`
	MicSlots     map[int]string  `json:"mic_slots"`
	MessageCount int             `json:"message_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newRoom(id domain.RoomID, slots, historyLimit int) *Room {
	now := time.Now()
	return &Room{
		id:           id,
		members:      make(map[domain.SessionID]*domain.Member),
		mics:         newMicBoard(slots),
		historyLimit: historyLimit,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (r *Room) touch() { r.updatedAt = time.Now() }

// Join adds the member record and returns the state snapshot in the same
// critical section, so the snapshot is consistent with the membership it
// reports. The snapshot predates any "has joined" system message.
func (r *Room) Join(m *domain.Member) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ConnID]; !ok {
		r.order = append(r.order, m.ConnID)
	}
	r.members[m.ConnID] = m
	r.touch()
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(m.ConnID)).Str("name", m.Name).Msg("member added")
	return Snapshot{
		RoomID:   r.id,
		YourName: m.Name,
		Messages: r.recentLocked(snapshotMessages),
		Slots:    r.mics.snapshot(),
		Members:  r.membersLocked(),
	}
}

// Leave removes the member record and frees any mic slot held by the member's
// display name as one atomic step. Safe to call for a sid that already left.
func (r *Room) Leave(sid domain.SessionID) (name string, freed int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[sid]
	if !ok {
		return "", 0, false
	}
	delete(r.members, sid)
	for i, id := range r.order {
		if id == sid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	freed, _ = r.mics.release(0, m.Name)
	r.touch()
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Int("freed_slot", freed).Msg("member removed")
	return m.Name, freed, true
}

// AppendUser appends a chat message authored by the given connection.
func (r *Room) AppendUser(sid domain.SessionID, text string) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[sid]
	if !ok {
		return domain.Message{}, domain.ErrNotAMember
	}
	msg := domain.NewMessage(sid, m.Name, text)
	r.appendLocked(msg)
	return msg, nil
}

// AppendSystem interleaves a relay-synthesized line into the same ordered log.
func (r *Room) AppendSystem(text string) domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := domain.NewSystemMessage(text)
	r.appendLocked(msg)
	return msg
}

func (r *Room) appendLocked(msg domain.Message) {
	r.messages = append(r.messages, msg)
	if len(r.messages) > r.historyLimit {
		r.messages = append(r.messages[:0:0], r.messages[len(r.messages)-r.historyLimit:]...)
	}
	r.touch()
}

// AssignMic puts the member's display name on the requested slot. The freed
// return reports a previously held slot vacated by the same call, which must
// be announced before the new occupancy.
func (r *Room) AssignMic(sid domain.SessionID, slot int) (member domain.Member, freed int, slots map[int]string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[sid]
	if !ok {
		return domain.Member{}, 0, nil, domain.ErrNotAMember
	}
	freed, err = r.mics.assign(slot, m.Name)
	if err != nil {
		return domain.Member{}, 0, nil, err
	}
	r.touch()
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("name", m.Name).Int("slot", slot).Int("freed_slot", freed).Msg("mic assigned")
	return *m, freed, r.mics.snapshot(), nil
}

// ReleaseMic frees the member's slot; slot == 0 releases whichever slot the
// member's name holds. freed == 0 means nothing changed.
func (r *Room) ReleaseMic(sid domain.SessionID, slot int) (member domain.Member, freed int, slots map[int]string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[sid]
	if !ok {
		return domain.Member{}, 0, nil, domain.ErrNotAMember
	}
	freed, err = r.mics.release(slot, m.Name)
	if err != nil {
		return domain.Member{}, 0, nil, err
	}
	if freed > 0 {
		r.touch()
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("name", m.Name).Int("slot", freed).Msg("mic released")
	}
	return *m, freed, r.mics.snapshot(), nil
}

// FindSlot answers "which slot does this user hold", looked up by identity id
// first, then by display name. Reconnecting users keep their slot by name.
func (r *Room) FindSlot(name, identityID string) (string, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := name
	if identityID != "" {
		for _, m := range r.members {
			if m.IdentityID == identityID {
				target = m.Name
				break
			}
		}
	}
	if target == "" {
		return "", 0, false
	}
	slot, ok := r.mics.slotOf(target)
	if !ok {
		return "", 0, false
	}
	return target, slot, true
}

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a copy of the membership in insertion order.
func (r *Room) Members() []domain.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

func (r *Room) membersLocked() []domain.Member {
	out := make([]domain.Member, 0, len(r.members))
	for _, sid := range r.order {
		if m, ok := r.members[sid]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// MicSlots returns a copy of the current slot map.
func (r *Room) MicSlots() map[int]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mics.snapshot()
}

// RecentMessages returns up to n of the newest log entries, oldest first.
func (r *Room) RecentMessages(n int) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recentLocked(n)
}

func (r *Room) recentLocked(n int) []domain.Message {
	start := 0
	if len(r.messages) > n {
		start = len(r.messages) - n
	}
	out := make([]domain.Message, len(r.messages)-start)
	copy(out, r.messages[start:])
	return out
}

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		ID:          r.id,
		MemberCount: len(r.members),
		ActiveMics:  r.mics.active(),
		CreatedAt:   r.createdAt,
		UpdatedAt:   r.updatedAt,
	}
}

func (r *Room) Detail() RoomDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomDetail{
		ID:           r.id,
		Users:        r.membersLocked(),
		MicSlots:     r.mics.snapshot(),
		MessageCount: len(r.messages),
		CreatedAt:    r.createdAt,
		UpdatedAt:    r.updatedAt,
	}
}
