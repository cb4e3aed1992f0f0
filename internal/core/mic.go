package core

import "github.com/vkotler/micstage/internal/domain"

// micBoard tracks who holds which numbered mic slot in a room. The slot->name
// and name->slot maps are kept as exact inverses at all times. Not threadsafe;
// guarded by the owning Room's mutex.
type micBoard struct {
	slots  int
	bySlot map[int]string
	byName map[string]int
}

func newMicBoard(slots int) *micBoard {
	return &micBoard{
		slots:  slots,
		bySlot: make(map[int]string),
		byName: make(map[string]int),
	}
}

// assign puts name on slot. A name holding a different slot vacates it as part
// of the same call; the vacated slot is returned in freed. A slot held by a
// different name fails with SlotTakenError and mutates nothing. Re-assigning
// the slot a name already holds is a no-op.
func (b *micBoard) assign(slot int, name string) (freed int, err error) {
	if slot < 1 || slot > b.slots {
		return 0, domain.ErrInvalidSlot
	}
	if holder, ok := b.bySlot[slot]; ok && holder != name {
		return 0, &domain.SlotTakenError{Slot: slot, Holder: holder}
	}
	if prev, ok := b.byName[name]; ok {
		if prev == slot {
			return 0, nil
		}
		delete(b.bySlot, prev)
		freed = prev
	}
	b.bySlot[slot] = name
	b.byName[name] = slot
	return freed, nil
}

// release frees the slot held by name. slot == 0 means "whichever slot the
// name holds"; a non-zero slot releases only on an exact slot+name match.
// Returns 0 when nothing was freed.
func (b *micBoard) release(slot int, name string) (int, error) {
	if slot != 0 && (slot < 1 || slot > b.slots) {
		return 0, domain.ErrInvalidSlot
	}
	held, ok := b.byName[name]
	if !ok {
		return 0, nil
	}
	if slot != 0 && slot != held {
		return 0, nil
	}
	delete(b.bySlot, held)
	delete(b.byName, name)
	return held, nil
}

func (b *micBoard) slotOf(name string) (int, bool) {
	slot, ok := b.byName[name]
	return slot, ok
}

func (b *micBoard) active() int { return len(b.bySlot) }

func (b *micBoard) snapshot() map[int]string {
	out := make(map[int]string, len(b.bySlot))
	for slot, name := range b.bySlot {
		out[slot] = name
	}
	return out
}
