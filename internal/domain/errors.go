package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotAMember   = errors.New("not a member of this room")
	ErrInvalidSlot  = errors.New("slot number out of range")
	ErrAuthFailed   = errors.New("identity verification failed")
)

// SlotTakenError reports a conflicting mic-slot assignment along with the
// current holder, so the sender can be told who occupies the slot.
type SlotTakenError struct {
	Slot   int
	Holder string
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("slot %d is already taken by %s", e.Slot, e.Holder)
}
