package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxNameLen = 36

var (
	ErrNameEmpty   = errors.New("display name empty")
	ErrNameTooLong = errors.New("display name too long")
)

// Member is one connection's participation record inside a room.
type Member struct {
	ConnID     SessionID `json:"-"`
	Name       string    `json:"name"`
	IdentityID string    `json:"identity_id,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
// An empty identity gets a guest id so mic bookkeeping always has one.
func NewMember(sid SessionID, name, identity string) (*Member, error) {
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return nil, ErrNameTooLong
	}
	if identity == "" {
		identity = GuestIdentity()
	}
	return &Member{
		ConnID:     sid,
		Name:       name,
		IdentityID: identity,
		JoinedAt:   time.Now(),
	}, nil
}

func GuestIdentity() string {
	return "guest-" + uuid.NewString()
}
