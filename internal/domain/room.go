// Package domain contains entities without logic, just meta-data.
package domain

import "strings"

type (
	RoomID    string
	SessionID string
)

const MaxRoomIDLen = 64

// NormalizeRoomID maps caller-supplied room names onto canonical ids.
// "Lobby" and " lobby " address the same room.
func NormalizeRoomID(raw string) RoomID {
	id := strings.ToLower(strings.TrimSpace(raw))
	if len(id) > MaxRoomIDLen {
		id = id[:MaxRoomIDLen]
	}
	return RoomID(id)
}
