package domain

import "time"

type RoomName string

// DefaultRoom is used when a peer does not ask for a room.
const DefaultRoom RoomName = "main"

const MaxRoomNameLen = 36

type Room struct {
	Name      RoomName  `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NormalizeRoomName falls back to DefaultRoom and truncates long names.
func NormalizeRoomName(raw string) RoomName {
	if raw == "" {
		return DefaultRoom
	}
	if len(raw) > MaxRoomNameLen {
		raw = raw[:MaxRoomNameLen]
	}
	return RoomName(raw)
}
