package core

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/domain"
)

// MemberDTO is the public view of a connection (no transport fields).
// Only fields the connection supplied are emitted.
type MemberDTO struct {
	ID      SessionID       `json:"id"`
	Role    *string         `json:"role,omitempty"`
	Pairs   json.RawMessage `json:"pairs,omitempty"`
	Want    *string         `json:"want,omitempty"`
	Source  *string         `json:"source,omitempty"`
	Sources []string        `json:"sources,omitempty"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Name() domain.RoomName
	MemberCount() int
	// Members returns member ids sorted.
	Members() []SessionID
	Has(sid SessionID) bool

	AddMember(sid SessionID) bool
	RemoveMember(sid SessionID) bool
}

type RoomInfo struct {
	Name        domain.RoomName `json:"room"`
	MemberCount int             `json:"room_size"`
}

// RoomManager is the room directory. Unknown rooms behave as empty rooms.
type RoomManager interface {
	Join(name domain.RoomName, sid SessionID) bool
	Leave(name domain.RoomName, sid SessionID) bool
	Members(name domain.RoomName) []SessionID
	Size(name domain.RoomName) int
	Has(name domain.RoomName, sid SessionID) bool
	List() []RoomInfo
}
