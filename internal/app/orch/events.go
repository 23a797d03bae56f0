package orch

import (
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// Outbound event types.
const (
	EventRoomInfo     = "room-info"
	EventPeerJoined   = "peer-joined"
	EventPeerLeft     = "peer-left"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
)

// RoomInfoEvent is a full room snapshot. Clients treat it as last-write-wins.
type RoomInfoEvent struct {
	Type     string           `json:"type"`
	Room     domain.RoomName  `json:"room"`
	RoomSize int              `json:"room_size"`
	Members  []core.MemberDTO `json:"members"`
}

type PeerEvent struct {
	Type   string         `json:"type"`
	Member core.MemberDTO `json:"member"`
}

func (o *Orchestrator) roomInfo(room domain.RoomName) RoomInfoEvent {
	sids := o.Rooms.Members(room)
	members := make([]core.MemberDTO, 0, len(sids))
	for _, sid := range sids {
		m, _ := o.Registry.SnapshotMember(sid)
		members = append(members, m)
	}
	return RoomInfoEvent{
		Type:     EventRoomInfo,
		Room:     room,
		RoomSize: len(members),
		Members:  members,
	}
}
