package orch

import (
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Join adds sid to room, merges the supplied metadata and syncs channels.
// The joiner gets a room-info; everyone else gets peer-joined then room-info.
func (o *Orchestrator) Join(sid core.SessionID, room domain.RoomName, patch domain.MetaPatch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.Registry.Known(sid) {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("join from unknown session")
		return
	}
	if room == "" {
		metrics.FramesDropped.WithLabelValues(metrics.DropBadPayload).Inc()
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("join without room")
		return
	}

	prevRooms := o.Registry.RoomsOf(sid)
	o.Rooms.Join(room, sid)
	o.Registry.AddRoom(sid, room)
	after, before, _ := o.Registry.MergeMetadata(sid, patch)
	o.Channels.SyncOnMetadataChange(prevRooms, sid, before, after)
	o.Channels.SyncOnJoin(room, sid, after)

	member, _ := o.Registry.SnapshotMember(sid)
	ev := log.Info().
		Str("module", "orch").
		Str("event", "join").
		Str("sid", string(sid)).
		Str("room", string(room)).
		Int("room_size", o.Rooms.Size(room)).
		Strs("sources", after)
	if member.Role != nil {
		ev = ev.Str("role", *member.Role)
	}
	ev.Msg("peer_joined")
	o.logRoomState(room)

	info := o.roomInfo(room)
	o.send(room, sid, info)
	o.broadcast(room, PeerEvent{Type: EventPeerJoined, Member: member}, sid)
	o.broadcast(room, info, sid)

	// Metadata carried by a join is visible in every room, not only this one.
	if !patch.Empty() {
		for _, other := range prevRooms {
			if other != room {
				o.broadcast(other, o.roomInfo(other), "")
			}
		}
	}
	metrics.RoomsCurrent.Set(float64(len(o.Rooms.List())))
}

// Leave removes sid from room and tells the remaining members.
func (o *Orchestrator) Leave(sid core.SessionID, room domain.RoomName) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Channels.SyncOnLeave(room, sid, o.Registry.Sources(sid))
	removed := o.Rooms.Leave(room, sid)
	o.Registry.RemoveRoom(sid, room)

	log.Info().
		Str("module", "orch").
		Str("event", "leave").
		Str("sid", string(sid)).
		Str("room", string(room)).
		Int("room_size", o.Rooms.Size(room)).
		Bool("was_member", removed).
		Msg("peer_left")
	if !removed {
		return
	}
	o.logRoomState(room)

	member, _ := o.Registry.SnapshotMember(sid)
	o.broadcast(room, PeerEvent{Type: EventPeerLeft, Member: member}, "")
	o.broadcast(room, o.roomInfo(room), "")
	metrics.RoomsCurrent.Set(float64(len(o.Rooms.List())))
}

// UpdateMeta merges patch, moves channel subscriptions in every joined room
// and refreshes room-info there.
func (o *Orchestrator) UpdateMeta(sid core.SessionID, patch domain.MetaPatch) {
	o.mu.Lock()
	defer o.mu.Unlock()

	after, before, ok := o.Registry.MergeMetadata(sid, patch)
	if !ok {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("update-meta from unknown session")
		return
	}
	rooms := o.Registry.RoomsOf(sid)
	o.Channels.SyncOnMetadataChange(rooms, sid, before, after)
	for _, room := range rooms {
		o.broadcast(room, o.roomInfo(room), "")
	}

	member, _ := o.Registry.SnapshotMember(sid)
	ev := log.Info().
		Str("module", "orch").
		Str("event", "update-meta").
		Str("sid", string(sid)).
		Strs("sources", after)
	if member.Role != nil {
		ev = ev.Str("role", *member.Role)
	}
	if member.Want != nil {
		ev = ev.Str("want", *member.Want)
	}
	if member.Source != nil {
		ev = ev.Str("source", *member.Source)
	}
	ev.Msg("meta_updated")
}

// ListMembers sends a room-info snapshot to sid only.
func (o *Orchestrator) ListMembers(sid core.SessionID, room domain.RoomName) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.send(room, sid, o.roomInfo(room))
}
