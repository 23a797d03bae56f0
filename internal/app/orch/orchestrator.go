package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the signaling dispatcher. Every handler runs under mu, so
// registry, room and channel updates of one event never interleave with
// another event's.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Channels *app.Channels
	Policy   app.Policy

	mu sync.Mutex
}

func New(policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Channels: app.NewChannels(),
		Policy:   policy,
	}
}

// Connect registers a fresh connection. Nothing is visible to other peers.
func (o *Orchestrator) Connect(sid core.SessionID, sig core.SignalConnection, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Registry.Register(sid, sig, cancel)
	metrics.ConnectionsCurrent.Set(float64(o.Registry.Count()))
	log.Info().Str("module", "orch").Str("event", "connect").Str("sid", string(sid)).Msg("client_connected")
}

// Disconnect erases the connection, then leaves every room it was in and
// notifies the remaining members. Safe for connections that never joined.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.Registry.Unregister(sid)
	if !ok {
		return
	}
	for _, room := range state.Rooms {
		o.Channels.SyncOnLeave(room, sid, state.Sources)
		if o.Rooms.Leave(room, sid) {
			o.broadcast(room, PeerEvent{Type: EventPeerLeft, Member: state.Member}, "")
			o.broadcast(room, o.roomInfo(room), "")
		}
		o.logRoomState(room)
	}

	metrics.ConnectionsCurrent.Set(float64(o.Registry.Count()))
	metrics.RoomsCurrent.Set(float64(len(o.Rooms.List())))
	strs := make([]string, len(state.Rooms))
	for i, r := range state.Rooms {
		strs[i] = string(r)
	}
	log.Info().Str("module", "orch").Str("event", "disconnect").Str("sid", string(sid)).Strs("rooms", strs).Msg("client_disconnected")
}

// Snapshot returns the current room-info for room; unknown rooms are empty.
func (o *Orchestrator) Snapshot(room domain.RoomName) RoomInfoEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.roomInfo(room)
}

// ListRooms returns every non-empty room with its size, sorted by name.
func (o *Orchestrator) ListRooms() []core.RoomInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Rooms.List()
}

// eventType reads the type field of an outbound event for metrics and logs.
func eventType(v any) string {
	switch e := v.(type) {
	case RoomInfoEvent:
		return e.Type
	case PeerEvent:
		return e.Type
	case map[string]any:
		if t, ok := e["type"].(string); ok {
			return t
		}
	}
	return "unknown"
}

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return nil, false
	}
	return b, true
}

// send delivers v to one connection.
func (o *Orchestrator) send(room domain.RoomName, sid core.SessionID, v any) {
	frame, ok := encode(v)
	if !ok {
		return
	}
	o.deliver(room, sid, eventType(v), frame)
}

// broadcast delivers v to every member of room except exclude.
func (o *Orchestrator) broadcast(room domain.RoomName, v any, exclude core.SessionID) int {
	frame, ok := encode(v)
	if !ok {
		return 0
	}
	return o.fanout(room, o.Rooms.Members(room), eventType(v), frame, exclude)
}

func (o *Orchestrator) fanout(room domain.RoomName, sids []core.SessionID, typ string, frame core.Frame, exclude core.SessionID) int {
	sent := 0
	for _, sid := range sids {
		if sid == exclude {
			continue
		}
		if o.deliver(room, sid, typ, frame) {
			sent++
		}
	}
	return sent
}

func (o *Orchestrator) deliver(room domain.RoomName, sid core.SessionID, typ string, frame core.Frame) bool {
	sig, ok := o.Registry.Signal(sid)
	if !ok {
		return false
	}
	err := sig.TrySend(frame)
	switch {
	case err == nil:
		metrics.FramesDelivered.WithLabelValues(typ).Inc()
		return true
	case errors.Is(err, core.ErrBackpressure):
		metrics.FramesDropped.WithLabelValues(metrics.DropBackpressure).Inc()
		o.onBackpressure(room, sid, sig)
	default:
		metrics.FramesDropped.WithLabelValues(metrics.DropClosed).Inc()
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("type", typ).Msg("send failed")
	}
	return false
}

func (o *Orchestrator) onBackpressure(room domain.RoomName, sid core.SessionID, sig core.SignalConnection) {
	action := app.NoAction
	if o.Policy != nil {
		action = o.Policy.OnBackPressure(room, sid)
	}
	log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room)).Str("action", action.String()).Msg("receiver queue full")
	if action == app.KickMember {
		// The read pump sees the closed socket and runs Disconnect.
		o.Registry.Cancel(sid)
		sig.Close()
	}
}

func (o *Orchestrator) logRoomState(room domain.RoomName) {
	sids := o.Rooms.Members(room)
	strs := make([]string, len(sids))
	for i, sid := range sids {
		strs[i] = string(sid)
	}
	log.Info().
		Str("module", "orch").
		Str("event", "room_state").
		Str("room", string(room)).
		Int("size", len(sids)).
		Strs("members", strs).
		Msg("room_state")
}
