package orch

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SignalMessage is an inbound offer, answer or ice-candidate.
type SignalMessage struct {
	Type string
	Room domain.RoomName
	// To selects unicast delivery.
	To core.SessionID
	// Src selects delivery to the (Room, Src) channel when To is empty.
	Src string
	// Fields is the inbound frame verbatim; it is relayed as-is.
	Fields map[string]json.RawMessage
	// Info carries best-effort SDP/ICE details for logs only.
	Info zerolog.LogObjectMarshaler
}

func logPrefix(typ string) string {
	if typ == EventICECandidate {
		return "ice"
	}
	return typ
}

// Relay routes a signaling message: unicast when To is set (dropped if the
// target is not in the room), channel multicast when Src is set, otherwise
// broadcast to the room. The sender never receives its own message.
func (o *Orchestrator) Relay(sid core.SessionID, msg SignalMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := o.augment(sid, msg)
	frame, ok := encode(out)
	if !ok {
		return
	}

	prefix := logPrefix(msg.Type)
	level := zerolog.InfoLevel
	if msg.Type == EventICECandidate {
		level = zerolog.DebugLevel
	}
	logEvent := func(ev *zerolog.Event) *zerolog.Event {
		ev = ev.Str("module", "orch").
			Str("event", msg.Type).
			Str("sid", string(sid)).
			Str("room", string(msg.Room))
		if msg.Info != nil {
			ev = ev.EmbedObject(msg.Info)
		}
		return ev
	}

	switch {
	case msg.To != "":
		if !o.Rooms.Has(msg.Room, msg.To) {
			metrics.FramesDropped.WithLabelValues(metrics.DropTargetNotInRoom).Inc()
			logEvent(log.Warn()).Str("to", string(msg.To)).Msg(prefix + "_target_not_in_room")
			return
		}
		logEvent(log.WithLevel(level)).Str("to", string(msg.To)).Msg(prefix + "_routed_1to1")
		o.deliver(msg.Room, msg.To, msg.Type, frame)
	case msg.Src != "":
		recipients := o.Channels.Recipients(msg.Room, msg.Src)
		sent := o.fanout(msg.Room, recipients, msg.Type, frame, sid)
		logEvent(log.WithLevel(level)).Str("src", msg.Src).Int("sent_to", sent).Msg(prefix + "_routed_channel")
	default:
		sent := o.fanout(msg.Room, o.Rooms.Members(msg.Room), msg.Type, frame, sid)
		logEvent(log.WithLevel(level)).Int("sent_to", sent).Msg(prefix + "_broadcast")
	}
}

// augment stamps from/type and back-fills meta.role, pairs, source and
// sources from the registry for keys the sender did not put in its own meta.
func (o *Orchestrator) augment(sid core.SessionID, msg SignalMessage) map[string]any {
	out := make(map[string]any, len(msg.Fields)+3)
	for k, v := range msg.Fields {
		out[k] = v
	}

	meta := make(map[string]any)
	if raw, ok := msg.Fields["meta"]; ok {
		var own map[string]json.RawMessage
		if err := json.Unmarshal(raw, &own); err == nil {
			for k, v := range own {
				meta[k] = v
			}
		}
	}
	m, sources, _ := o.Registry.Meta(sid)
	backfill := func(key string, v any) {
		if _, ok := meta[key]; !ok {
			meta[key] = v
		}
	}
	if m.Role != nil {
		backfill("role", *m.Role)
	}
	if m.Pairs != nil {
		backfill("pairs", m.Pairs)
	}
	if m.Source != nil {
		backfill("source", *m.Source)
	}
	if len(sources) > 0 {
		backfill("sources", sources)
	}

	out["type"] = msg.Type
	out["from"] = sid
	out["meta"] = meta
	return out
}
