package signal

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(sid core.SessionID, fields map[string]json.RawMessage) {
	meta := decodeMeta(sid, "join", fields)
	room := domain.RoomName(stringField(fields, "room"))
	ctl.Orch.Join(sid, room, meta.JoinPatch())
}

// handleLeave leaves one room; the socket stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, fields map[string]json.RawMessage) {
	room := domain.RoomName(stringField(fields, "room"))
	if room == "" {
		metrics.FramesDropped.WithLabelValues(metrics.DropBadPayload).Inc()
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("leave without room")
		return
	}
	ctl.Orch.Leave(sid, room)
}

func (ctl *SignalWSController) handleListMembers(sid core.SessionID, fields map[string]json.RawMessage) {
	ctl.Orch.ListMembers(sid, domain.RoomName(stringField(fields, "room")))
}
