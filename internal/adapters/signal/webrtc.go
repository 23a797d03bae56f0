package signal

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/adapters/rtc"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

// handleRelay forwards offer, answer and ice-candidate frames. The payload is
// never validated; rtc.Inspect only feeds the logs.
//
// A to or src that is present but unusable is dropped, never widened into a
// room broadcast.
func (ctl *SignalWSController) handleRelay(sid core.SessionID, typ string, fields map[string]json.RawMessage) {
	to, toOK := relayTarget(fields)
	if !toOK {
		metrics.FramesDropped.WithLabelValues(metrics.DropTargetNotInRoom).Inc()
		log.Warn().
			Str("module", "signal").
			Str("event", typ).
			Str("sid", string(sid)).
			RawJSON("to", fields["to"]).
			Msg("relay with unusable target")
		return
	}
	src, srcOK := optionalString(fields, "src")
	if !srcOK {
		metrics.FramesDropped.WithLabelValues(metrics.DropBadPayload).Inc()
		log.Warn().
			Str("module", "signal").
			Str("event", typ).
			Str("sid", string(sid)).
			RawJSON("src", fields["src"]).
			Msg("relay with unusable src")
		return
	}
	ctl.Orch.Relay(sid, orch.SignalMessage{
		Type:   typ,
		Room:   domain.RoomName(stringField(fields, "room")),
		To:     core.SessionID(to),
		Src:    src,
		Fields: fields,
		Info:   rtc.Inspect(typ, fields),
	})
}

// relayTarget reads to. Absent or null means no target; anything else must
// be a non-empty string.
func relayTarget(fields map[string]json.RawMessage) (string, bool) {
	to, ok := optionalString(fields, "to")
	if !ok {
		return "", false
	}
	if to == "" {
		_, sent := fields["to"]
		return "", !sent || isNull(fields["to"])
	}
	return to, true
}
