package signal

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleUpdateMeta(sid core.SessionID, fields map[string]json.RawMessage) {
	ctl.Orch.UpdateMeta(sid, decodeMeta(sid, "update-meta", fields).UpdatePatch())
}

// decodeMeta reads the metadata keys of a join or update-meta frame. Keys of
// the wrong JSON type are dropped and logged; the rest of the event applies.
func decodeMeta(sid core.SessionID, event string, fields map[string]json.RawMessage) domain.MetaFields {
	meta, skipped := domain.DecodeMetaFields(fields)
	if len(skipped) > 0 {
		metrics.FramesDropped.WithLabelValues(metrics.DropBadPayload).Inc()
		log.Warn().
			Str("module", "signal").
			Str("sid", string(sid)).
			Str("event", event).
			Strs("skipped", skipped).
			Msg("ignored mistyped metadata keys")
	}
	return meta
}
