package rtc

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

var candidateTypRe = regexp.MustCompile(`\btyp\s+(\w+)\b`)

// Info is a best-effort summary of a relayed offer, answer or candidate.
// The relay never acts on it; it only ends up in logs.
type Info struct {
	SDPType       string
	SDPLen        int
	Media         []string
	CandidateType string
	Protocol      string
}

func (i Info) MarshalZerologObject(e *zerolog.Event) {
	if i.SDPType != "" {
		e.Str("sdp_type", i.SDPType)
	}
	if i.SDPLen > 0 {
		e.Int("sdp_len", i.SDPLen)
	}
	if len(i.Media) > 0 {
		e.Strs("media", i.Media)
	}
	if i.CandidateType != "" {
		e.Str("candidate_type", i.CandidateType)
	}
	if i.Protocol != "" {
		e.Str("protocol", i.Protocol)
	}
}

type sessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// InspectDescription reads the {type, sdp} object of an offer or answer.
// Anything that is not an object yields a zero Info.
func InspectDescription(raw json.RawMessage) Info {
	var desc sessionDescription
	if len(raw) == 0 || json.Unmarshal(raw, &desc) != nil {
		return Info{}
	}
	info := Info{SDPLen: len(desc.SDP)}
	if desc.Type != "" {
		if t := webrtc.NewSDPType(desc.Type); t != webrtc.SDPTypeUnknown {
			info.SDPType = t.String()
		} else {
			info.SDPType = desc.Type
		}
	}
	if desc.SDP == "" {
		return info
	}
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err == nil {
		for _, md := range parsed.MediaDescriptions {
			info.Media = append(info.Media, md.MediaName.Media)
		}
	}
	return info
}

// InspectCandidate accepts either an RTCIceCandidateInit object or a bare
// candidate line.
func InspectCandidate(raw json.RawMessage) Info {
	line := candidateLine(raw)
	if line == "" {
		return Info{}
	}
	if c, err := ice.UnmarshalCandidate(strings.TrimPrefix(line, "candidate:")); err == nil {
		return Info{
			CandidateType: c.Type().String(),
			Protocol:      c.NetworkType().NetworkShort(),
		}
	}
	if m := candidateTypRe.FindStringSubmatch(line); m != nil {
		return Info{CandidateType: m[1]}
	}
	return Info{}
}

func candidateLine(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var init struct {
		Candidate string `json:"candidate"`
	}
	if err := json.Unmarshal(raw, &init); err == nil {
		return init.Candidate
	}
	return ""
}

// Inspect picks the payload field for the given event type.
func Inspect(typ string, fields map[string]json.RawMessage) Info {
	switch typ {
	case "offer", "answer":
		return InspectDescription(fields[typ])
	case "ice-candidate":
		return InspectCandidate(fields["candidate"])
	}
	return Info{}
}
