package rtc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dkeye/Relay/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const audioOffer = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n"

func TestInspectDescription(t *testing.T) {
	raw, err := json.Marshal(map[string]string{"type": "offer", "sdp": audioOffer})
	require.NoError(t, err)

	info := InspectDescription(raw)
	assert.Equal(t, "offer", info.SDPType)
	assert.Equal(t, len(audioOffer), info.SDPLen)
	assert.Equal(t, []string{"audio"}, info.Media)
}

func TestInspectDescriptionLenient(t *testing.T) {
	assert.Equal(t, Info{}, InspectDescription(nil))
	assert.Equal(t, Info{}, InspectDescription(json.RawMessage(`"v=0"`)))

	info := InspectDescription(json.RawMessage(`{"type":"answer","sdp":"garbage"}`))
	assert.Equal(t, "answer", info.SDPType)
	assert.Equal(t, 7, info.SDPLen)
	assert.Empty(t, info.Media)

	info = InspectDescription(json.RawMessage(`{"type":"bogus"}`))
	assert.Equal(t, "bogus", info.SDPType)
}

func TestInspectCandidate(t *testing.T) {
	line := "candidate:842163049 1 udp 2122260223 192.168.1.5 54400 typ host generation 0"

	info := InspectCandidate(json.RawMessage(`{"candidate":"` + line + `","sdpMid":"0","sdpMLineIndex":0}`))
	assert.Equal(t, "host", info.CandidateType)
	assert.Equal(t, "udp", info.Protocol)

	bare, err := json.Marshal(line)
	require.NoError(t, err)
	assert.Equal(t, "host", InspectCandidate(bare).CandidateType)
}

func TestInspectCandidateFallsBackToRegex(t *testing.T) {
	info := InspectCandidate(json.RawMessage(`"not really a candidate typ relay"`))
	assert.Equal(t, "relay", info.CandidateType)
	assert.Empty(t, info.Protocol)

	assert.Equal(t, Info{}, InspectCandidate(json.RawMessage(`{"candidate":""}`)))
	assert.Equal(t, Info{}, InspectCandidate(json.RawMessage(`42`)))
}

func TestInspectByType(t *testing.T) {
	fields := map[string]json.RawMessage{
		"offer":     json.RawMessage(`{"type":"offer","sdp":"x"}`),
		"candidate": json.RawMessage(`"a typ host"`),
	}
	assert.Equal(t, 1, Inspect("offer", fields).SDPLen)
	assert.Equal(t, "host", Inspect("ice-candidate", fields).CandidateType)
	assert.Equal(t, Info{}, Inspect("answer", fields))
	assert.Equal(t, Info{}, Inspect("join", fields))
}

func TestInfoLogFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().EmbedObject(Info{SDPType: "offer", SDPLen: 3}).Msg("x")

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "offer", got["sdp_type"])
	assert.EqualValues(t, 3, got["sdp_len"])
	assert.NotContains(t, got, "candidate_type")
}

func TestICEServers(t *testing.T) {
	servers, err := ICEServers([]config.ICEServer{
		{URLs: []string{" stun:stun.l.google.com:19302 ", ""}},
		{URLs: []string{"turn:turn.example.org:3478"}, Username: "u", Credential: "p"},
	})
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, servers[0].URLs)
	assert.Nil(t, servers[0].Credential)
	assert.Equal(t, "p", servers[1].Credential)

	empty, err := ICEServers(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestICEServersRejectsInvalid(t *testing.T) {
	_, err := ICEServers([]config.ICEServer{{URLs: []string{"turn:turn.example.org"}}})
	assert.ErrorContains(t, err, "ice_servers[0]")

	_, err = ICEServers([]config.ICEServer{{URLs: []string{"http://example.org"}}})
	assert.ErrorContains(t, err, "unsupported url scheme")

	_, err = ICEServers([]config.ICEServer{{}})
	assert.ErrorContains(t, err, "missing urls")
}
