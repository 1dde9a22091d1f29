package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRtpCapabilitiesCloneIsDeep(t *testing.T) {
	orig := RtpCapabilities{
		Codecs: []RtpCodecCapability{{
			Kind:         KindVideo,
			MimeType:     "video/VP8",
			ClockRate:    90000,
			Parameters:   map[string]any{"x-google-start-bitrate": 1000},
			RtcpFeedback: []RtcpFeedback{{Type: "nack"}},
		}},
	}
	cp := orig.Clone()
	cp.Codecs[0].Parameters["x-google-start-bitrate"] = 1
	cp.Codecs[0].RtcpFeedback[0].Type = "pli"

	assert.Equal(t, 1000, orig.Codecs[0].Parameters["x-google-start-bitrate"])
	assert.Equal(t, "nack", orig.Codecs[0].RtcpFeedback[0].Type)
	assert.NotNil(t, cp.HeaderExtensions)
}

func TestMediaCodecsSkipsRtx(t *testing.T) {
	p := RtpParameters{Codecs: []RtpCodecParameters{
		{MimeType: "video/VP8", PayloadType: 101},
		{MimeType: "video/rtx", PayloadType: 102},
	}}
	got := p.MediaCodecs()
	assert.Len(t, got, 1)
	assert.Equal(t, "video/VP8", got[0].MimeType)
	assert.True(t, p.Codecs[1].IsRtx())
	assert.True(t, KindAudio.Valid())
	assert.False(t, MediaKind("data").Valid())
}
