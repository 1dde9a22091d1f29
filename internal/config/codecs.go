package config

import (
	"fmt"
	"strings"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

var videoFeedback = []domain.RtcpFeedback{
	{Type: "nack"},
	{Type: "nack", Parameter: "pli"},
	{Type: "ccm", Parameter: "fir"},
	{Type: "goog-remb"},
	{Type: "transport-cc"},
}

// codecTable holds every codec the router may be configured with, by name.
var codecTable = map[string]domain.RtpCodecCapability{
	"opus": {
		Kind:      domain.KindAudio,
		MimeType:  "audio/opus",
		ClockRate: 48000,
		Channels:  2,
	},
	"vp8": {
		Kind:       domain.KindVideo,
		MimeType:   "video/VP8",
		ClockRate:  90000,
		Parameters: map[string]any{"x-google-start-bitrate": 1000},
	},
	"h264-42e01f": {
		Kind:      domain.KindVideo,
		MimeType:  "video/H264",
		ClockRate: 90000,
		Parameters: map[string]any{
			"packetization-mode":      1,
			"profile-level-id":        "42e01f",
			"level-asymmetry-allowed": 1,
			"x-google-start-bitrate":  3000,
		},
		RtcpFeedback: videoFeedback,
	},
	"h264-4d001f": {
		Kind:      domain.KindVideo,
		MimeType:  "video/H264",
		ClockRate: 90000,
		Parameters: map[string]any{
			"packetization-mode":      1,
			"profile-level-id":        "4d001f",
			"level-asymmetry-allowed": 1,
			"x-google-start-bitrate":  3000,
		},
		RtcpFeedback: videoFeedback,
	},
	"h264-svc": {
		Kind:      domain.KindVideo,
		MimeType:  "video/H264-SVC",
		ClockRate: 90000,
		Parameters: map[string]any{
			"level-asymmetry-allowed": 1,
		},
		RtcpFeedback: videoFeedback,
	},
	"h265": {
		Kind:      domain.KindVideo,
		MimeType:  "video/H265",
		ClockRate: 90000,
		Parameters: map[string]any{
			"level-asymmetry-allowed": 1,
		},
		RtcpFeedback: videoFeedback,
	},
}

// Codecs resolves codec names into router codec entries, keeping the given order.
func Codecs(names []string) ([]domain.RtpCodecCapability, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no codecs configured")
	}
	out := make([]domain.RtpCodecCapability, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		c, ok := codecTable[name]
		if !ok {
			return nil, fmt.Errorf("unknown codec %q", raw)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, c.Clone())
	}
	return out, nil
}
