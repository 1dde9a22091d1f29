package rtc

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/pion/randutil"
)

const (
	firstDynamicPayloadType = 100
	lastDynamicPayloadType  = 127
	defaultH264Profile      = "42e01f"
)

var (
	defaultAudioFeedback = []domain.RtcpFeedback{{Type: "transport-cc"}}
	defaultVideoFeedback = []domain.RtcpFeedback{
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "goog-remb"},
		{Type: "transport-cc"},
	}

	headerExtensions = []domain.RtpHeaderExtension{
		{Kind: domain.KindAudio, URI: "urn:ietf:params:rtp-hdrext:sdes:mid", PreferredID: 1, Direction: "sendrecv"},
		{Kind: domain.KindVideo, URI: "urn:ietf:params:rtp-hdrext:sdes:mid", PreferredID: 1, Direction: "sendrecv"},
		{Kind: domain.KindAudio, URI: "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", PreferredID: 4, Direction: "sendrecv"},
		{Kind: domain.KindVideo, URI: "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time", PreferredID: 4, Direction: "sendrecv"},
		{Kind: domain.KindAudio, URI: "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01", PreferredID: 5, Direction: "recvonly"},
		{Kind: domain.KindVideo, URI: "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01", PreferredID: 5, Direction: "sendrecv"},
		{Kind: domain.KindAudio, URI: "urn:ietf:params:rtp-hdrext:ssrc-audio-level", PreferredID: 10, Direction: "sendrecv"},
		{Kind: domain.KindVideo, URI: "urn:3gpp:video-orientation", PreferredID: 11, Direction: "sendrecv"},
	}
)

// buildCapabilities assigns payload types and adds an rtx entry after every video codec.
func buildCapabilities(codecs []domain.RtpCodecCapability) (domain.RtpCapabilities, error) {
	caps := domain.RtpCapabilities{
		Codecs:           make([]domain.RtpCodecCapability, 0, len(codecs)*2),
		HeaderExtensions: append([]domain.RtpHeaderExtension(nil), headerExtensions...),
	}
	pt := firstDynamicPayloadType
	next := func() (uint8, error) {
		if pt > lastDynamicPayloadType {
			return 0, fmt.Errorf("too many codecs: dynamic payload types exhausted")
		}
		v := uint8(pt)
		pt++
		return v, nil
	}

	for _, c := range codecs {
		if !c.Kind.Valid() {
			return domain.RtpCapabilities{}, fmt.Errorf("codec %s: invalid kind %q", c.MimeType, c.Kind)
		}
		if c.IsRtx() {
			return domain.RtpCapabilities{}, fmt.Errorf("rtx must not be configured explicitly")
		}
		c = c.Clone()
		var err error
		if c.PreferredPayloadType, err = next(); err != nil {
			return domain.RtpCapabilities{}, err
		}
		if c.RtcpFeedback == nil {
			if c.Kind == domain.KindAudio {
				c.RtcpFeedback = append([]domain.RtcpFeedback(nil), defaultAudioFeedback...)
			} else {
				c.RtcpFeedback = append([]domain.RtcpFeedback(nil), defaultVideoFeedback...)
			}
		}
		caps.Codecs = append(caps.Codecs, c)

		if c.Kind != domain.KindVideo {
			continue
		}
		rtxPT, err := next()
		if err != nil {
			return domain.RtpCapabilities{}, err
		}
		caps.Codecs = append(caps.Codecs, domain.RtpCodecCapability{
			Kind:                 domain.KindVideo,
			MimeType:             "video/rtx",
			PreferredPayloadType: rtxPT,
			ClockRate:            c.ClockRate,
			Parameters:           map[string]any{"apt": int(c.PreferredPayloadType)},
		})
	}
	return caps, nil
}

func paramString(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	return strings.ToLower(fmt.Sprint(v))
}

// h264Profile strips the level from a profile-level-id.
func h264Profile(params map[string]any) string {
	id := paramString(params, "profile-level-id", defaultH264Profile)
	if len(id) < 4 {
		return id
	}
	return id[:4]
}

func channelsOf(kind domain.MediaKind, ch int) int {
	if kind == domain.KindAudio && ch == 0 {
		return 1
	}
	return ch
}

func kindOfMime(mime string) domain.MediaKind {
	kind, _, _ := strings.Cut(strings.ToLower(mime), "/")
	return domain.MediaKind(kind)
}

// codecMatches compares a sent codec against a capability entry.
func codecMatches(mime string, clockRate, channels int, params map[string]any, c domain.RtpCodecCapability) bool {
	if !strings.EqualFold(mime, c.MimeType) || clockRate != c.ClockRate {
		return false
	}
	kind := kindOfMime(mime)
	if channelsOf(kind, channels) != channelsOf(kind, c.Channels) {
		return false
	}
	switch strings.ToLower(mime) {
	case "video/h264", "video/h264-svc":
		if paramString(params, "packetization-mode", "0") != paramString(c.Parameters, "packetization-mode", "0") {
			return false
		}
		if h264Profile(params) != h264Profile(c.Parameters) {
			return false
		}
	}
	return true
}

func findCapability(codec domain.RtpCodecParameters, caps domain.RtpCapabilities) (domain.RtpCodecCapability, bool) {
	for _, c := range caps.Codecs {
		if c.IsRtx() {
			continue
		}
		if codecMatches(codec.MimeType, codec.ClockRate, codec.Channels, codec.Parameters, c) {
			return c, true
		}
	}
	return domain.RtpCodecCapability{}, false
}

// validateProducerParameters checks every sent media codec against the router.
func validateProducerParameters(kind domain.MediaKind, p domain.RtpParameters, routerCaps domain.RtpCapabilities) error {
	media := p.MediaCodecs()
	if len(media) == 0 {
		return domain.NewError(domain.KindProtocol, "rtpParameters carry no media codec")
	}
	for _, c := range media {
		if kindOfMime(c.MimeType) != kind {
			return domain.Errorf(domain.KindProtocol, "codec %s does not match kind %s", c.MimeType, kind)
		}
		if _, ok := findCapability(c, routerCaps); !ok {
			return domain.Errorf(domain.KindCapabilityMismatch, "codec %s not supported by router", c.MimeType)
		}
	}
	return nil
}

func feedbackIntersect(a, b []domain.RtcpFeedback) []domain.RtcpFeedback {
	out := make([]domain.RtcpFeedback, 0, len(a))
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

func rtxFor(pt uint8, caps domain.RtpCapabilities) (domain.RtpCodecCapability, bool) {
	for _, c := range caps.Codecs {
		if c.IsRtx() && paramString(c.Parameters, "apt", "") == strconv.Itoa(int(pt)) {
			return c, true
		}
	}
	return domain.RtpCodecCapability{}, false
}

// consumerParameters derives what a consumer with remote caps receives from producer.
// Payload types are taken from the remote capabilities.
func consumerParameters(
	producer domain.RtpParameters,
	routerCaps, remote domain.RtpCapabilities,
	mid string,
	rng randutil.MathRandomGenerator,
) (domain.RtpParameters, error) {
	var (
		chosen domain.RtpCodecCapability
		found  bool
	)
	for _, pc := range producer.MediaCodecs() {
		routerCodec, ok := findCapability(pc, routerCaps)
		if !ok {
			continue
		}
		for _, rc := range remote.Codecs {
			if rc.IsRtx() {
				continue
			}
			if codecMatches(routerCodec.MimeType, routerCodec.ClockRate, routerCodec.Channels, routerCodec.Parameters, rc) {
				chosen = rc
				chosen.RtcpFeedback = feedbackIntersect(routerCodec.RtcpFeedback, rc.RtcpFeedback)
				chosen.Parameters = maps.Clone(routerCodec.Parameters)
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return domain.RtpParameters{}, domain.NewError(domain.KindCapabilityMismatch, "no codec in common with the producer")
	}

	out := domain.RtpParameters{
		Mid: mid,
		Codecs: []domain.RtpCodecParameters{{
			MimeType:     chosen.MimeType,
			PayloadType:  chosen.PreferredPayloadType,
			ClockRate:    chosen.ClockRate,
			Channels:     chosen.Channels,
			Parameters:   chosen.Parameters,
			RtcpFeedback: chosen.RtcpFeedback,
		}},
		Rtcp: domain.RtcpParameters{Cname: producer.Rtcp.Cname, ReducedSize: true},
	}
	enc := domain.RtpEncodingParameters{Ssrc: rng.Uint32()}
	if rtx, ok := rtxFor(chosen.PreferredPayloadType, remote); ok {
		out.Codecs = append(out.Codecs, domain.RtpCodecParameters{
			MimeType:    rtx.MimeType,
			PayloadType: rtx.PreferredPayloadType,
			ClockRate:   rtx.ClockRate,
			Parameters:  map[string]any{"apt": int(chosen.PreferredPayloadType)},
		})
		enc.Rtx = &domain.RtxParameters{Ssrc: rng.Uint32()}
	}
	out.Encodings = []domain.RtpEncodingParameters{enc}

	kind := kindOfMime(chosen.MimeType)
	for _, ext := range remote.HeaderExtensions {
		if ext.Kind != kind || ext.Direction == "sendonly" || ext.Direction == "inactive" {
			continue
		}
		out.HeaderExtensions = append(out.HeaderExtensions, domain.RtpHeaderExtensionParameters{
			URI: ext.URI,
			ID:  ext.PreferredID,
		})
	}
	return out, nil
}
