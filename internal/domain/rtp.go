package domain

import (
	"maps"
	"slices"
	"strings"
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

type RtcpFeedback struct {
	Type      string `json:"type"`
	Parameter string `json:"parameter,omitempty"`
}

// RtpCodecCapability is one codec entry of a capability set.
type RtpCodecCapability struct {
	Kind                 MediaKind      `json:"kind"`
	MimeType             string         `json:"mimeType"`
	PreferredPayloadType uint8          `json:"preferredPayloadType,omitempty"`
	ClockRate            int            `json:"clockRate"`
	Channels             int            `json:"channels,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	RtcpFeedback         []RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

func (c RtpCodecCapability) IsRtx() bool {
	return strings.HasSuffix(strings.ToLower(c.MimeType), "/rtx")
}

func (c RtpCodecCapability) Clone() RtpCodecCapability {
	c.Parameters = maps.Clone(c.Parameters)
	c.RtcpFeedback = slices.Clone(c.RtcpFeedback)
	return c
}

type RtpHeaderExtension struct {
	Kind             MediaKind `json:"kind"`
	URI              string    `json:"uri"`
	PreferredID      int       `json:"preferredId"`
	PreferredEncrypt bool      `json:"preferredEncrypt"`
	Direction        string    `json:"direction,omitempty"`
}

type RtpCapabilities struct {
	Codecs           []RtpCodecCapability `json:"codecs"`
	HeaderExtensions []RtpHeaderExtension `json:"headerExtensions"`
}

// Clone returns a deep copy, so a caller can never mutate a shared snapshot.
func (c RtpCapabilities) Clone() RtpCapabilities {
	out := RtpCapabilities{
		Codecs:           make([]RtpCodecCapability, 0, len(c.Codecs)),
		HeaderExtensions: slices.Clone(c.HeaderExtensions),
	}
	for _, codec := range c.Codecs {
		out.Codecs = append(out.Codecs, codec.Clone())
	}
	if out.HeaderExtensions == nil {
		out.HeaderExtensions = []RtpHeaderExtension{}
	}
	return out
}

type RtpCodecParameters struct {
	MimeType     string         `json:"mimeType"`
	PayloadType  uint8          `json:"payloadType"`
	ClockRate    int            `json:"clockRate"`
	Channels     int            `json:"channels,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	RtcpFeedback []RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

func (c RtpCodecParameters) IsRtx() bool {
	return strings.HasSuffix(strings.ToLower(c.MimeType), "/rtx")
}

type RtpHeaderExtensionParameters struct {
	URI        string         `json:"uri"`
	ID         int            `json:"id"`
	Encrypt    bool           `json:"encrypt,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type RtxParameters struct {
	Ssrc uint32 `json:"ssrc"`
}

type RtpEncodingParameters struct {
	Ssrc            uint32         `json:"ssrc,omitempty"`
	Rid             string         `json:"rid,omitempty"`
	CodecPayload    uint8          `json:"codecPayloadType,omitempty"`
	Rtx             *RtxParameters `json:"rtx,omitempty"`
	Dtx             bool           `json:"dtx,omitempty"`
	ScalabilityMode string         `json:"scalabilityMode,omitempty"`
	MaxBitrate      int            `json:"maxBitrate,omitempty"`
}

type RtcpParameters struct {
	Cname       string `json:"cname,omitempty"`
	ReducedSize bool   `json:"reducedSize"`
}

// RtpParameters describes what a producer sends or a consumer receives.
type RtpParameters struct {
	Mid              string                         `json:"mid,omitempty"`
	Codecs           []RtpCodecParameters           `json:"codecs"`
	HeaderExtensions []RtpHeaderExtensionParameters `json:"headerExtensions,omitempty"`
	Encodings        []RtpEncodingParameters        `json:"encodings,omitempty"`
	Rtcp             RtcpParameters                 `json:"rtcp"`
}

// MediaCodecs drops rtx entries.
func (p RtpParameters) MediaCodecs() []RtpCodecParameters {
	out := make([]RtpCodecParameters, 0, len(p.Codecs))
	for _, c := range p.Codecs {
		if !c.IsRtx() {
			out = append(out, c)
		}
	}
	return out
}
