package signal

import (
	"bytes"
	"encoding/json"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
)

const (
	typeGetRtpCapabilities   = "getRtpCapabilities"
	typeCreateTransport      = "createWebRtcTransport"
	typeCreateRecvTransport  = "createRecvWebRtcTransport"
	typeTransportConnect     = "transport-connect"
	typeTransportRecvConnect = "transport-recv-connect"
	typeTransportProduce     = "transport-produce"
	typeConsume              = "consume"
	typeConsumerResume       = "consumer-resume"
	typePing                 = "ping"
	typePong                 = "pong"

	typeConnectionSuccess = "connection-success"
	typeConsumerClosed    = "consumer-closed"
	typeNewProducer       = "new-producer"
	typeError             = "error"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func encode(typ string, data any) (core.Frame, error) {
	if data == nil {
		data = struct{}{}
	}
	return json.Marshal(outEnvelope{Type: typ, Data: data})
}

// decodeData fills v from the envelope body. An absent body decodes as {}.
func (e envelope) decodeData(v any) error {
	raw := bytes.TrimSpace(e.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.WrapError(domain.KindProtocol, "malformed "+e.Type+" data", err)
	}
	return nil
}

type errorBody struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

type errorPayload struct {
	Error errorBody `json:"error"`
}

func errorResponse(err error) errorPayload {
	return errorPayload{Error: errorBody{Kind: domain.KindOf(err), Message: domain.MessageOf(err)}}
}

type idPayload struct {
	ID string `json:"id"`
}

type createTransportRequest struct {
	Sender *bool `json:"sender"`
}

type connectTransportRequest struct {
	DtlsParameters *domain.DtlsParameters `json:"dtlsParameters"`
}

type produceRequest struct {
	Kind          domain.MediaKind      `json:"kind"`
	RtpParameters *domain.RtpParameters `json:"rtpParameters"`
}

type consumeRequest struct {
	RtpCapabilities *domain.RtpCapabilities `json:"rtpCapabilities"`
	ProducerID      string                  `json:"producerId,omitempty"`
}

type capabilitiesResponse struct {
	RtpCapabilities domain.RtpCapabilities `json:"rtpCapabilities"`
}

type consumeResponse struct {
	Params any `json:"params"`
}

type connectionSuccess struct {
	SocketID core.SessionID `json:"socketId"`
}

type consumerClosed struct {
	ID         string `json:"id"`
	ProducerID string `json:"producerId"`
	Reason     string `json:"reason"`
}

type newProducer struct {
	ID       string           `json:"id"`
	Kind     domain.MediaKind `json:"kind"`
	SocketID core.SessionID   `json:"socketId"`
}
