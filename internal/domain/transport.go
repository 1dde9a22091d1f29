package domain

type TransportRole string

const (
	RoleSend TransportRole = "send"
	RoleRecv TransportRole = "recv"
)

type TransportState int32

const (
	TransportRequested TransportState = iota
	TransportCreated
	TransportConnecting
	TransportConnected
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportRequested:
		return "requested"
	case TransportCreated:
		return "created"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportClosed:
		return "closed"
	}
	return "unknown"
}

type IceParameters struct {
	UsernameFragment string `json:"usernameFragment"`
	Password         string `json:"password"`
	IceLite          bool   `json:"iceLite,omitempty"`
}

type IceCandidate struct {
	Foundation string `json:"foundation"`
	Priority   uint32 `json:"priority"`
	IP         string `json:"ip"`
	Address    string `json:"address"`
	Protocol   string `json:"protocol"`
	Port       uint16 `json:"port"`
	Type       string `json:"type"`
	TCPType    string `json:"tcpType,omitempty"`
}

type DtlsRole string

const (
	DtlsRoleAuto   DtlsRole = "auto"
	DtlsRoleClient DtlsRole = "client"
	DtlsRoleServer DtlsRole = "server"
)

type DtlsFingerprint struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

type DtlsParameters struct {
	Role         DtlsRole          `json:"role,omitempty"`
	Fingerprints []DtlsFingerprint `json:"fingerprints"`
}

// DtlsState mirrors the engine's DTLS state names.
type DtlsState string

const (
	DtlsNew        DtlsState = "new"
	DtlsConnecting DtlsState = "connecting"
	DtlsConnected  DtlsState = "connected"
	DtlsFailed     DtlsState = "failed"
	DtlsClosed     DtlsState = "closed"
)

// TransportDescriptor is what a client needs to build its local transport.
type TransportDescriptor struct {
	ID             string         `json:"id"`
	IceParameters  IceParameters  `json:"iceParameters"`
	IceCandidates  []IceCandidate `json:"iceCandidates"`
	DtlsParameters DtlsParameters `json:"dtlsParameters"`
}

// Close reasons reported to hooks and to peers.
const (
	ReasonTransportClose = "transportclose"
	ReasonProducerClose  = "producerclose"
	ReasonReplaced       = "replaced"
	ReasonTimeout        = "timeout"
	ReasonDtlsClose      = "dtlsclose"
	ReasonSessionClose   = "sessionclose"
)
