package domain

type SessionState int32

const (
	SessionConnecting SessionState = iota
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	}
	return "unknown"
}

type ProducerState int32

const (
	ProducerActive ProducerState = iota
	ProducerClosed
)

type ConsumerState int32

const (
	ConsumerPaused ConsumerState = iota
	ConsumerResumed
	ConsumerClosed
)

func (s ConsumerState) String() string {
	switch s {
	case ConsumerPaused:
		return "paused"
	case ConsumerResumed:
		return "resumed"
	case ConsumerClosed:
		return "closed"
	}
	return "unknown"
}
