package core

// Frame is one encoded signaling message.
type Frame []byte

// SignalConnection abstracts the peer's signaling channel.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking and fails when the queue is full.
	TrySend(f Frame) error
	Close()
}
