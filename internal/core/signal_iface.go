package core

// Frame is one encoded protocol message.
type Frame []byte

// SignalConnection abstracts the messaging transport of one client.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking and fails on back-pressure.
	TrySend(Frame) error
	Close()
}
