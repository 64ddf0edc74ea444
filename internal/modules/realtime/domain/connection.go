package domain

// ConnectionState tracks the upstream channel lifecycle. Idle is both the
// initial state and the terminal state after an owner-initiated Close;
// transport drops only ever reach Disconnected, from which the retry loop
// drives the channel back to Connected.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
