package stream

// State is the lifecycle position of a Controller's single connection.
type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status labels reported to the View.
const (
	StatusConnecting   = "Connecting..."
	StatusConnected    = "Connected"
	StatusFailed       = "Connection Failed"
	StatusDisconnected = "Disconnected"
	StatusLost         = "Connection Lost"
)
