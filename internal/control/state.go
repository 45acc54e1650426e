package control

// State is a step in the lifecycle of one control request.
//
//	Received -> Authorizing -> Authorized -> Dispatching -> Published
//	                        \-> Unauthorized -> Rejected
//
// Failed is the terminal state for requests that were authorized (or
// could not be checked) but did not publish.
type State string

const (
	StateReceived     State = "received"
	StateAuthorizing  State = "authorizing"
	StateAuthorized   State = "authorized"
	StateUnauthorized State = "unauthorized"
	StateRejected     State = "rejected"
	StateDispatching  State = "dispatching"
	StatePublished    State = "published"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	switch s {
	case StatePublished, StateRejected, StateFailed:
		return true
	default:
		return false
	}
}

// Request is one user's request to perform an action on a device.
type Request struct {
	UserID   string
	DeviceID string
	Action   string
}

// Result is the terminal outcome of a request. Message is suitable for
// showing to the requesting user. Path lists every state the request
// entered, ending with State.
type Result struct {
	State   State   `json:"state"`
	Message string  `json:"message"`
	Topic   string  `json:"-"`
	Path    []State `json:"-"`
}

// User-facing messages. Rejections use the same text whether the device is
// someone else's or does not exist.
const (
	msgPublished      = "Command sent to device."
	msgRejected       = "Device not found."
	msgInvalidAction  = "An action is required."
	msgProfileMissing = "Device has no hardware settings yet."
	msgPublishFailed  = "Could not reach the device transmitter. Try again."
	msgInternal       = "Something went wrong. Try again."
)
