package domain

// CallState tracks where a session is in the one-to-one call exchange.
type CallState string

const (
	CallStateIdle     CallState = "idle"
	CallStateOffering CallState = "offering"
	CallStateInCall   CallState = "in_call"
)

// Status is the presence of a user as seen by other clients.
// It is always derived from registry membership and call state, never stored.
type Status string

const (
	StatusOnline  Status = "online"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// StatusOf derives presence from registry membership and call state.
func StatusOf(registered bool, state CallState) Status {
	switch {
	case !registered:
		return StatusOffline
	case state != CallStateIdle:
		return StatusBusy
	default:
		return StatusOnline
	}
}
