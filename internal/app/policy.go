package app

// SendFailureAction decides what happens to a session whose transport
// rejected a broadcast frame.
type SendFailureAction int

const (
	DropMessage SendFailureAction = iota
	KickSession
)

type Policy interface {
	OnSendFailure(s *UserSession) SendFailureAction
}

// SimplePolicy treats any failed send as a dead connection: the session is
// pruned from the registry so later broadcasts self-heal.
type SimplePolicy struct{}

func (SimplePolicy) OnSendFailure(*UserSession) SendFailureAction {
	return KickSession
}
