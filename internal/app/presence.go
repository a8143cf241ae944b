package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Talk/internal/domain"
	"github.com/dkeye/Talk/internal/protocol"
)

// Presence computes online/busy/offline status and fans user-list and status
// changes out to every registered session.
type Presence struct {
	registry *Registry
	policy   Policy
	metrics  *Metrics
}

func NewPresence(registry *Registry, policy Policy, metrics *Metrics) *Presence {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Presence{registry: registry, policy: policy, metrics: metrics}
}

// Status derives the presence of name at call time.
func (p *Presence) Status(name string) domain.Status {
	s := p.registry.GetByName(name)
	if s == nil {
		return domain.StatusOf(false, domain.CallStateIdle)
	}
	return domain.StatusOf(true, s.State())
}

// BroadcastRegisteredUsers pushes the current user list to every registered
// session. Sessions whose transport rejects the frame are pruned from the
// registry instead of being retried.
func (p *Presence) BroadcastRegisteredUsers() {
	msg := protocol.RegisteredUsers(p.registry.ListNames())
	for _, s := range p.registry.Sessions() {
		if err := s.Send(msg); err != nil {
			p.onSendFailure(s, err)
		}
	}
}

// BroadcastStatus notifies every registered session, including the subject,
// that name changed to status. Each copy is annotated with the receiving
// session's own name.
func (p *Presence) BroadcastStatus(name string, status domain.Status) {
	log.Debug().Str("module", "app.presence").Str("user", name).Str("status", string(status)).Msg("broadcasting status")
	for _, s := range p.registry.Sessions() {
		msg := protocol.OnlineStatus(string(status), name, s.Name())
		if err := s.Send(msg); err != nil {
			p.onSendFailure(s, err)
		}
	}
}

func (p *Presence) onSendFailure(s *UserSession, err error) {
	log.Warn().Err(err).
		Str("module", "app.presence").
		Str("conn", string(s.ConnID())).
		Str("name", s.Name()).
		Msg("broadcast send failed")
	if p.policy.OnSendFailure(s) == KickSession {
		if p.registry.RemoveByConn(s.ConnID()) != nil && p.metrics != nil {
			p.metrics.RegisteredUsers.Dec()
		}
		s.Close()
	}
}
