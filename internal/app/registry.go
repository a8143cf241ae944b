package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Talk/internal/domain"
)

// Registry is the process-wide directory of registered sessions. The two maps
// are always consistent projections of the same session set: an entry exists
// in both or in neither.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*UserSession
	byConn map[domain.ConnID]*UserSession
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*UserSession),
		byConn: make(map[domain.ConnID]*UserSession),
	}
}

// Register inserts the session under name. Concurrent registrations of the
// same name race under the write lock; exactly one wins, the rest get
// domain.ErrNameTaken.
func (r *Registry) Register(s *UserSession, name string) error {
	if err := domain.ValidateUsername(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return domain.ErrNameTaken
	}
	s.setName(name)
	r.byName[name] = s
	r.byConn[s.ConnID()] = s
	log.Info().Str("module", "app.registry").Str("conn", string(s.ConnID())).Str("name", name).Msg("registered user")
	return nil
}

func (r *Registry) GetByName(name string) *UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

func (r *Registry) GetByConn(id domain.ConnID) *UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[id]
}

// RemoveByConn removes and returns the session if present. Idempotent: a
// second call returns nil.
func (r *Registry) RemoveByConn(id domain.ConnID) *UserSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byConn[id]
	if !ok {
		return nil
	}
	delete(r.byConn, id)
	delete(r.byName, s.Name())
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("name", s.Name()).Msg("removed user")
	return s
}

// ListNames returns a point-in-time snapshot of registered names.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// Sessions returns a snapshot of all registered sessions for fan-out.
func (r *Registry) Sessions() []*UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*UserSession, 0, len(r.byConn))
	for _, s := range r.byConn {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
