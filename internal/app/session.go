package app

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
	"github.com/dkeye/Talk/internal/protocol"
)

// Call state machine events. States are domain.CallState values.
// offer:  idle -> offering      (caller sends, callee receives an offer)
// accept: offering -> in_call
// hangup: offering|in_call -> idle
const (
	eventOffer  = "offer"
	eventAccept = "accept"
	eventHangup = "hangup"
)

func newCallFSM() *fsm.FSM {
	return fsm.NewFSM(
		string(domain.CallStateIdle),
		fsm.Events{
			{Name: eventOffer, Src: []string{string(domain.CallStateIdle)}, Dst: string(domain.CallStateOffering)},
			{Name: eventAccept, Src: []string{string(domain.CallStateOffering)}, Dst: string(domain.CallStateInCall)},
			{Name: eventHangup, Src: []string{string(domain.CallStateOffering), string(domain.CallStateInCall)}, Dst: string(domain.CallStateIdle)},
		}, nil,
	)
}

// UserSession is the per-connection state: identity, call progress, the
// pending offer and any candidates that arrived before the media endpoint
// existed.
//
// The session mutex serializes outbound sends and every mutation of the
// non-identity fields. Both the session's own message handler and the
// partner's teardown path go through it, so state and transport act as one
// serialized unit.
type UserSession struct {
	connID domain.ConnID
	conn   core.SignalConnection

	mu       sync.Mutex
	name     string
	states   *fsm.FSM
	peer     string
	sdpOffer string
	queued   []core.Candidate
	endpoint core.Endpoint
}

func NewUserSession(connID domain.ConnID, conn core.SignalConnection) *UserSession {
	return &UserSession{
		connID: connID,
		conn:   conn,
		states: newCallFSM(),
	}
}

func (s *UserSession) ConnID() domain.ConnID { return s.connID }

func (s *UserSession) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// setName is called by the registry with the winning registration; a session
// is named at most once.
func (s *UserSession) setName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *UserSession) State() domain.CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CallState(s.states.Current())
}

func (s *UserSession) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *UserSession) PendingOffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sdpOffer
}

// Send serializes one outbound message onto the transport.
func (s *UserSession) Send(m protocol.ServerMessage) error {
	frame := m.Encode()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.TrySend(frame)
}

// Close tears down the transport.
func (s *UserSession) Close() {
	s.conn.Close()
}

// StartOffer records an outgoing call: peer and the caller's SDP offer.
func (s *UserSession) StartOffer(peer, sdpOffer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.states.Event(context.Background(), eventOffer); err != nil {
		return err
	}
	s.peer = peer
	s.sdpOffer = sdpOffer
	return nil
}

// ReceiveOffer records an incoming call from peer on the callee side.
func (s *UserSession) ReceiveOffer(peer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.states.Event(context.Background(), eventOffer); err != nil {
		return err
	}
	s.peer = peer
	return nil
}

// Accept moves the session into the call.
func (s *UserSession) Accept() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states.Event(context.Background(), eventAccept)
}

// EndCall returns the session to idle and clears all call-scoped state.
// Safe to call in any state; a second call is a no-op.
func (s *UserSession) EndCall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// The event errors when the session is already idle; the clears below
	// are what must happen either way.
	_ = s.states.Event(context.Background(), eventHangup)
	s.peer = ""
	s.sdpOffer = ""
	s.queued = nil
	s.endpoint = nil
}

// AddCandidate forwards a remote candidate to the media endpoint, or queues
// it in receipt order until the endpoint exists.
func (s *UserSession) AddCandidate(c core.Candidate) error {
	s.mu.Lock()
	ep := s.endpoint
	if ep == nil {
		s.queued = append(s.queued, c)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return ep.AddCandidate(c)
}

// BindEndpoint attaches the media endpoint and replays queued candidates in
// the order they arrived. The queue is drained exactly once.
func (s *UserSession) BindEndpoint(ep core.Endpoint) {
	s.mu.Lock()
	s.endpoint = ep
	queued := s.queued
	s.queued = nil
	s.mu.Unlock()

	for _, c := range queued {
		if err := ep.AddCandidate(c); err != nil {
			log.Error().Err(err).
				Str("module", "app.session").
				Str("conn", string(s.connID)).
				Msg("replaying queued candidate failed")
		}
	}
}
