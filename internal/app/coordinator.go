package app

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
	"github.com/dkeye/Talk/internal/protocol"
)

// Coordinator is the signaling state machine. It owns the registry, the
// call-binding table and the playback table for the lifetime of the process,
// and is the only component that talks to the media engine.
//
// The transport adapter delivers one message per connection at a time, but
// messages from different connections run concurrently; all shared state
// behind the coordinator is guarded accordingly.
type Coordinator struct {
	registry *Registry
	presence *Presence
	engine   core.MediaEngine
	metrics  *Metrics
	ice      protocol.ICEConfig

	bindings *bindingTable

	playMu    sync.Mutex
	playbacks map[domain.ConnID]core.Pipeline
}

func NewCoordinator(registry *Registry, presence *Presence, engine core.MediaEngine, metrics *Metrics, ice protocol.ICEConfig) *Coordinator {
	return &Coordinator{
		registry:  registry,
		presence:  presence,
		engine:    engine,
		metrics:   metrics,
		ice:       ice,
		bindings:  newBindingTable(),
		playbacks: make(map[domain.ConnID]core.Pipeline),
	}
}

// HandleMessage dispatches one inbound frame from sess. Every failure is
// converted into a reply on the originating connection; nothing here is fatal
// to the process or to unrelated sessions.
func (c *Coordinator) HandleMessage(sess *UserSession, data core.Frame) {
	msg, err := protocol.Parse(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.coordinator").Str("conn", string(sess.ConnID())).Msg("dropping malformed message")
		_ = sess.Send(protocol.ErrorResponse(protocol.TypeCallResponse, err.Error()))
		return
	}

	log.Debug().
		Str("module", "app.coordinator").
		Str("conn", string(sess.ConnID())).
		Str("name", sess.Name()).
		Str("type", string(msg.ID)).
		Msg("inbound message")

	switch msg.ID {
	case protocol.TypeAppConfig:
		c.handleAppConfig(sess, msg)
	case protocol.TypeRegister:
		c.handleRegister(sess, msg)
	case protocol.TypeCall:
		c.handleCall(sess, msg)
	case protocol.TypeIncomingCallResponse:
		c.handleIncomingCallResponse(sess, msg)
	case protocol.TypeOnIceCandidate:
		c.handleCandidate(sess, msg)
	case protocol.TypeStop:
		c.teardown(sess)
	case protocol.TypeCheckOnlineStatus:
		c.handleStatusQuery(sess, msg)
	case protocol.TypePlay:
		c.handlePlay(sess, msg)
	case protocol.TypeStopPlay:
		c.releasePlayback(sess.ConnID())
	}
}

// OnDisconnect runs the close path: the same teardown as an explicit stop,
// playback release, deregistration, then offline and user-list broadcasts to
// the sessions that remain. Deregistration happens before the broadcasts so
// the dead transport never receives its own farewell.
func (c *Coordinator) OnDisconnect(sess *UserSession) {
	name := sess.Name()
	log.Info().Str("module", "app.coordinator").Str("conn", string(sess.ConnID())).Str("name", name).Msg("connection closed")

	c.teardown(sess)
	c.releasePlayback(sess.ConnID())

	if removed := c.registry.RemoveByConn(sess.ConnID()); removed != nil {
		c.metrics.RegisteredUsers.Dec()
		c.presence.BroadcastStatus(name, domain.StatusOffline)
		c.presence.BroadcastRegisteredUsers()
	}
}

func (c *Coordinator) handleAppConfig(sess *UserSession, msg protocol.Message) {
	if err := sess.Send(protocol.AppConfig(msg.ClientType, c.ice)); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("conn", string(sess.ConnID())).Msg("appConfig send failed")
	}
}

func (c *Coordinator) handleRegister(sess *UserSession, msg protocol.Message) {
	if prior := sess.Name(); prior != "" {
		_ = sess.Send(protocol.RegisterResponse(protocol.ResponseRejected,
			fmt.Sprintf("already registered as %s", prior), prior))
		return
	}

	name := msg.Name
	switch err := c.registry.Register(sess, name); err {
	case nil:
		c.metrics.RegisteredUsers.Inc()
		_ = sess.Send(protocol.RegisterResponse(protocol.ResponseAccepted, "", name))
		c.presence.BroadcastRegisteredUsers()
		c.presence.BroadcastStatus(name, domain.StatusOnline)
	case domain.ErrNameTaken:
		_ = sess.Send(protocol.RegisterResponse(protocol.ResponseSkipped,
			fmt.Sprintf("user %s already registered", name), name))
	default:
		_ = sess.Send(protocol.RegisterResponse(protocol.ResponseRejected, err.Error(), name))
	}
}

func (c *Coordinator) handleCall(caller *UserSession, msg protocol.Message) {
	from := caller.Name()
	if from == "" {
		_ = caller.Send(protocol.CallRejected("register before calling"))
		return
	}
	to := msg.To
	if to == from {
		_ = caller.Send(protocol.CallRejected("cannot call yourself"))
		return
	}

	callee := c.registry.GetByName(to)
	if callee == nil {
		log.Debug().Str("module", "app.coordinator").Str("to", to).Msg("callee does not exist, rejecting call")
		_ = caller.Send(protocol.CallRejected(fmt.Sprintf("user %s is not registered", to)))
		return
	}

	if err := caller.StartOffer(to, msg.SDPOffer); err != nil {
		_ = caller.Send(protocol.CallRejected("you already have a call in progress"))
		return
	}
	if err := callee.ReceiveOffer(from); err != nil {
		caller.EndCall()
		_ = caller.Send(protocol.CallRejected(fmt.Sprintf("user %s is busy", to)))
		return
	}

	log.Info().Str("module", "app.coordinator").Str("from", from).Str("to", to).Msg("call offered")
	c.metrics.CallsStarted.Inc()

	if err := callee.Send(protocol.IncomingCall(from)); err != nil {
		// Callee transport is gone; roll both sides back.
		caller.EndCall()
		callee.EndCall()
		_ = caller.Send(protocol.CallRejected(fmt.Sprintf("user %s is not reachable", to)))
	}
}

func (c *Coordinator) handleIncomingCallResponse(callee *UserSession, msg protocol.Message) {
	from := msg.From
	caller := c.registry.GetByName(from)
	if caller == nil || callee.Peer() != from || caller.Peer() != callee.Name() {
		if callee.Peer() == from {
			// The caller vanished while the callee was ringing.
			callee.EndCall()
		}
		_ = callee.Send(protocol.ErrorResponse(protocol.TypeCallResponse,
			fmt.Sprintf("no incoming call from %s", from)))
		return
	}

	if msg.CallResponse != protocol.CallAccept {
		log.Info().Str("module", "app.coordinator").Str("from", from).Str("to", callee.Name()).Msg("call rejected by callee")
		c.metrics.CallsRejected.Inc()
		caller.EndCall()
		callee.EndCall()
		_ = caller.Send(protocol.CallRejected(fmt.Sprintf("call rejected by %s", callee.Name())))
		return
	}

	c.startCall(caller, callee, msg.SDPOffer)
}

// startCall performs the multi-step accept sequence: bind the pipeline,
// generate both answers, attach endpoints, trigger candidate gathering on
// both legs, and only then tell either side the call is on. Any failure after
// pipeline creation compensates by releasing the pipeline and returning both
// participants to idle before replying.
func (c *Coordinator) startCall(caller, callee *UserSession, calleeOffer string) {
	from, to := caller.Name(), callee.Name()
	log.Info().Str("module", "app.coordinator").Str("from", from).Str("to", to).Msg("call accepted")

	pipeline, callerEp, calleeEp, err := c.engine.CreatePairedPipeline(from, to)
	if err != nil {
		c.failCall(caller, callee, nil, err)
		return
	}

	binding := &callBinding{
		caller:   caller.ConnID(),
		callee:   callee.ConnID(),
		pipeline: pipeline,
	}
	c.bindings.put(binding)

	callerEp.OnCandidate(func(cand core.Candidate) {
		_ = caller.Send(protocol.IceCandidate(cand))
	})
	calleeEp.OnCandidate(func(cand core.Candidate) {
		_ = callee.Send(protocol.IceCandidate(cand))
	})

	calleeAnswer, err := calleeEp.GenerateAnswer(calleeOffer)
	if err != nil {
		c.failCall(caller, callee, binding, err)
		return
	}
	callerAnswer, err := callerEp.GenerateAnswer(caller.PendingOffer())
	if err != nil {
		c.failCall(caller, callee, binding, err)
		return
	}

	if err := caller.Accept(); err != nil {
		c.failCall(caller, callee, binding, err)
		return
	}
	if err := callee.Accept(); err != nil {
		c.failCall(caller, callee, binding, err)
		return
	}

	// Endpoints must be live and gathering before either client learns the
	// call is on, so early remote candidates only ever wait in the session
	// queue, never race a missing endpoint.
	caller.BindEndpoint(callerEp)
	callee.BindEndpoint(calleeEp)
	if err := calleeEp.GatherCandidates(); err != nil {
		c.failCall(caller, callee, binding, err)
		return
	}
	if err := callerEp.GatherCandidates(); err != nil {
		c.failCall(caller, callee, binding, err)
		return
	}

	_ = callee.Send(protocol.StartCommunication(calleeAnswer))
	_ = caller.Send(protocol.CallAccepted(callerAnswer))

	if err := c.engine.StartRecording(pipeline); err != nil {
		c.failCall(caller, callee, binding, err)
		return
	}

	c.metrics.CallsAccepted.Inc()
	c.metrics.ActiveCalls.Inc()
}

// failCall compensates a broken call setup: the pipeline is released, the
// binding entries removed, the caller told rejected, the callee told
// stopCommunication, and both sessions returned to idle. Neither client is
// ever left seeing a half-bound call.
func (c *Coordinator) failCall(caller, callee *UserSession, binding *callBinding, cause error) {
	log.Error().Err(cause).
		Str("module", "app.coordinator").
		Str("from", caller.Name()).
		Str("to", callee.Name()).
		Msg("call setup failed, rejecting")
	c.metrics.CallsFailed.Inc()

	if binding != nil {
		c.bindings.take(binding.caller)
		binding.release()
	}
	caller.EndCall()
	callee.EndCall()

	_ = caller.Send(protocol.CallRejected("call setup failed"))
	_ = callee.Send(protocol.StopCommunication())
}

func (c *Coordinator) handleCandidate(sess *UserSession, msg protocol.Message) {
	if sess.Name() == "" {
		log.Debug().Str("module", "app.coordinator").Str("conn", string(sess.ConnID())).Msg("candidate from unregistered sender dropped")
		return
	}
	cand, err := msg.IceCandidate()
	if err != nil {
		log.Debug().Err(err).Str("module", "app.coordinator").Msg("unusable candidate dropped")
		return
	}
	if err := sess.AddCandidate(cand); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("name", sess.Name()).Msg("candidate forward failed")
		return
	}
	c.metrics.CandidatesRelayed.Inc()
}

// teardown ends whatever call sess is part of. With a binding present the
// partner is resolved through it and both sides are released; both
// participants end idle and the pipeline is freed exactly once regardless of
// which side, or how many sides, initiate. During the offering phase, before
// any binding exists, the pending offer is cancelled on both sessions so no
// client is left ringing. With no call at all it is a no-op.
func (c *Coordinator) teardown(sess *UserSession) {
	if b := c.bindings.take(sess.ConnID()); b != nil {
		otherID := b.otherSide(sess.ConnID())
		b.release()
		sess.EndCall()
		if other := c.registry.GetByConn(otherID); other != nil {
			_ = other.Send(protocol.StopCommunication())
			other.EndCall()
		}
		c.metrics.ActiveCalls.Dec()
		log.Info().Str("module", "app.coordinator").Str("conn", string(sess.ConnID())).Msg("call stopped")
		return
	}

	peer := sess.Peer()
	if peer == "" {
		return
	}
	sess.EndCall()
	if other := c.registry.GetByName(peer); other != nil && other.Peer() == sess.Name() {
		_ = other.Send(protocol.StopCommunication())
		other.EndCall()
	}
}

func (c *Coordinator) handleStatusQuery(sess *UserSession, msg protocol.Message) {
	status := c.presence.Status(msg.User)
	_ = sess.Send(protocol.OnlineStatus(string(status), msg.User, sess.Name()))
}

func (c *Coordinator) handlePlay(sess *UserSession, msg protocol.Message) {
	user := msg.User
	log.Debug().Str("module", "app.coordinator").Str("user", user).Msg("playback requested")

	connID := sess.ConnID()
	pipeline, ep, err := c.engine.CreatePlaybackPipeline(user, func() {
		// End of stream may fire after the requester already left.
		c.releasePlayback(connID)
		_ = sess.Send(protocol.PlayEnd())
	})
	if err != nil {
		_ = sess.Send(protocol.PlayRejected(
			fmt.Sprintf("No recording for user [%s]. Please request a correct user!", user)))
		return
	}

	ep.OnCandidate(func(cand core.Candidate) {
		_ = sess.Send(protocol.IceCandidate(cand))
	})

	answer, err := ep.GenerateAnswer(msg.SDPOffer)
	if err != nil {
		pipeline.Release()
		_ = sess.Send(protocol.PlayRejected("playback negotiation failed"))
		return
	}

	c.playMu.Lock()
	if old := c.playbacks[connID]; old != nil {
		old.Release()
	}
	c.playbacks[connID] = pipeline
	c.playMu.Unlock()

	_ = sess.Send(protocol.PlayAccepted(answer))
	if err := ep.GatherCandidates(); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Msg("playback candidate gathering failed")
	}
	c.metrics.PlaybacksStarted.Inc()
}

// releasePlayback frees the requester's playback pipeline, if any. No-op when
// none exists or it was already released.
func (c *Coordinator) releasePlayback(id domain.ConnID) {
	c.playMu.Lock()
	pipeline := c.playbacks[id]
	delete(c.playbacks, id)
	c.playMu.Unlock()
	if pipeline != nil {
		pipeline.Release()
	}
}
