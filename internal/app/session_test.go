package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
)

func TestSessionCallTransitions(t *testing.T) {
	sess, _ := newTestSession("conn-a")
	assert.Equal(t, domain.CallStateIdle, sess.State())

	require.NoError(t, sess.StartOffer("bob", "offer-a"))
	assert.Equal(t, domain.CallStateOffering, sess.State())
	assert.Equal(t, "bob", sess.Peer())
	assert.Equal(t, "offer-a", sess.PendingOffer())

	// A second offer while one is pending is refused.
	require.Error(t, sess.StartOffer("carol", "offer-c"))
	assert.Equal(t, "bob", sess.Peer())

	require.NoError(t, sess.Accept())
	assert.Equal(t, domain.CallStateInCall, sess.State())

	sess.EndCall()
	assert.Equal(t, domain.CallStateIdle, sess.State())
	assert.Empty(t, sess.Peer())
	assert.Empty(t, sess.PendingOffer())
}

func TestSessionAcceptRequiresOffer(t *testing.T) {
	sess, _ := newTestSession("conn-a")
	require.Error(t, sess.Accept())
	assert.Equal(t, domain.CallStateIdle, sess.State())
}

func TestSessionEndCallIdempotent(t *testing.T) {
	sess, _ := newTestSession("conn-a")
	require.NoError(t, sess.ReceiveOffer("alice"))

	sess.EndCall()
	sess.EndCall()
	assert.Equal(t, domain.CallStateIdle, sess.State())
}

func TestSessionCandidateQueueDrainedInOrder(t *testing.T) {
	sess, _ := newTestSession("conn-a")

	require.NoError(t, sess.AddCandidate(core.Candidate{Candidate: "cand-1"}))
	require.NoError(t, sess.AddCandidate(core.Candidate{Candidate: "cand-2"}))

	ep := &fakeEndpoint{}
	sess.BindEndpoint(ep)

	got := ep.candidates()
	require.Len(t, got, 2)
	assert.Equal(t, "cand-1", got[0].Candidate)
	assert.Equal(t, "cand-2", got[1].Candidate)

	// After binding, candidates flow straight through.
	require.NoError(t, sess.AddCandidate(core.Candidate{Candidate: "cand-3"}))
	got = ep.candidates()
	require.Len(t, got, 3)
	assert.Equal(t, "cand-3", got[2].Candidate)
}

func TestSessionEndCallDropsQueueAndEndpoint(t *testing.T) {
	sess, _ := newTestSession("conn-a")
	require.NoError(t, sess.StartOffer("bob", "offer-a"))
	require.NoError(t, sess.AddCandidate(core.Candidate{Candidate: "stale"}))

	sess.EndCall()

	ep := &fakeEndpoint{}
	sess.BindEndpoint(ep)
	assert.Empty(t, ep.candidates())
}
