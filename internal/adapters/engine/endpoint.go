package engine

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Talk/internal/core"
)

// endpoint wraps one PeerConnection leg behind core.Endpoint. Locally
// gathered candidates are buffered until GatherCandidates is called, so the
// coordinator can finish negotiation before any candidate reaches a client.
type endpoint struct {
	pc *webrtc.PeerConnection

	mu        sync.Mutex
	gathering bool
	buffered  []core.Candidate
	onCand    func(core.Candidate)
}

func newEndpoint(pc *webrtc.PeerConnection) *endpoint {
	ep := &endpoint{pc: pc}
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		ep.deliver(candidateFromPion(c.ToJSON()))
	})
	return ep
}

func (ep *endpoint) deliver(c core.Candidate) {
	ep.mu.Lock()
	if !ep.gathering || ep.onCand == nil {
		ep.buffered = append(ep.buffered, c)
		ep.mu.Unlock()
		return
	}
	cb := ep.onCand
	ep.mu.Unlock()
	cb(c)
}

func (ep *endpoint) OnCandidate(fn func(core.Candidate)) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.onCand = fn
}

// GatherCandidates releases buffered local candidates to the callback and
// lets future ones flow through directly.
func (ep *endpoint) GatherCandidates() error {
	ep.mu.Lock()
	ep.gathering = true
	cb := ep.onCand
	buffered := ep.buffered
	ep.buffered = nil
	ep.mu.Unlock()

	if cb == nil {
		return fmt.Errorf("engine: GatherCandidates before OnCandidate")
	}
	for _, c := range buffered {
		cb(c)
	}
	return nil
}

func (ep *endpoint) GenerateAnswer(sdpOffer string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdpOffer}
	if err := ep.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := ep.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	// Trickle: candidates stream via OnICECandidate, no need to wait for
	// gathering to complete here.
	if err := ep.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local answer: %w", err)
	}
	return answer.SDP, nil
}

func (ep *endpoint) AddCandidate(c core.Candidate) error {
	return ep.pc.AddICECandidate(candidateToPion(c))
}

func candidateFromPion(init webrtc.ICECandidateInit) core.Candidate {
	out := core.Candidate{Candidate: init.Candidate}
	if init.SDPMid != nil {
		out.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		out.SDPMLineIndex = *init.SDPMLineIndex
	}
	return out
}

func candidateToPion(c core.Candidate) webrtc.ICECandidateInit {
	mid := c.SDPMid
	idx := c.SDPMLineIndex
	return webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}
}
