package app

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/protocol"
)

// fakeConn captures outbound frames for assertions.
type fakeConn struct {
	mu       sync.Mutex
	frames   []core.Frame
	failSend bool
	closed   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend || c.closed {
		return errors.New("send failed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// sent decodes every captured frame.
func (c *fakeConn) sent() []protocol.ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.ServerMessage, 0, len(c.frames))
	for _, f := range c.frames {
		var m protocol.ServerMessage
		if err := json.Unmarshal(f, &m); err != nil {
			panic(err)
		}
		out = append(out, m)
	}
	return out
}

// lastOfType returns the most recent message with the given tag, if any.
func (c *fakeConn) lastOfType(t protocol.Type) (protocol.ServerMessage, bool) {
	msgs := c.sent()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == t {
			return msgs[i], true
		}
	}
	return protocol.ServerMessage{}, false
}

func (c *fakeConn) countOfType(t protocol.Type) int {
	n := 0
	for _, m := range c.sent() {
		if m.ID == t {
			n++
		}
	}
	return n
}

type fakePipeline struct {
	released atomic.Int32
}

func (p *fakePipeline) Release() { p.released.Add(1) }

type fakeEndpoint struct {
	mu        sync.Mutex
	added     []core.Candidate
	onCand    func(core.Candidate)
	gathered  bool
	answerErr error
	gatherErr error
}

func (ep *fakeEndpoint) GenerateAnswer(sdpOffer string) (string, error) {
	if ep.answerErr != nil {
		return "", ep.answerErr
	}
	return "answer-for:" + sdpOffer, nil
}

func (ep *fakeEndpoint) AddCandidate(c core.Candidate) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.added = append(ep.added, c)
	return nil
}

func (ep *fakeEndpoint) OnCandidate(fn func(core.Candidate)) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.onCand = fn
}

func (ep *fakeEndpoint) GatherCandidates() error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.gatherErr != nil {
		return ep.gatherErr
	}
	ep.gathered = true
	return nil
}

func (ep *fakeEndpoint) candidates() []core.Candidate {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return append([]core.Candidate(nil), ep.added...)
}

type fakeEngine struct {
	mu        sync.Mutex
	pipelines []*fakePipeline
	callerEp  *fakeEndpoint
	calleeEp  *fakeEndpoint
	playEp    *fakeEndpoint
	onEOS     func()
	recorded  bool

	pairErr     error
	answerErr   error
	recordErr   error
	playbackErr error
}

func (e *fakeEngine) CreatePairedPipeline(caller, callee string) (core.Pipeline, core.Endpoint, core.Endpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pairErr != nil {
		return nil, nil, nil, e.pairErr
	}
	p := &fakePipeline{}
	e.pipelines = append(e.pipelines, p)
	e.callerEp = &fakeEndpoint{answerErr: e.answerErr}
	e.calleeEp = &fakeEndpoint{answerErr: e.answerErr}
	return p, e.callerEp, e.calleeEp, nil
}

func (e *fakeEngine) StartRecording(core.Pipeline) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.recordErr != nil {
		return e.recordErr
	}
	e.recorded = true
	return nil
}

func (e *fakeEngine) CreatePlaybackPipeline(user string, onEndOfStream func()) (core.Pipeline, core.Endpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playbackErr != nil {
		return nil, nil, e.playbackErr
	}
	p := &fakePipeline{}
	e.pipelines = append(e.pipelines, p)
	e.playEp = &fakeEndpoint{}
	e.onEOS = onEndOfStream
	return p, e.playEp, nil
}

func (e *fakeEngine) pipelineCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pipelines)
}

func (e *fakeEngine) lastPipeline() *fakePipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pipelines) == 0 {
		return nil
	}
	return e.pipelines[len(e.pipelines)-1]
}
