package app

import (
	"sync"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
)

// callBinding is the explicit record of one bound call: both participants'
// connection ids plus the pipeline handle, created once at accept time.
// Teardown from either side resolves the partner through it instead of
// re-deriving the relation from per-session name pointers.
type callBinding struct {
	caller, callee domain.ConnID
	pipeline       core.Pipeline

	releaseOnce sync.Once
}

// otherSide returns the partner of id within the binding.
func (b *callBinding) otherSide(id domain.ConnID) domain.ConnID {
	if id == b.caller {
		return b.callee
	}
	return b.caller
}

// release frees the pipeline exactly once, no matter how many teardown paths
// race to it.
func (b *callBinding) release() {
	b.releaseOnce.Do(func() {
		if b.pipeline != nil {
			b.pipeline.Release()
		}
	})
}

// bindingTable indexes active call bindings by each participant's connection
// id so teardown can start from whichever side hangs up first.
type bindingTable struct {
	mu     sync.Mutex
	byConn map[domain.ConnID]*callBinding
}

func newBindingTable() *bindingTable {
	return &bindingTable{byConn: make(map[domain.ConnID]*callBinding)}
}

func (t *bindingTable) put(b *callBinding) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byConn[b.caller] = b
	t.byConn[b.callee] = b
}

// take removes the binding reachable from id, deleting both keys. A second
// take from either side returns nil, which makes concurrent hangups collapse
// into one teardown.
func (t *bindingTable) take(id domain.ConnID) *callBinding {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.byConn[id]
	if !ok {
		return nil
	}
	delete(t.byConn, b.caller)
	delete(t.byConn, b.callee)
	return b
}

func (t *bindingTable) get(id domain.ConnID) *callBinding {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byConn[id]
}

func (t *bindingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byConn)
}
