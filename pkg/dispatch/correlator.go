package dispatch

import (
	"context"
	"sync"
	"time"

	"remcon/pkg/errors"
	"remcon/pkg/logger"
	"remcon/pkg/protocol"
)

// pendingKey identifies one outstanding request: the kind of the expected
// response plus a caller-chosen match key (a pid, a request id).
type pendingKey struct {
	kind protocol.Kind
	key  string
}

// outcome is the terminal result of a pending request
type outcome struct {
	msg *protocol.Message
	err error
}

// PendingRequest is one outbound command awaiting its correlated response
type PendingRequest struct {
	c     *Correlator
	pk    pendingKey
	done  chan outcome
	timer *time.Timer
}

// Wait blocks until the request resolves or ctx is done. On ctx
// cancellation the pending entry is removed so it cannot leak.
func (p *PendingRequest) Wait(ctx context.Context) (*protocol.Message, error) {
	select {
	case o := <-p.done:
		return o.msg, o.err
	case <-ctx.Done():
		p.c.fail(p, errors.ErrRequestCancelled)
		return nil, ctx.Err()
	}
}

// Cancel resolves the request as cancelled if it is still pending
func (p *PendingRequest) Cancel() {
	p.c.fail(p, errors.ErrRequestCancelled)
}

// Correlator matches outbound commands to their inbound responses. Each
// feature handler owns one.
type Correlator struct {
	mu      sync.Mutex
	pending map[pendingKey]*PendingRequest
	log     *logger.Logger
}

// NewCorrelator creates an empty correlator
func NewCorrelator() *Correlator {
	return &Correlator{
		pending: make(map[pendingKey]*PendingRequest),
		log:     logger.Get().With("component", "correlator"),
	}
}

// Expect registers a pending request for the given response kind and match
// key with a deadline. A request already pending under the same key is
// superseded: its waiter resolves with ErrRequestSuperseded and the new
// request takes the key (last-write-wins).
func (c *Correlator) Expect(kind protocol.Kind, key string, timeout time.Duration) *PendingRequest {
	p := &PendingRequest{
		c:    c,
		pk:   pendingKey{kind: kind, key: key},
		done: make(chan outcome, 1),
	}

	c.mu.Lock()
	old := c.pending[p.pk]
	c.pending[p.pk] = p
	// Armed inside the critical section: every completion path finds p in
	// the map under mu first, so it observes the timer write.
	p.timer = time.AfterFunc(timeout, func() {
		c.fail(p, errors.ErrRequestTimeout)
	})
	c.mu.Unlock()

	if old != nil {
		old.complete(nil, errors.ErrRequestSuperseded)
		c.log.Debug("pending request superseded", "kind", kind, "key", key)
	}

	return p
}

// Resolve completes the pending request matching (kind, key) with msg.
// It returns false when no such request is outstanding; the caller drops
// the message with a debug note.
func (c *Correlator) Resolve(kind protocol.Kind, key string, msg *protocol.Message) bool {
	pk := pendingKey{kind: kind, key: key}

	c.mu.Lock()
	p, ok := c.pending[pk]
	if ok {
		delete(c.pending, pk)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	p.complete(msg, nil)
	return true
}

// CancelAll resolves every pending request with err. Used on handler
// teardown and session disconnect so no waiter is left unresolved.
func (c *Correlator) CancelAll(err error) {
	c.mu.Lock()
	all := make([]*PendingRequest, 0, len(c.pending))
	for _, p := range c.pending {
		all = append(all, p)
	}
	c.pending = make(map[pendingKey]*PendingRequest)
	c.mu.Unlock()

	for _, p := range all {
		p.complete(nil, err)
	}
}

// fail completes p with err only if p is still the registered request for
// its key, so a late timer cannot clobber a successor.
func (c *Correlator) fail(p *PendingRequest, err error) {
	c.mu.Lock()
	current, ok := c.pending[p.pk]
	if ok && current == p {
		delete(c.pending, p.pk)
	} else {
		ok = false
	}
	c.mu.Unlock()

	if ok {
		p.complete(nil, err)
	}
}

// complete delivers the outcome. The map removal discipline guarantees a
// single completion per request; the buffered channel never blocks.
func (p *PendingRequest) complete(msg *protocol.Message, err error) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.done <- outcome{msg: msg, err: err}
}
