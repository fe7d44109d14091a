package dispatch

import (
	"sync"

	"remcon/pkg/logger"
	"remcon/pkg/protocol"

	"github.com/eapache/queue"
)

// Handler is the pluggable unit the router delivers messages to. One
// handler instance serves one feature on one session.
type Handler interface {
	// Feature returns the feature kind, e.g. "taskmanager"
	Feature() string
	// Kinds returns the message kinds this handler declares interest in
	Kinds() []protocol.Kind
	// OnMessage processes one inbound message of an interesting kind
	OnMessage(msg *protocol.Message)
	// Detach is called on teardown and must cancel any pending requests
	Detach()
}

// registration pairs a handler with its precomputed interest set
type registration struct {
	handler Handler
	kinds   map[protocol.Kind]struct{}
}

// sessionEntry holds the handler table and inbound FIFO for one session
type sessionEntry struct {
	mu       sync.Mutex
	cond     *sync.Cond
	handlers map[string]*registration
	queue    *queue.Queue
	closed   bool
}

func newSessionEntry() *sessionEntry {
	e := &sessionEntry{
		handlers: make(map[string]*registration),
		queue:    queue.New(),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Router delivers inbound messages to the feature handlers registered for
// their originating session.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	log      *logger.Logger
}

// NewRouter creates a new dispatch router
func NewRouter() *Router {
	return &Router{
		sessions: make(map[string]*sessionEntry),
		log:      logger.Get().With("component", "router"),
	}
}

// Register adds a handler for the given session. Registration is
// get-or-create: if a handler of the same feature is already registered
// for the session, that existing instance is returned and h is discarded.
func (r *Router) Register(sessionID string, h Handler) Handler {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if !ok {
		e = newSessionEntry()
		r.sessions[sessionID] = e
		go r.deliverLoop(sessionID, e)
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.handlers[h.Feature()]; ok {
		return existing.handler
	}

	kinds := make(map[protocol.Kind]struct{}, len(h.Kinds()))
	for _, k := range h.Kinds() {
		kinds[k] = struct{}{}
	}
	e.handlers[h.Feature()] = &registration{handler: h, kinds: kinds}
	r.log.Debug("handler registered", "session", sessionID, "feature", h.Feature())
	return h
}

// Unregister removes the handler of the given feature from the session and
// detaches it. It is an idempotent no-op when absent.
func (r *Router) Unregister(sessionID, feature string) {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	reg, ok := e.handlers[feature]
	if ok {
		delete(e.handlers, feature)
	}
	e.mu.Unlock()

	if ok {
		reg.handler.Detach()
		r.log.Debug("handler unregistered", "session", sessionID, "feature", feature)
	}
}

// Dispatch enqueues an inbound message for the given session. Delivery
// order within one session equals arrival order. Dispatch for an unknown
// or torn-down session is a silent no-op.
func (r *Router) Dispatch(sessionID string, msg *protocol.Message) {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		r.log.Debug("dropping message for unknown session", "session", sessionID, "kind", msg.Kind)
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue.Add(msg)
	e.cond.Signal()
	e.mu.Unlock()
}

// DropSession tears down every handler registration for the session and
// stops its delivery worker. Pending queued messages are discarded.
func (r *Router) DropSession(sessionID string) {
	r.mu.Lock()
	e, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.closed = true
	regs := make([]*registration, 0, len(e.handlers))
	for _, reg := range e.handlers {
		regs = append(regs, reg)
	}
	e.handlers = make(map[string]*registration)
	e.cond.Signal()
	e.mu.Unlock()

	for _, reg := range regs {
		reg.handler.Detach()
	}
	r.log.Debug("session handlers dropped", "session", sessionID, "count", len(regs))
}

// deliverLoop pops queued messages for one session and delivers each to
// every interested handler, preserving arrival order.
func (r *Router) deliverLoop(sessionID string, e *sessionEntry) {
	for {
		e.mu.Lock()
		for e.queue.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}
		msg := e.queue.Remove().(*protocol.Message)
		regs := make([]*registration, 0, len(e.handlers))
		for _, reg := range e.handlers {
			regs = append(regs, reg)
		}
		e.mu.Unlock()

		for _, reg := range regs {
			if _, interested := reg.kinds[msg.Kind]; !interested {
				continue
			}
			r.deliver(sessionID, reg.handler, msg)
		}
	}
}

// deliver invokes one handler, isolating panics so one bad handler cannot
// affect delivery to the others.
func (r *Router) deliver(sessionID string, h Handler, msg *protocol.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic recovered in handler",
				"session", sessionID, "feature", h.Feature(), "kind", msg.Kind, "panic", rec)
		}
	}()
	h.OnMessage(msg)
}
