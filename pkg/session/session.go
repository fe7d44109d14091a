package session

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"remcon/pkg/errors"
	"remcon/pkg/logger"
	"remcon/pkg/protocol"

	"github.com/gorilla/websocket"
)

// State represents the lifecycle state of a session
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Conn is the subset of *websocket.Conn a session needs. Tests substitute
// an in-memory double.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Sink receives every decoded inbound message tagged with the identity of
// the session it arrived on. The dispatch router implements it.
type Sink interface {
	Dispatch(sessionID string, msg *protocol.Message)
}

// Options tunes session transport behavior
type Options struct {
	WriteTimeout time.Duration
	ReadIdle     time.Duration
}

const (
	defaultWriteTimeout = 10 * time.Second
	defaultReadIdle     = 90 * time.Second
)

// Session represents one live connection to a remote agent
type Session struct {
	id   string
	conn Conn
	sink Sink
	opts Options
	log  *logger.Logger

	state atomic.Int32

	// Serializes frame writes so one frame is fully written before the next
	writeMu sync.Mutex

	metaMu sync.RWMutex
	meta   *protocol.AgentMetadata

	subMu   sync.Mutex
	subs    map[int]func(connected bool)
	nextSub int
}

// New creates a session in the Connecting state
func New(id string, conn Conn, sink Sink, opts Options) *Session {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.ReadIdle <= 0 {
		opts.ReadIdle = defaultReadIdle
	}

	s := &Session{
		id:   id,
		conn: conn,
		sink: sink,
		opts: opts,
		log:  logger.Get().With("session", id),
		meta: &protocol.AgentMetadata{ID: id},
		subs: make(map[int]func(bool)),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// ID returns the session's agent identity
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Metadata returns the agent metadata for this session
func (s *Session) Metadata() *protocol.AgentMetadata {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.meta
}

// UpdateMetadata updates the agent metadata under the session's lock
func (s *Session) UpdateMetadata(fn func(*protocol.AgentMetadata)) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	fn(s.meta)
}

// MarkConnected transitions Connecting -> Connected and notifies
// subscribers once. It is a no-op in any other state.
func (s *Session) MarkConnected() {
	if s.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		s.notify(true)
	}
}

// SubscribeState registers a callback for connected/disconnected
// transitions and returns its unsubscribe handle.
func (s *Session) SubscribeState(fn func(connected bool)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) notify(connected bool) {
	s.subMu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(connected)
	}
}

// Send serializes msg into one frame and writes it. It is safe to call from
// any goroutine; writes are internally serialized and bounded by the write
// timeout. A write failure transitions the session to Disconnected.
func (s *Session) Send(msg *protocol.Message) error {
	if s.State() != StateConnected {
		return fmt.Errorf("session %s: %w", s.id, errors.ErrSessionClosed)
	}

	frame, err := protocol.EncodeFrame(msg)
	if err != nil {
		return fmt.Errorf("session %s: encode %s: %w", s.id, msg.Kind, err)
	}

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	err = s.conn.WriteMessage(websocket.BinaryMessage, frame)
	s.writeMu.Unlock()

	if err != nil {
		s.Disconnect()
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return fmt.Errorf("session %s: %w", s.id, errors.ErrWriteTimeout)
		}
		return fmt.Errorf("session %s: write: %w", s.id, err)
	}
	return nil
}

// ReadLoop reads frames until the transport fails, forwarding each decoded
// message to the sink. A frame that fails to decode is logged and dropped
// without tearing down the connection; a transport read error transitions
// the session to Disconnected.
func (s *Session) ReadLoop() {
	defer s.Disconnect()

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadIdle))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() == StateConnected && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Info("read loop ended", "error", err)
			}
			return
		}

		msg, err := protocol.DecodeFrame(data)
		if err != nil {
			s.log.Warn("dropping undecodable frame", "error", err)
			continue
		}

		s.sink.Dispatch(s.id, msg)
	}
}

// Disconnect transitions the session to Disconnected, closes the transport
// and notifies subscribers. The transition is idempotent; subscribers hear
// about it exactly once.
func (s *Session) Disconnect() {
	old := State(s.state.Swap(int32(StateDisconnected)))
	if old == StateDisconnected {
		return
	}
	s.conn.Close()
	s.notify(false)
}
