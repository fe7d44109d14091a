package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"remcon/pkg/config"
	"remcon/pkg/dispatch"
	"remcon/pkg/errors"
	"remcon/pkg/logger"
	"remcon/pkg/protocol"
	"remcon/pkg/session"
	"remcon/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handshakeTimeout bounds how long a fresh connection may take to present
// its hello frame.
const handshakeTimeout = 10 * time.Second

// Server is the controller: it accepts agent connections over websocket,
// tracks their sessions, and exposes the feature surface as an HTTP API.
type Server struct {
	cfg      *config.ServerConfig
	log      *logger.Logger
	registry *session.Registry
	router   *dispatch.Router
	store    storage.Store
	engine   *gin.Engine
	httpSrv  *http.Server
	stop     chan struct{}
}

// New creates a server wired to the given store
func New(cfg *config.ServerConfig, store storage.Store) *Server {
	router := dispatch.NewRouter()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		log:      logger.Get().With("component", "server"),
		registry: session.NewRegistry(router),
		router:   router,
		store:    store,
		engine:   engine,
		stop:     make(chan struct{}),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/ws", gin.WrapF(s.handleWebSocket))

	api := s.engine.Group("/api")
	api.GET("/agents", s.handleAgents)
	api.GET("/stats", s.handleStats)
	api.DELETE("/agents/:id", s.handleDeleteAgent)
	api.GET("/agents/:id/processes", s.handleProcesses)
	api.POST("/agents/:id/process-action", s.handleProcessAction)
	api.POST("/agents/:id/dump", s.handleDump)
	api.GET("/agents/:id/preview", s.handlePreview)
	api.POST("/agents/:id/exec", s.handleExec)
}

// Handler returns the HTTP handler serving both the websocket endpoint and
// the API. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Registry returns the live session registry
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Start runs the HTTP listener and the roster offline sweep. It blocks
// until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.engine,
	}

	go s.sweepLoop()

	s.log.Info("listening", "address", s.cfg.Address, "tls", s.cfg.TLS.Enabled)
	var err error
	if s.cfg.TLS.Enabled {
		err = s.httpSrv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		err = s.httpSrv.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener, disconnects every session and closes the
// store.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stop)

	for _, sess := range s.registry.All() {
		s.registry.Unregister(sess.ID())
	}

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// sweepLoop periodically marks agents offline in the roster when they have
// not been seen within the configured threshold.
func (s *Server) sweepLoop() {
	threshold := s.cfg.Transport.OfflineAfter()
	if threshold <= 0 {
		return
	}
	interval := threshold / 2
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.store.MarkOffline(threshold); err != nil {
				s.log.ErrorWithErr("offline sweep failed", err)
			}
		case <-s.stop:
			return
		}
	}
}

// handleWebSocket upgrades an agent connection and runs the hello
// handshake before handing the transport to a session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.ErrorWithErr("websocket upgrade failed", err)
		return
	}

	hello, payload, err := s.readHello(conn)
	if err != nil {
		s.log.Warn("handshake rejected", "remote", r.RemoteAddr, "error", err)
		s.rejectHello(conn, hello, err.Error())
		conn.Close()
		return
	}

	publicIP := clientIP(r)
	now := time.Now()

	sess := session.New(payload.AgentID, conn, s.router, session.Options{
		WriteTimeout: s.cfg.Transport.WriteTimeout(),
		ReadIdle:     s.cfg.Transport.ReadIdle(),
	})
	sess.UpdateMetadata(func(m *protocol.AgentMetadata) {
		m.OS = payload.OS
		m.Arch = payload.Arch
		m.Hostname = payload.Hostname
		m.IP = payload.IP
		m.PublicIP = publicIP
		m.Status = "online"
		m.ConnectedAt = now
		m.LastSeen = now
	})

	s.registry.Register(sess)
	sess.MarkConnected()

	ack, err := hello.Reply(protocol.KindHelloAck, protocol.HelloAckPayload{Success: true})
	if err == nil {
		err = sess.Send(ack)
	}
	if err != nil {
		s.log.ErrorWithErr("failed to ack handshake", err)
		s.registry.Unregister(sess.ID())
		return
	}

	// Keeps the roster fresh from heartbeats
	s.router.Register(sess.ID(), newMonitor(sess, s.store))

	if err := s.store.SaveAgent(sess.Metadata()); err != nil {
		s.log.ErrorWithErr("failed to persist agent", err)
	}

	s.log.Info("agent connected",
		"agent", payload.AgentID, "hostname", payload.Hostname, "os", payload.OS, "remote", r.RemoteAddr)

	go sess.ReadLoop()
}

// readHello reads and validates the first frame of a fresh connection
func (s *Server) readHello(conn *websocket.Conn) (*protocol.Message, *protocol.HelloPayload, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, err
	}

	msg, err := protocol.DecodeFrame(data)
	if err != nil {
		return nil, nil, err
	}
	if msg.Kind != protocol.KindHello {
		return msg, nil, fmt.Errorf("%w: expected hello, got %s", errors.ErrHandshakeFailed, msg.Kind)
	}

	var payload protocol.HelloPayload
	if err := msg.ParsePayload(&payload); err != nil {
		return msg, nil, err
	}
	if payload.AgentID == "" {
		return msg, nil, fmt.Errorf("%w: missing agent id", errors.ErrHandshakeFailed)
	}
	if s.cfg.AuthToken != "" && payload.Token != s.cfg.AuthToken {
		return msg, nil, fmt.Errorf("%w: invalid token", errors.ErrHandshakeFailed)
	}

	return msg, &payload, nil
}

// rejectHello sends a negative ack before closing a rejected connection.
// Best effort; the connection is going away either way.
func (s *Server) rejectHello(conn *websocket.Conn, hello *protocol.Message, reason string) {
	if hello == nil {
		return
	}
	nack, err := hello.Reply(protocol.KindHelloAck, protocol.HelloAckPayload{
		Success: false,
		Message: reason,
	})
	if err != nil {
		return
	}
	frame, err := protocol.EncodeFrame(nack)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame)
}

// clientIP extracts the peer address, honoring reverse proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	for i := len(r.RemoteAddr) - 1; i >= 0; i-- {
		if r.RemoteAddr[i] == ':' {
			return r.RemoteAddr[:i]
		}
	}
	return r.RemoteAddr
}
