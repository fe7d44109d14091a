package agent

import (
	"crypto/tls"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"remcon/pkg/logger"
	"remcon/pkg/protocol"

	"github.com/gorilla/websocket"
)

// Config holds agent configuration
type Config struct {
	ServerURL         string
	AgentID           string
	Token             string
	HeartbeatInterval time.Duration
	InsecureTLS       bool
}

// Agent maintains one connection to the controller and answers its
// commands.
type Agent struct {
	cfg       *Config
	log       *logger.Logger
	conn      *websocket.Conn
	executor  *commandExecutor
	sendChan  chan *protocol.Message
	stopChan  chan struct{}
	done      chan struct{}
	doneOnce  sync.Once
	startedAt time.Time
}

// New creates an agent instance
func New(cfg *Config) *Agent {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &Agent{
		cfg:      cfg,
		log:      logger.Get().With("component", "agent", "id", cfg.AgentID),
		executor: newCommandExecutor(),
		sendChan: make(chan *protocol.Message, 256),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start connects to the controller and runs the message pumps. It returns
// after the handshake completes; pump goroutines keep running until the
// connection drops or Stop is called.
func (a *Agent) Start() error {
	if err := a.connect(); err != nil {
		return err
	}

	a.startedAt = time.Now()

	go a.readPump()
	go a.writePump()
	go a.heartbeatLoop()

	a.log.Info("agent started", "server", a.cfg.ServerURL)
	return nil
}

// Stop closes the connection and stops the pumps
func (a *Agent) Stop() {
	close(a.stopChan)
	if a.conn != nil {
		a.conn.Close()
	}
}

// Done is closed once the connection has been lost
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

// connect dials the controller and performs the hello handshake
func (a *Agent) connect() error {
	dialer := websocket.Dialer{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: a.cfg.InsecureTLS,
			MinVersion:         tls.VersionTLS12,
		},
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(a.cfg.ServerURL, http.Header{})
	if err != nil {
		return err
	}
	a.conn = conn

	if err := a.handshake(); err != nil {
		conn.Close()
		return err
	}

	a.log.Info("connected", "server", a.cfg.ServerURL)
	return nil
}

// handshake sends the hello frame and waits for the controller's ack
func (a *Agent) handshake() error {
	hostname, _ := hostnameOrEmpty()

	hello, err := protocol.NewMessage(protocol.KindHello, protocol.HelloPayload{
		AgentID:  a.cfg.AgentID,
		Token:    a.cfg.Token,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Hostname: hostname,
		IP:       localIP(),
	})
	if err != nil {
		return err
	}
	if err := a.writeFrame(hello); err != nil {
		return err
	}

	a.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := a.conn.ReadMessage()
	if err != nil {
		return err
	}
	msg, err := protocol.DecodeFrame(data)
	if err != nil {
		return err
	}
	if msg.Kind != protocol.KindHelloAck {
		return errRejected("unexpected handshake reply: " + string(msg.Kind))
	}

	var ack protocol.HelloAckPayload
	if err := msg.ParsePayload(&ack); err != nil {
		return err
	}
	if !ack.Success {
		return errRejected(ack.Message)
	}
	return nil
}

type errRejected string

func (e errRejected) Error() string { return "handshake rejected: " + string(e) }

// readPump reads inbound command frames until the transport fails
func (a *Agent) readPump() {
	defer a.doneOnce.Do(func() { close(a.done) })
	defer a.conn.Close()

	for {
		a.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			a.log.Info("connection lost", "error", err)
			return
		}

		msg, err := protocol.DecodeFrame(data)
		if err != nil {
			a.log.Warn("dropping undecodable frame", "error", err)
			continue
		}

		a.handleMessage(msg)
	}
}

// writePump serializes all outbound frames onto the connection
func (a *Agent) writePump() {
	for {
		select {
		case msg := <-a.sendChan:
			if err := a.writeFrame(msg); err != nil {
				a.log.Warn("write failed", "kind", msg.Kind, "error", err)
				return
			}
		case <-a.stopChan:
			return
		}
	}
}

func (a *Agent) writeFrame(msg *protocol.Message) error {
	frame, err := protocol.EncodeFrame(msg)
	if err != nil {
		return err
	}
	a.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return a.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// send queues an outbound message, dropping it if the agent is stopping
// or the pump has stalled.
func (a *Agent) send(msg *protocol.Message) {
	select {
	case a.sendChan <- msg:
	case <-a.stopChan:
	case <-time.After(5 * time.Second):
		a.log.Warn("send queue stalled, dropping message", "kind", msg.Kind)
	}
}

// reply queues a response correlated to the originating request
func (a *Agent) reply(req *protocol.Message, kind protocol.Kind, payload interface{}) {
	msg, err := req.Reply(kind, payload)
	if err != nil {
		a.log.ErrorWithErr("failed to build reply", err, "kind", kind)
		return
	}
	a.send(msg)
}

// handleMessage dispatches one inbound command. Slow operations run on
// their own goroutine so the read pump keeps draining.
func (a *Agent) handleMessage(msg *protocol.Message) {
	switch msg.Kind {
	case protocol.KindRefreshProcesses:
		go a.handleRefreshProcesses()

	case protocol.KindProcessAction:
		go a.handleProcessAction(msg)

	case protocol.KindDumpProcess:
		go a.handleDumpProcess(msg)

	case protocol.KindPreviewRequest:
		go a.handlePreviewRequest(msg)

	case protocol.KindExecCommand:
		go a.handleExecCommand(msg)

	case protocol.KindPing:
		a.reply(msg, protocol.KindPong, nil)

	default:
		a.log.Debug("ignoring message", "kind", msg.Kind)
	}
}

func (a *Agent) handleRefreshProcesses() {
	entries := listProcesses()
	msg, err := protocol.NewMessage(protocol.KindProcessList, protocol.ProcessListPayload{Processes: entries})
	if err != nil {
		a.log.ErrorWithErr("failed to build process list", err)
		return
	}
	a.send(msg)
}

func (a *Agent) handleProcessAction(msg *protocol.Message) {
	var req protocol.ProcessActionPayload
	if err := msg.ParsePayload(&req); err != nil {
		a.log.ErrorWithErr("failed to parse process action", err)
		return
	}

	result := protocol.ProcessActionResultPayload{
		Action: req.Action,
		PID:    req.PID,
		Name:   req.Name,
	}
	switch req.Action {
	case protocol.ActionStart:
		result.Success = startProcess(req.Name) == nil
	case protocol.ActionEnd:
		result.Success = endProcess(req.PID) == nil
	}

	a.reply(msg, protocol.KindProcessActionResult, result)
}

func (a *Agent) handleDumpProcess(msg *protocol.Message) {
	var req protocol.DumpRequestPayload
	if err := msg.ParsePayload(&req); err != nil {
		a.log.ErrorWithErr("failed to parse dump request", err)
		return
	}

	a.reply(msg, protocol.KindDumpResponse, dumpProcess(req.PID))
}

func (a *Agent) handlePreviewRequest(msg *protocol.Message) {
	var req protocol.PreviewRequestPayload
	if err := msg.ParsePayload(&req); err != nil {
		a.log.ErrorWithErr("failed to parse preview request", err)
		return
	}

	frame, err := capturePreview(req.Quality, req.Monitor)
	if err != nil {
		a.reply(msg, protocol.KindError, protocol.ErrorPayload{
			Code:    500,
			Message: err.Error(),
		})
		return
	}
	a.reply(msg, protocol.KindPreviewResponse, frame)
}

func (a *Agent) handleExecCommand(msg *protocol.Message) {
	var req protocol.ExecCommandPayload
	if err := msg.ParsePayload(&req); err != nil {
		a.log.ErrorWithErr("failed to parse exec command", err)
		return
	}

	a.reply(msg, protocol.KindCommandResult, a.executor.execute(req))
}

// heartbeatLoop sends periodic heartbeats with system stats
func (a *Agent) heartbeatLoop() {
	ticker := time.NewTicker(a.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.sendHeartbeat()
		case <-a.stopChan:
			return
		}
	}
}

func (a *Agent) sendHeartbeat() {
	cpuUsage, memUsage := systemStats()

	msg, err := protocol.NewMessage(protocol.KindHeartbeat, protocol.HeartbeatPayload{
		AgentID:       a.cfg.AgentID,
		Status:        "online",
		CPUUsage:      cpuUsage,
		MemUsage:      memUsage,
		UptimeSeconds: int64(time.Since(a.startedAt) / time.Second),
	})
	if err != nil {
		a.log.ErrorWithErr("failed to build heartbeat", err)
		return
	}
	a.send(msg)
}

// localIP returns the outbound interface address
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
