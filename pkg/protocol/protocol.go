package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Version is the current wire protocol version.
const Version = 1

// Kind identifies the payload type carried by a Message.
type Kind string

const (
	// Handshake messages
	KindHello    Kind = "hello"
	KindHelloAck Kind = "hello_ack"

	// Task manager messages
	KindRefreshProcesses    Kind = "refresh_processes"
	KindProcessList         Kind = "process_list"
	KindProcessAction       Kind = "process_action"
	KindProcessActionResult Kind = "process_action_result"

	// Memory dump messages
	KindDumpProcess  Kind = "dump_process"
	KindDumpResponse Kind = "dump_response"

	// Screen preview messages
	KindPreviewRequest  Kind = "preview_request"
	KindPreviewResponse Kind = "preview_response"

	// Shell messages
	KindExecCommand   Kind = "exec_command"
	KindCommandResult Kind = "command_result"

	// Status and keepalive
	KindHeartbeat Kind = "heartbeat"
	KindError     Kind = "error"
	KindPing      Kind = "ping"
	KindPong      Kind = "pong"
)

// knownKinds is the closed set of kinds this build understands. Decoding a
// frame whose tag is not in this set yields a DecodeError.
var knownKinds = map[Kind]struct{}{
	KindHello:               {},
	KindHelloAck:            {},
	KindRefreshProcesses:    {},
	KindProcessList:         {},
	KindProcessAction:       {},
	KindProcessActionResult: {},
	KindDumpProcess:         {},
	KindDumpResponse:        {},
	KindPreviewRequest:      {},
	KindPreviewResponse:     {},
	KindExecCommand:         {},
	KindCommandResult:       {},
	KindHeartbeat:           {},
	KindError:               {},
	KindPing:                {},
	KindPong:                {},
}

// KnownKind reports whether k is a kind this build understands.
func KnownKind(k Kind) bool {
	_, ok := knownKinds[k]
	return ok
}

// Message is the envelope for all wire data.
type Message struct {
	Version int             `json:"v"`
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a new message with the given kind and payload
func NewMessage(kind Kind, payload interface{}) (*Message, error) {
	msg := &Message{
		Version: Version,
		Kind:    kind,
		ID:      uuid.NewString(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}

	return msg, nil
}

// Reply creates a response message whose Ref carries this message's ID,
// so the sender can correlate it with the originating request.
func (m *Message) Reply(kind Kind, payload interface{}) (*Message, error) {
	resp, err := NewMessage(kind, payload)
	if err != nil {
		return nil, err
	}
	resp.Ref = m.ID
	return resp, nil
}

// ParsePayload unmarshals the message payload into the given interface
func (m *Message) ParsePayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// HelloPayload identifies an agent during the handshake
type HelloPayload struct {
	AgentID  string `json:"agent_id"`
	Token    string `json:"token"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
}

// HelloAckPayload contains the controller's handshake response
type HelloAckPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ProcessEntry is one row of a process snapshot
type ProcessEntry struct {
	Name        string `json:"name"`
	PID         int32  `json:"pid"`
	WindowTitle string `json:"window_title"`
}

// ProcessListPayload carries an ordered process snapshot
type ProcessListPayload struct {
	Processes []ProcessEntry `json:"processes"`
}

// ProcessAction identifies the kind of process action requested
type ProcessAction string

const (
	ActionStart ProcessAction = "start"
	ActionEnd   ProcessAction = "end"
)

// ProcessActionPayload requests starting or ending a process. Start is
// parameterized by name, end by pid.
type ProcessActionPayload struct {
	Action ProcessAction `json:"action"`
	PID    int32         `json:"pid,omitempty"`
	Name   string        `json:"name,omitempty"`
}

// ProcessActionResultPayload reports the outcome of a process action
type ProcessActionResultPayload struct {
	Action  ProcessAction `json:"action"`
	Success bool          `json:"success"`
	PID     int32         `json:"pid,omitempty"`
	Name    string        `json:"name,omitempty"`
}

// DumpRequestPayload requests a memory dump of one process
type DumpRequestPayload struct {
	PID int32 `json:"pid"`
}

// DumpResponsePayload reports the outcome of a memory dump. FailureReason
// may be empty even when Result is false.
type DumpResponsePayload struct {
	Result        bool   `json:"result"`
	PID           int32  `json:"pid"`
	ProcessName   string `json:"process_name"`
	FailureReason string `json:"failure_reason"`
	DumpPath      string `json:"dump_path,omitempty"`
}

// Resolution describes image dimensions
type Resolution struct {
	Width  int32 `json:"width"`
	Height int32 `json:"height"`
}

// PreviewRequestPayload requests a screen preview. Quality and monitor are
// plain integers; range validation is a handler-level concern.
type PreviewRequestPayload struct {
	Quality int32 `json:"quality"`
	Monitor int32 `json:"monitor"`
}

// PreviewResponsePayload carries a captured screen preview
type PreviewResponsePayload struct {
	Image      []byte     `json:"image"`
	Quality    int32      `json:"quality"`
	Monitor    int32      `json:"monitor"`
	Resolution Resolution `json:"resolution"`
}

// ExecCommandPayload contains a shell command to execute
type ExecCommandPayload struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// CommandResultPayload contains a shell command's result. Domain failure is
// reported in-band via Success and Error, never as a transport fault.
type CommandResultPayload struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// HeartbeatPayload contains agent health information
type HeartbeatPayload struct {
	AgentID       string  `json:"agent_id"`
	Status        string  `json:"status"`
	CPUUsage      float64 `json:"cpu_usage"`
	MemUsage      float64 `json:"mem_usage"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// ErrorPayload reports a protocol-level error in-band
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AgentMetadata stores agent roster information
type AgentMetadata struct {
	ID          string    `json:"id"`
	OS          string    `json:"os"`
	Arch        string    `json:"arch"`
	Hostname    string    `json:"hostname"`
	IP          string    `json:"ip"`
	PublicIP    string    `json:"public_ip"`
	Status      string    `json:"status"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}
