package feature

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"remcon/pkg/dispatch"
	"remcon/pkg/errors"
	"remcon/pkg/logger"
	"remcon/pkg/protocol"
)

// DefaultDumpTimeout bounds how long a dump request waits for its response.
// Writing a full process image can take a while on large targets.
const DefaultDumpTimeout = 2 * time.Minute

// DumpResult is the terminal outcome of one memory dump request
type DumpResult struct {
	Success       bool
	PID           int32
	ProcessName   string
	FailureReason string
	DumpPath      string
}

// Message renders the outcome for display. A failure that arrives without a
// reason renders as "no reason given" rather than an empty string.
func (r DumpResult) Message() string {
	if r.Success {
		return fmt.Sprintf("dumped %s (pid %d) to %s", r.ProcessName, r.PID, r.DumpPath)
	}
	reason := r.FailureReason
	if reason == "" {
		reason = "no reason given"
	}
	return fmt.Sprintf("dump of %s (pid %d) failed: %s", r.ProcessName, r.PID, reason)
}

// Dump requests memory dumps of processes on one agent. Requests are
// correlated by target pid, so concurrent dumps of distinct processes can
// be in flight at once.
type Dump struct {
	sender    Sender
	log       *logger.Logger
	corr      *dispatch.Correlator
	timeout   time.Duration
	completed feed[DumpResult]
}

// NewDump creates a dump handler bound to the given session. A zero
// timeout selects DefaultDumpTimeout.
func NewDump(sender Sender, timeout time.Duration) *Dump {
	if timeout <= 0 {
		timeout = DefaultDumpTimeout
	}
	return &Dump{
		sender:  sender,
		log:     logger.Get().With("feature", FeatureDump, "session", sender.ID()),
		corr:    dispatch.NewCorrelator(),
		timeout: timeout,
	}
}

// AttachDump registers a dump handler for the sender's session and returns
// the session's single instance, creating it on first use.
func AttachDump(r *dispatch.Router, sender Sender, timeout time.Duration) *Dump {
	h := r.Register(sender.ID(), NewDump(sender, timeout))
	return h.(*Dump)
}

// Feature returns the feature kind
func (d *Dump) Feature() string { return FeatureDump }

// Kinds returns the inbound message kinds this handler consumes
func (d *Dump) Kinds() []protocol.Kind {
	return []protocol.Kind{protocol.KindDumpResponse}
}

// OnMessage handles inbound dump responses. Every response raises a
// completed event; a response matching a pending request also resolves it.
func (d *Dump) OnMessage(msg *protocol.Message) {
	var payload protocol.DumpResponsePayload
	if err := msg.ParsePayload(&payload); err != nil {
		d.log.ErrorWithErr("failed to parse dump response", err)
		return
	}

	result := DumpResult{
		Success:       payload.Result,
		PID:           payload.PID,
		ProcessName:   payload.ProcessName,
		FailureReason: payload.FailureReason,
		DumpPath:      payload.DumpPath,
	}
	d.completed.publish(result)

	key := strconv.FormatInt(int64(payload.PID), 10)
	if !d.corr.Resolve(protocol.KindDumpResponse, key, msg) {
		d.log.Debug("dropping unmatched dump response", "pid", payload.PID)
	}
}

// Detach cancels all pending dump requests
func (d *Dump) Detach() {
	d.corr.CancelAll(errors.ErrSessionClosed)
}

// RequestDump asks the agent to dump the process with the given pid and
// waits for the outcome. A second request for the same pid supersedes the
// first. Domain failure is reported inside DumpResult, not as an error.
func (d *Dump) RequestDump(ctx context.Context, pid int32) (DumpResult, error) {
	key := strconv.FormatInt(int64(pid), 10)
	pending := d.corr.Expect(protocol.KindDumpResponse, key, d.timeout)

	msg, err := protocol.NewMessage(protocol.KindDumpProcess, protocol.DumpRequestPayload{PID: pid})
	if err != nil {
		pending.Cancel()
		return DumpResult{}, err
	}
	if err := d.sender.Send(msg); err != nil {
		pending.Cancel()
		return DumpResult{}, err
	}

	resp, err := pending.Wait(ctx)
	if err != nil {
		return DumpResult{}, err
	}

	var payload protocol.DumpResponsePayload
	if err := resp.ParsePayload(&payload); err != nil {
		return DumpResult{}, err
	}
	return DumpResult{
		Success:       payload.Result,
		PID:           payload.PID,
		ProcessName:   payload.ProcessName,
		FailureReason: payload.FailureReason,
		DumpPath:      payload.DumpPath,
	}, nil
}

// OnCompleted subscribes to dump outcomes, including those answering
// requests issued elsewhere.
func (d *Dump) OnCompleted(fn func(DumpResult)) (unsubscribe func()) {
	return d.completed.subscribe(fn)
}
