package feature

import (
	"context"
	"time"

	"remcon/pkg/dispatch"
	"remcon/pkg/errors"
	"remcon/pkg/logger"
	"remcon/pkg/protocol"
)

// DefaultShellTimeout bounds how long a shell command waits for its result
const DefaultShellTimeout = 30 * time.Second

// Shell executes commands on one agent. Each command is correlated by its
// own message id, carried back in the result's ref.
type Shell struct {
	sender  Sender
	log     *logger.Logger
	corr    *dispatch.Correlator
	timeout time.Duration
}

// NewShell creates a shell handler bound to the given session. A zero
// timeout selects DefaultShellTimeout.
func NewShell(sender Sender, timeout time.Duration) *Shell {
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	return &Shell{
		sender:  sender,
		log:     logger.Get().With("feature", FeatureShell, "session", sender.ID()),
		corr:    dispatch.NewCorrelator(),
		timeout: timeout,
	}
}

// AttachShell registers a shell handler for the sender's session and
// returns the session's single instance, creating it on first use.
func AttachShell(r *dispatch.Router, sender Sender, timeout time.Duration) *Shell {
	h := r.Register(sender.ID(), NewShell(sender, timeout))
	return h.(*Shell)
}

// Feature returns the feature kind
func (s *Shell) Feature() string { return FeatureShell }

// Kinds returns the inbound message kinds this handler consumes
func (s *Shell) Kinds() []protocol.Kind {
	return []protocol.Kind{protocol.KindCommandResult}
}

// OnMessage resolves command results against their originating request
func (s *Shell) OnMessage(msg *protocol.Message) {
	if msg.Ref == "" {
		s.log.Debug("dropping command result without ref")
		return
	}
	if !s.corr.Resolve(protocol.KindCommandResult, msg.Ref, msg) {
		s.log.Debug("dropping unmatched command result", "ref", msg.Ref)
	}
}

// Detach cancels all pending commands
func (s *Shell) Detach() {
	s.corr.CancelAll(errors.ErrSessionClosed)
}

// Run executes a command on the agent and waits for its result. Command
// failure is reported inside the result payload, not as an error.
func (s *Shell) Run(ctx context.Context, command string) (protocol.CommandResultPayload, error) {
	var zero protocol.CommandResultPayload

	msg, err := protocol.NewMessage(protocol.KindExecCommand, protocol.ExecCommandPayload{
		Command:        command,
		TimeoutSeconds: int(s.timeout / time.Second),
	})
	if err != nil {
		return zero, err
	}

	pending := s.corr.Expect(protocol.KindCommandResult, msg.ID, s.timeout)
	if err := s.sender.Send(msg); err != nil {
		pending.Cancel()
		return zero, err
	}

	resp, err := pending.Wait(ctx)
	if err != nil {
		return zero, err
	}

	var payload protocol.CommandResultPayload
	if err := resp.ParsePayload(&payload); err != nil {
		return zero, err
	}
	return payload, nil
}
