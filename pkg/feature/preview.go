package feature

import (
	"context"
	"fmt"
	"time"

	"remcon/pkg/dispatch"
	"remcon/pkg/errors"
	"remcon/pkg/logger"
	"remcon/pkg/protocol"
)

// DefaultPreviewTimeout bounds how long a preview request waits for its frame
const DefaultPreviewTimeout = 15 * time.Second

// Preview requests screen captures from one agent. Each request is
// correlated by its own message id, carried back in the response's ref.
type Preview struct {
	sender  Sender
	log     *logger.Logger
	corr    *dispatch.Correlator
	timeout time.Duration
}

// NewPreview creates a preview handler bound to the given session. A zero
// timeout selects DefaultPreviewTimeout.
func NewPreview(sender Sender, timeout time.Duration) *Preview {
	if timeout <= 0 {
		timeout = DefaultPreviewTimeout
	}
	return &Preview{
		sender:  sender,
		log:     logger.Get().With("feature", FeaturePreview, "session", sender.ID()),
		corr:    dispatch.NewCorrelator(),
		timeout: timeout,
	}
}

// AttachPreview registers a preview handler for the sender's session and
// returns the session's single instance, creating it on first use.
func AttachPreview(r *dispatch.Router, sender Sender, timeout time.Duration) *Preview {
	h := r.Register(sender.ID(), NewPreview(sender, timeout))
	return h.(*Preview)
}

// Feature returns the feature kind
func (p *Preview) Feature() string { return FeaturePreview }

// Kinds returns the inbound message kinds this handler consumes. Error
// replies carry the originating request's ref, so they resolve the same
// pending request a frame would.
func (p *Preview) Kinds() []protocol.Kind {
	return []protocol.Kind{protocol.KindPreviewResponse, protocol.KindError}
}

// OnMessage resolves preview frames and error replies against their
// originating request.
func (p *Preview) OnMessage(msg *protocol.Message) {
	if msg.Ref == "" {
		p.log.Debug("dropping reply without ref", "kind", msg.Kind)
		return
	}
	if !p.corr.Resolve(protocol.KindPreviewResponse, msg.Ref, msg) {
		p.log.Debug("dropping unmatched reply", "kind", msg.Kind, "ref", msg.Ref)
	}
}

// Detach cancels all pending preview requests
func (p *Preview) Detach() {
	p.corr.CancelAll(errors.ErrSessionClosed)
}

// RequestPreview asks the agent for one screen capture of the given monitor
// at the given jpeg quality and waits for the frame. Quality must be within
// 1..100 and monitor must not be negative.
func (p *Preview) RequestPreview(ctx context.Context, quality, monitor int32) (protocol.PreviewResponsePayload, error) {
	var zero protocol.PreviewResponsePayload

	if quality < 1 || quality > 100 {
		return zero, fmt.Errorf("quality must be within 1..100, got %d", quality)
	}
	if monitor < 0 {
		return zero, fmt.Errorf("monitor must not be negative, got %d", monitor)
	}

	msg, err := protocol.NewMessage(protocol.KindPreviewRequest, protocol.PreviewRequestPayload{
		Quality: quality,
		Monitor: monitor,
	})
	if err != nil {
		return zero, err
	}

	pending := p.corr.Expect(protocol.KindPreviewResponse, msg.ID, p.timeout)
	if err := p.sender.Send(msg); err != nil {
		pending.Cancel()
		return zero, err
	}

	resp, err := pending.Wait(ctx)
	if err != nil {
		return zero, err
	}

	if resp.Kind == protocol.KindError {
		var ep protocol.ErrorPayload
		if err := resp.ParsePayload(&ep); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("preview failed: %s (code %d)", ep.Message, ep.Code)
	}

	var payload protocol.PreviewResponsePayload
	if err := resp.ParsePayload(&payload); err != nil {
		return zero, err
	}
	return payload, nil
}
