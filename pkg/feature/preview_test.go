package feature

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"remcon/pkg/errors"
	"remcon/pkg/protocol"
)

func TestPreviewValidation(t *testing.T) {
	sender := newFakeSender("a1")
	p := NewPreview(sender, time.Second)

	cases := []struct {
		name    string
		quality int32
		monitor int32
	}{
		{"quality zero", 0, 0},
		{"quality too high", 101, 0},
		{"quality negative", -5, 0},
		{"monitor negative", 80, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.RequestPreview(context.Background(), tc.quality, tc.monitor); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}

	if len(sender.sent) != 0 {
		t.Fatal("invalid requests must not reach the wire")
	}
}

func TestPreviewSuccess(t *testing.T) {
	sender := newFakeSender("a1")
	p := NewPreview(sender, time.Second)

	image := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	type res struct {
		payload protocol.PreviewResponsePayload
		err     error
	}
	done := make(chan res, 1)
	go func() {
		pl, err := p.RequestPreview(context.Background(), 80, 0)
		done <- res{pl, err}
	}()

	sent := sender.nextSent(t)
	if sent.Kind != protocol.KindPreviewRequest {
		t.Fatalf("expected preview request, got %s", sent.Kind)
	}
	var reqPayload protocol.PreviewRequestPayload
	if err := sent.ParsePayload(&reqPayload); err != nil {
		t.Fatalf("failed to parse request: %v", err)
	}
	if reqPayload.Quality != 80 || reqPayload.Monitor != 0 {
		t.Fatalf("unexpected request payload: %+v", reqPayload)
	}

	reply, err := sent.Reply(protocol.KindPreviewResponse, protocol.PreviewResponsePayload{
		Image:      image,
		Quality:    80,
		Monitor:    0,
		Resolution: protocol.Resolution{Width: 1920, Height: 1080},
	})
	if err != nil {
		t.Fatalf("failed to create reply: %v", err)
	}
	p.OnMessage(reply)

	r := <-done
	if r.err != nil {
		t.Fatalf("unexpected error: %v", r.err)
	}
	if !bytes.Equal(r.payload.Image, image) {
		t.Fatal("image bytes should survive the round trip")
	}
	if r.payload.Resolution.Width != 1920 || r.payload.Resolution.Height != 1080 {
		t.Fatalf("unexpected resolution: %+v", r.payload.Resolution)
	}
}

func TestPreviewErrorReply(t *testing.T) {
	sender := newFakeSender("a1")
	p := NewPreview(sender, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := p.RequestPreview(context.Background(), 80, 3)
		done <- err
	}()

	sent := sender.nextSent(t)
	reply, err := sent.Reply(protocol.KindError, protocol.ErrorPayload{
		Code:    404,
		Message: "monitor 3 does not exist",
	})
	if err != nil {
		t.Fatalf("failed to create reply: %v", err)
	}
	p.OnMessage(reply)

	got := <-done
	if got == nil || !strings.Contains(got.Error(), "monitor 3 does not exist") {
		t.Fatalf("error reply should surface the agent's message, got %v", got)
	}
}

func TestPreviewUnmatchedReplyDropped(t *testing.T) {
	sender := newFakeSender("a1")
	p := NewPreview(sender, time.Second)

	// Ref points at nothing; must not panic or block
	msg, err := protocol.NewMessage(protocol.KindPreviewResponse, protocol.PreviewResponsePayload{})
	if err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	msg.Ref = "no-such-request"
	p.OnMessage(msg)

	// Missing ref entirely
	msg2, _ := protocol.NewMessage(protocol.KindPreviewResponse, protocol.PreviewResponsePayload{})
	p.OnMessage(msg2)
}

func TestPreviewDetachCancelsPending(t *testing.T) {
	sender := newFakeSender("a1")
	p := NewPreview(sender, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := p.RequestPreview(context.Background(), 80, 0)
		done <- err
	}()

	sender.nextSent(t)
	p.Detach()

	if err := <-done; !stderrors.Is(err, errors.ErrSessionClosed) {
		t.Fatalf("detach should cancel pending requests, got %v", err)
	}
}
