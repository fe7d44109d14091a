package feature

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"remcon/pkg/errors"
	"remcon/pkg/protocol"
)

func dumpReply(t *testing.T, req *protocol.Message, payload protocol.DumpResponsePayload) *protocol.Message {
	t.Helper()
	resp, err := req.Reply(protocol.KindDumpResponse, payload)
	if err != nil {
		t.Fatalf("failed to create reply: %v", err)
	}
	return resp
}

func TestDumpRequestSuccess(t *testing.T) {
	sender := newFakeSender("a1")
	d := NewDump(sender, time.Second)

	type res struct {
		result DumpResult
		err    error
	}
	done := make(chan res, 1)
	go func() {
		r, err := d.RequestDump(context.Background(), 1001)
		done <- res{r, err}
	}()

	sent := sender.nextSent(t)
	if sent.Kind != protocol.KindDumpProcess {
		t.Fatalf("expected dump command, got %s", sent.Kind)
	}
	var reqPayload protocol.DumpRequestPayload
	if err := sent.ParsePayload(&reqPayload); err != nil || reqPayload.PID != 1001 {
		t.Fatalf("unexpected request payload: %+v err=%v", reqPayload, err)
	}

	d.OnMessage(dumpReply(t, sent, protocol.DumpResponsePayload{
		Result:      true,
		PID:         1001,
		ProcessName: "explorer.exe",
		DumpPath:    `C:\dumps\explorer_1001.dmp`,
	}))

	r := <-done
	if r.err != nil {
		t.Fatalf("unexpected error: %v", r.err)
	}
	if !r.result.Success || r.result.DumpPath != `C:\dumps\explorer_1001.dmp` {
		t.Fatalf("unexpected result: %+v", r.result)
	}
	if !strings.Contains(r.result.Message(), "explorer.exe") {
		t.Fatalf("message should name the process: %s", r.result.Message())
	}
}

func TestDumpFailureEmptyReason(t *testing.T) {
	sender := newFakeSender("a1")
	d := NewDump(sender, time.Second)

	done := make(chan DumpResult, 1)
	go func() {
		r, err := d.RequestDump(context.Background(), 4242)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- r
	}()

	sent := sender.nextSent(t)
	d.OnMessage(dumpReply(t, sent, protocol.DumpResponsePayload{
		Result:      false,
		PID:         4242,
		ProcessName: "lsass.exe",
	}))

	r := <-done
	if r.Success {
		t.Fatal("expected a failed dump")
	}
	if !strings.Contains(r.Message(), "no reason given") {
		t.Fatalf("empty failure reason should render as 'no reason given', got %q", r.Message())
	}
}

func TestDumpFailureWithReason(t *testing.T) {
	r := DumpResult{Success: false, PID: 4242, ProcessName: "lsass.exe", FailureReason: "access denied"}
	if !strings.Contains(r.Message(), "access denied") {
		t.Fatalf("reason should be preserved, got %q", r.Message())
	}
}

func TestDumpCompletedEventAlwaysRaised(t *testing.T) {
	sender := newFakeSender("a1")
	d := NewDump(sender, time.Second)

	var got DumpResult
	calls := 0
	d.OnCompleted(func(r DumpResult) { got = r; calls++ })

	// No request pending; the response is unmatched but still observed
	msg, err := protocol.NewMessage(protocol.KindDumpResponse, protocol.DumpResponsePayload{
		Result:      true,
		PID:         7,
		ProcessName: "svchost.exe",
		DumpPath:    `C:\dumps\svchost_7.dmp`,
	})
	if err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	d.OnMessage(msg)

	if calls != 1 || got.PID != 7 {
		t.Fatalf("expected one completed event for pid 7, got calls=%d result=%+v", calls, got)
	}
}

func TestDumpSendErrorCancelsPending(t *testing.T) {
	sender := newFakeSender("a1")
	sender.setSendErr(errors.ErrSessionClosed)
	d := NewDump(sender, time.Second)

	_, err := d.RequestDump(context.Background(), 1001)
	if !stderrors.Is(err, errors.ErrSessionClosed) {
		t.Fatalf("expected send error, got %v", err)
	}

	// The key is free; a later response is unmatched
	msg, _ := protocol.NewMessage(protocol.KindDumpResponse, protocol.DumpResponsePayload{PID: 1001})
	d.OnMessage(msg)
}

func TestDumpTimeout(t *testing.T) {
	sender := newFakeSender("a1")
	d := NewDump(sender, 20*time.Millisecond)

	_, err := d.RequestDump(context.Background(), 1001)
	if !stderrors.Is(err, errors.ErrRequestTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestDumpDetachCancelsPending(t *testing.T) {
	sender := newFakeSender("a1")
	d := NewDump(sender, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := d.RequestDump(context.Background(), 1001)
		done <- err
	}()

	sender.nextSent(t)
	d.Detach()

	if err := <-done; !stderrors.Is(err, errors.ErrSessionClosed) {
		t.Fatalf("detach should cancel pending requests, got %v", err)
	}
}

func TestDumpConcurrentDistinctPids(t *testing.T) {
	sender := newFakeSender("a1")
	d := NewDump(sender, time.Second)

	type res struct {
		result DumpResult
		err    error
	}
	done1 := make(chan res, 1)
	done2 := make(chan res, 1)
	go func() {
		r, err := d.RequestDump(context.Background(), 100)
		done1 <- res{r, err}
	}()
	first := sender.nextSent(t)
	go func() {
		r, err := d.RequestDump(context.Background(), 200)
		done2 <- res{r, err}
	}()
	second := sender.nextSent(t)

	// Answer out of order
	d.OnMessage(dumpReply(t, second, protocol.DumpResponsePayload{Result: true, PID: 200, ProcessName: "b"}))
	d.OnMessage(dumpReply(t, first, protocol.DumpResponsePayload{Result: true, PID: 100, ProcessName: "a"}))

	r1, r2 := <-done1, <-done2
	if r1.err != nil || r2.err != nil {
		t.Fatalf("unexpected errors: %v %v", r1.err, r2.err)
	}
	if r1.result.PID != 100 || r2.result.PID != 200 {
		t.Fatalf("responses crossed: %+v %+v", r1.result, r2.result)
	}
}
