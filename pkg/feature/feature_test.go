package feature

import (
	"sync"
	"testing"
	"time"

	"remcon/pkg/protocol"
)

// fakeSender records outbound messages and hands them to the test through
// a channel so the test can craft the agent's reply.
type fakeSender struct {
	id      string
	mu      sync.Mutex
	sent    []*protocol.Message
	sendErr error
	outbox  chan *protocol.Message
}

func newFakeSender(id string) *fakeSender {
	return &fakeSender{id: id, outbox: make(chan *protocol.Message, 16)}
}

func (f *fakeSender) ID() string { return f.id }

func (f *fakeSender) Send(msg *protocol.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	f.outbox <- msg
	return nil
}

func (f *fakeSender) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

// nextSent returns the next outbound message, failing the test after a
// short wait.
func (f *fakeSender) nextSent(t *testing.T) *protocol.Message {
	t.Helper()
	select {
	case msg := <-f.outbox:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no outbound message")
		return nil
	}
}

func TestFeedSubscribePublish(t *testing.T) {
	var f feed[int]
	var got []int
	unsub := f.subscribe(func(v int) { got = append(got, v) })

	f.publish(1)
	f.publish(2)
	unsub()
	f.publish(3)

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected [1 2], got %v", got)
	}
}

func TestFeedMultipleSubscribers(t *testing.T) {
	var f feed[string]
	var a, b int
	f.subscribe(func(string) { a++ })
	f.subscribe(func(string) { b++ })

	f.publish("x")

	if a != 1 || b != 1 {
		t.Fatalf("both subscribers should see the event, got a=%d b=%d", a, b)
	}
}
