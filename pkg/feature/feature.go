package feature

import (
	"sync"

	"remcon/pkg/protocol"
)

// Feature kind names used for router registration
const (
	FeatureTaskManager = "taskmanager"
	FeatureDump        = "dump"
	FeaturePreview     = "preview"
	FeatureShell       = "shell"
)

// Sender is the narrow view of a session the handlers need: an identity and
// a way to send commands. *session.Session satisfies it.
type Sender interface {
	ID() string
	Send(msg *protocol.Message) error
}

// feed fans one event stream out to subscribers. Subscribe returns an
// unsubscribe handle; publish runs callbacks synchronously on the calling
// goroutine, so subscribers must not block.
type feed[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

func (f *feed[T]) subscribe(fn func(T)) (unsubscribe func()) {
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[int]func(T))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *feed[T]) publish(v T) {
	f.mu.Lock()
	fns := make([]func(T), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
