package feature

import (
	"testing"

	"remcon/pkg/dispatch"
	"remcon/pkg/protocol"
)

func processList(t *testing.T, entries ...protocol.ProcessEntry) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.KindProcessList, protocol.ProcessListPayload{Processes: entries})
	if err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	return msg
}

func TestTaskManagerRefreshSendsCommand(t *testing.T) {
	sender := newFakeSender("a1")
	tm := NewTaskManager(sender)

	if err := tm.RefreshProcesses(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := sender.nextSent(t)
	if sent.Kind != protocol.KindRefreshProcesses {
		t.Fatalf("expected refresh command, got %s", sent.Kind)
	}
}

func TestTaskManagerSnapshotEvent(t *testing.T) {
	sender := newFakeSender("a1")
	tm := NewTaskManager(sender)

	var got []protocol.ProcessEntry
	tm.OnProcesses(func(entries []protocol.ProcessEntry) { got = entries })

	tm.OnMessage(processList(t,
		protocol.ProcessEntry{Name: "explorer.exe", PID: 1001, WindowTitle: ""},
		protocol.ProcessEntry{Name: "notepad.exe", PID: 2002, WindowTitle: "Untitled - Notepad"},
	))

	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Name != "explorer.exe" || got[0].PID != 1001 || got[0].WindowTitle != "" {
		t.Fatalf("first entry mismatch: %+v", got[0])
	}
	if got[1].Name != "notepad.exe" || got[1].WindowTitle != "Untitled - Notepad" {
		t.Fatalf("second entry mismatch: %+v", got[1])
	}
}

func TestTaskManagerStartProcessPayload(t *testing.T) {
	sender := newFakeSender("a1")
	tm := NewTaskManager(sender)

	if err := tm.StartProcess("calc.exe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := sender.nextSent(t)
	if sent.Kind != protocol.KindProcessAction {
		t.Fatalf("expected process action, got %s", sent.Kind)
	}
	var payload protocol.ProcessActionPayload
	if err := sent.ParsePayload(&payload); err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	if payload.Action != protocol.ActionStart || payload.Name != "calc.exe" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestTaskManagerEndProcessPayload(t *testing.T) {
	sender := newFakeSender("a1")
	tm := NewTaskManager(sender)

	if err := tm.EndProcess(4242); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := sender.nextSent(t)
	var payload protocol.ProcessActionPayload
	if err := sent.ParsePayload(&payload); err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	if payload.Action != protocol.ActionEnd || payload.PID != 4242 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestTaskManagerActionResultEvent(t *testing.T) {
	sender := newFakeSender("a1")
	tm := NewTaskManager(sender)

	var got protocol.ProcessActionResultPayload
	tm.OnActionResult(func(r protocol.ProcessActionResultPayload) { got = r })

	msg, err := protocol.NewMessage(protocol.KindProcessActionResult, protocol.ProcessActionResultPayload{
		Action:  protocol.ActionEnd,
		Success: true,
		PID:     4242,
	})
	if err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	tm.OnMessage(msg)

	if !got.Success || got.Action != protocol.ActionEnd || got.PID != 4242 {
		t.Fatalf("unexpected result event: %+v", got)
	}
}

func TestTaskManagerUnsubscribe(t *testing.T) {
	sender := newFakeSender("a1")
	tm := NewTaskManager(sender)

	calls := 0
	unsub := tm.OnProcesses(func([]protocol.ProcessEntry) { calls++ })

	tm.OnMessage(processList(t, protocol.ProcessEntry{Name: "a", PID: 1}))
	unsub()
	tm.OnMessage(processList(t, protocol.ProcessEntry{Name: "b", PID: 2}))

	if calls != 1 {
		t.Fatalf("expected one event after unsubscribe, got %d", calls)
	}
}

func TestTaskManagerMalformedPayloadIgnored(t *testing.T) {
	sender := newFakeSender("a1")
	tm := NewTaskManager(sender)

	calls := 0
	tm.OnProcesses(func([]protocol.ProcessEntry) { calls++ })

	msg := &protocol.Message{
		Version: protocol.Version,
		Kind:    protocol.KindProcessList,
		ID:      "m1",
		Payload: []byte(`{"processes": "not-a-list"}`),
	}
	tm.OnMessage(msg)

	if calls != 0 {
		t.Fatal("malformed payload must not raise an event")
	}
}

func TestAttachTaskManagerGetOrCreate(t *testing.T) {
	r := dispatch.NewRouter()
	sender := newFakeSender("a1")

	first := AttachTaskManager(r, sender)
	second := AttachTaskManager(r, sender)

	if first != second {
		t.Fatal("attach must return the session's single instance")
	}
}
