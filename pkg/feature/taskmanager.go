package feature

import (
	"remcon/pkg/dispatch"
	"remcon/pkg/logger"
	"remcon/pkg/protocol"
)

// TaskManager drives process management on one agent: snapshot refreshes
// plus start and end actions. Snapshots and action outcomes arrive
// asynchronously and are surfaced as events.
type TaskManager struct {
	sender  Sender
	log     *logger.Logger
	procs   feed[[]protocol.ProcessEntry]
	actions feed[protocol.ProcessActionResultPayload]
}

// NewTaskManager creates a task manager handler bound to the given session
func NewTaskManager(sender Sender) *TaskManager {
	return &TaskManager{
		sender: sender,
		log:    logger.Get().With("feature", FeatureTaskManager, "session", sender.ID()),
	}
}

// AttachTaskManager registers a task manager for the sender's session and
// returns the session's single instance, creating it on first use.
func AttachTaskManager(r *dispatch.Router, sender Sender) *TaskManager {
	h := r.Register(sender.ID(), NewTaskManager(sender))
	return h.(*TaskManager)
}

// Feature returns the feature kind
func (t *TaskManager) Feature() string { return FeatureTaskManager }

// Kinds returns the inbound message kinds this handler consumes
func (t *TaskManager) Kinds() []protocol.Kind {
	return []protocol.Kind{protocol.KindProcessList, protocol.KindProcessActionResult}
}

// OnMessage handles inbound snapshots and action results
func (t *TaskManager) OnMessage(msg *protocol.Message) {
	switch msg.Kind {
	case protocol.KindProcessList:
		var payload protocol.ProcessListPayload
		if err := msg.ParsePayload(&payload); err != nil {
			t.log.ErrorWithErr("failed to parse process list", err)
			return
		}
		t.procs.publish(payload.Processes)

	case protocol.KindProcessActionResult:
		var payload protocol.ProcessActionResultPayload
		if err := msg.ParsePayload(&payload); err != nil {
			t.log.ErrorWithErr("failed to parse action result", err)
			return
		}
		t.actions.publish(payload)
	}
}

// Detach releases the handler. The task manager keeps no pending state.
func (t *TaskManager) Detach() {}

// RefreshProcesses asks the agent for a fresh process snapshot. The
// snapshot arrives later as a processes event.
func (t *TaskManager) RefreshProcesses() error {
	msg, err := protocol.NewMessage(protocol.KindRefreshProcesses, nil)
	if err != nil {
		return err
	}
	return t.sender.Send(msg)
}

// StartProcess asks the agent to start a process by executable name
func (t *TaskManager) StartProcess(name string) error {
	msg, err := protocol.NewMessage(protocol.KindProcessAction, protocol.ProcessActionPayload{
		Action: protocol.ActionStart,
		Name:   name,
	})
	if err != nil {
		return err
	}
	return t.sender.Send(msg)
}

// EndProcess asks the agent to terminate the process with the given pid
func (t *TaskManager) EndProcess(pid int32) error {
	msg, err := protocol.NewMessage(protocol.KindProcessAction, protocol.ProcessActionPayload{
		Action: protocol.ActionEnd,
		PID:    pid,
	})
	if err != nil {
		return err
	}
	return t.sender.Send(msg)
}

// OnProcesses subscribes to process snapshot events. Entries preserve the
// agent's reported order.
func (t *TaskManager) OnProcesses(fn func([]protocol.ProcessEntry)) (unsubscribe func()) {
	return t.procs.subscribe(fn)
}

// OnActionResult subscribes to process action outcomes
func (t *TaskManager) OnActionResult(fn func(protocol.ProcessActionResultPayload)) (unsubscribe func()) {
	return t.actions.subscribe(fn)
}
