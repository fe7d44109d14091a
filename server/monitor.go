package server

import (
	"time"

	"remcon/pkg/logger"
	"remcon/pkg/protocol"
	"remcon/pkg/session"
	"remcon/pkg/storage"
)

// monitor consumes agent heartbeats, keeping session metadata and the
// persisted roster fresh.
type monitor struct {
	sess  *session.Session
	store storage.Store
	log   *logger.Logger
}

func newMonitor(sess *session.Session, store storage.Store) *monitor {
	return &monitor{
		sess:  sess,
		store: store,
		log:   logger.Get().With("feature", "monitor", "session", sess.ID()),
	}
}

func (m *monitor) Feature() string { return "monitor" }

func (m *monitor) Kinds() []protocol.Kind {
	return []protocol.Kind{protocol.KindHeartbeat, protocol.KindPong}
}

func (m *monitor) OnMessage(msg *protocol.Message) {
	now := time.Now()
	m.sess.UpdateMetadata(func(meta *protocol.AgentMetadata) {
		meta.LastSeen = now
		meta.Status = "online"
	})

	if msg.Kind != protocol.KindHeartbeat {
		return
	}

	var payload protocol.HeartbeatPayload
	if err := msg.ParsePayload(&payload); err != nil {
		m.log.ErrorWithErr("failed to parse heartbeat", err)
		return
	}
	m.log.Debug("heartbeat",
		"cpu", payload.CPUUsage, "mem", payload.MemUsage, "uptime_seconds", payload.UptimeSeconds)

	if err := m.store.SaveAgent(m.sess.Metadata()); err != nil {
		m.log.ErrorWithErr("failed to persist heartbeat", err)
	}
}

func (m *monitor) Detach() {
	m.sess.UpdateMetadata(func(meta *protocol.AgentMetadata) {
		meta.Status = "offline"
		meta.LastSeen = time.Now()
	})
	if err := m.store.SaveAgent(m.sess.Metadata()); err != nil {
		m.log.ErrorWithErr("failed to persist disconnect", err)
	}
}
