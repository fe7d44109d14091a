package agent

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remcon/pkg/logger"
)

// Main is the agent entry point
func Main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "Controller websocket URL")
	agentID := flag.String("id", "", "Agent ID (derived from machine if empty)")
	token := flag.String("token", "", "Auth token")
	heartbeat := flag.Int("heartbeat", 30, "Heartbeat interval in seconds")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger.Init(logger.LogLevel(*logLevel), "text")
	log := logger.Get()

	id := *agentID
	if id == "" {
		machineID, err := newMachineIDGenerator().MachineID()
		if err != nil {
			log.ErrorWithErr("failed to derive machine id", err)
			return
		}
		id = machineID
	}

	cfg := &Config{
		ServerURL:         *serverURL,
		AgentID:           id,
		Token:             *token,
		HeartbeatInterval: time.Duration(*heartbeat) * time.Second,
		InsecureTLS:       *insecure,
	}

	log.Info("agent starting", "id", id, "server", cfg.ServerURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Reconnect loop with a fixed backoff
	for {
		a := New(cfg)
		if err := a.Start(); err != nil {
			log.Warn("connection failed, retrying", "error", err)
		} else {
			select {
			case <-a.Done():
				log.Info("disconnected, reconnecting")
			case sig := <-sigChan:
				log.Info("received signal", "signal", sig.String())
				a.Stop()
				return
			}
			a.Stop()
		}

		select {
		case <-time.After(10 * time.Second):
		case sig := <-sigChan:
			log.Info("received signal", "signal", sig.String())
			return
		}
	}
}
