package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remcon/pkg/config"
	"remcon/pkg/logger"
	"remcon/pkg/storage"
)

// Main is the controller entry point
func Main() {
	// Check for help flag early before instance check
	if len(os.Args) > 1 && (os.Args[len(os.Args)-1] == "-h" || os.Args[len(os.Args)-1] == "--help") {
		fs := flag.NewFlagSet("server", flag.ContinueOnError)
		fs.String("addr", ":8080", "Listen address")
		fs.String("config", "", "Config file path (optional)")
		fs.String("cert", "", "TLS certificate file")
		fs.String("key", "", "TLS key file")
		fs.Bool("tls", false, "Enable TLS")
		fs.String("token", "", "Agent auth token (empty accepts any agent)")
		fs.String("log-level", "info", "Log level: debug, info, warn, error")
		fs.String("log-format", "text", "Log format: text or json")
		printHelp(fs)
		return
	}

	// Handle subcommands: start|stop|restart|status (default: start)
	command := "start"
	if len(os.Args) > 1 {
		first := os.Args[1]
		if first == "start" || first == "stop" || first == "restart" || first == "status" {
			command = first
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		}
	}

	lock := newInstanceLock()

	if command != "start" {
		switch command {
		case "status":
			if pid, ok := lock.Alive(); ok {
				fmt.Printf("Server running (PID %d)\n", pid)
			} else {
				fmt.Println("Server not running")
			}
			return
		case "stop":
			if err := lock.Terminate(); err != nil {
				fmt.Printf("Stop failed: %v\n", err)
			} else {
				fmt.Println("Server stopped")
			}
			return
		case "restart":
			_ = lock.Terminate() // Ignore error; may not be running
			fmt.Println("Restarting server...")
		}
	}

	// Enforce single instance before starting
	if command == "start" {
		if pid, ok := lock.Alive(); ok {
			fmt.Printf("Server already running (PID %d)\n", pid)
			return
		}
	}

	addr := flag.String("addr", ":8080", "Listen address")
	configPath := flag.String("config", "", "Config file path (optional)")
	certFile := flag.String("cert", "", "TLS certificate file")
	keyFile := flag.String("key", "", "TLS key file")
	useTLS := flag.Bool("tls", false, "Enable TLS")
	authToken := flag.String("token", "", "Agent auth token (empty accepts any agent)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		return
	}

	// Flags override file configuration
	if *addr != ":8080" {
		cfg.Address = *addr
	}
	if *authToken != "" {
		cfg.AuthToken = *authToken
	}
	if *certFile != "" {
		cfg.TLS.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.TLS.KeyFile = *keyFile
	}
	if *useTLS {
		cfg.TLS.Enabled = true
	}

	log.Info("configuration loaded", "address", cfg.Address, "tls", cfg.TLS.Enabled, "database", cfg.Database.Type)

	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		log.ErrorWithErr("failed to open storage", err)
		return
	}

	srv := New(cfg, store)

	if err := lock.Acquire(); err != nil {
		log.Warn("failed to write PID file", "error", err)
	}
	defer lock.Release()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errorChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errorChan <- err
		}
	}()

	log.Info("server is running", "press", "Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.Info("server stopped")

	case err := <-errorChan:
		log.ErrorWithErr("server encountered fatal error", err)
	}
}

// printHelp displays help information for the server
func printHelp(fs *flag.FlagSet) {
	fmt.Print(`Remcon Server - Usage:

Commands:
  start              Start the server (default if no command given)
  stop               Stop the running server
  restart            Restart the server
  status             Show server status

Flags:
`)
	fs.PrintDefaults()
	fmt.Print(`
Examples:
  ./bin/remcon-server                            # Start on default port 8080
  ./bin/remcon-server -addr 127.0.0.1:8081       # Start on custom port
  ./bin/remcon-server -addr :8443 -tls           # Start with TLS
  ./bin/remcon-server stop                       # Stop the server
  ./bin/remcon-server status                     # Check if server is running
`)
}
