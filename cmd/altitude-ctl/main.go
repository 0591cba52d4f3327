// Command altitude-ctl is an interactive controller for a Trinnov Altitude
// processor.
//
// It connects to the processor's automation port, synchronizes the full
// device state and offers an interactive prompt for volume, source, preset
// and raw protocol commands.
//
// Usage:
//
//	altitude-ctl [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-host string          Processor address (overrides config)
//	-port int             Automation port (default 44100)
//	-client-id string     Client identifier announced to the processor
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  Record all protocol traffic to this file
//	-sync-timeout duration  How long to wait for initial sync (default 10s)
//
// Examples:
//
//	# Connect to a processor
//	altitude-ctl -host 192.168.1.50
//
//	# Connect with protocol capture for later analysis
//	altitude-ctl -host 192.168.1.50 -protocol-log session.alog
//
//	# Use a configuration file
//	altitude-ctl -config altitude.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/altitude-protocol/altitude-go/cmd/altitude-ctl/interactive"
	"github.com/altitude-protocol/altitude-go/pkg/client"
	"github.com/altitude-protocol/altitude-go/pkg/config"
	"github.com/altitude-protocol/altitude-go/pkg/log"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Configuration file path (YAML)")
		host        = flag.String("host", "", "Processor address (overrides config)")
		port        = flag.Int("port", 0, "Automation port (overrides config)")
		clientID    = flag.String("client-id", "", "Client identifier announced to the processor")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		protocolLog = flag.String("protocol-log", "", "Record all protocol traffic to this file")
		syncTimeout = flag.Duration("sync-timeout", 10*time.Second, "How long to wait for initial sync")
	)
	flag.Parse()

	if err := run(*configPath, *host, *port, *clientID, *logLevel, *protocolLog, *syncTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, host string, port int, clientID, logLevel, protocolLog string, syncTimeout time.Duration) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if clientID != "" {
		cfg.ClientID = clientID
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if protocolLog != "" {
		cfg.Log.ProtocolFile = protocolLog
	}
	if cfg.Host == "" {
		return errors.New("processor host required (use -host or a config file)")
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var plog log.Logger = log.NoopLogger{}
	if cfg.Log.ProtocolFile != "" {
		fileLogger, err := log.NewFileLogger(cfg.Log.ProtocolFile)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fileLogger.Close()
		plog = fileLogger
		logger.Info("recording protocol traffic", "file", cfg.Log.ProtocolFile)
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Logger = logger
	clientCfg.ProtocolLog = plog

	c, err := client.New(clientCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("connecting", "host", cfg.Host)
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Stop()

	syncCtx, syncCancel := context.WithTimeout(ctx, syncTimeout)
	err = c.WaitSynced(syncCtx)
	syncCancel()
	if err != nil {
		// The prompt is still usable; broadcasts will fill the state in.
		logger.Warn("initial sync incomplete", "error", err)
	} else {
		snap := c.Snapshot()
		if snap.Version != nil && snap.ID != nil {
			logger.Info("synchronized", "version", *snap.Version, "id", *snap.ID)
		}
	}

	session, err := interactive.New(c)
	if err != nil {
		return err
	}
	// Route log output through readline so it does not mangle the prompt.
	logger = slog.New(slog.NewTextHandler(session.Stdout(), &slog.HandlerOptions{Level: level}))
	go session.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return nil
}
