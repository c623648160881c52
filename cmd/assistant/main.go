// Command assistant is the terminal client. It connects to the assistant
// server, keeps the conversation state in sync, and renders the chat UI.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/prsnlassistant/client/internal/chat"
	"github.com/prsnlassistant/client/internal/client"
	"github.com/prsnlassistant/client/internal/client/loop"
	"github.com/prsnlassistant/client/internal/client/stream"
	"github.com/prsnlassistant/client/internal/config"
	"github.com/prsnlassistant/client/internal/conversations"
	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/logger"
	"github.com/prsnlassistant/client/internal/settings"
	"github.com/prsnlassistant/client/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	logPath := flag.String("log", "assistant.log", "path to the log file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI; logs go to a file.
	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()
	logger.Init(logFile, cfg.LogLevel)

	bus := event.NewBus()
	opts := client.Options{
		InitialBackoff: cfg.Reconnect.InitialBackoff,
		MaxBackoff:     cfg.Reconnect.MaxBackoff,
		MaxAttempts:    cfg.Reconnect.MaxAttempts,
		PingInterval:   cfg.PingInterval,
	}

	var transport client.Transport
	switch cfg.Transport {
	case "loop":
		transport = loop.New(bus, opts)
	default:
		transport = stream.New(bus, opts)
	}

	convsSvc := conversations.NewService(conversations.NewState(), bus, transport)
	chatSvc := chat.NewService(chat.NewState(), bus, transport)
	settingsSvc := settings.NewService(settings.NewState(cfg.ServerURL), bus)
	convsSvc.Start()
	chatSvc.Start()
	settingsSvc.Start()
	defer convsSvc.Stop()
	defer chatSvc.Stop()
	defer settingsSvc.Stop()

	sup := client.NewSupervisor(transport)
	go sup.Run(cfg.ServerURL)
	defer sup.Stop()

	program := tea.NewProgram(
		ui.New(convsSvc, chatSvc, settingsSvc),
		tea.WithAltScreen(),
	)

	// Forward bus events into the UI and cycle the connection on endpoint
	// changes.
	sub := bus.Subscribe()
	defer sub.Close()
	go func() {
		for ev := range sub.Events() {
			if changed, ok := ev.(event.ServerURLChanged); ok {
				sup.SetURL(changed.URL)
			}
			program.Send(ui.BusMsg{Event: ev})
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("ui failed: %w", err)
	}
	return nil
}
