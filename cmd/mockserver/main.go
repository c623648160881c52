// Command mockserver runs the in-memory development endpoint. It answers
// chat messages with a canned echo, seeds a demo conversation, and pushes a
// periodic reminder notification to subscribed clients.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prsnlassistant/client/internal/devserver"
	"github.com/prsnlassistant/client/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:8765", "listen address")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	remindEvery := flag.Duration("remind-every", 0, "push a reminder notification at this interval (0 disables)")
	flag.Parse()

	logger.Init(os.Stderr, *logLevel)

	srv := devserver.New(nil)
	convID := srv.CreateConversation("Welcome")
	srv.SeedMessage(convID, "assistant", "Hi! Send me a message and I will echo it back.")

	if err := srv.Start(*addr); err != nil {
		return err
	}
	defer srv.Stop()

	if *remindEvery > 0 {
		ticker := time.NewTicker(*remindEvery)
		defer ticker.Stop()
		go func() {
			for range ticker.C {
				srv.Notify("Reminder", "This is a scheduled reminder.", "reminders")
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")
	return nil
}
