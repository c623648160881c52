package client

import (
	"log/slog"
	"sync"
)

// Supervisor owns the transport's connection loop. It redials when the
// endpoint URL changes and keeps Connect's blocking contract off the
// caller's goroutine.
type Supervisor struct {
	transport Transport

	urls     chan string
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSupervisor creates a supervisor over transport.
func NewSupervisor(transport Transport) *Supervisor {
	return &Supervisor{
		transport: transport,
		urls:      make(chan string, 1),
		stop:      make(chan struct{}),
	}
}

// SetURL switches the endpoint. Any live connection is dropped and the
// supervisor redials the new URL. Only the latest pending URL wins.
func (s *Supervisor) SetURL(url string) {
	select {
	case <-s.urls:
	default:
	}
	s.urls <- url
}

// Stop ends the supervisor and disconnects. Safe to call repeatedly.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.transport.Disconnect()
}

// Run connects to url and keeps the connection loop alive until Stop.
// When the transport gives up, Run waits for a URL change before dialing
// again. Run it in its own goroutine.
func (s *Supervisor) Run(url string) {
	for {
		done := make(chan error, 1)
		go func(u string) { done <- s.transport.Connect(u) }(url)

		select {
		case u := <-s.urls:
			s.transport.Disconnect()
			<-done
			url = u

		case err := <-done:
			if err != nil {
				slog.Warn("connection gave up", "err", err)
			}
			select {
			case u := <-s.urls:
				url = u
			case <-s.stop:
				return
			}

		case <-s.stop:
			s.transport.Disconnect()
			<-done
			return
		}
	}
}
