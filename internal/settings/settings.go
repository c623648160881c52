// Package settings holds the endpoint configuration the user can change at
// runtime.
package settings

import (
	"log/slog"
	"sync"

	"github.com/prsnlassistant/client/internal/event"
)

// State is the settings feature state.
type State struct {
	mu        sync.RWMutex
	serverURL string
	modalOpen bool
}

// NewState creates settings state with the given initial URL.
func NewState(serverURL string) *State {
	return &State{serverURL: serverURL}
}

// ServerURL returns the current endpoint URL.
func (s *State) ServerURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverURL
}

// IsModalOpen reports whether the settings modal is open.
func (s *State) IsModalOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modalOpen
}

func (s *State) setServerURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverURL = url
}

func (s *State) setModalOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modalOpen = open
}

// Service manages the settings state and announces endpoint changes.
type Service struct {
	state *State
	bus   *event.Bus
	sub   *event.Subscription
}

// NewService creates a settings service over state.
func NewService(state *State, bus *event.Bus) *Service {
	return &Service{state: state, bus: bus}
}

// Start subscribes to the bus and runs the background listener.
func (s *Service) Start() {
	s.sub = s.bus.Subscribe()
	go s.listen(s.sub)
}

// Stop ends the background listener.
func (s *Service) Stop() {
	if s.sub != nil {
		s.sub.Close()
	}
}

func (s *Service) listen(sub *event.Subscription) {
	for ev := range sub.Events() {
		if toggled, ok := ev.(event.SettingsModalToggled); ok {
			s.state.setModalOpen(toggled.Open)
		}
	}
}

// OpenModal opens the settings modal.
func (s *Service) OpenModal() {
	s.state.setModalOpen(true)
}

// CloseModal closes the settings modal.
func (s *Service) CloseModal() {
	s.state.setModalOpen(false)
}

// UpdateServerURL stores the new endpoint and publishes ServerURLChanged.
// The composition root reacts by cycling the connection.
func (s *Service) UpdateServerURL(url string) {
	slog.Info("server url changed", "url", url)
	s.state.setServerURL(url)
	s.state.setModalOpen(false)
	s.bus.Publish(event.ServerURLChanged{URL: url})
}

// State returns the state this service maintains.
func (s *Service) State() *State {
	return s.state
}
