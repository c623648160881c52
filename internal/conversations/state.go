// Package conversations maintains the client-side mirror of the
// conversation list and the active-view selection.
package conversations

import (
	"sort"
	"sync"
	"time"

	"github.com/prsnlassistant/client/internal/types"
)

// State is the conversations feature state. The service is its only
// mutator; readers may call the accessors from any goroutine.
type State struct {
	mu            sync.RWMutex
	conversations map[string]*types.Conversation
	activeID      string // empty while viewing the list
	loading       bool
}

// NewState creates an empty state in the loading phase.
func NewState() *State {
	return &State{
		conversations: make(map[string]*types.Conversation),
		loading:       true,
	}
}

// IsLoading reports whether the initial conversation list is still pending.
func (s *State) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// CurrentConversationID returns the open conversation id, if any.
func (s *State) CurrentConversationID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

// Get returns a copy of one conversation.
func (s *State) Get(id string) (types.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return types.Conversation{}, false
	}
	return *conv, true
}

// SortedConversations returns all conversations ordered by last-message
// time, newest first. Conversations that never had a message sort after
// every conversation that has one.
func (s *State) SortedConversations() []types.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := make([]types.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		convs = append(convs, *conv)
	}
	sort.SliceStable(convs, func(i, j int) bool {
		ti, tj := convs[i].LastMessageTime, convs[j].LastMessageTime
		if ti.IsZero() != tj.IsZero() {
			return !ti.IsZero()
		}
		return ti.After(tj)
	})
	return convs
}

func (s *State) setConversations(convs []*types.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	for _, conv := range convs {
		s.conversations[conv.ID] = conv
	}
}

func (s *State) createConversation(id, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[id] = types.NewConversation(id, title)
	s.activeID = id
}

func (s *State) deleteConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	if s.activeID == id {
		s.activeID = ""
	}
}

// recordMessage refreshes a conversation's list entry when a message flows
// through it, so previews and ordering stay live without a server round trip.
func (s *State) recordMessage(id, preview string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return
	}
	conv.LastMessagePreview = preview
	conv.LastMessageTime = at
	conv.MessageCount++
}

func (s *State) goToList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
}

func (s *State) openConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = id
}
