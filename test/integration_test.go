package test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prsnlassistant/client/internal/chat"
	"github.com/prsnlassistant/client/internal/client"
	"github.com/prsnlassistant/client/internal/client/loop"
	"github.com/prsnlassistant/client/internal/client/stream"
	"github.com/prsnlassistant/client/internal/conversations"
	"github.com/prsnlassistant/client/internal/devserver"
	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/types"
)

type stack struct {
	bus       *event.Bus
	transport client.Transport
	convs     *conversations.Service
	chat      *chat.Service
}

func newStack(t *testing.T, variant string, bus *event.Bus) *stack {
	t.Helper()
	opts := client.Options{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		MaxAttempts:    3,
		PingInterval:   time.Hour,
	}

	var tr client.Transport
	switch variant {
	case "stream":
		tr = stream.New(bus, opts)
	case "loop":
		tr = loop.New(bus, opts)
	default:
		t.Fatalf("unknown variant %q", variant)
	}

	s := &stack{
		bus:       bus,
		transport: tr,
		convs:     conversations.NewService(conversations.NewState(), bus, tr),
		chat:      chat.NewService(chat.NewState(), bus, tr),
	}
	s.convs.Start()
	s.chat.Start()
	t.Cleanup(func() {
		s.convs.Stop()
		s.chat.Stop()
		s.transport.Disconnect()
	})
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestFullSession(t *testing.T) {
	for _, variant := range []string{"stream", "loop"} {
		t.Run(variant, func(t *testing.T) {
			srv := devserver.New(func(convID, body string) string {
				return "reply to " + body
			})
			seeded := srv.CreateConversation("Seeded")
			if err := srv.Start("127.0.0.1:0"); err != nil {
				t.Fatal(err)
			}
			t.Cleanup(srv.Stop)
			url := fmt.Sprintf("ws://%s/ws", srv.Addr())

			bus := event.NewBus()
			s := newStack(t, variant, bus)
			go s.transport.Connect(url)

			// Bootstrap delivers the seeded conversation without any request
			// from the feature layer.
			waitFor(t, "initial list", func() bool {
				return !s.convs.State().IsLoading()
			})
			if _, ok := s.convs.State().Get(seeded); !ok {
				t.Fatal("seeded conversation missing from the synced list")
			}

			// Create a fresh conversation and chat in it.
			s.convs.CreateConversation("Plans")
			waitFor(t, "conversation created", func() bool {
				id, ok := s.convs.State().CurrentConversationID()
				return ok && id != seeded
			})
			convID, _ := s.convs.State().CurrentConversationID()
			s.bus.Publish(event.ConversationSelected{ConvID: convID})
			waitFor(t, "chat view active", func() bool {
				id, ok := s.chat.State().CurrentConversationID()
				return ok && id == convID
			})

			s.chat.SendMessage("hello there", nil)
			waitFor(t, "assistant reply", func() bool {
				msgs := s.chat.State().MessagesFor(convID)
				return len(msgs) == 2 &&
					msgs[1].Sender == types.SenderAssistant &&
					msgs[1].Body == "reply to hello there"
			})
			msgs := s.chat.State().MessagesFor(convID)
			if msgs[0].Status != types.StatusDelivered {
				t.Errorf("user message should be delivered, got %v", msgs[0].Status)
			}

			// History round trip replaces the local list (fresh ids) and
			// strips the server's date preamble.
			localID := msgs[0].ID
			s.chat.LoadHistory(convID)
			waitFor(t, "history", func() bool {
				msgs := s.chat.State().MessagesFor(convID)
				return len(msgs) == 2 && msgs[0].ID != localID
			})
			msgs = s.chat.State().MessagesFor(convID)
			if strings.Contains(msgs[0].Body, "Current Date:") {
				t.Errorf("date preamble must be stripped, got %q", msgs[0].Body)
			}
			if msgs[0].Body != "hello there" {
				t.Errorf("want original body from history, got %q", msgs[0].Body)
			}

			// Deleting the open conversation returns to the list.
			s.convs.DeleteConversation(convID)
			waitFor(t, "conversation deleted", func() bool {
				_, ok := s.convs.State().Get(convID)
				return !ok
			})
			if _, open := s.convs.State().CurrentConversationID(); open {
				t.Error("deleting the open conversation should deselect it")
			}
		})
	}
}

func TestErrorSurfacesOnSentMessage(t *testing.T) {
	srv := devserver.New(nil)
	if err := srv.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Stop)

	bus := event.NewBus()
	s := newStack(t, "stream", bus)
	go s.transport.Connect(fmt.Sprintf("ws://%s/ws", srv.Addr()))
	waitFor(t, "connected", s.transport.IsConnected)

	// Chat into a conversation the server does not know.
	s.bus.Publish(event.ConversationSelected{ConvID: "conv-ghost"})
	waitFor(t, "chat view active", func() bool {
		id, ok := s.chat.State().CurrentConversationID()
		return ok && id == "conv-ghost"
	})
	s.chat.SendMessage("anyone there?", nil)

	waitFor(t, "error mark", func() bool {
		msgs := s.chat.State().MessagesFor("conv-ghost")
		return len(msgs) == 1 && msgs[0].Status == types.StatusError
	})
	msgs := s.chat.State().MessagesFor("conv-ghost")
	if msgs[0].Error == "" {
		t.Error("failed message should carry the server's reason")
	}
}
