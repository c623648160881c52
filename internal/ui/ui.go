// Package ui is the terminal frontend. It renders the conversation list,
// the chat view, and the settings modal, driving the feature services from
// key input and refreshing on application events.
package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/prsnlassistant/client/internal/chat"
	"github.com/prsnlassistant/client/internal/conversations"
	"github.com/prsnlassistant/client/internal/event"
	"github.com/prsnlassistant/client/internal/settings"
	"github.com/prsnlassistant/client/internal/types"
)

type view int

const (
	viewList view = iota
	viewChat
)

// BusMsg wraps an application event for the bubbletea runtime. The
// composition root forwards bus events as BusMsg values.
type BusMsg struct {
	Event event.AppEvent
}

// Model is the bubbletea model for the whole frontend.
type Model struct {
	conversations *conversations.Service
	chat          *chat.Service
	settings      *settings.Service

	view     view
	status   types.ConnectionStatus
	cursor   int
	width    int
	height   int
	lastErr  string
	input    textinput.Model
	urlInput textinput.Model
	spin     spinner.Model
	vp       viewport.Model
	ready    bool
}

// New creates the frontend model over the three feature services.
func New(convs *conversations.Service, chatSvc *chat.Service, settingsSvc *settings.Service) Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 4096

	urlInput := textinput.New()
	urlInput.Placeholder = "ws://host:port/ws"
	urlInput.CharLimit = 256

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		conversations: convs,
		chat:          chatSvc,
		settings:      settingsSvc,
		status:        types.StatusDisconnected,
		input:         input,
		urlInput:      urlInput,
		spin:          spin,
	}
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update advances the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chatH := msg.Height - 6
		if chatH < 3 {
			chatH = 3
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, chatH)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = chatH
		}
		m.refreshChat()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case BusMsg:
		return m.onEvent(msg.Event)

	case tea.KeyMsg:
		if m.settings.State().IsModalOpen() {
			return m.updateSettings(msg)
		}
		switch m.view {
		case viewList:
			return m.updateList(msg)
		case viewChat:
			return m.updateChat(msg)
		}
	}
	return m, nil
}

func (m Model) onEvent(ev event.AppEvent) (tea.Model, tea.Cmd) {
	switch e := ev.(type) {
	case event.ConnectionChanged:
		m.status = e.Status
	case event.ConversationSelected:
		m.view = viewChat
		m.input.Focus()
	case event.ConversationCreated:
		m.view = viewChat
		m.input.Focus()
	case event.ConversationDeleted:
		if _, open := m.conversations.State().CurrentConversationID(); !open {
			m.view = viewList
		}
	case event.NavigateToList:
		m.view = viewList
	case event.MessageError:
		m.lastErr = e.Error
	}
	m.clampCursor()
	m.refreshChat()
	return m, nil
}

func (m *Model) clampCursor() {
	n := len(m.conversations.State().SortedConversations())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) refreshChat() {
	if !m.ready || m.view != viewChat {
		return
	}
	m.vp.SetContent(m.renderMessages())
	m.vp.GotoBottom()
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	convs := m.conversations.State().SortedConversations()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(convs)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(convs) {
			m.conversations.SelectConversation(convs[m.cursor].ID)
		}
	case "n":
		m.conversations.CreateConversation("")
	case "d":
		if m.cursor < len(convs) {
			m.conversations.DeleteConversation(convs[m.cursor].ID)
		}
	case "s":
		m.urlInput.SetValue(m.settings.State().ServerURL())
		m.urlInput.Focus()
		m.settings.OpenModal()
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.input.SetValue("")
		m.conversations.GoBack()
		return m, nil
	case "enter":
		m.chat.SendMessage(m.input.Value(), nil)
		m.input.SetValue("")
		m.refreshChat()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.settings.CloseModal()
		return m, nil
	case "enter":
		if url := m.urlInput.Value(); url != "" {
			m.settings.UpdateServerURL(url)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}
