package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/prsnlassistant/client/internal/types"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	statusStyles = map[types.ConnectionStatus]lipgloss.Style{
		types.StatusConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		types.StatusConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		types.StatusReconnecting: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		types.StatusDisconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("135")).Bold(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	modalStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2)
)

// View renders the frontend.
func (m Model) View() string {
	if m.settings.State().IsModalOpen() {
		return m.renderSettings()
	}
	switch m.view {
	case viewChat:
		return m.renderChat()
	default:
		return m.renderList()
	}
}

func (m Model) renderHeader(title string) string {
	status := statusStyles[m.status].Render(m.status.String())
	return headerStyle.Render(title) + " " + status + "\n"
}

func (m Model) renderList() string {
	var b strings.Builder
	b.WriteString(m.renderHeader("Conversations"))
	b.WriteString("\n")

	if m.conversations.State().IsLoading() {
		b.WriteString(fmt.Sprintf(" %s loading conversations\n", m.spin.View()))
		return b.String()
	}

	convs := m.conversations.State().SortedConversations()
	if len(convs) == 0 {
		b.WriteString(dimStyle.Render(" no conversations yet, press n to start one") + "\n")
	}
	for i, conv := range convs {
		line := fmt.Sprintf("%s  %s", conv.Title, dimStyle.Render(preview(conv)))
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + dimStyle.Render(" enter open · n new · d delete · s settings · q quit"))
	return b.String()
}

func preview(conv types.Conversation) string {
	p := conv.LastMessagePreview
	// Truncate on runes; a byte cut could split a multibyte character.
	if r := []rune(p); len(r) > 40 {
		p = string(r[:40]) + "..."
	}
	if p == "" {
		return fmt.Sprintf("(%d messages)", conv.MessageCount)
	}
	return fmt.Sprintf("%s (%d)", p, conv.MessageCount)
}

func (m Model) renderChat() string {
	var b strings.Builder
	title := "Chat"
	if id, ok := m.conversations.State().CurrentConversationID(); ok {
		if conv, found := m.conversations.State().Get(id); found {
			title = conv.Title
		}
	}
	b.WriteString(m.renderHeader(title))

	if m.ready {
		b.WriteString(m.vp.View() + "\n")
	} else {
		b.WriteString(m.renderMessages() + "\n")
	}

	if m.chat.State().IsTyping() {
		b.WriteString(fmt.Sprintf("%s assistant is typing\n", m.spin.View()))
	}
	if m.lastErr != "" {
		b.WriteString(errStyle.Render("error: "+m.lastErr) + "\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(dimStyle.Render(" enter send · esc back"))
	return b.String()
}

func (m Model) renderMessages() string {
	msgs := m.chat.State().CurrentMessages()
	if len(msgs) == 0 {
		return dimStyle.Render(" no messages yet")
	}
	var b strings.Builder
	for _, msg := range msgs {
		var label string
		switch msg.Sender {
		case types.SenderUser:
			label = userStyle.Render("you")
		case types.SenderAssistant:
			label = botStyle.Render("assistant")
		default:
			label = dimStyle.Render("system")
		}
		b.WriteString(fmt.Sprintf("%s %s", label, msg.Body))
		switch msg.Status {
		case types.StatusSending:
			b.WriteString(dimStyle.Render(" (sending)"))
		case types.StatusError:
			b.WriteString(errStyle.Render(" (failed: " + msg.Error + ")"))
		}
		if msg.Image != nil {
			b.WriteString(dimStyle.Render(" [image]"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSettings() string {
	body := fmt.Sprintf("Server URL\n\n%s\n\n%s",
		m.urlInput.View(),
		dimStyle.Render("enter save · esc cancel"))
	modal := modalStyle.Render(body)
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
	}
	return modal
}
