package internal

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	chatHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
	messageBoxStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("60")).Padding(1, 2).MarginTop(1)
	inputBoxStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).MarginTop(1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("109")).MarginTop(1)
	connectedStyle     = statusStyle.Copy().Foreground(lipgloss.Color("42")).Bold(true)
	connectingStyle    = statusStyle.Copy().Foreground(lipgloss.Color("178")).Italic(true)
	errorStyle         = statusStyle.Copy().Foreground(lipgloss.Color("196")).Bold(true)
	timestampStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	usernameStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	systemMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	messageBodyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("253"))
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(" ┃ ")
)

func (model *TUIModel) View() string {
	header := chatHeaderStyle.Render(fmt.Sprintf("roomchat — %s", model.roomKey))

	var lines []string
	if len(model.messages) == 0 {
		lines = append(lines, systemMessageStyle.Render("No messages yet."))
	}
	for _, message := range model.messages {
		lines = append(lines, renderMessage(message))
	}

	status := connectingStyle.Render("connecting…")
	switch {
	case model.lastError != "":
		status = errorStyle.Render("disconnected: " + model.lastError)
	case model.isReady:
		status = connectedStyle.Render("connected")
	case model.isConnected:
		status = connectingStyle.Render("joining…")
	}

	return strings.Join([]string{
		header,
		messageBoxStyle.Render(strings.Join(lines, "\n")),
		inputBoxStyle.Render(model.textInput.View()),
		status,
	}, "\n")
}

func renderMessage(message displayMessage) string {
	stamp := timestampStyle.Render(message.ts.Format("15:04"))
	switch message.kind {
	case displaySystem:
		return stamp + dividerStyle + systemMessageStyle.Render(message.body)
	case displayError:
		return stamp + dividerStyle + errorStyle.Render(message.body)
	default:
		return stamp + dividerStyle + usernameStyle.Render(message.user) + " " + messageBodyStyle.Render(message.body)
	}
}
