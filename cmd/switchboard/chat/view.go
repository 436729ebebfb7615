// Package chat: view rendering for the TUI.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles for the chat view.
type Styles struct {
	Header    lipgloss.Style
	You       lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	UserInput lipgloss.Style
	Footer    lipgloss.Style
	AuthNote  lipgloss.Style
}

// DefaultStyles returns the standard color scheme.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		You:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginTop(1),
		System:    lipgloss.NewStyle().Faint(true).Italic(true),
		UserInput: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Footer:    lipgloss.NewStyle().Faint(true),
		AuthNote:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

func (m Model) View() string {
	if m.quitting {
		return "Bye.\n"
	}
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("switchboard · %s", m.identity)))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.busy {
		b.WriteString(m.spinner.View() + " working...\n")
	} else if m.auth.active {
		elapsed := time.Since(m.auth.started).Round(time.Second)
		b.WriteString(m.styles.AuthNote.Render(fmt.Sprintf("⏳ waiting for authorization (%s)...", elapsed)) + "\n")
	} else {
		b.WriteString(m.textarea.View() + "\n")
	}
	b.WriteString(m.styles.Footer.Render("enter: send · /help · ctrl+c: quit"))
	return b.String()
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	for _, msg := range m.history {
		switch msg.Role {
		case "user":
			sb.WriteString(m.styles.You.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n")
		case "system":
			sb.WriteString(m.styles.System.Render(msg.Content) + "\n")
		default:
			sb.WriteString(m.styles.Assistant.Render("switchboard") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// safeRenderMarkdown renders markdown, falling back to the raw text if
// the renderer is unavailable or panics on malformed input.
func (m Model) safeRenderMarkdown(content string) (out string) {
	out = content
	if m.renderer == nil {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()
	if rendered, err := m.renderer.Render(content); err == nil {
		out = rendered
	}
	return out
}
