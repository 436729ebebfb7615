// Package chat: /command handling.
package chat

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"switchboard/internal/types"
)

const helpText = `**Commands**

| Command | Effect |
|---|---|
| /help | Show this help |
| /use <name> | Switch the active identity |
| /accounts | List connected identities |
| /connect | Start the GitHub authorization flow |
| /disconnect | Drop the active identity's credential |
| /clear | Clear the conversation |
| /quit | Exit |

Anything else is dispatched as a request.`

// handleCommand processes a /command from the input line.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/help":
		m.history = append(m.history, Message{Role: "assistant", Content: helpText})

	case "/use":
		if len(fields) < 2 {
			m.history = append(m.history, Message{Role: "system", Content: "Usage: /use <identity>"})
			break
		}
		m.identity = fields[1]
		status := "not connected"
		if m.router.IsAuthorized(m.identity) {
			status = "connected"
		}
		m.history = append(m.history, Message{
			Role:    "system",
			Content: fmt.Sprintf("Now acting as %s (%s).", m.identity, status),
		})

	case "/accounts":
		ids := m.router.Identities()
		if len(ids) == 0 {
			m.history = append(m.history, Message{Role: "system", Content: "No connected accounts."})
			break
		}
		var b strings.Builder
		b.WriteString("Connected accounts:\n")
		for _, id := range ids {
			marker := " "
			if id == m.identity {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %s\n", marker, id)
		}
		m.history = append(m.history, Message{Role: "system", Content: b.String()})

	case "/connect":
		if m.router.IsAuthorized(m.identity) {
			m.history = append(m.history, Message{Role: "system", Content: fmt.Sprintf("%s is already connected.", m.identity)})
			break
		}
		return m.beginAuthorization("", m.router.AuthorizationURL())

	case "/disconnect":
		m.router.Disconnect(m.identity)
		m.history = append(m.history, Message{Role: "system", Content: fmt.Sprintf("Disconnected %s.", m.identity)})

	case "/clear":
		m.history = nil

	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	default:
		m.history = append(m.history, Message{Role: "system", Content: fmt.Sprintf("Unknown command %s. Try /help.", cmd)})
	}

	m.refreshViewport()
	return m, nil
}

// PrintResult renders an ActionResult for non-interactive output.
func PrintResult(w io.Writer, res types.ActionResult) error {
	switch res.Outcome {
	case types.OutcomeNeedsAuthorization:
		fmt.Fprintf(w, "Authorization required. Open:\n\n  %s\n\nThen run `switchboard connect` to complete the flow.\n", res.AuthURL)
		return nil
	case types.OutcomeFailed:
		return fmt.Errorf("%s", res.Err)
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if rendered, rerr := renderer.Render(res.Summary); rerr == nil {
			fmt.Fprint(w, rendered)
			return nil
		}
	}
	fmt.Fprintln(w, res.Summary)
	return nil
}
