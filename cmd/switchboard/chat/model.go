// Package chat provides the interactive TUI for switchboard.
// The chat functionality is split across files:
//   - model.go: Types, Init, Update loop (this file)
//   - commands.go: /command handling
//   - view.go: Rendering functions
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"switchboard/internal/router"
	"switchboard/internal/types"
)

// Message is one entry in the conversation history.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// authWait tracks an in-flight interactive authorization.
type authWait struct {
	active  bool
	url     string
	started time.Time
	stop    func()
	// pending is the request to retry once the account connects.
	pending string
}

// Model is the bubbletea model for the chat session.
type Model struct {
	ctx      context.Context
	router   *router.Router
	identity string

	history  []Message
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   Styles

	busy     bool
	auth     authWait
	width    int
	height   int
	ready    bool
	quitting bool
}

// authWaitTimeout bounds the interactive authorization poll; past it
// the wait is abandoned and reported as a failure.
const authWaitTimeout = 5 * time.Minute

type resultMsg struct {
	request string
	result  types.ActionResult
}

type authTickMsg time.Time

// NewModel builds the initial chat model.
func NewModel(ctx context.Context, r *router.Router, identity string) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask me something... (/help for commands)"
	ta.Focus()
	ta.SetHeight(2)
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	return Model{
		ctx:      ctx,
		router:   r,
		identity: identity,
		textarea: ta,
		spinner:  sp,
		renderer: renderer,
		styles:   DefaultStyles(),
		history: []Message{{
			Role:    "assistant",
			Content: welcomeText,
		}},
	}
}

const welcomeText = `Hi! I route requests to three agents:

- **Content analysis**: paste an Instagram link to get an engagement report
- **GitHub**: repos, stars, issues, pull requests, file pushes
- **Crypto**: prices, top coins, market overview

Type /help for commands.`

// Run starts the interactive chat session.
func Run(ctx context.Context, r *router.Router, identity string) error {
	p := tea.NewProgram(NewModel(ctx, r, identity), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.dispatch(input)
		}

	case resultMsg:
		m.busy = false
		return m.handleResult(msg)

	case authTickMsg:
		if !m.auth.active {
			return m, nil
		}
		if m.router.IsAuthorized(m.identity) {
			return m.finishAuthorization()
		}
		if time.Since(m.auth.started) > authWaitTimeout {
			return m.abandonAuthorization()
		}
		m.refreshViewport()
		return m, authTick()

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, taCmd, vpCmd)
	return m, tea.Batch(cmds...)
}

// dispatch sends the input through the router off the UI goroutine.
func (m Model) dispatch(input string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, Message{Role: "user", Content: input})
	m.busy = true
	m.refreshViewport()

	r := m.router
	ctx := m.ctx
	identity := m.identity
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			return resultMsg{request: input, result: r.Dispatch(ctx, input, identity)}
		},
	)
}

func (m Model) handleResult(msg resultMsg) (tea.Model, tea.Cmd) {
	res := msg.result
	switch res.Outcome {
	case types.OutcomeNeedsAuthorization:
		return m.beginAuthorization(msg.request, res.AuthURL)
	case types.OutcomeFailed:
		m.history = append(m.history, Message{Role: "assistant", Content: "⚠️ " + res.Err})
	default:
		m.history = append(m.history, Message{Role: "assistant", Content: res.Summary})
	}
	m.refreshViewport()
	return m, nil
}

// beginAuthorization starts the callback listener and the elapsed-time
// poll, remembering the request to retry after the account connects.
func (m Model) beginAuthorization(request, fallbackURL string) (tea.Model, tea.Cmd) {
	url := fallbackURL
	stop := func() {}
	if liveURL, liveStop, err := m.router.AwaitAuthorization(m.identity); err == nil {
		url = liveURL
		stop = liveStop
	}
	m.auth = authWait{
		active:  true,
		url:     url,
		started: time.Now(),
		stop:    stop,
		pending: request,
	}
	m.history = append(m.history, Message{
		Role:    "assistant",
		Content: "That needs a connected GitHub account. Open this URL to authorize:\n\n" + url,
	})
	m.refreshViewport()
	return m, authTick()
}

func (m Model) finishAuthorization() (tea.Model, tea.Cmd) {
	if m.auth.stop != nil {
		m.auth.stop()
	}
	pending := m.auth.pending
	m.auth = authWait{}
	m.history = append(m.history, Message{Role: "system", Content: "Account connected."})
	if pending != "" {
		return m.dispatch(pending)
	}
	m.refreshViewport()
	return m, nil
}

// abandonAuthorization gives up the wait: the callback listener is shut
// down and the user is told the flow did not complete.
func (m Model) abandonAuthorization() (tea.Model, tea.Cmd) {
	if m.auth.stop != nil {
		m.auth.stop()
	}
	m.auth = authWait{}
	m.history = append(m.history, Message{
		Role:    "assistant",
		Content: "⚠️ Authorization was not completed in time. Run /connect to try again.",
	})
	m.refreshViewport()
	return m, nil
}

func authTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return authTickMsg(t)
	})
}

func (m *Model) layout() {
	m.textarea.SetWidth(m.width - 4)
	vpHeight := m.height - m.textarea.Height() - 5
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}
