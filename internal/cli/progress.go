package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/legalchat/internal/client"
)

const tickInterval = 250 * time.Millisecond

// Theme holds the color scheme for CLI output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// sendFunc delivers one message and waits for the reply.
type sendFunc func(ctx context.Context) (*client.SendResult, error)

// tickMsg advances the elapsed-time bar
type tickMsg time.Time

// replyMsg carries the engine's answer
type replyMsg struct {
	result *client.SendResult
	err    error
}

// waitModel is the bubbletea model shown while a reply is being produced.
// Legal questions can spend minutes in research, so the bar tracks elapsed
// time against the research budget.
type waitModel struct {
	ctx      context.Context
	cancel   context.CancelFunc
	send     sendFunc
	started  time.Time
	budget   time.Duration
	progress progress.Model
	theme    Theme
	result   *client.SendResult
	err      error
	done     bool
	quitting bool
}

// newWaitModel creates a new wait model.
func newWaitModel(ctx context.Context, send sendFunc, budget time.Duration) waitModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	if budget <= 0 {
		budget = 3 * time.Minute
	}
	ctx, cancel := context.WithCancel(ctx)

	return waitModel{
		ctx:      ctx,
		cancel:   cancel,
		send:     send,
		started:  time.Now(),
		budget:   budget,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init starts the request and the ticker.
func (m waitModel) Init() tea.Cmd {
	return tea.Batch(
		m.deliver(),
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case replyMsg:
		m.result = msg.result
		m.err = msg.err
		m.done = true
		m.cancel()
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the wait display.
func (m waitModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m waitModel) renderContent() string {
	if m.done || m.quitting {
		return ""
	}

	elapsed := time.Since(m.started)
	pct := float64(elapsed) / float64(m.budget)
	if pct > 0.99 {
		pct = 0.99
	}

	status := m.theme.statusStyle().Render("[waiting]")
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%ds", int(elapsed.Seconds()))
	hint := m.theme.hintStyle().Render("Legal research can take a few minutes. Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

// deliver runs the request in a command so Update never blocks.
func (m waitModel) deliver() tea.Cmd {
	return func() tea.Msg {
		res, err := m.send(m.ctx)
		return replyMsg{result: res, err: err}
	}
}

// tickCmd returns a command that sends a tick after the interval.
func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runWithProgress runs send behind the interactive wait display.
// Returns context.Canceled when the user quits before the reply arrives.
func runWithProgress(ctx context.Context, send sendFunc, budget time.Duration) (*client.SendResult, error) {
	model := newWaitModel(ctx, send, budget)
	defer model.cancel()

	p := tea.NewProgram(model)
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(waitModel)
	if !ok {
		return nil, fmt.Errorf("progress UI error: unexpected model %T", finalModel)
	}
	if m.quitting {
		return nil, context.Canceled
	}
	return m.result, m.err
}
