package confirm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	contentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).PaddingLeft(2)
	acceptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	declineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Terminal prompts on a terminal using bubbletea.
type Terminal struct {
	in  io.Reader
	out io.Writer
}

// NewTerminal returns a confirmer reading keys from in and drawing to out.
// Nil arguments default to stdin and stdout.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	if in == nil {
		in = os.Stdin
	}

	if out == nil {
		out = os.Stdout
	}

	return &Terminal{in: in, out: out}
}

func (t *Terminal) Confirm(ctx context.Context, opts Options) (bool, error) {
	program := tea.NewProgram(
		newDialog(opts),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
		tea.WithContext(ctx),
	)

	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return false, ctx.Err()
		}

		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}

	d, ok := final.(dialog)
	if !ok {
		return false, nil
	}

	return d.accepted, nil
}

type dialog struct {
	opts     Options
	accepted bool
	done     bool
}

func newDialog(opts Options) dialog {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}

	if opts.ConfirmLabel == "" {
		opts.ConfirmLabel = DefaultConfirmLabel
	}

	return dialog{opts: opts}
}

func (d dialog) Init() tea.Cmd {
	return nil
}

func (d dialog) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return d, nil
	}

	switch keyMsg.String() {
	case "y", "Y", "enter":
		d.accepted = true
		d.done = true

		return d, tea.Quit
	case "n", "N", "esc", "q", "ctrl+c":
		d.done = true

		return d, tea.Quit
	}

	return d, nil
}

func (d dialog) View() string {
	if d.done {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(d.opts.Title))
	b.WriteString("\n\n")
	b.WriteString(contentStyle.Render(Content(d.opts)))
	b.WriteString("\n\n")
	b.WriteString(acceptStyle.Render("[y] " + d.opts.ConfirmLabel))
	b.WriteString("  ")
	b.WriteString(declineStyle.Render("[n] Cancel"))

	return boxStyle.Render(b.String()) + "\n"
}

// Content returns the body text for the dialog's content template.
func Content(opts Options) string {
	subject := "this workflow"
	if opts.Subject != nil && opts.Subject.Title != "" {
		subject = fmt.Sprintf("%q", opts.Subject.Title)
	}

	switch opts.ContentTemplate {
	case StartCycleTemplate:
		return fmt.Sprintf("Start a new cycle of %s?\nTasks will be generated from the workflow's task templates.", subject)
	default:
		return fmt.Sprintf("Apply this change to %s?", subject)
	}
}
