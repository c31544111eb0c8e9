package cli

import (
	"fmt"

	progressbar "charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/gpas-dev/gpas-go/internal/progress"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// eventsDoneMsg signals that the batch closed its event stream.
type eventsDoneMsg struct{}

// batchModel is the bubbletea model for a batch run. It consumes the
// orchestrator's progress events and renders one bar across the
// decontamination and upload phases.
type batchModel struct {
	total       int
	ready       int
	failed      int
	uploaded    int
	uploadTotal int
	phase       string
	progress    progressbar.Model
	theme       Theme
	done        bool
	quitting    bool
}

// newBatchModel creates a model for a batch of total samples.
func newBatchModel(total int) batchModel {
	prog := progressbar.New(
		progressbar.WithDefaultBlend(),
		progressbar.WithWidth(40),
	)

	return batchModel{
		total:    total,
		phase:    "Decontaminating",
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m batchModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case progress.Event:
		return m.applyEvent(msg), nil

	case eventsDoneMsg:
		m.done = true
		return m, tea.Quit

	case progressbar.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// applyEvent advances the counters for one state transition.
func (m batchModel) applyEvent(ev progress.Event) batchModel {
	switch ev.Action {
	case progress.ActionConversion, progress.ActionDecontamination, progress.ActionChecksum:
		if ev.Status == progress.StatusFailed {
			m.failed++
		}
		if ev.Action == progress.ActionChecksum && ev.Status == progress.StatusFinished {
			m.ready++
		}

	case progress.ActionUpload:
		if m.phase != "Uploading" {
			m.phase = "Uploading"
			m.uploadTotal = m.ready
		}
		switch ev.Status {
		case progress.StatusFinished:
			m.uploaded++
		case progress.StatusFailed:
			m.failed++
			m.uploaded++
		}

	case progress.ActionSubmission:
		m.phase = "Submitting"
	}
	return m
}

// View renders the progress display.
func (m batchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m batchModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	var (
		pct    float64
		counts string
	)
	switch m.phase {
	case "Uploading":
		if m.uploadTotal > 0 {
			pct = float64(m.uploaded) / float64(m.uploadTotal)
		}
		counts = fmt.Sprintf("%d/%d samples", m.uploaded, m.uploadTotal)
	case "Submitting":
		pct = 1
		counts = ""
	default:
		if m.total > 0 {
			pct = float64(m.ready+m.failed) / float64(m.total)
		}
		counts = fmt.Sprintf("%d/%d samples", m.ready+m.failed, m.total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.phase))
	line := fmt.Sprintf("%s %s %s", status, m.progress.ViewAs(pct), counts)
	if m.failed > 0 {
		line += " " + m.theme.errorStyle().Render(fmt.Sprintf("(%d failed)", m.failed))
	}
	hint := m.theme.hintStyle().Render("Press Ctrl+C to abort")

	return fmt.Sprintf("%s\n%s\n", line, hint)
}

// finalView clears the bar; the command prints the summary afterwards.
func (m batchModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("Aborting...\n")
	}
	return ""
}

// runBatchProgress runs the interactive progress UI over a batch's event
// stream. It returns true when the user asked to abort the run.
func runBatchProgress(events <-chan progress.Event, total int) bool {
	p := tea.NewProgram(newBatchModel(total))

	// Forward events into the UI; keeps draining after the program exits
	// so the pipeline never blocks on an unread channel.
	go func() {
		for ev := range events {
			p.Send(ev)
		}
		p.Send(eventsDoneMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return false
	}
	if m, ok := finalModel.(batchModel); ok {
		return m.quitting
	}
	return false
}
