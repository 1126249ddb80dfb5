package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerFrames defines the custom animation frames (◐ ◓ ◑ ◒).
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10, // 100ms per frame
}

const progressBarWidth = 30

// hostDoneMsg is sent once per finished host.
type hostDoneMsg struct {
	host   string
	failed bool
}

type progressQuitMsg struct{}

// progressModel is the Bubble Tea model behind Progress.
type progressModel struct {
	spinner spinner.Model
	bar     progress.Model
	label   string
	total   int
	done    int
	failed  int
	last    string
	start   time.Time
	quit    bool
}

func newProgressModel(label string, total int) progressModel {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	bar := progress.New(
		progress.WithSolidFill(string(ColorSuccess)),
		progress.WithWidth(progressBarWidth),
		progress.WithoutPercentage(),
	)

	return progressModel{
		spinner: sp,
		bar:     bar,
		label:   label,
		total:   total,
		start:   time.Now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case hostDoneMsg:
		m.done++
		if msg.failed {
			m.failed++
		}
		m.last = msg.host
		return m, nil
	case progressQuitMsg:
		m.quit = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) percent() float64 {
	if m.total <= 0 {
		return 1
	}
	p := float64(m.done) / float64(m.total)
	if p > 1 {
		return 1
	}
	return p
}

func (m progressModel) View() string {
	// The final frame is cleared so the report starts on a clean line.
	if m.quit {
		return ""
	}

	muted := lipgloss.NewStyle().Foreground(ColorMuted)

	var sb strings.Builder
	sb.WriteString(m.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(m.label)
	sb.WriteString(" ")
	sb.WriteString(m.bar.ViewAs(m.percent()))
	sb.WriteString(fmt.Sprintf(" %d/%d", m.done, m.total))
	if m.failed > 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(ColorError).Render(fmt.Sprintf(" (%d failed)", m.failed)))
	}
	sb.WriteString(muted.Render(" " + formatDuration(time.Since(m.start))))
	if m.last != "" {
		sb.WriteString(muted.Render(" " + m.last))
	}
	return sb.String()
}

// Progress shows a live spinner and progress bar while hosts are polled.
// All methods are safe for concurrent use; Advance may be called from
// worker goroutines.
type Progress struct {
	program *tea.Program
	done    chan struct{}

	started atomic.Bool
	once    sync.Once
}

// NewProgress creates a progress display writing to w for total hosts.
func NewProgress(w io.Writer, label string, total int) *Progress {
	p := tea.NewProgram(
		newProgressModel(label, total),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	return &Progress{program: p, done: make(chan struct{})}
}

// Start begins rendering in the background.
func (p *Progress) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
}

// Advance records one finished host. It is a no-op before Start.
func (p *Progress) Advance(host string, failed bool) {
	if !p.started.Load() {
		return
	}
	p.program.Send(hostDoneMsg{host: host, failed: failed})
}

// Stop clears the display and waits for the renderer to exit.
func (p *Progress) Stop() {
	if !p.started.Load() {
		return
	}
	p.once.Do(func() {
		p.program.Send(progressQuitMsg{})
		<-p.done
	})
}

func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
