package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/franksops/gowarm/engine"
)

type phase int

const (
	phaseEstimating phase = iota
	phaseWarming
	phaseDone
)

// PlanProgressMsg carries running totals while the estimation walk runs.
type PlanProgressMsg struct {
	Files int64
	Bytes int64
}

// PlanReadyMsg is sent once the estimation pass finished.
type PlanReadyMsg struct {
	Plan *engine.WarmPlan
}

// SnapshotMsg carries one progress snapshot pulled from the warm iterator.
type SnapshotMsg struct {
	Snapshot engine.Snapshot
}

// DoneMsg is sent when the progress stream is exhausted.
type DoneMsg struct {
	Final engine.Snapshot
}

// WorkerFunc adjusts the running pool by delta workers and returns the new
// target count.
type WorkerFunc func(delta int) int

// TUIModel implements the tea.Model interface over the warming lifecycle:
// estimation spinner, then a byte-percentage bar, then a completion summary.
type TUIModel struct {
	phase      phase
	planFiles  int64
	planBytes  int64
	skipped    int64
	snapshot   engine.Snapshot
	setWorkers WorkerFunc
	workers    int

	spinner  spinner.Model
	progress progress.Model

	startedAt time.Time

	width  int
	height int

	// Styles
	titleStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	helpStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
}

// NewTUIModel creates the model. setWorkers may be nil for a fixed pool.
func NewTUIModel(workers int, setWorkers WorkerFunc) TUIModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	prog := progress.New(progress.WithDefaultGradient())

	return TUIModel{
		phase:        phaseEstimating,
		setWorkers:   setWorkers,
		workers:      workers,
		spinner:      s,
		progress:     prog,
		startedAt:    time.Now(),
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1),
		infoStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		helpStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		successStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	}
}

func (m TUIModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
	)
}

func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "+", "=":
			if m.setWorkers != nil {
				m.workers = m.setWorkers(1)
			}
		case "-":
			if m.setWorkers != nil && m.workers > 1 {
				m.workers = m.setWorkers(-1)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 14

	case PlanProgressMsg:
		m.planFiles = msg.Files
		m.planBytes = msg.Bytes

	case PlanReadyMsg:
		m.phase = phaseWarming
		m.planFiles = msg.Plan.TotalFiles
		m.planBytes = msg.Plan.TotalBytes
		m.skipped = msg.Plan.Skipped
		m.snapshot = engine.Snapshot{
			TotalBytes: msg.Plan.TotalBytes,
			TotalFiles: msg.Plan.TotalFiles,
		}
		m.startedAt = time.Now()

	case SnapshotMsg:
		m.snapshot = msg.Snapshot

	case DoneMsg:
		m.phase = phaseDone
		m.snapshot = msg.Final

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m TUIModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sb strings.Builder

	// Header
	header := fmt.Sprintf("%s Gowarm %s", m.spinner.View(), m.titleStyle.Render("Filesystem Warming Engine"))
	sb.WriteString(header + "\n")

	switch m.phase {
	case phaseEstimating:
		info := fmt.Sprintf("Estimating size: %d files, %s found so far",
			m.planFiles, formatBytes(m.planBytes))
		sb.WriteString(m.infoStyle.Render(info) + "\n")

	case phaseWarming, phaseDone:
		snap := m.snapshot
		percent := snap.Percent()

		elapsedMs := float64(time.Since(m.startedAt).Milliseconds())
		var bytesPerMs float64
		if elapsedMs > 0 {
			bytesPerMs = float64(snap.BytesDone) / elapsedMs
		}

		opsInfo := fmt.Sprintf("ETA: %s | Workers: %d | %s / %s | %d/%d files | %s",
			formatETA(percent, bytesPerMs, snap.TotalBytes, snap.BytesDone),
			m.workers,
			formatBytes(snap.BytesDone), formatBytes(snap.TotalBytes),
			snap.FilesDone, snap.TotalFiles,
			formatSpeed(bytesPerMs*1000))

		sb.WriteString(m.infoStyle.Render(opsInfo) + "\n")
		sb.WriteString(m.progress.ViewAs(percent) + "\n")

		if m.skipped > 0 {
			sb.WriteString(m.infoStyle.Render(fmt.Sprintf("%d entries skipped during estimation", m.skipped)) + "\n")
		}
		if snap.FilesFailed > 0 {
			failInfo := fmt.Sprintf("%d files failed", snap.FilesFailed)
			if snap.LastError != nil {
				failInfo += " | last: " + snap.LastError.Error()
			}
			sb.WriteString(m.errorStyle.Render(failInfo) + "\n")
		}
	}

	// Footer
	help := m.helpStyle.Render("q/ctrl+c: quit • +/-: adjust workers")
	if m.phase == phaseDone {
		help = m.successStyle.Render("Warming Complete!") + " Press 'q' to exit."
	}
	sb.WriteString("\n" + help)

	return sb.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024*1024*1024:
		return fmt.Sprintf("%.2f TB", float64(n)/(1024*1024*1024*1024))
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.2f GB", float64(n)/(1024*1024*1024))
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%d B", n)
}

func formatSpeed(bytesPerSec float64) string {
	if bytesPerSec >= 1024*1024*1024 {
		return fmt.Sprintf("%.2f GB/s", bytesPerSec/(1024*1024*1024))
	} else if bytesPerSec >= 1024*1024 {
		return fmt.Sprintf("%.2f MB/s", bytesPerSec/(1024*1024))
	} else if bytesPerSec >= 1024 {
		return fmt.Sprintf("%.2f KB/s", bytesPerSec/1024)
	}
	return fmt.Sprintf("%.0f B/s", bytesPerSec)
}

func formatETA(progress float64, bytesPerMs float64, totalBytes, completedBytes int64) string {
	if progress == 0 || bytesPerMs <= 0 || totalBytes == 0 {
		return "Calculating..."
	}

	remainingBytes := totalBytes - completedBytes
	if remainingBytes <= 0 {
		return "0s"
	}

	remainingMs := float64(remainingBytes) / bytesPerMs
	d := time.Duration(remainingMs) * time.Millisecond

	if d.Hours() > 24 {
		return "> 1d"
	}

	return d.Round(time.Second).String()
}
