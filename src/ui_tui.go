package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

type phase int

const (
	phaseScanning phase = iota
	phaseMetadata
	phaseCharts
	phaseReport
	phaseDone
)

type model struct {
	config       *Config
	pipeline     *Pipeline
	currentPhase phase
	spinner      spinner.Model
	progress     progress.Model

	// Data
	paths      []string
	records    []*PhotoMetadata
	stats      ReadStats
	summary    ReportSummary
	charts     []*ChartImage
	outputPath string

	// Progress tracking
	scanProgress     ScanProgress
	statusMsg        string
	metadataProgress chan ScanProgress

	// UI state
	width  int
	height int

	// Error
	err error
}

type scanCompleteMsg struct {
	paths []string
}

type metadataCompleteMsg struct {
	records []*PhotoMetadata
	stats   ReadStats
}

type chartsReadyMsg struct {
	summary ReportSummary
	charts  []*ChartImage
}

type reportWrittenMsg struct {
	path string
}

type progressMsg ScanProgress
type errMsg struct{ err error }

func initialModel(config *Config, log *logrus.Logger, cache *Cache) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)
	// Updated when WindowSizeMsg arrives
	p.Width = 60

	return model{
		config:       config,
		pipeline:     NewPipeline(config, log, cache),
		spinner:      s,
		progress:     p,
		currentPhase: phaseScanning,
		statusMsg:    "Scanning for photos...",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		scanFiles(m.pipeline),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		progressWidth := msg.Width - 35
		if progressWidth < 20 {
			progressWidth = 20
		}
		m.progress.Width = progressWidth
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.currentPhase == phaseDone || m.err != nil {
				return m, tea.Quit
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		m.scanProgress = ScanProgress(msg)
		if m.currentPhase == phaseMetadata && m.metadataProgress != nil {
			return m, waitForProgress(m.metadataProgress)
		}
		return m, nil

	case scanCompleteMsg:
		m.paths = msg.paths
		m.currentPhase = phaseMetadata
		m.statusMsg = fmt.Sprintf("Extracting metadata from %s files...", humanize.Comma(int64(len(m.paths))))

		m.metadataProgress = make(chan ScanProgress, 100)
		return m, tea.Batch(
			readMetadata(m.pipeline, m.paths, m.metadataProgress),
			waitForProgress(m.metadataProgress),
		)

	case metadataCompleteMsg:
		m.records = msg.records
		m.stats = msg.stats
		m.scanProgress = ScanProgress{}
		m.currentPhase = phaseCharts
		m.statusMsg = fmt.Sprintf("Rendering %d charts...", len(m.config.Charts))
		return m, renderCharts(m.pipeline, m.records, m.stats)

	case chartsReadyMsg:
		m.summary = msg.summary
		m.charts = msg.charts
		m.currentPhase = phaseReport
		m.statusMsg = "Assembling report..."
		return m, writeReport(m.pipeline, m.summary, m.charts)

	case reportWrittenMsg:
		m.outputPath = msg.path
		m.currentPhase = phaseDone
		m.statusMsg = "Report written to " + msg.path
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press q to quit\n", m.err)
	}

	var b strings.Builder
	b.WriteString("\n")

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		MarginLeft(2)

	b.WriteString(titleStyle.Render("Photograph Analysis Report"))
	b.WriteString("\n\n")

	if m.currentPhase != phaseDone {
		configStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginLeft(2)
		b.WriteString(configStyle.Render(fmt.Sprintf(
			"%s → %s | Workers: %d | Top %d | Aperture: %s",
			truncatePath(m.config.SourceDir, 30),
			truncatePath(m.config.OutputDir, 20),
			m.config.Workers,
			m.config.TopN,
			m.config.AperturePolicy,
		)))
		b.WriteString("\n\n")
	}

	// Phase indicator
	b.WriteString("  ")
	phases := []string{"Scanning", "Metadata", "Charts", "Report", "Done"}
	for i, name := range phases {
		if i > 0 {
			b.WriteString(" → ")
		}
		switch {
		case int(m.currentPhase) == i:
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Render(name))
		case int(m.currentPhase) > i:
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("✓"))
		default:
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(name))
		}
	}
	b.WriteString("\n\n")

	switch m.currentPhase {
	case phaseDone:
		b.WriteString(m.renderSummary())

	default:
		b.WriteString(fmt.Sprintf("  %s %s\n\n", m.spinner.View(), m.statusMsg))

		if m.scanProgress.TotalFiles > 0 {
			percent := float64(m.scanProgress.ProcessedFiles) / float64(m.scanProgress.TotalFiles)
			b.WriteString("  ")
			b.WriteString(m.progress.ViewAs(percent))
			b.WriteString(fmt.Sprintf(" %d%% (%d/%d files)\n\n",
				int(percent*100),
				m.scanProgress.ProcessedFiles,
				m.scanProgress.TotalFiles))
		}

		if m.scanProgress.CurrentFile != "" {
			maxLen := m.width - 20
			if maxLen < 40 {
				maxLen = 40
			}
			fileStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				MarginLeft(2)
			b.WriteString(fmt.Sprintf("\n%s", fileStyle.Render(truncatePath(m.scanProgress.CurrentFile, maxLen))))
		}
	}

	b.WriteString("\n\n")
	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginLeft(2)
	if m.currentPhase == phaseDone {
		b.WriteString(helpStyle.Render("enter: quit • q: quit"))
	} else {
		b.WriteString(helpStyle.Render("q: quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m model) renderSummary() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		MarginLeft(2)

	doneStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true).
		MarginLeft(2)

	var b strings.Builder
	b.WriteString(boxStyle.Render(fmt.Sprintf(
		"Photos: %s • Skipped: %s • Cache hits: %s\nPeriod: %s → %s\nCharts: %d",
		humanize.Comma(int64(m.summary.Photos)),
		humanize.Comma(int64(m.summary.Skipped)),
		humanize.Comma(int64(m.stats.CacheHits)),
		m.summary.Earliest.Format(dateLayout),
		m.summary.Latest.Format(dateLayout),
		len(m.charts),
	)))
	b.WriteString("\n\n")
	b.WriteString(doneStyle.Render("✓ " + m.statusMsg))
	return b.String()
}

// Commands
func scanFiles(p *Pipeline) tea.Cmd {
	return func() tea.Msg {
		paths, err := p.Collect()
		if err != nil {
			return errMsg{err}
		}
		return scanCompleteMsg{paths: paths}
	}
}

func readMetadata(p *Pipeline, paths []string, progressChan chan ScanProgress) tea.Cmd {
	return func() tea.Msg {
		records, stats, err := p.Read(paths, progressChan)
		close(progressChan)
		if err != nil {
			return errMsg{err}
		}
		return metadataCompleteMsg{records: records, stats: stats}
	}
}

// waitForProgress relays one progress update; a closed channel ends the loop
func waitForProgress(progressChan <-chan ScanProgress) tea.Cmd {
	return func() tea.Msg {
		prog, ok := <-progressChan
		if !ok {
			return nil
		}
		return progressMsg(prog)
	}
}

func renderCharts(p *Pipeline, records []*PhotoMetadata, stats ReadStats) tea.Cmd {
	return func() tea.Msg {
		summary, err := p.Summarize(records, stats)
		if err != nil {
			return errMsg{err}
		}
		charts, err := p.Charts(records, nil)
		if err != nil {
			return errMsg{err}
		}
		return chartsReadyMsg{summary: summary, charts: charts}
	}
}

func writeReport(p *Pipeline, summary ReportSummary, charts []*ChartImage) tea.Cmd {
	return func() tea.Msg {
		path, err := p.Write(summary, charts)
		if err != nil {
			return errMsg{err}
		}
		return reportWrittenMsg{path: path}
	}
}

// truncatePath shortens a file path for display
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen > 10 {
		return "..." + path[len(path)-maxLen+3:]
	}
	return path[:maxLen]
}
