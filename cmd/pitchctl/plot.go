package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	pitch "pitch_compliance"
)

const (
	plotHeaderHeight = 2
	plotFooterHeight = 3
	plotBorderSize   = 2
	pitchSeries      = "pitch"
	maxPitchDeg      = 25
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pitchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

type plotModel struct {
	orch     *pitch.Orchestrator
	ctx      context.Context
	period   time.Duration
	chart    *streamlinechart.Model
	width    int
	height   int
	last     pitch.LogRecord
	hasLast  bool
	lastAt   time.Time
	quitting bool
}

type plotTickMsg time.Time

func (m plotModel) tick() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg { return plotTickMsg(t) })
}

func newPlotModel(ctx context.Context, orch *pitch.Orchestrator, period time.Duration) plotModel {
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	chart := streamlinechart.New(80, 20, streamlinechart.WithYRange(0, maxPitchDeg))
	chart.SetDataSetStyles(pitchSeries, runes.ThinLineStyle, pitchStyle)
	return plotModel{orch: orch, ctx: ctx, period: period, chart: &chart}
}

func (m plotModel) Init() tea.Cmd {
	return m.tick()
}

func (m plotModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w := max(m.width-plotBorderSize-2, 40)
		h := max(m.height-plotHeaderHeight-plotFooterHeight-plotBorderSize, 10)
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case plotTickMsg:
		if m.ctx.Err() != nil {
			m.quitting = true
			return m, tea.Quit
		}
		if rec, ok := m.orch.Latest(); ok && rec.Timestamp.After(m.lastAt) {
			m.last, m.hasLast, m.lastAt = rec, true, rec.Timestamp
			if rec.HasPitch {
				m.chart.PushDataSet(pitchSeries, rec.Pitch.Degrees())
				m.chart.DrawAll()
			}
		}
		return m, m.tick()
	}
	return m, nil
}

func (m plotModel) View() string {
	if m.quitting {
		return "Experiment stopped.\n"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Pitch compliance"))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  pitch (deg), 0-%d", maxPitchDeg)))
	sb.WriteString("\n\n")
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(m.statusLine())
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render("Press 'q' to stop"))
	sb.WriteString("\n")
	return sb.String()
}

func (m plotModel) statusLine() string {
	if !m.hasLast {
		return statusStyle.Render("waiting for data")
	}
	parts := make([]string, 0, pitch.NumJoints+2)
	for _, p := range m.last.JointPositions {
		parts = append(parts, fmt.Sprintf("%.3f", p))
	}
	line := "joints [" + strings.Join(parts, " ") + "]"
	if v, ok := m.last.VoltageValue(); ok {
		line += fmt.Sprintf("  %.3f V", v)
	}
	if m.last.HasPitch {
		line += pitchStyle.Render(fmt.Sprintf("  %.2f°", m.last.Pitch.Degrees()))
	}
	return line
}

func runPlot(ctx context.Context, orch *pitch.Orchestrator, period time.Duration) error {
	p := tea.NewProgram(newPlotModel(ctx, orch, period), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
