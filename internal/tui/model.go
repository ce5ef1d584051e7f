package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/audiolibrelab/reelcapture/internal/capture"
	"github.com/audiolibrelab/reelcapture/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	minBarWidth = 20
	maxBarWidth = 60
	errorTTL    = 4 * time.Second
)

type cellKind int

const (
	cellEmpty cellKind = iota
	cellSegment
	cellSegmentAlt
	cellLive
)

// Model is the root bubbletea model for the capture screen.
type Model struct {
	svc          service.Service
	tickInterval time.Duration

	status service.Status

	// UI state
	width  int
	height int

	// Messages
	statusText   string
	errorMessage string
	lastCapture  *service.CaptureRecord
}

// New creates a model driving svc. The view refreshes every tickInterval.
func New(svc service.Service, tickInterval time.Duration) Model {
	if tickInterval <= 0 {
		tickInterval = capture.DefaultTickInterval
	}
	return Model{
		svc:          svc,
		tickInterval: tickInterval,
		status:       svc.GetStatus(),
		statusText:   "Press Space to record",
	}
}

// LastCapture returns the capture handed over with "next", if any.
func (m Model) LastCapture() *service.CaptureRecord {
	return m.lastCapture
}

// Init starts the refresh tick.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.tickInterval)
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

func clearErrorCmd() tea.Cmd {
	return tea.Tick(errorTTL, func(time.Time) tea.Msg {
		return ClearErrorMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		previous := m.status.Phase
		m.status = m.svc.GetStatus()
		if previous == capture.PhaseRecording && m.status.Phase == capture.PhaseFinished {
			m.statusText = "Maximum length reached"
		}
		return m, tickCmd(m.tickInterval)

	case ClearErrorMsg:
		m.errorMessage = ""
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error

	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit

	case KeyRecord:
		switch m.svc.GetStatus().Phase {
		case capture.PhaseIdle, capture.PhaseFinished:
			if err = m.svc.StartRecording(); err == nil {
				m.statusText = "Recording"
				m.lastCapture = nil
			}
		default:
			err = m.svc.TogglePause()
		}

	case KeyUndo:
		if err = m.svc.Undo(); err == nil {
			m.statusText = "Segment removed"
		}

	case KeyRedo:
		if err = m.svc.Redo(); err == nil {
			m.statusText = "Segment restored"
		}

	case KeyStop:
		if err = m.svc.StopRecording(); err == nil {
			m.statusText = "Capture finished"
		}

	case KeyNext:
		var record *service.CaptureRecord
		if record, err = m.svc.Next(); err == nil {
			m.lastCapture = record
			m.statusText = fmt.Sprintf("Capture %s ready for editing", shortID(record.ID))
		}

	case KeyGallery:
		var captures []service.CaptureInfo
		if captures, err = m.svc.Upload(); err == nil {
			m.statusText = fmt.Sprintf("%d capture(s) in gallery", len(captures))
		}

	default:
		return m, nil
	}

	m.status = m.svc.GetStatus()
	if err != nil {
		m.errorMessage = describeError(err)
		return m, clearErrorCmd()
	}
	m.errorMessage = ""
	return m, nil
}

func describeError(err error) string {
	if errors.Is(err, service.ErrInvalidTransition) {
		return strings.TrimPrefix(err.Error(), service.ErrInvalidTransition.Error()+": ")
	}
	return err.Error()
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, renderProgressBar(m.status, m.barWidth()))
	sections = append(sections, m.renderSegments())
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, ErrorStyle.Render("Error: ")+m.errorMessage)
	} else if m.statusText != "" {
		sections = append(sections, InfoStyle.Render(m.statusText))
	}

	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("REELCAPTURE")
	profile := m.svc.GetConfig().Profile
	if profile == "" {
		return title
	}
	return title + DimStyle.Render(" ["+profile+"]")
}

func (m Model) renderStatusBar() string {
	var badge string
	switch m.status.Phase {
	case capture.PhaseRecording:
		badge = RecordingBadgeStyle.Render("● REC")
	case capture.PhasePaused:
		badge = PausedBadgeStyle.Render("❚❚ PAUSED")
	case capture.PhaseFinished:
		badge = FinishedBadgeStyle.Render("✓ DONE")
	default:
		badge = IdleBadgeStyle.Render("○ READY")
	}

	timer := TimerStyle.Render(m.status.Elapsed) +
		DimStyle.Render(" / "+capture.FormatTime(m.status.MaxDurationSeconds))

	return badge + "  " + timer
}

func (m Model) renderSegments() string {
	n := len(m.status.Segments)
	text := fmt.Sprintf("%d segment(s)", n)
	if len(m.status.Undone) > 0 {
		text += fmt.Sprintf(", %d undone", len(m.status.Undone))
	}
	return DimStyle.Render(text)
}

func (m Model) renderFooter() string {
	vis := m.status.Visibility
	var parts []string

	if vis.Record {
		label := " Record"
		switch m.status.Phase {
		case capture.PhaseRecording:
			label = " Pause"
		case capture.PhasePaused:
			label = " Resume"
		}
		parts = append(parts, footerItem("Space", label))
	}
	if vis.Secondary {
		if m.status.CanUndo {
			parts = append(parts, footerItem("u", " Undo"))
		}
		if m.status.CanRedo {
			parts = append(parts, footerItem("r", " Redo"))
		}
		parts = append(parts, footerItem("n", " Next"))
	}
	if m.status.Phase == capture.PhaseFinished {
		parts = append(parts, footerItem("Space", " New"))
	}
	if m.status.Phase == capture.PhaseRecording || m.status.Phase == capture.PhasePaused {
		parts = append(parts, footerItem("s", " Stop"))
	}
	if vis.Upload {
		parts = append(parts, footerItem("g", " Gallery"))
	}
	parts = append(parts, footerItem("q", " Quit"))

	return strings.Join(parts, "  ")
}

func footerItem(key, desc string) string {
	return FooterKeyStyle.Render(key) + FooterDescStyle.Render(desc)
}

func (m Model) barWidth() int {
	w := m.width - 2
	if w < minBarWidth {
		return minBarWidth
	}
	if w > maxBarWidth {
		return maxBarWidth
	}
	return w
}

// renderProgressBar draws the ring as a straight bar: one cell per slice of
// the session, colored by the segment it falls in.
func renderProgressBar(status service.Status, width int) string {
	var b strings.Builder
	for _, kind := range barCells(status.State, width) {
		switch kind {
		case cellSegment:
			b.WriteString(SegmentStyle.Render("█"))
		case cellSegmentAlt:
			b.WriteString(SegmentAltStyle.Render("█"))
		case cellLive:
			b.WriteString(LiveSegmentStyle.Render("█"))
		default:
			b.WriteString(EmptyBarStyle.Render("░"))
		}
	}
	return b.String()
}

// barCells classifies each cell by the percent at its midpoint.
func barCells(state capture.State, width int) []cellKind {
	cells := make([]cellKind, width)
	for i := range cells {
		p := (float64(i) + 0.5) / float64(width) * 100

		for k, seg := range state.Segments {
			if p >= seg.StartPercent && p < seg.EndPercent {
				cells[i] = cellSegment
				if k%2 == 1 {
					cells[i] = cellSegmentAlt
				}
				break
			}
		}
		if cells[i] != cellEmpty {
			continue
		}

		if state.Phase == capture.PhaseRecording &&
			p >= state.CurrentSegmentStartPercent && p < state.LiveProgressPercent {
			cells[i] = cellLive
		}
	}
	return cells
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
