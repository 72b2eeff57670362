package dashboard

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"greedos/internal/forensic"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// snapshotMsg carries a new dashboard snapshot.
type snapshotMsg struct{ Snapshot }

// adminMsg reports the admin endpoint.
type adminMsg struct{ addr string }

const maxLogLines = 200

var (
	logPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)
	alertPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("11")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
)

// TUIRenderer draws snapshots with a bubbletea program.
type TUIRenderer struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIRenderer starts a bubbletea program on the alternate screen.
// Quitting the program interrupts the process so the run shuts down.
func NewTUIRenderer() *TUIRenderer {
	r := &TUIRenderer{done: make(chan struct{})}
	r.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(), tea.WithAltScreen())
	r.program = p
	go func() {
		_, _ = p.Run()
		close(r.done)
		if r.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return r
}

// Render implements Renderer.
func (r *TUIRenderer) Render(s Snapshot) error {
	r.program.Send(snapshotMsg{s})
	return nil
}

// SetAdminAddr shows the admin endpoint in the footer.
func (r *TUIRenderer) SetAdminAddr(addr string) {
	r.program.Send(adminMsg{addr: addr})
}

// Close shuts down the TUI program and waits for the terminal to be restored.
func (r *TUIRenderer) Close() error {
	r.sendSignal.Store(false)
	if r.program != nil {
		r.program.Send(tea.Quit())
	}
	if r.done != nil {
		<-r.done
	}
	return nil
}

type tuiModel struct {
	table      table.Model
	vp         viewport.Model
	snap       Snapshot
	haveSnap   bool
	logs       []string
	lastSeq    uint64
	admin      string
	wrap       bool
	autoscroll bool
	help       bool
	width      int
	height     int
}

func newTUIModel() tuiModel {
	cols := []table.Column{
		{Title: "Metric", Width: 16},
		{Title: "Value", Width: 30},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(metricRows(Snapshot{})), table.WithHeight(7))
	return tuiModel{
		table:      t,
		vp:         viewport.New(0, 0),
		autoscroll: true,
	}
}

func metricRows(s Snapshot) []table.Row {
	state := "idle"
	if s.Running {
		state = "running"
	}
	return []table.Row{
		{"Target", s.Target},
		{"Threads", strconv.Itoa(s.Workers)},
		{"Duration (sec)", strconv.Itoa(int(s.Duration / time.Second))},
		{"Requests Sent", strconv.FormatUint(s.Requests, 10)},
		{"Packets", fmt.Sprintf("%d (%d suspicious)", s.Packets, s.Anomalies)},
		{"State", state},
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width - 4
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "?", "h":
			m.help = true
			return m, nil
		}
		if !m.autoscroll {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case snapshotMsg:
		m.snap = msg.Snapshot
		m.haveSnap = true
		m.table.SetRows(metricRows(msg.Snapshot))
		m.appendEvents(msg.Events)
		m.updateViewportHeight()
		m.refreshViewport()
	case adminMsg:
		m.admin = msg.addr
	}
	return m, nil
}

// appendEvents adds events not seen in earlier snapshots to the scrollback.
func (m *tuiModel) appendEvents(events []forensic.Event) {
	for _, ev := range events {
		if ev.Seq <= m.lastSeq {
			continue
		}
		m.lastSeq = ev.Seq
		m.logs = append(m.logs, formatEvent(ev))
	}
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func formatEvent(ev forensic.Event) string {
	return fmt.Sprintf("%s%s%s | %s%s%s: %s",
		colorGray, ev.Timestamp.Format(time.RFC3339), colorReset,
		categoryColor(ev.Category), ev.Category, colorReset, ev.Details)
}

func (m *tuiModel) updateViewportHeight() {
	used := lipgloss.Height(m.table.View()) + lipgloss.Height(m.renderAlerts()) + lipgloss.Height(m.renderBottom()) + 6
	h := m.height - used
	if h < 1 {
		h = 1
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	content := "No events"
	if len(m.logs) > 0 {
		lines := m.logs
		if m.wrap && m.vp.Width > 0 {
			lines = make([]string, len(m.logs))
			for i, l := range m.logs {
				lines[i] = wordwrap.String(l, m.vp.Width)
			}
		}
		content = strings.Join(lines, "\n")
	}
	m.vp.SetContent(content)
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	header := titleStyle.Render("GreeDos Dashboard")
	if m.snap.RunID != "" {
		header += lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("  run " + m.snap.RunID)
	}
	logs := logPanelStyle.Render("Forensic Log\n" + m.vp.View())
	sections := []string{
		header,
		m.table.View(),
		logs,
		m.renderAlerts(),
		m.renderBottom(),
	}
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderAlerts() string {
	body := "No alerts"
	if len(m.snap.Alerts) > 0 {
		lines := make([]string, len(m.snap.Alerts))
		for i, a := range m.snap.Alerts {
			lines[i] = a.Message
		}
		body = strings.Join(lines, "\n")
	}
	if m.wrap && m.width > 4 {
		body = wordwrap.String(body, m.width-4)
	}
	return alertPanelStyle.Render("Alerts\n" + body)
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	admin := "off"
	if m.admin != "" {
		admin = m.admin
	}
	line := fmt.Sprintf("Admin %s %s | Wrap %s | Scroll %s | Help %s",
		indicator(m.admin != ""), admin, indicator(m.wrap), indicator(m.autoscroll), indicator(m.help))
	if m.haveSnap {
		line = fmt.Sprintf("%s | updated %s", line, m.snap.TakenAt.Format(time.TimeOnly))
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap",
		" s  toggle auto-scroll",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
