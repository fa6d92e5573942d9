// Package tui is a terminal monitor for a running engine. It only reads
// telemetry and sends control messages, so it can be attached or detached
// without affecting playback.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ham/midi"
	"ham/sequencer"
	"ham/theme"
	"ham/timing"
)

const (
	refreshRate = 40 * time.Millisecond
	logLines    = 6
)

type trackView struct {
	seen   bool
	stage  int
	pulse  int
	accum  int
	muted  bool
	solo   bool
	note   uint8
	sounds int // note-ons minus note-offs
}

// Monitor is the bubbletea model.
type Monitor struct {
	engine  *sequencer.Engine
	theme   *theme.Theme
	watcher *midi.Watcher
	title   string

	tel       []sequencer.Telemetry
	tracks    [timing.MaxTracks]trackView
	pos       timing.Position
	tempo     float64
	transport int
	voices    int
	load      float64
	drift     int64
	log       []string
	quitting  bool
}

type tickMsg time.Time

type portMsg midi.PortEvent

// NewMonitor returns a monitor for e. watcher may be nil.
func NewMonitor(e *sequencer.Engine, th *theme.Theme, watcher *midi.Watcher, title string) *Monitor {
	return &Monitor{
		engine:  e,
		theme:   th,
		watcher: watcher,
		title:   title,
		tel:     make([]sequencer.Telemetry, 1024),
		tempo:   e.Tempo(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// ListenForPorts waits for the next hot-plug event.
func ListenForPorts(w *midi.Watcher) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-w.Events()
		if !ok {
			return nil
		}
		return portMsg(ev)
	}
}

func (m *Monitor) Init() tea.Cmd {
	m.engine.RequestState()
	if m.watcher != nil {
		return tea.Batch(tick(), ListenForPorts(m.watcher))
	}
	return tick()
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case tickMsg:
		m.poll()
		return m, tick()

	case portMsg:
		m.addLog(fmt.Sprintf("port %s: %s", msg.Type, msg.Name))
		return m, ListenForPorts(m.watcher)
	}
	return m, nil
}

func (m *Monitor) handleKey(key string) tea.Cmd {
	e := m.engine
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return tea.Quit

	case "p", " ":
		if e.Running() {
			e.Stop()
		} else {
			e.Play()
		}

	case "w":
		e.Pause()

	case "+", "=":
		e.SetTempo(min(m.tempo+5, timing.MaxTempo))

	case "-", "_":
		e.SetTempo(max(m.tempo-5, 1))

	case "1", "2", "3", "4", "5", "6", "7", "8":
		i := int(key[0] - '1')
		e.SetMute(i, !m.tracks[i].muted)
		e.RequestState()

	case "!", "@", "#", "$", "%", "^", "&", "*":
		i := strings.Index("!@#$%^&*", key)
		e.SetSolo(i, !m.tracks[i].solo)
		m.tracks[i].solo = !m.tracks[i].solo

	case "n":
		// next loaded slot, switched on the next bar line
		cur := e.CurrentPattern()
		for i := 1; i < sequencer.MaxPatterns; i++ {
			slot := (cur + i) % sequencer.MaxPatterns
			if e.HasPattern(slot) {
				e.QueuePattern(sequencer.ScopePattern, slot, sequencer.NextBar)
				m.addLog(fmt.Sprintf("queued pattern %d", slot))
				break
			}
		}

	case "x":
		e.Panic()
		m.addLog("panic")

	case "d":
		e.RequestState()
	}
	return nil
}

// poll drains the telemetry queue into the view state.
func (m *Monitor) poll() {
	for {
		n := m.engine.PollTelemetry(m.tel)
		for _, t := range m.tel[:n] {
			m.apply(t)
		}
		if n < len(m.tel) {
			return
		}
	}
}

func (m *Monitor) apply(t sequencer.Telemetry) {
	var tv *trackView
	if t.Track >= 0 && t.Track < len(m.tracks) {
		tv = &m.tracks[t.Track]
	}
	switch t.Type {
	case sequencer.TelTransport:
		m.transport = t.Transport
		m.tempo = t.Tempo
		m.pos = t.Position
		if t.Transport == sequencer.TransportStopped {
			for i := range m.tracks {
				m.tracks[i].sounds = 0
			}
		}
	case sequencer.TelPlayhead:
		m.pos = t.Position
	case sequencer.TelStage:
		if tv != nil {
			tv.seen = true
			tv.stage = t.Stage
		}
	case sequencer.TelStateDump:
		if tv != nil {
			tv.seen = true
			tv.stage, tv.pulse, tv.accum, tv.muted = t.Stage, t.Pulse, t.Accum, t.Muted
		}
	case sequencer.TelNoteOn:
		if tv != nil {
			tv.note = t.Note
			tv.sounds++
		}
	case sequencer.TelNoteOff:
		if tv != nil && tv.sounds > 0 {
			tv.sounds--
		}
	case sequencer.TelVoices:
		m.voices = t.Voices
	case sequencer.TelTiming:
		m.load, m.drift = t.Load, t.DriftMicros
	case sequencer.TelTransition:
		m.addLog(fmt.Sprintf("%d.%d: %v", t.Position.Bar+1, t.Position.Beat+1, t))
		// mutes may differ in the new pattern
		m.engine.RequestState()
	}
}

func (m *Monitor) addLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
}

func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}
	th := m.theme
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	activeStyle := lipgloss.NewStyle().Foreground(th.Active())
	fgStyle := lipgloss.NewStyle().Foreground(th.FG())

	state := "STOP"
	switch m.transport {
	case sequencer.TransportPlaying:
		state = "PLAY"
	case sequencer.TransportPaused:
		state = "PAUSE"
	}
	header := headerStyle.Render(fmt.Sprintf("%s  %s  %5.1fbpm  %3d.%d.%02d",
		m.title, state, m.tempo, m.pos.Bar+1, m.pos.Beat+1, m.pos.Pulse))
	load := lipgloss.NewStyle().Foreground(th.Load(m.load)).
		Render(fmt.Sprintf("load %3.0f%%  drift %+dus", m.load*100, m.drift))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("  ")
	out.WriteString(load)
	out.WriteString("\n\n")

	for i, tv := range m.tracks {
		if !tv.seen {
			continue
		}
		var row strings.Builder
		for s := 0; s < timing.MaxStages; s++ {
			switch {
			case s == tv.stage:
				row.WriteString(activeStyle.Render(string(th.Symbols.StagePlayhead)))
			case s < tv.stage:
				row.WriteString(fgStyle.Render(string(th.Symbols.StageGate)))
			default:
				row.WriteString(dimStyle.Render(string(th.Symbols.StageIdle)))
			}
			row.WriteString(" ")
		}
		flags := "  "
		if tv.muted {
			flags = string(th.Symbols.Muted) + " "
		}
		if tv.solo {
			flags = flags[:1] + string(th.Symbols.Solo)
		}
		note := "   "
		if tv.sounds > 0 {
			note = midi.NoteName(tv.note)
		}
		fmt.Fprintf(&out, "T%d %s %s acc %+3d  %-4s\n", i+1, flags, row.String(), tv.accum, note)
	}

	out.WriteString("\n")
	meter := strings.Repeat(string(th.Symbols.Voice), min(m.voices, 32))
	out.WriteString(fgStyle.Render(fmt.Sprintf("voices %2d ", m.voices)))
	out.WriteString(activeStyle.Render(meter))
	out.WriteString("\n\n")
	for _, l := range m.log {
		out.WriteString(dimStyle.Render(l))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("p:play/stop  w:pause  +/-:tempo  1-8:mute  shift+1-8:solo  n:next pattern  x:panic  q:quit"))
	return out.String()
}
