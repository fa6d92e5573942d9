package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ham/pattern"
	"ham/sequencer"
	"ham/theme"
)

func newMonitor(t *testing.T) (*Monitor, *sequencer.Engine) {
	t.Helper()
	e := sequencer.New(sequencer.DefaultOptions())
	if err := e.LoadPattern(0, pattern.New("a", 2), true); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadPattern(3, pattern.New("b", 1), false); err != nil {
		t.Fatal(err)
	}
	return NewMonitor(e, theme.New(nil), nil, "ham"), e
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMonitorFollowsTelemetry(t *testing.T) {
	m, e := newMonitor(t)
	m.Init()
	m.Update(key("p"))
	for i := 0; i < 30; i++ {
		e.ProcessBuffer(1000)
	}
	m.poll()

	if m.transport != sequencer.TransportPlaying || !m.tracks[0].seen || !m.tracks[1].seen {
		t.Fatalf("transport %d tracks %+v", m.transport, m.tracks[:2])
	}
	view := m.View()
	for _, want := range []string{"PLAY", "T1", "T2", "voices"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMonitorKeys(t *testing.T) {
	m, e := newMonitor(t)
	e.ProcessBuffer(64) // loads the patterns
	m.Update(key("p"))
	m.Update(key("1"))
	m.Update(key("n"))
	e.ProcessBuffer(256)
	m.poll()
	if !m.tracks[0].muted {
		t.Fatal("track 1 not muted")
	}
	if !strings.Contains(strings.Join(m.log, "\n"), "queued pattern 3") {
		t.Fatalf("log = %v", m.log)
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil || m.View() != "" {
		t.Fatal("q did not quit")
	}
}
