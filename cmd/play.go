package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ham/debug"
	"ham/host"
	"ham/midi"
	"ham/sequencer"
	"ham/theme"
	"ham/tui"
)

var (
	portName    string
	paletteFile string
	latency     time.Duration
	noMonitor   bool
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play patterns to a MIDI output port",
	Long: `Play runs the sequencer in real time. The audio device supplies the clock:
every buffer it asks for advances the sequencer by the same number of samples,
and the resulting MIDI is sent to the output port.

On a terminal a monitor shows the transport, stages and voices. Otherwise the
sequencer plays until interrupted.

Example:
  ham play --pattern song.yaml --port "IAC Driver Bus 1"
`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&portName, "port", "", "MIDI output port (default: config, then the first port)")
	playCmd.Flags().StringVar(&paletteFile, "palette", "", "GIMP palette for the monitor")
	playCmd.Flags().DurationVar(&latency, "latency", 20*time.Millisecond, "delay added to every MIDI event")
	playCmd.Flags().BoolVar(&noMonitor, "no-monitor", false, "do not start the terminal monitor")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if portName != "" {
		cfg.Output.PortName = portName
	}
	e, patterns, err := newEngine(cfg)
	if err != nil {
		return err
	}

	out := midi.NewOutput(cfg.Output.PortName)
	if err := out.Open(); err != nil {
		return fmt.Errorf("midi output: %w", err)
	}
	defer out.Close()

	driver := host.NewDriver(e, out, host.DriverOptions{
		BufferSize: cfg.Audio.BufferSize,
		Latency:    latency,
	})
	if err := driver.Start(); err != nil {
		return err
	}
	e.Play()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !noMonitor && term.IsTerminal(int(os.Stdout.Fd())) {
		err = runMonitor(ctx, e, patterns[0].Name, out.DefaultPort())
	} else {
		fmt.Printf("playing %q to %s, ctrl+c to stop\n", patterns[0].Name, out.DefaultPort())
		<-ctx.Done()
	}

	if cerr := driver.Close(); cerr != nil && err == nil {
		err = cerr
	}
	st, ds := e.Stats(), driver.Stats()
	fmt.Printf("%d buffers  %d events sent  %d failed  %d dropped  peak load %.0f%%\n",
		st.Buffers, ds.Sent, ds.Failed, st.EventsDropped+ds.Dropped, st.PeakLoad*100)
	debug.Logger().Info("play finished", "stats", fmt.Sprintf("%+v", st))
	return err
}

func runMonitor(ctx context.Context, e *sequencer.Engine, name, port string) error {
	palette := theme.Plasma()
	if paletteFile != "" {
		p, err := theme.LoadGPL(paletteFile)
		if err != nil {
			return err
		}
		palette = p
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watcher := midi.NewWatcher(time.Second)
	go watcher.Run(ctx)

	m := tui.NewMonitor(e, theme.New(palette), watcher, fmt.Sprintf("ham  %s > %s", name, port))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
