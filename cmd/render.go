package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ham/host"
	"ham/theme"
)

var (
	outFile    string
	renderBars int
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the first pattern to a Standard MIDI File",
	Long: `Render runs the sequencer offline, as fast as it can, and writes the result
as a Standard MIDI File with one track per channel.

Example:
  ham render --pattern song.yaml --bars 16 -o song.mid
`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&outFile, "out", "o", "out.mid", "output file")
	renderCmd.Flags().IntVarP(&renderBars, "bars", "b", 0, "bars to render (default: the pattern length)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, patterns, err := newEngine(cfg)
	if err != nil {
		return err
	}
	bars := renderBars
	if bars <= 0 {
		bars = max(patterns[0].LengthBars, 1)
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	res, err := host.RenderSMF(e, bars, cfg.Audio.BufferSize, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	th := theme.New(nil)
	label := lipgloss.NewStyle().Foreground(th.Muted())
	value := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	row := func(k string, v any) {
		fmt.Println(label.Render(fmt.Sprintf("%-8s", k)), value.Render(fmt.Sprint(v)))
	}
	row("file", outFile)
	row("pattern", patterns[0].Name)
	row("bars", bars)
	row("notes", res.Notes)
	row("tracks", res.Tracks)
	if res.Dropped > 0 {
		row("dropped", res.Dropped)
	}
	return nil
}
