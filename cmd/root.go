package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ham/config"
	"ham/debug"
	"ham/pattern"
	"ham/sequencer"
)

var (
	cfgFile     string
	patternFile string
	tempo       float64
	debugLog    bool

	loaded *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ham",
	Short: "A real-time stage sequencer",
	Long: `ham is a stage-based step sequencer. Each track steps through up to eight
stages with their own pitch, gate and ratchet settings, shaped by an
accumulator, and plays them as MIDI.

Patterns are read from YAML or JSON files; without one a demo pattern plays.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !debugLog {
			return nil
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return debug.Enable(cfg.Output.DebugLog)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		debug.Disable()
	},
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default ~/.config/ham/config.yaml)")
	flags.StringVarP(&patternFile, "pattern", "p", "", "pattern file or bank name (YAML or JSON)")
	flags.Float64VarP(&tempo, "tempo", "t", 0, "tempo in BPM, overrides the config")
	flags.BoolVar(&debugLog, "debug", false, "write a debug log")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file once and applies the command line
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if loaded != nil {
		return loaded, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("tempo") {
		cfg.Transport.Tempo = tempo
	}
	if patternFile != "" {
		cfg.Output.PatternFile = patternFile
	}
	if changed := cfg.Validate(); len(changed) > 0 {
		fmt.Fprintf(os.Stderr, "config: clamped %s\n", strings.Join(changed, ", "))
		debug.Logger().Warn("config clamped", "fields", changed)
	}
	loaded = cfg
	return cfg, nil
}

// newEngine builds an engine from cfg and loads its patterns into slots in
// file order. The first one is activated.
func newEngine(cfg *config.Config) (*sequencer.Engine, []*pattern.Pattern, error) {
	patterns := []*pattern.Pattern{pattern.Demo()}
	if cfg.Output.PatternFile != "" {
		path, err := pattern.Resolve(cfg.Output.PatternFile)
		if err != nil {
			return nil, nil, err
		}
		patterns, err = pattern.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		if len(patterns) == 0 {
			return nil, nil, fmt.Errorf("%s: no patterns", cfg.Output.PatternFile)
		}
	}
	if len(patterns) > sequencer.MaxPatterns {
		fmt.Fprintf(os.Stderr, "only the first %d patterns are loaded\n", sequencer.MaxPatterns)
		patterns = patterns[:sequencer.MaxPatterns]
	}

	e := sequencer.New(cfg.Options())
	for i, p := range patterns {
		if err := e.LoadPattern(i, p, i == 0); err != nil {
			return nil, nil, err
		}
	}
	debug.Logger().Info("engine ready", "patterns", len(patterns), "tempo", cfg.Transport.Tempo)
	return e, patterns, nil
}
