package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"ham/midi"
)

var watchPorts bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI ports",
	Long: `Ports lists the MIDI input and output ports. With --watch it keeps running
and reports output ports as they are plugged and unplugged.

If listing hangs, restart the MIDI service (macOS: sudo killall coreaudiod midiserver).`,
	RunE: runPorts,
}

func init() {
	portsCmd.Flags().BoolVarP(&watchPorts, "watch", "w", false, "report hot-plug changes until interrupted")
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	outs, err := midi.OutPorts()
	if err != nil {
		return err
	}
	ins, err := midi.InPorts()
	if err != nil {
		return err
	}

	fmt.Println("Output ports:")
	for i, p := range outs {
		fmt.Printf("  [%d] %s\n", i, p)
	}
	fmt.Println("Input ports:")
	for i, p := range ins {
		fmt.Printf("  [%d] %s\n", i, p)
	}
	if !watchPorts {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	w := midi.NewWatcher(time.Second)
	go w.Run(ctx)

	fmt.Println("Watching, ctrl+c to stop")
	for ev := range w.Events() {
		fmt.Printf("%s  %-7s %s\n", time.Now().Format("15:04:05"), ev.Type, ev.Name)
	}
	return nil
}
