package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ham/pattern"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the pattern banks in ~/.config/ham/patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := pattern.ListBanks()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			dir, _ := pattern.BankDir()
			fmt.Printf("no pattern banks in %s\n", dir)
			return nil
		}
		for _, name := range names {
			path, err := pattern.Resolve(name)
			if err != nil {
				return err
			}
			patterns, err := pattern.LoadFile(path)
			if err != nil {
				fmt.Printf("  %-16s %v\n", name, err)
				continue
			}
			fmt.Printf("  %-16s %d pattern(s)", name, len(patterns))
			for _, p := range patterns {
				fmt.Printf("  %q", p.Name)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(patternsCmd)
}
