package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/xvcprog/pkg/bitfile"
	"github.com/OpenTraceLab/xvcprog/pkg/sequence"
)

var infoCmd = &cobra.Command{
	Use:   "info <file.bit>",
	Short: "Show the metadata of a .bit file",
	Long: `Decode a Xilinx .bit container and print its header sections and
payload size without touching any hardware.

Examples:
  xvcprog info design.bit`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

var scriptCmd = &cobra.Command{
	Use:   "script [file]",
	Short: "Check a sequence script, or print the built-in one",
	Long: `Without arguments, print the built-in UltraScale+ programming sequence.
With a file, parse and validate it and print the normalized statements.

Examples:
  xvcprog script > custom.seq
  xvcprog script custom.seq`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(scriptCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	f, err := bitfile.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:        %s\n", args[0])
	fmt.Fprintf(out, "Source:      %s\n", f.SourceName())
	fmt.Fprintf(out, "Part:        %s\n", f.Part())
	fmt.Fprintf(out, "Date:        %s %s\n", f.BuildDate(), f.BuildTime())
	fmt.Fprintf(out, "Payload:     %d bytes (%d words)\n", len(f.Data), f.Words())
	if !f.Aligned() {
		fmt.Fprintf(out, "Warning:     payload is not a whole number of 32-bit words\n")
	}
	return nil
}

func runScript(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		fmt.Fprint(out, sequence.DefaultSource())
		return nil
	}

	s, err := loadScript(args[0])
	if err != nil {
		return err
	}
	for _, st := range s.Steps {
		fmt.Fprintln(out, st)
	}
	return nil
}
