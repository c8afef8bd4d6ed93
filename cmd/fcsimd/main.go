// Command fcsimd is a reference demo daemon for the flight-control task
// scheduler: it wires the engine to a simulated task table and an
// introspection HTTP endpoint. It is not part of the engine's contract; a
// real flight controller supplies its own task table and main loop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "fcsimd",
	Short:         "fcsimd: reference demo daemon for the fcsched task scheduler",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo scheduler daemon until a shutdown signal is received",
	RunE: func(cmd *cobra.Command, args []string) error {
		if code := run(cfgFile); code != 0 {
			return fmt.Errorf("exit code %d", code)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the resolved configuration and demo task table, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printInfo(cfgFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file to load (defaults built in if empty)")
	rootCmd.AddCommand(runCmd, infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
