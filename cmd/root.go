package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/streamforge/physport/cmd/perf"
	"github.com/streamforge/physport/cmd/serve"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "physport",
		Short: "physical port server",
		Long: fmt.Sprintf(`physport (v%s)

A listening endpoint abstraction written in Go: one socket, one event loop,
a fixed worker pool with per-connection ordering, and observer fan-out.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of physport",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("physport v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
