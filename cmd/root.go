// Package cmd wires the CLI entrypoint together.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Forensiq/indexedRingBuffer/cmd/client"
	"github.com/Forensiq/indexedRingBuffer/cmd/serve"
)

const Version = "0.1.0"

var RootCmd = &cobra.Command{
	Use:   "ringcache",
	Short: "indexed ring-buffer cache",
	Long: fmt.Sprintf(`ringcache (v%s)

A fixed-capacity, FIFO in-memory record cache with automatic capacity
control and pluggable eviction fan-out.`, Version),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ringcache v%s\n", Version)
	},
}

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(client.StatsCmd)
	RootCmd.AddCommand(client.DrainCmd)
	RootCmd.AddCommand(client.ResizeCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Called once from main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
