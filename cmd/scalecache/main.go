// Command scalecache builds a scale-space pyramid for an image and
// reports or exports the cached levels.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at link time.
var Version = "dev"

var (
	configFile string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:           "scalecache",
		Short:         "Build and inspect scale-space pyramids",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.AddCommand(newBuildCmd(), newInspectCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "scalecache:", err)
		os.Exit(1)
	}
}
