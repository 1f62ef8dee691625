// Command annkit inspects index parameter schemas, validates parameter
// documents and benchmarks index kinds on synthetic data.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/annkit"
	"github.com/hupe1980/annkit/config"
)

var (
	kindName string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "annkit",
	Short:         "Approximate nearest neighbor index toolkit",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			config.SetLogger(annkit.NewTextLogger(slog.LevelDebug).Logger)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&kindName, "kind", "k", string(annkit.KindHNSW), "index kind (FLAT or HNSW)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
