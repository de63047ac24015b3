// Package cli implements the cryocooler command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhyland87/Cryocooler-Controller/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "cryocooler",
	Short:         "Cryocooler cooldown controller",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (built-in defaults when empty)")
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(defaultsCmd)
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig returns the file at path overlaid on the defaults, or the
// defaults alone when path is empty.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the built-in configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Marshal(config.Default())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
