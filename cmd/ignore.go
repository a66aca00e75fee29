package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/volsync/internal/errors"
	"github.com/firefly-engineering/volsync/internal/ignore"
)

var ignoreBackend string

var ignoreCmd = &cobra.Command{
	Use:   "ignore <pattern>...",
	Short: "Print the ignore string for a backend",
	Long: `Print the flags that exclude the given patterns for a sync backend.

Each argument may hold several patterns separated by colons, the same format
as SYNC_IGNORE.

Examples:
  volsync ignore node_modules:tmp
  volsync ignore --backend tar .git build`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIgnore,
}

func init() {
	ignoreCmd.Flags().StringVar(&ignoreBackend, "backend", string(ignore.Unison), "Sync backend (unison, tar)")
	rootCmd.AddCommand(ignoreCmd)
}

func runIgnore(cmd *cobra.Command, args []string) error {
	backend, err := ignore.ParseBackend(ignoreBackend)
	if err != nil {
		return errors.UnsupportedBackend(err)
	}

	var patterns ignore.Patterns
	for _, arg := range args {
		patterns = append(patterns, ignore.ParsePatterns(arg)...)
	}

	s, err := ignore.Generate(patterns, backend)
	if err != nil {
		return errors.UnsupportedBackend(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}
