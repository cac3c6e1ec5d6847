package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exitError carries a process exit code out of a command without printing.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

var rootCmd = &cobra.Command{
	Use:           "slotwatch",
	Short:         "slotwatch checks a page's slots and links once and records the result.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMonitor,
}

func init() {
	addRunFlags(rootCmd)
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
