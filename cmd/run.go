package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand: one invocation, then exit.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Performs a single announcer run",
		Long: `Fetches the current locations of interest, announces anything new or
updated since the last run, saves the seen-state and sends the liveness ping.
The process exits non-zero if any step fails.`,
		Args: cobra.NoArgs,
		RunE: runOnce,
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	res, err := appInstance.GetRunner().Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run announcer: %w", err)
	}
	appInstance.GetLogger().Info("Run command finished.", zap.Int("status", res.StatusCode))
	fmt.Fprintln(cmd.OutOrStdout(), res.Body)
	return nil
}
