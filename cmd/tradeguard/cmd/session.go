package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the trading session",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session with a fresh balance",
	Long: `Roll the day over if needed and make --balance the base that loss
limits are measured against.

Example:
  tradeguard session start --balance 10000000`,
	Args: cobra.NoArgs,
	RunE: runSessionStart,
}

var sessionBalance float64

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStartCmd)

	sessionStartCmd.Flags().Float64VarP(&sessionBalance, "balance", "b", 0, "session starting balance (required)")
	sessionStartCmd.MarkFlagRequired("balance")
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.gate.StartSession(ctx, sessionBalance); err != nil {
		return err
	}
	s := rt.gate.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "session %s started with balance %.0f\n", s.Date, s.InitialBalance)
	return nil
}
