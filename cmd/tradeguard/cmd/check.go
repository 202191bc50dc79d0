package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeguard/risk"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ask the gate whether a new position may be opened",
	Long: `Run the entry checks against the saved risk state without recording
anything.

Example:
  tradeguard check --balance 9000000 --open-value 1000000 --positions 2 --size 500000`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var checkReq risk.EntryRequest

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Float64VarP(&checkReq.Balance, "balance", "b", 0, "cash balance (required)")
	checkCmd.Flags().Float64Var(&checkReq.OpenPositionsValue, "open-value", 0, "market value of open positions")
	checkCmd.Flags().IntVar(&checkReq.PositionCount, "positions", 0, "number of open positions")
	checkCmd.Flags().Float64VarP(&checkReq.ProposedSize, "size", "s", 0, "proposed investment (required)")
	checkCmd.MarkFlagRequired("balance")
	checkCmd.MarkFlagRequired("size")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	d := rt.gate.CanOpenPosition(ctx, checkReq)
	if d.Allowed {
		fmt.Fprintln(cmd.OutOrStdout(), risk.CodeAllowed)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "REJECTED %s: %s\n", d.Code, d.Reason)
	return nil
}
