package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeguard/risk"
)

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Calculate a position size",
	Long: `Size an entry from the risk policy, the loss-streak multiplier and the
weekly adjustment.

Example:
  tradeguard size --balance 10000000 --price 1000 --stop 970 --confidence 0.8`,
	Args: cobra.NoArgs,
	RunE: runSize,
}

var (
	sizeBalance    float64
	sizePrice      float64
	sizeStop       float64
	sizeConfidence float64
	sizeStructural float64
)

func init() {
	rootCmd.AddCommand(sizeCmd)

	sizeCmd.Flags().Float64VarP(&sizeBalance, "balance", "b", 0, "account balance (required)")
	sizeCmd.Flags().Float64VarP(&sizePrice, "price", "p", 0, "entry price (required)")
	sizeCmd.Flags().Float64VarP(&sizeStop, "stop", "s", 0, "stop price (required)")
	sizeCmd.Flags().Float64Var(&sizeConfidence, "confidence", 1, "signal confidence 0-1")
	sizeCmd.Flags().Float64Var(&sizeStructural, "structural", 0, "structural stop price")
	sizeCmd.MarkFlagRequired("balance")
	sizeCmd.MarkFlagRequired("price")
	sizeCmd.MarkFlagRequired("stop")
}

func runSize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := risk.SizingRequest{
		Balance:    sizeBalance,
		Price:      sizePrice,
		StopPrice:  sizeStop,
		Confidence: sizeConfidence,
	}
	if cmd.Flags().Changed("structural") {
		req.StructuralStop = &sizeStructural
	}

	s, err := rt.gate.CalculatePositionSize(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "quantity:    %d\n", s.Quantity)
	fmt.Fprintf(out, "investment:  %.0f (%.2f%% of balance)\n", s.Investment, s.PositionRatio*100)
	fmt.Fprintf(out, "stop:        %.2f\n", s.StopPrice)
	fmt.Fprintf(out, "max loss:    %.0f (risk budget %.0f)\n", s.MaxLoss, s.RiskAmount)
	fmt.Fprintf(out, "risk qty:    %d\n", s.RiskQty)
	fmt.Fprintf(out, "cap qty:     %d\n", s.CapQty)
	fmt.Fprintf(out, "scale:       %.2f\n", s.Scale)
	return nil
}
