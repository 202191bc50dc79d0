package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeguard/journal"
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Export today's or this week's trade records",
	Long: `Write the gate's trade records as CSV or org-mode.

Examples:
  tradeguard trades
  tradeguard trades --week --format org
  tradeguard trades --out trades.csv`,
	Args: cobra.NoArgs,
	RunE: runTrades,
}

var (
	tradesWeek   bool
	tradesFormat string
	tradesOut    string
)

func init() {
	rootCmd.AddCommand(tradesCmd)

	tradesCmd.Flags().BoolVarP(&tradesWeek, "week", "w", false, "export the whole week instead of today")
	tradesCmd.Flags().StringVarP(&tradesFormat, "format", "f", "csv", "output format: csv or org")
	tradesCmd.Flags().StringVarP(&tradesOut, "out", "o", "", "output file (default stdout)")
}

func runTrades(cmd *cobra.Command, args []string) error {
	if tradesFormat != "csv" && tradesFormat != "org" {
		return fmt.Errorf("unknown format %q", tradesFormat)
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	st := rt.gate.Status()
	recs, title := rt.gate.DailyTrades(), st.Date
	if tradesWeek {
		recs, title = rt.gate.WeeklyTrades(), "week of "+st.WeekStart
	}

	var w io.Writer = cmd.OutOrStdout()
	if tradesOut != "" {
		f, err := os.Create(tradesOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if tradesFormat == "org" {
		_, err = io.WriteString(w, journal.FormatTradesOrg(title, recs))
		return err
	}
	return journal.WriteCSV(w, recs)
}
