package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeguard/position"
	"github.com/rustyeddy/tradeguard/risk"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show risk state and open positions",
	Long: `Print the gate's daily and weekly state, the loss-streak cooldown and
the positions saved in the ledger.

Example:
  tradeguard status --config tradeguard.yaml`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	ledger, err := rt.ledger(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderStatus(out, rt.gate.Status())
	if ledger.Count() > 0 {
		fmt.Fprintln(out)
		renderPositions(out, ledger.List())
	}
	if stop, reason := rt.gate.CheckEmergencyStop(ledger.UnrealizedPnL()); stop {
		fmt.Fprintf(out, "\nEMERGENCY STOP: %s\n", reason)
	}
	return nil
}

func renderStatus(w io.Writer, s risk.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("RISK STATE")
	t.SetStyle(table.StyleRounded)

	cooldown := "-"
	if s.CooldownUntil != nil {
		cooldown = s.CooldownUntil.Format(time.RFC3339)
	}
	t.AppendRows([]table.Row{
		{"Date", s.Date},
		{"Week start", s.WeekStart},
		{"Initial balance", fmt.Sprintf("%.0f", s.InitialBalance)},
		{"Entries today", s.DailyEntries},
		{"Records today", s.DailyRecords},
		{"Daily P&L", fmt.Sprintf("%.0f (%.2f%%)", s.DailyRealizedPnL, s.DailyPnLPct*100)},
		{"Weekly P&L", fmt.Sprintf("%.0f (%.2f%%)", s.WeeklyRealizedPnL, s.WeeklyPnLPct*100)},
		{"Loss streak", s.ConsecutiveLosses},
		{"State", s.State.String()},
		{"Cooldown until", cooldown},
		{"Size multiplier", fmt.Sprintf("%.2f", s.SizeMultiplier)},
		{"Weekly adjustment", fmt.Sprintf("%.2f", s.WeeklyAdjustment)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 24, Align: text.AlignRight},
	})
	t.Render()
}

func renderPositions(w io.Writer, ps []position.Position) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Name", "Qty", "Left", "Avg", "Last", "Stop", "Trail", "Stage", "P&L", "Ret %"})

	var total float64
	for _, p := range ps {
		trail := "-"
		if ts, ok := p.Trailing(); ok {
			trail = fmt.Sprintf("%.2f", ts)
		}
		pnl := p.UnrealizedPnL()
		total += pnl
		t.AppendRow(table.Row{
			p.Symbol, p.Name, p.Quantity, p.Remaining,
			fmt.Sprintf("%.2f", p.AvgPrice),
			fmt.Sprintf("%.2f", p.CurrentPrice),
			fmt.Sprintf("%.2f", p.StopLoss),
			trail, p.Stage,
			fmt.Sprintf("%.0f", pnl),
			fmt.Sprintf("%.2f", p.ReturnPct()*100),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "", "Total", fmt.Sprintf("%.0f", total), ""})
	t.Render()
}
