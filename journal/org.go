package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradeguard/risk"
)

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// FormatTradeOrg renders one fill as an org-mode heading with a properties
// drawer and empty review sections.
func FormatTradeOrg(t risk.TradeRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "** %s %s (%s)\n", t.Side, t.Symbol, shortID(t.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	if t.Name != "" {
		fmt.Fprintf(&b, ":NAME: %s\n", t.Name)
	}
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":QUANTITY: %d\n", t.Quantity)
	fmt.Fprintf(&b, ":PRICE: %.2f\n", t.Price)
	fmt.Fprintf(&b, ":AMOUNT: %.2f\n", t.Amount)
	fmt.Fprintf(&b, ":TIME: %s\n", t.Time.Format(time.RFC3339))
	if t.Side == risk.Sell {
		fmt.Fprintf(&b, ":REALIZED_PNL: %.2f\n", t.RealizedPnL)
	}
	if t.Reason != "" {
		fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	}
	b.WriteString(":END:\n")
	b.WriteString("*** Thesis\n*** Execution\n*** Review\n")
	return b.String()
}

// FormatTradesOrg renders recs under a summary heading.
func FormatTradesOrg(title string, recs []risk.TradeRecord) string {
	var (
		b    strings.Builder
		pnl  float64
		buys int
	)
	for _, r := range recs {
		if r.Side == risk.Buy {
			buys++
		}
		pnl += r.RealizedPnL
	}

	fmt.Fprintf(&b, "* %s\n", title)
	fmt.Fprintf(&b, "Trades: %d (entries %d), realized P&L: %.2f\n\n", len(recs), buys, pnl)
	for _, r := range recs {
		b.WriteString(FormatTradeOrg(r))
	}
	return b.String()
}
