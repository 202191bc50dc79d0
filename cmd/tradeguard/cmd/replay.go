package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeguard/broker"
	"github.com/rustyeddy/tradeguard/broker/paper"
	"github.com/rustyeddy/tradeguard/desk"
	"github.com/rustyeddy/tradeguard/exit"
	"github.com/rustyeddy/tradeguard/journal"
	"github.com/rustyeddy/tradeguard/market"
	"github.com/rustyeddy/tradeguard/metrics"
	"github.com/rustyeddy/tradeguard/position"
	"github.com/rustyeddy/tradeguard/risk"
	"github.com/rustyeddy/tradeguard/store"
)

var replayCmd = &cobra.Command{
	Use:   "replay <bars.csv>",
	Short: "Replay a bar file through entries, the risk gate and exits",
	Long: `Feed bars (time,symbol,open,high,low,close,volume) through a paper
account. After --warmup bars a symbol is bought at the close with a stop
--stop-pct below it, at most once per day. Every later bar is a tick for the
exit engine. State is kept in memory and the saved risk state is not touched.

Example:
  tradeguard replay bars.csv --cash 10000000 --journal replay.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replayCash       float64
	replayConfidence float64
	replayStopPct    float64
	replayWarmup     int
	replayJournal    string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Float64Var(&replayCash, "cash", 10_000_000, "starting cash")
	replayCmd.Flags().Float64Var(&replayConfidence, "confidence", 0.8, "confidence given to every entry")
	replayCmd.Flags().Float64Var(&replayStopPct, "stop-pct", 0.03, "entry stop distance as a fraction of price")
	replayCmd.Flags().IntVar(&replayWarmup, "warmup", 20, "bars per symbol before the first entry")
	replayCmd.Flags().StringVarP(&replayJournal, "journal", "j", "", "append fills to this CSV file")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	loc, err := location(cfg.Exit.Location)
	if err != nil {
		return fmt.Errorf("location: %w", err)
	}

	r, err := newReplayer(cmd.Context(), replayOptions{
		Cash:       replayCash,
		Confidence: replayConfidence,
		StopPct:    replayStopPct,
		Warmup:     replayWarmup,
		Location:   loc,
		Retry:      broker.DefaultRetryPolicy(),
	})
	if err != nil {
		return err
	}
	if replayJournal != "" {
		j, err := journal.NewCSV(replayJournal)
		if err != nil {
			return err
		}
		defer j.Close()
		r.tally.next = j
	}

	if err := r.run(cmd.Context(), market.NewBarReader(f)); err != nil {
		return err
	}
	r.render(cmd.OutOrStdout())
	return nil
}

type replayOptions struct {
	Cash       float64
	Confidence float64
	StopPct    float64
	Warmup     int
	Location   *time.Location
	Retry      broker.RetryPolicy
}

// tally counts fills and forwards them to an optional journal.
type tally struct {
	next  journal.Journal
	buys  int
	sells int
	pnl   float64
}

func (t *tally) RecordTrade(rec risk.TradeRecord) error {
	if rec.Side == risk.Buy {
		t.buys++
	} else {
		t.sells++
		t.pnl += rec.RealizedPnL
	}
	if t.next != nil {
		return t.next.RecordTrade(rec)
	}
	return nil
}

func (t *tally) Close() error { return nil }

type replayer struct {
	opts replayOptions
	now  time.Time

	desk   *desk.Desk
	gate   *risk.Gate
	ledger *position.Ledger
	gw     *paper.Gateway
	feed   *market.PriceStore
	tally  *tally

	seen      map[string]int
	entered   map[string]string
	rejects   map[string]int
	exits     map[exit.Rule]int
	emergency string
}

func newReplayer(ctx context.Context, o replayOptions) (*replayer, error) {
	r := &replayer{
		opts:    o,
		feed:    market.NewPriceStore(),
		tally:   &tally{},
		seen:    map[string]int{},
		entered: map[string]string{},
		rejects: map[string]int{},
		exits:   map[exit.Rule]int{},
	}
	clock := func() time.Time { return r.now }
	kv := store.NewMemoryKV()
	m := metrics.New(prometheus.NewRegistry())

	policy := cfg.Risk
	policy.InitialBalance = o.Cash
	var err error
	r.gate, err = risk.NewGate(ctx, policy, kv,
		risk.WithClock(clock),
		risk.WithLocation(o.Location),
		risk.WithLogger(logger),
		risk.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	engine, err := exit.NewEngine(cfg.Exit, exit.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	r.ledger = position.NewLedger(cfg.Ledger, position.WithLogger(logger))
	r.gw = paper.New(o.Cash, paper.WithClock(clock), paper.WithLogger(logger))

	gw := broker.NewRetrying(r.gw, o.Retry, logger)
	r.desk = desk.New(r.gate, r.ledger, engine, gw,
		desk.WithPriceFeed(r.feed),
		desk.WithLedgerStore(kv),
		desk.WithJournal(r.tally),
		desk.WithMetrics(m),
		desk.WithLogger(logger),
		desk.WithClock(clock),
	)
	return r, nil
}

func (r *replayer) run(ctx context.Context, br *market.BarReader) error {
	for {
		sb, ok, err := br.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := r.step(ctx, sb); err != nil {
			return err
		}
		if r.emergency != "" {
			return nil
		}
	}
}

func (r *replayer) step(ctx context.Context, sb market.SymbolBar) error {
	r.now = sb.Time
	r.feed.AppendBar(sb.Symbol, sb.Bar)
	r.feed.Set(sb.Symbol, sb.Close)
	r.seen[sb.Symbol]++

	if _, open := r.ledger.Get(sb.Symbol); open {
		dec, err := r.desk.OnTick(ctx, sb.Symbol, sb.Close)
		if err != nil {
			return err
		}
		switch x := dec.(type) {
		case exit.PartialExit:
			r.exits[x.Rule]++
		case exit.FullExit:
			r.exits[x.Rule]++
		}
	} else if r.seen[sb.Symbol] >= r.opts.Warmup {
		day := sb.Time.In(r.opts.Location).Format("2006-01-02")
		if r.entered[sb.Symbol] != day {
			res, err := r.desk.Open(ctx, desk.Entry{
				Score: market.Score{
					Symbol:     sb.Symbol,
					Confidence: r.opts.Confidence,
					Stop:       sb.Close * (1 - r.opts.StopPct),
					Signal:     "replay",
				},
				Price: sb.Close,
			})
			if err != nil {
				return err
			}
			if res.Fill != nil {
				r.entered[sb.Symbol] = day
			} else {
				r.rejects[res.Decision.Code]++
			}
		}
	}

	if stop, reason := r.desk.EmergencyStop(); stop {
		r.emergency = reason
		return r.desk.CloseAll(ctx, reason)
	}
	return nil
}

func (r *replayer) render(w io.Writer) {
	cash, _ := r.gw.CashBalance(context.Background())
	st := r.gate.Status()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("REPLAY")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Entries", r.tally.buys},
		{"Exits", r.tally.sells},
		{"Realized P&L", fmt.Sprintf("%.0f", r.tally.pnl)},
		{"Cash", fmt.Sprintf("%.0f", cash)},
		{"Open positions", r.ledger.Count()},
		{"Loss streak", st.ConsecutiveLosses},
		{"State", st.State.String()},
	})
	t.AppendSeparator()
	for _, k := range sortedKeys(r.exits) {
		t.AppendRow(table.Row{"exit " + string(k), r.exits[k]})
	}
	for _, k := range sortedKeys(r.rejects) {
		t.AppendRow(table.Row{"rejected " + k, r.rejects[k]})
	}
	if r.emergency != "" {
		t.AppendRow(table.Row{"Emergency stop", r.emergency})
	}
	t.Render()

	if r.ledger.Count() > 0 {
		fmt.Fprintln(w)
		renderPositions(w, r.ledger.List())
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
