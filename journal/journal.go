// Package journal keeps a human-readable record of fills next to the risk
// state: an append-only CSV file and org-mode summaries.
package journal

import "github.com/rustyeddy/tradeguard/risk"

type Journal interface {
	RecordTrade(risk.TradeRecord) error
	Close() error
}
