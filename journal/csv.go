package journal

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/tradeguard/risk"
)

var header = []string{"id", "timestamp", "symbol", "name", "side", "quantity", "price", "amount", "pnl", "reason"}

// CSVJournal appends one row per fill.
type CSVJournal struct {
	mu sync.Mutex
	w  *csv.Writer
	c  io.Closer
}

// NewCSV opens path for appending and writes the header when the file is new.
func NewCSV(path string) (*CSVJournal, error) {
	fresh := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fresh = true
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	j := &CSVJournal{w: csv.NewWriter(f), c: f}
	if fresh {
		if err := j.write(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return j, nil
}

// NewCSVWriter writes a header and then rows to w. Close flushes but does not
// close w.
func NewCSVWriter(w io.Writer) (*CSVJournal, error) {
	j := &CSVJournal{w: csv.NewWriter(w)}
	if err := j.write(header); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) write(row []string) error {
	if err := j.w.Write(row); err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSVJournal) RecordTrade(t risk.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.write([]string{
		t.ID,
		t.Time.Format(time.RFC3339),
		t.Symbol,
		t.Name,
		string(t.Side),
		strconv.Itoa(t.Quantity),
		f(t.Price),
		f(t.Amount),
		f(t.RealizedPnL),
		t.Reason,
	})
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	if j.c != nil {
		return j.c.Close()
	}
	return nil
}

// WriteCSV writes recs with a header to w.
func WriteCSV(w io.Writer, recs []risk.TradeRecord) error {
	j, err := NewCSVWriter(w)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := j.RecordTrade(r); err != nil {
			return err
		}
	}
	return j.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}
