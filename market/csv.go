package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// SymbolBar is one row of a bar file.
type SymbolBar struct {
	Symbol string
	Bar
}

// BarReader streams bars from CSV with columns
// time,symbol,open,high,low,close,volume. Time is RFC3339. A header row is
// allowed and blank lines are skipped.
type BarReader struct {
	r        *csv.Reader
	line     int
	sawFirst bool
}

func NewBarReader(r io.Reader) *BarReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &BarReader{r: cr}
}

// Next returns the next bar, or false at end of input.
func (br *BarReader) Next() (SymbolBar, bool, error) {
	for {
		row, err := br.r.Read()
		if err == io.EOF {
			return SymbolBar{}, false, nil
		}
		if err != nil {
			return SymbolBar{}, false, err
		}
		br.line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !br.sawFirst {
			br.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		sb, err := parseBarRow(row)
		if err != nil {
			return SymbolBar{}, false, fmt.Errorf("bars line %d: %w", br.line, err)
		}
		return sb, true, nil
	}
}

// ReadAll drains the reader.
func (br *BarReader) ReadAll() ([]SymbolBar, error) {
	var out []SymbolBar
	for {
		sb, ok, err := br.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, sb)
	}
}

func parseBarRow(row []string) (SymbolBar, error) {
	if len(row) < 7 {
		return SymbolBar{}, fmt.Errorf("want 7 columns, got %d", len(row))
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
	if err != nil {
		return SymbolBar{}, err
	}
	sym := strings.TrimSpace(row[1])
	if sym == "" {
		return SymbolBar{}, fmt.Errorf("empty symbol")
	}

	var v [5]float64
	for i := range v {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(row[i+2]), 64)
		if err != nil {
			return SymbolBar{}, err
		}
	}
	return SymbolBar{
		Symbol: sym,
		Bar: Bar{
			Time:   t,
			Open:   v[0],
			High:   v[1],
			Low:    v[2],
			Close:  v[3],
			Volume: v[4],
		},
	}, nil
}
