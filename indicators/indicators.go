// Package indicators computes the few bar statistics the exit engine and the
// entry path need: EMA, ATR, volume surge and runs of lower closes.
//
// Every function takes bars oldest first and returns an error when there are
// not enough bars for the requested period.
package indicators

import "fmt"

func needBars(have, want int) error {
	if have < want {
		return fmt.Errorf("not enough bars: need %d, got %d", want, have)
	}
	return nil
}
