package breakout

import "time"

// Backfill copies the oscillator values at index onto every earlier fine bar
// that opened at or after coarseOpen, walking backward and stopping at the
// first bar of an earlier coarse bar. It returns the number of bars written,
// including index itself.
func Backfill(fine Series, res, sup *Buffer, index int, coarseOpen time.Time) int {
	if index < 0 || index >= fine.Len() {
		return 0
	}
	r, s := res.At(index), sup.At(index)

	written := 0
	for i := index; i >= 0; i-- {
		if fine.OpenTime(i).Before(coarseOpen) {
			break
		}
		res.Set(i, r)
		sup.Set(i, s)
		written++
	}
	return written
}
