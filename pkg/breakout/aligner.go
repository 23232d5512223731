package breakout

import (
	"sort"
	"time"
)

// TimeAligner maps fine-series bars onto the coarse bar that contains them.
// When MTF is off the fine series is the coarse series and the mapping is the identity.
type TimeAligner struct {
	fine     Series
	coarse   Series
	identity bool
}

// NewTimeAligner creates an aligner. The identity mode is fixed here, not per bar.
func NewTimeAligner(fine, coarse Series, mtf bool) *TimeAligner {
	if !mtf {
		coarse = fine
	}
	return &TimeAligner{
		fine:     fine,
		coarse:   coarse,
		identity: !mtf,
	}
}

// Align returns the index of the last coarse bar whose open time is <= t, or -1.
// Coarse open times must be non-decreasing.
func (a *TimeAligner) Align(t time.Time) int {
	n := a.coarse.Len()
	i := sort.Search(n, func(i int) bool {
		return a.coarse.OpenTime(i).After(t)
	})
	return i - 1
}

// Index returns the coarse index for the fine bar at fineIndex, or -1
func (a *TimeAligner) Index(fineIndex int) int {
	if fineIndex < 0 || fineIndex >= a.fine.Len() {
		return -1
	}
	if a.identity {
		return fineIndex
	}
	return a.Align(a.fine.OpenTime(fineIndex))
}

// Identity reports whether alignment is a pass-through
func (a *TimeAligner) Identity() bool {
	return a.identity
}
