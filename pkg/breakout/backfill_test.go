package breakout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackfill_StopsAtEarlierCoarseBar(t *testing.T) {
	fine := closes(time.Minute, make([]float64, 10)...)
	var res, sup Buffer
	res.Set(9, Some(0.5))
	sup.Set(9, Some(-0.25))

	n := Backfill(fine, &res, &sup, 9, t0.Add(5*time.Minute))
	assert.Equal(t, 5, n)
	for i := 5; i <= 9; i++ {
		assert.Equal(t, Some(0.5), res.At(i))
		assert.Equal(t, Some(-0.25), sup.At(i))
	}
	assert.False(t, res.At(4).Valid())
	assert.False(t, sup.At(4).Valid())
}

func TestBackfill_PropagatesUndefined(t *testing.T) {
	fine := closes(time.Minute, make([]float64, 4)...)
	var res, sup Buffer
	for i := 0; i < 4; i++ {
		res.Set(i, Some(1))
		sup.Set(i, Some(1))
	}
	res.Set(3, Undefined)

	n := Backfill(fine, &res, &sup, 3, t0.Add(2*time.Minute))
	assert.Equal(t, 2, n)
	assert.False(t, res.At(2).Valid())
	assert.Equal(t, Some(1), sup.At(2))
	assert.Equal(t, Some(1), res.At(1))
}

func TestBackfill_OutOfRange(t *testing.T) {
	fine := closes(time.Minute, 1, 2)
	var res, sup Buffer
	assert.Equal(t, 0, Backfill(fine, &res, &sup, 2, t0))
	assert.Equal(t, 0, Backfill(fine, &res, &sup, -1, t0))
}
