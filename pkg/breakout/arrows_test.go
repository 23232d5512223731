package breakout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicks(t *testing.T) {
	assert.Equal(t, int64(621355968000000000), Ticks(time.Unix(0, 0).UTC()))
	assert.Equal(t, int64(621355968000000000+10_000_000), Ticks(time.Unix(1, 0)))
	assert.Equal(t, int64(621355968000000000+1), Ticks(time.Unix(0, 150)))
}

func TestArrowName(t *testing.T) {
	epoch := time.Unix(0, 0).UTC()
	assert.Equal(t, "TBO_MTF-ARWSB-621355968000000000", ArrowName("TBO_MTF", Buy, epoch))
	assert.Equal(t, "TBO_MTF-ARWSS-621355968000000000", ArrowName("TBO_MTF", Sell, epoch))
	assert.NotEqual(t, ArrowName("x", Buy, epoch), ArrowName("x", Buy, epoch.Add(time.Minute)))
}

func TestArrowOp_String(t *testing.T) {
	assert.Equal(t, "draw", ArrowDraw.String())
	assert.Equal(t, "remove", ArrowRemove.String())
}
