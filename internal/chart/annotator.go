package chart

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/wsgateway"
	"github.com/mohamedkhairy/trade-breakout/pkg/breakout"
)

var arrowsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "breakout_arrows_active",
	Help: "Arrows currently drawn on the chart",
})

// Broadcaster pushes chart events to connected clients
type Broadcaster interface {
	Broadcast(msgType wsgateway.MessageType, data interface{}) int
}

// Arrow is a drawn buy or sell marker
type Arrow struct {
	Name                string    `json:"name"`
	Side                string    `json:"side"`
	Index               int       `json:"index"`
	Time                time.Time `json:"time"`
	Price               float64   `json:"price"`
	Glyph               string    `json:"glyph"`
	Color               string    `json:"color"`
	FontSize            int       `json:"font_size"`
	VerticalAlignment   string    `json:"vertical_alignment"`
	HorizontalAlignment string    `json:"horizontal_alignment"`
	Description         string    `json:"description"`
}

// Removal identifies an arrow taken off the chart
type Removal struct {
	Name string `json:"name"`
}

// Annotator keeps the set of drawn arrows and forwards changes to a
// Broadcaster. Removing an arrow that is not drawn is a no-op.
type Annotator struct {
	mu     sync.RWMutex
	style  config.ArrowsConfig
	tf     string
	arrows map[string]Arrow
	sink   Broadcaster
}

// NewAnnotator creates an annotator for arrows describing signals on tf.
// sink may be nil.
func NewAnnotator(style config.ArrowsConfig, tf models.Timeframe, sink Broadcaster) *Annotator {
	return &Annotator{
		style:  style,
		tf:     tf.Label(),
		arrows: make(map[string]Arrow),
		sink:   sink,
	}
}

// FontSize returns the glyph font size for an arrow size setting
func FontSize(size int) int {
	return 8 + 2*size
}

// Style returns the drawn form of a draw action
func (a *Annotator) Style(action breakout.ArrowAction) Arrow {
	arrow := Arrow{
		Name:                action.Name,
		Side:                action.Side.String(),
		Index:               action.Index,
		Time:                action.Time,
		Price:               action.Price,
		FontSize:            FontSize(a.style.Size),
		HorizontalAlignment: "center",
		Description:         fmt.Sprintf("%s (%s)", strings.ToUpper(action.Side.String()), a.tf),
	}
	if action.Side == breakout.Sell {
		arrow.Glyph = a.style.SellGlyph
		arrow.Color = a.style.SellColor
		arrow.VerticalAlignment = "top"
	} else {
		arrow.Glyph = a.style.BuyGlyph
		arrow.Color = a.style.BuyColor
		arrow.VerticalAlignment = "bottom"
	}
	return arrow
}

// Apply performs actions in order and returns how many arrows were drawn
// and removed
func (a *Annotator) Apply(actions []breakout.ArrowAction) (drawn, removed int) {
	if len(actions) == 0 {
		return 0, 0
	}

	a.mu.Lock()
	type event struct {
		t    wsgateway.MessageType
		data interface{}
	}
	events := make([]event, 0, len(actions))
	for _, action := range actions {
		switch action.Op {
		case breakout.ArrowDraw:
			arrow := a.Style(action)
			a.arrows[arrow.Name] = arrow
			events = append(events, event{wsgateway.MessageTypeArrowDraw, arrow})
			drawn++
		case breakout.ArrowRemove:
			if _, ok := a.arrows[action.Name]; !ok {
				continue
			}
			delete(a.arrows, action.Name)
			events = append(events, event{wsgateway.MessageTypeArrowRemove, Removal{Name: action.Name}})
			removed++
		}
	}
	arrowsActive.Set(float64(len(a.arrows)))
	a.mu.Unlock()

	if a.sink != nil {
		for _, e := range events {
			a.sink.Broadcast(e.t, e.data)
		}
	}
	return drawn, removed
}

// Get returns the arrow drawn under name
func (a *Annotator) Get(name string) (Arrow, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	arrow, ok := a.arrows[name]
	return arrow, ok
}

// Arrows returns the drawn arrows ordered by bar time
func (a *Annotator) Arrows() []Arrow {
	a.mu.RLock()
	out := make([]Arrow, 0, len(a.arrows))
	for _, arrow := range a.arrows {
		out = append(out, arrow)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Time.Equal(out[j].Time) {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
