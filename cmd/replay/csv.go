package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
)

var errNoBars = errors.New("no bars parsed")

// readBars parses timestamp,open,high,low,close[,volume] rows. UTF-8 and
// UTF-16 byte order marks are honoured. Timestamps are unix milliseconds or
// RFC3339. A header row and short rows are skipped.
func readBars(r io.Reader, symbol string) ([]models.Bar, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var out []models.Bar
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 5 {
			continue
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var px [4]float64
		for i := range px {
			px[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		bar := models.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      px[0],
			High:      px[1],
			Low:       px[2],
			Close:     px[3],
		}
		if len(rec) > 5 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64); err == nil {
				bar.Volume = int64(v)
			}
		}
		out = append(out, bar)
	}

	if len(out) == 0 {
		return nil, errNoBars
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
