package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe represents an MT5 chart timeframe.
type Timeframe string

const (
	M1  Timeframe = "M1"
	M5  Timeframe = "M5"
	M15 Timeframe = "M15"
	M30 Timeframe = "M30"
	H1  Timeframe = "H1"
	H4  Timeframe = "H4"
	D1  Timeframe = "D1"
	W1  Timeframe = "W1"
)

var timeframeMinutes = map[Timeframe]int{
	M1:  1,
	M5:  5,
	M15: 15,
	M30: 30,
	H1:  60,
	H4:  240,
	D1:  1440,
	W1:  10080,
}

// ParseTimeframe converts a string like "M15" or "h1" to a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := timeframeMinutes[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Minutes returns the bar duration in minutes, or 0 for an unknown timeframe.
func (tf Timeframe) Minutes() int {
	return timeframeMinutes[tf]
}

// Duration returns the bar duration.
func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Minutes()) * time.Minute
}

// Valid reports whether the timeframe is one of the supported constants.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeMinutes[tf]
	return ok
}
