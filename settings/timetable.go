package settings

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// TimeTable maps test durations to the number of times a new test is
// repeated. Keys are durations like "5s", "10m" or "1h".
type TimeTable struct {
	buckets []bucket
}

type bucket struct {
	threshold time.Duration
	repeats   uint
}

// NewTimeTable parses a threshold -> repeats map.
func NewTimeTable(table map[string]uint) (TimeTable, error) {
	buckets := make([]bucket, 0, len(table))
	for key, repeats := range table {
		threshold, err := parseThreshold(key)
		if err != nil {
			return TimeTable{}, err
		}
		buckets = append(buckets, bucket{threshold: threshold, repeats: repeats})
	}
	slices.SortFunc(buckets, func(a, b bucket) int {
		switch {
		case a.threshold < b.threshold:
			return -1
		case a.threshold > b.threshold:
			return 1
		default:
			return 0
		}
	})
	return TimeTable{buckets: buckets}, nil
}

func parseThreshold(key string) (time.Duration, error) {
	key = strings.TrimSpace(key)
	if len(key) < 2 {
		return 0, fmt.Errorf("invalid time table key %q", key)
	}
	var unit time.Duration
	switch key[len(key)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	default:
		return 0, fmt.Errorf("invalid time table key %q: unknown unit", key)
	}
	value, err := strconv.ParseUint(key[:len(key)-1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid time table key %q: %w", key, err)
	}
	return time.Duration(value) * unit, nil
}

// Repeats returns the count of the smallest threshold strictly greater than
// d. Durations beyond every threshold get the last bucket. An empty table
// returns 0.
func (t TimeTable) Repeats(d time.Duration) uint {
	if len(t.buckets) == 0 {
		return 0
	}
	for _, b := range t.buckets {
		if d < b.threshold {
			return b.repeats
		}
	}
	return t.buckets[len(t.buckets)-1].repeats
}

func (t TimeTable) Len() int { return len(t.buckets) }

// Map returns the table in its wire form.
func (t TimeTable) Map() map[string]uint {
	out := make(map[string]uint, len(t.buckets))
	for _, b := range t.buckets {
		out[formatThreshold(b.threshold)] = b.repeats
	}
	return out
}

func formatThreshold(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}

func (t TimeTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Map())
}

func (t *TimeTable) UnmarshalJSON(data []byte) error {
	var raw map[string]uint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewTimeTable(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
