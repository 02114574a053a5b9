package identity

// This file contains tag and metric storage shared by every level of the
// test hierarchy.

import (
	"fmt"
	"maps"
	"sync"
)

// Tagger is the tag and metric capability every test entity exposes.
type Tagger interface {
	SetTag(key string, value any)
	SetMetric(key string, value float64)
}

// Tags stores string tags and numeric metrics. The zero value is ready to use.
type Tags struct {
	mu      sync.Mutex
	tags    map[string]string
	metrics map[string]float64
}

// SetTag stores value formatted as a string; booleans become "true"/"false".
func (t *Tags) SetTag(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tags == nil {
		t.tags = make(map[string]string)
	}
	switch v := value.(type) {
	case string:
		t.tags[key] = v
	case fmt.Stringer:
		t.tags[key] = v.String()
	default:
		t.tags[key] = fmt.Sprint(v)
	}
}

func (t *Tags) SetMetric(key string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.metrics == nil {
		t.metrics = make(map[string]float64)
	}
	t.metrics[key] = value
}

func (t *Tags) Tag(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.tags[key]
	return v, ok
}

func (t *Tags) Metric(key string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.metrics[key]
	return v, ok
}

// TagMap returns a copy of all tags.
func (t *Tags) TagMap() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.tags)
}

// MetricMap returns a copy of all metrics.
func (t *Tags) MetricMap() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.metrics)
}
