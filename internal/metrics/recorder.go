package metrics

import (
	"sort"
	"strings"
	"sync"
)

// Recorder is an in-memory Backend. The CLI installs it for -metrics-backend=log
// and prints a summary at exit; tests use it to assert observations.
type Recorder struct {
	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		counters: make(map[string]float64),
		samples:  make(map[string][]float64),
	}
}

// IncCounter implements Backend.
func (r *Recorder) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[SeriesKey(name, labels)] += delta
}

// ObserveHistogram implements Backend.
func (r *Recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := SeriesKey(name, labels)
	r.samples[k] = append(r.samples[k], value)
}

// Counter returns the accumulated value of one series.
func (r *Recorder) Counter(name string, labels Labels) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[SeriesKey(name, labels)]
}

// Samples returns a copy of the observations of one histogram series.
func (r *Recorder) Samples(name string, labels Labels) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.samples[SeriesKey(name, labels)]...)
}

// Counters returns a snapshot of all counters keyed by SeriesKey.
func (r *Recorder) Counters() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

// SeriesKey renders name{k=v,...} with labels in key order.
func SeriesKey(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
