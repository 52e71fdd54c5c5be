package runner

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// maxLatencyUs bounds recorded latencies to one minute.
const maxLatencyUs = 60_000_000

// LatencyStats summarizes response latencies of a run.
type LatencyStats struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// LatencyRecorder accumulates latencies in a histogram. It is safe for
// concurrent use.
type LatencyRecorder struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
}

func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{
		// 1us to 60s range, 3 significant digits
		histogram: hdrhistogram.New(1, maxLatencyUs, 3),
	}
}

func (l *LatencyRecorder) Record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}

	l.mu.Lock()
	_ = l.histogram.RecordValue(us)
	l.mu.Unlock()
}

func (l *LatencyRecorder) Stats() LatencyStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.histogram
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencyStats{
		Count: h.TotalCount(),
		Min:   us(h.Min()),
		Max:   us(h.Max()),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   us(h.ValueAtQuantile(50)),
		P95:   us(h.ValueAtQuantile(95)),
		P99:   us(h.ValueAtQuantile(99)),
	}
}
