// Package observability keeps in-process request statistics per route.
package observability

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Upper bounds of the latency buckets. The last bucket is unbounded.
var bucketBounds = [...]time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	5 * time.Second,
	10 * time.Second,
}

// BucketCount is the number of latency buckets, including the overflow one.
const BucketCount = len(bucketBounds) + 1

// Monitor aggregates request counts, statuses and latencies per route.
// The zero value is not usable; call NewMonitor.
type Monitor struct {
	enabled atomic.Bool
	routes  sync.Map // string -> *routeMetrics

	total atomic.Uint64

	slowThreshold  time.Duration
	errorThreshold float64
}

type routeMetrics struct {
	name           string
	count          atomic.Uint64
	clientErrors   atomic.Uint64
	serverErrors   atomic.Uint64
	totalDuration  atomic.Uint64
	minDuration    atomic.Uint64
	maxDuration    atomic.Uint64
	latencyBuckets [BucketCount]atomic.Uint64
}

// NewMonitor creates an enabled monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		slowThreshold:  100 * time.Millisecond,
		errorThreshold: 0.05,
	}
	m.enabled.Store(true)
	return m
}

// SetEnabled turns recording on or off
func (m *Monitor) SetEnabled(on bool) {
	m.enabled.Store(on)
}

// Record stores one finished request. Statuses of 500 and above count as
// server errors, 400 to 499 as client errors.
func (m *Monitor) Record(route string, status int, d time.Duration) {
	if m == nil || !m.enabled.Load() {
		return
	}

	val, ok := m.routes.Load(route)
	if !ok {
		val, _ = m.routes.LoadOrStore(route, newRouteMetrics(route))
	}
	rm := val.(*routeMetrics)

	rm.count.Add(1)
	switch {
	case status >= 500:
		rm.serverErrors.Add(1)
	case status >= 400:
		rm.clientErrors.Add(1)
	}

	ns := uint64(d.Nanoseconds())
	rm.totalDuration.Add(ns)
	updateMin(&rm.minDuration, ns)
	updateMax(&rm.maxDuration, ns)
	rm.latencyBuckets[bucketIndex(d)].Add(1)

	m.total.Add(1)
}

// newRouteMetrics seeds the minimum above any sample so a 0ns one sticks.
func newRouteMetrics(route string) *routeMetrics {
	rm := &routeMetrics{name: route}
	rm.minDuration.Store(math.MaxUint64)
	return rm
}

func updateMin(v *atomic.Uint64, d uint64) {
	for {
		cur := v.Load()
		if d >= cur {
			return
		}
		if v.CompareAndSwap(cur, d) {
			return
		}
	}
}

func updateMax(v *atomic.Uint64, d uint64) {
	for {
		cur := v.Load()
		if d <= cur {
			return
		}
		if v.CompareAndSwap(cur, d) {
			return
		}
	}
}

func bucketIndex(d time.Duration) int {
	for i, bound := range bucketBounds {
		if d < bound {
			return i
		}
	}
	return len(bucketBounds)
}

// Total returns the number of recorded requests across all routes.
func (m *Monitor) Total() uint64 {
	return m.total.Load()
}

// RouteStats is a point-in-time copy of one route's counters
type RouteStats struct {
	Route        string
	Count        uint64
	ClientErrors uint64
	ServerErrors uint64
	Min          time.Duration
	Max          time.Duration
	Avg          time.Duration
	Buckets      [BucketCount]uint64
}

// Snapshot returns the stats of every route, sorted by route name.
func (m *Monitor) Snapshot() []RouteStats {
	var out []RouteStats
	m.routes.Range(func(_, value any) bool {
		rm := value.(*routeMetrics)
		s := RouteStats{
			Route:        rm.name,
			Count:        rm.count.Load(),
			ClientErrors: rm.clientErrors.Load(),
			ServerErrors: rm.serverErrors.Load(),
			Max:          time.Duration(rm.maxDuration.Load()),
		}
		if s.Count > 0 {
			s.Min = time.Duration(rm.minDuration.Load())
			s.Avg = time.Duration(rm.totalDuration.Load() / s.Count)
		}
		for i := range rm.latencyBuckets {
			s.Buckets[i] = rm.latencyBuckets[i].Load()
		}
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Bottleneck describes a route that is slow or failing often.
type Bottleneck struct {
	Type    string
	Route   string
	Details string
}

// Bottlenecks reports routes whose average latency exceeds 100ms or whose
// server error rate is above 5%.
func (m *Monitor) Bottlenecks() []Bottleneck {
	var out []Bottleneck
	for _, s := range m.Snapshot() {
		if s.Count == 0 {
			continue
		}
		if s.Avg > m.slowThreshold {
			out = append(out, Bottleneck{
				Type:    "latency",
				Route:   s.Route,
				Details: fmt.Sprintf("high latency (%v avg)", s.Avg),
			})
		}
		if rate := float64(s.ServerErrors) / float64(s.Count); rate > m.errorThreshold {
			out = append(out, Bottleneck{
				Type:    "errors",
				Route:   s.Route,
				Details: fmt.Sprintf("%.1f%% server error rate", rate*100),
			})
		}
	}
	return out
}
