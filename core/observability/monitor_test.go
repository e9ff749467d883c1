package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorRecord(t *testing.T) {
	m := NewMonitor()

	m.Record("POST /login", 200, 10*time.Millisecond)
	m.Record("POST /login", 401, 20*time.Millisecond)
	m.Record("POST /login", 500, 30*time.Millisecond)
	m.Record("GET /", 200, 500*time.Microsecond)

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "GET /", snap[0].Route)

	login := snap[1]
	assert.Equal(t, uint64(3), login.Count)
	assert.Equal(t, uint64(1), login.ClientErrors)
	assert.Equal(t, uint64(1), login.ServerErrors)
	assert.Equal(t, 10*time.Millisecond, login.Min)
	assert.Equal(t, 30*time.Millisecond, login.Max)
	assert.Equal(t, 20*time.Millisecond, login.Avg)
	assert.Equal(t, uint64(3), login.Buckets[3])
	assert.Equal(t, uint64(1), snap[0].Buckets[0])
	assert.Equal(t, uint64(4), m.Total())
}

func TestMonitorKeepsZeroMinimum(t *testing.T) {
	m := NewMonitor()

	m.Record("GET /", 200, 0)
	m.Record("GET /", 200, 5*time.Millisecond)
	m.Record("GET /", 200, time.Millisecond)

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, time.Duration(0), snap[0].Min)
	assert.Equal(t, 5*time.Millisecond, snap[0].Max)
}

func TestMonitorMinimumFollowsFirstSample(t *testing.T) {
	m := NewMonitor()
	m.Record("GET /", 200, 7*time.Millisecond)

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 7*time.Millisecond, snap[0].Min)
}

func TestMonitorBuckets(t *testing.T) {
	assert.Equal(t, 0, bucketIndex(0))
	assert.Equal(t, 1, bucketIndex(time.Millisecond))
	assert.Equal(t, 8, bucketIndex(9*time.Second))
	assert.Equal(t, BucketCount-1, bucketIndex(time.Minute))
}

func TestMonitorDisabled(t *testing.T) {
	m := NewMonitor()
	m.SetEnabled(false)
	m.Record("GET /", 200, time.Millisecond)
	assert.Empty(t, m.Snapshot())

	var nilMonitor *Monitor
	assert.NotPanics(t, func() { nilMonitor.Record("GET /", 200, time.Millisecond) })
}

func TestBottlenecks(t *testing.T) {
	m := NewMonitor()
	for i := 0; i < 100; i++ {
		m.Record("GET /slow", 200, 150*time.Millisecond)
		m.Record("GET /daily", 500, time.Millisecond)
		m.Record("GET /", 200, time.Millisecond)
	}

	got := m.Bottlenecks()
	require.Len(t, got, 2)
	assert.Equal(t, Bottleneck{Type: "errors", Route: "GET /daily", Details: "100.0% server error rate"}, got[0])
	assert.Equal(t, "latency", got[1].Type)
	assert.Equal(t, "GET /slow", got[1].Route)
}

func TestMonitorConcurrent(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Record("GET /", 200, time.Duration(j)*time.Microsecond)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8000), m.Snapshot()[0].Count)
}

func BenchmarkRecord(b *testing.B) {
	m := NewMonitor()
	for i := 0; i < b.N; i++ {
		m.Record("GET /api", 200, 10*time.Millisecond)
	}
}
