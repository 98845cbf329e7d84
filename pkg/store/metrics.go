package store

import "go.uber.org/atomic"

// Metrics receives table lifecycle events. The table calls these methods
// while holding its lock, so implementations must be cheap and must not
// call back into the table.
type Metrics interface {
	// Hit is called when a lookup returns a live entry.
	Hit()

	// Miss is called when a lookup finds nothing usable.
	Miss()

	// Expire is called once per entry evicted because its TTL elapsed,
	// whether lazily by a lookup or in batch by a sweep.
	Expire()

	// Sweep is called once per full-table sweep.
	Sweep()

	// Resize is called when the bucket array grows.
	Resize()
}

// NoopMetrics ignores all events. It lets the table avoid nil checks when
// the caller does not care about metrics.
type NoopMetrics struct{}

func (NoopMetrics) Hit()    {}
func (NoopMetrics) Miss()   {}
func (NoopMetrics) Expire() {}
func (NoopMetrics) Sweep()  {}
func (NoopMetrics) Resize() {}

// Counters is a Metrics implementation backed by atomic counters, safe for
// concurrent use and cheap enough to call under the table lock.
//
// Example:
//
//	counters := store.NewCounters()
//	t := store.NewWithMetrics(counters)
//	// ... serve traffic ...
//	snap := counters.Snapshot()
//	log.Printf("hits=%d misses=%d expired=%d", snap.Hits, snap.Misses, snap.Expired)
type Counters struct {
	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64
	sweeps  atomic.Int64
	resizes atomic.Int64
}

// NewCounters returns a zeroed Counters.
func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) Hit()    { c.hits.Inc() }
func (c *Counters) Miss()   { c.misses.Inc() }
func (c *Counters) Expire() { c.expired.Inc() }
func (c *Counters) Sweep()  { c.sweeps.Inc() }
func (c *Counters) Resize() { c.resizes.Inc() }

// Stats is a point-in-time copy of the counter values.
type Stats struct {
	Hits    int64
	Misses  int64
	Expired int64
	Sweeps  int64
	Resizes int64
}

// Snapshot returns the current counter values. The fields are read
// individually, so the snapshot is not atomic across counters; it is meant
// for logging, not accounting.
func (c *Counters) Snapshot() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Expired: c.expired.Load(),
		Sweeps:  c.sweeps.Load(),
		Resizes: c.resizes.Load(),
	}
}
