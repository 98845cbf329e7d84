// Package store implements the in-memory hash table engine for Hashline.
//
// The table is a chained hash table: an array of bucket heads, each bucket
// holding a singly linked chain of entries. Keys are hashed with djb2
// (pkg/hash), the digest is cached per entry, and collisions are resolved
// purely by chaining. The table resizes itself when the load factor crosses
// 0.75, re-threading existing nodes by their cached hashes.
//
// Expiry is lazy and batch, never a background sweep on the hot path:
//   - Lookup unlinks an expired entry it encounters and reports not found,
//     so a read never observes expired data.
//   - Sweep scans every bucket and unlinks all expired entries; the
//     reporting operations (Size, Dump) run it first so their output
//     reflects only live data.
//
// Every operation is serialized by a single table-wide mutex held for the
// operation's full duration. This is deliberately coarse-grained: resize
// and sweep touch the whole structure, and a per-bucket scheme would not
// be safe across resize without extra coordination.
//
// Example usage:
//
//	t := store.New()
//
//	t.Insert("user:123", "john_doe", time.Hour, store.Upsert)
//	if e, ok := t.Lookup("user:123"); ok {
//		fmt.Printf("value=%s created=%v\n", e.Value, e.CreatedAt)
//	}
//
//	count, capacity := t.Size()
//	fmt.Printf("%d entries in %d buckets\n", count, capacity)
//
// All operations are safe for concurrent use by multiple goroutines.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/hashline/hashline/pkg/hash"
)

// Table sizing policy.
const (
	// InitialCapacity is the bucket count of a fresh table. A prime keeps
	// the multiplicative hash from clustering on common key shapes.
	InitialCapacity = 101

	// LoadFactorThreshold triggers a resize when count/capacity exceeds it,
	// checked before each insert.
	LoadFactorThreshold = 0.75

	// MaxTTL is the "effectively infinite" lifetime applied when a client
	// does not give an explicit TTL. One year.
	MaxTTL = 365 * 24 * time.Hour
)

// Sentinel errors returned by table operations.
var (
	ErrKeyExists   = errors.New("store: key exists")
	ErrKeyNotFound = errors.New("store: key not found")
	ErrRange       = errors.New("store: dump range out of bounds")
)

// Mode selects the insert behavior when the key is already present or absent.
type Mode uint8

const (
	Upsert     Mode = iota // Create or overwrite unconditionally
	AddOnly                // Create only; ErrKeyExists if present
	UpdateOnly             // Overwrite only; ErrKeyNotFound if absent
)

// entry is one node in a bucket chain. Entries are owned exclusively by the
// chain that holds them; the table never hands out pointers into a chain.
type entry struct {
	key       string
	value     string
	createdAt time.Time
	ttl       time.Duration
	hash      uint64 // cached djb2 digest of key, computed once
	next      *entry
}

// expired reports whether the entry's age has reached its TTL.
func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Entry is the copied view of a live table entry returned by Lookup.
type Entry struct {
	Key       string
	Value     string
	CreatedAt time.Time
	TTL       time.Duration
}

// DumpEntry is one row of a Dump listing: the entry plus the bucket that
// currently holds it.
type DumpEntry struct {
	Key       string
	Value     string
	Bucket    int
	CreatedAt time.Time
}

// Table is a concurrent, resizable chained hash table with TTL expiry.
// The zero value is not usable; construct with New or NewWithMetrics.
//
// Example:
//
//	t := store.New()
//	t.Insert("k", "v", store.MaxTTL, store.Upsert)
type Table struct {
	mu      sync.Mutex
	buckets []*entry
	count   int
	metrics Metrics
}

// New creates an empty Table at InitialCapacity with no-op metrics.
//
// Example:
//
//	t := store.New()
//	// Table is ready for use
//
// Returns:
//   - A new Table instance ready for use
func New() *Table {
	return NewWithMetrics(NoopMetrics{})
}

// NewWithMetrics creates an empty Table that reports events to m.
// Pass NoopMetrics{} (or use New) when metrics are not wanted.
//
// Example:
//
//	counters := store.NewCounters()
//	t := store.NewWithMetrics(counters)
//
// Parameters:
//   - m: The metrics sink to report hits, misses, expiries, and resizes to
//
// Returns:
//   - A new Table instance ready for use
func NewWithMetrics(m Metrics) *Table {
	if m == nil {
		m = NoopMetrics{}
	}
	return &Table{
		buckets: make([]*entry, InitialCapacity),
		metrics: m,
	}
}

// Insert stores value under key with the given TTL according to mode.
// Before insertion, the table resizes itself if the load factor exceeds
// LoadFactorThreshold. On an overwriting write (Upsert or UpdateOnly hit)
// the value, TTL, and creation timestamp are all replaced in place.
//
// An expired entry found under the key is unlinked first and the insert
// proceeds as if the key were absent, matching the lazy-expiry semantics
// of Lookup.
//
// Example:
//
//	// Unconditional write
//	t.Insert("k", "v1", store.MaxTTL, store.Upsert)
//
//	// Fails with ErrKeyExists: k is present
//	err := t.Insert("k", "v2", store.MaxTTL, store.AddOnly)
//
// Parameters:
//   - key: The key to store under
//   - value: The value to store
//   - ttl: Entry lifetime; use MaxTTL for "effectively forever"
//   - mode: Upsert, AddOnly, or UpdateOnly
//
// Returns:
//   - nil on success
//   - ErrKeyExists for AddOnly on a present key
//   - ErrKeyNotFound for UpdateOnly on an absent key
func (t *Table) Insert(key, value string, ttl time.Duration, mode Mode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if float64(t.count)/float64(len(t.buckets)) > LoadFactorThreshold {
		t.resize(len(t.buckets)*2 + 1)
	}

	now := time.Now()
	h := hash.Sum64(key)
	idx := int(h % uint64(len(t.buckets)))

	t.evictExpiredFromChain(idx, now)

	for curr := t.buckets[idx]; curr != nil; curr = curr.next {
		if curr.key != key {
			continue
		}
		if mode == AddOnly {
			return ErrKeyExists
		}
		curr.value = value
		curr.ttl = ttl
		curr.createdAt = now
		return nil
	}

	if mode == UpdateOnly {
		return ErrKeyNotFound
	}

	t.buckets[idx] = &entry{
		key:       key,
		value:     value,
		createdAt: now,
		ttl:       ttl,
		hash:      h,
		next:      t.buckets[idx],
	}
	t.count++
	return nil
}

// Lookup returns a copy of the live entry stored under key. If the entry
// exists but has expired, it is unlinked as a side effect and the lookup
// reports not found: a read never observes expired data, and expired nodes
// are reclaimed without a separate sweep.
//
// Example:
//
//	if e, ok := t.Lookup("user:123"); ok {
//		fmt.Printf("found %s\n", e.Value)
//	}
//
// Parameters:
//   - key: The key to look up
//
// Returns:
//   - A copy of the entry, and true if the key is present and not expired
func (t *Table) Lookup(key string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	idx := int(hash.Sum64(key) % uint64(len(t.buckets)))

	for pp := &t.buckets[idx]; *pp != nil; pp = &(*pp).next {
		curr := *pp
		if curr.key != key {
			continue
		}
		if curr.expired(now) {
			*pp = curr.next
			t.count--
			t.metrics.Expire()
			t.metrics.Miss()
			return Entry{}, false
		}
		t.metrics.Hit()
		return Entry{
			Key:       curr.key,
			Value:     curr.value,
			CreatedAt: curr.createdAt,
			TTL:       curr.ttl,
		}, true
	}

	t.metrics.Miss()
	return Entry{}, false
}

// Delete removes the entry stored under key. The presence check and unlink
// happen in one critical section, so there is no window for another caller
// to race the removal. An expired entry is unlinked too, but the delete
// reports not found for it, matching Lookup's view of the table.
//
// Example:
//
//	if t.Delete("user:123") {
//		fmt.Println("removed")
//	}
//
// Parameters:
//   - key: The key to remove
//
// Returns:
//   - true if a live entry was removed, false otherwise
func (t *Table) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	idx := int(hash.Sum64(key) % uint64(len(t.buckets)))

	for pp := &t.buckets[idx]; *pp != nil; pp = &(*pp).next {
		curr := *pp
		if curr.key != key {
			continue
		}
		*pp = curr.next
		t.count--
		if curr.expired(now) {
			t.metrics.Expire()
			return false
		}
		return true
	}
	return false
}

// Sweep scans every bucket and unlinks every expired entry. It costs
// O(capacity) and exists so the reporting operations can trade a full scan
// for counts and listings that only reflect live data.
//
// Example:
//
//	evicted := t.Sweep()
//	log.Printf("swept %d expired entries", evicted)
//
// Returns:
//   - The number of entries evicted
func (t *Table) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked()
}

// Size reports the number of live entries and the current bucket capacity.
// A Sweep runs first, so the count never includes expired entries.
//
// Example:
//
//	count, capacity := t.Size()
//	fmt.Printf("%d, %d\n", count, capacity)
//
// Returns:
//   - The live entry count
//   - The current capacity (bucket count)
func (t *Table) Size() (count, capacity int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked()
	return t.count, len(t.buckets)
}

// Cap returns the current bucket capacity without sweeping.
func (t *Table) Cap() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// Clear discards every bucket and resets the table to InitialCapacity.
//
// Example:
//
//	t.Clear()
//	count, capacity := t.Size() // 0, store.InitialCapacity
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buckets = make([]*entry, InitialCapacity)
	t.count = 0
}

// Dump lists the live entries in buckets [start, start+length). A Sweep
// runs first so the listing reflects only live data. Within a bucket,
// entries appear in chain order: most recently inserted first, because
// insertion prepends.
//
// The window must satisfy start >= 0, length >= 0, and
// start+length < capacity; anything else fails with ErrRange.
//
// Example:
//
//	entries, err := t.Dump(0, 10)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, e := range entries {
//		fmt.Printf("%s = %s (bucket %d)\n", e.Key, e.Value, e.Bucket)
//	}
//
// Parameters:
//   - start: First bucket index of the window
//   - length: Number of buckets to list
//
// Returns:
//   - The listing in bucket order, chain order within a bucket
//   - ErrRange if the window is out of bounds
func (t *Table) Dump(start, length int) ([]DumpEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Operands are checked independently so start+length cannot overflow.
	if start < 0 || length < 0 || start >= len(t.buckets) || length >= len(t.buckets)-start {
		return nil, ErrRange
	}

	t.sweepLocked()

	var out []DumpEntry
	for i := start; i < start+length; i++ {
		for curr := t.buckets[i]; curr != nil; curr = curr.next {
			out = append(out, DumpEntry{
				Key:       curr.key,
				Value:     curr.value,
				Bucket:    i,
				CreatedAt: curr.createdAt,
			})
		}
	}
	return out, nil
}

// DumpAll lists every live entry in the table, sweeping first. It is the
// whole-table form of Dump and never fails.
func (t *Table) DumpAll() []DumpEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked()

	var out []DumpEntry
	for i, head := range t.buckets {
		for curr := head; curr != nil; curr = curr.next {
			out = append(out, DumpEntry{
				Key:       curr.key,
				Value:     curr.value,
				Bucket:    i,
				CreatedAt: curr.createdAt,
			})
		}
	}
	return out
}

// sweepLocked unlinks every expired entry. Caller holds t.mu.
func (t *Table) sweepLocked() int {
	now := time.Now()
	evicted := 0

	for i := range t.buckets {
		pp := &t.buckets[i]
		for *pp != nil {
			if (*pp).expired(now) {
				*pp = (*pp).next
				t.count--
				evicted++
				t.metrics.Expire()
				continue
			}
			pp = &(*pp).next
		}
	}

	t.metrics.Sweep()
	return evicted
}

// evictExpiredFromChain unlinks expired entries from one bucket chain.
// Caller holds t.mu.
func (t *Table) evictExpiredFromChain(idx int, now time.Time) {
	pp := &t.buckets[idx]
	for *pp != nil {
		if (*pp).expired(now) {
			*pp = (*pp).next
			t.count--
			t.metrics.Expire()
			continue
		}
		pp = &(*pp).next
	}
}

// resize re-threads every node into a bucket array of newCapacity using the
// node's cached hash; keys are never re-hashed. The count is unchanged.
// Caller holds t.mu.
func (t *Table) resize(newCapacity int) {
	newBuckets := make([]*entry, newCapacity)

	for _, head := range t.buckets {
		for curr := head; curr != nil; {
			next := curr.next
			idx := int(curr.hash % uint64(newCapacity))
			curr.next = newBuckets[idx]
			newBuckets[idx] = curr
			curr = next
		}
	}

	t.buckets = newBuckets
	t.metrics.Resize()
}
