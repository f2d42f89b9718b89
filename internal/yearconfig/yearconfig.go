// Package yearconfig owns the partition of data-collection years into
// curated and uncurated sets.
package yearconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Configuration is the process-wide curated/uncurated year partition.
// It is an explicit object injected into the cache-owning components;
// every mutation invokes the registered invalidation hooks
// synchronously, before the mutator returns, so the next cache read is
// guaranteed to see the staleness.
type Configuration struct {
	mu        sync.RWMutex
	curated   map[int]struct{}
	uncurated map[int]struct{}
	hooks     []func()
}

// Partition is a curated/uncurated year split in plain value form, for
// configuration surfaces.
type Partition struct {
	Curated   []int
	Uncurated []int
}

// New creates a configuration from two disjoint year sets.
func New(curated, uncurated []int) (*Configuration, error) {
	c := &Configuration{
		curated:   make(map[int]struct{}, len(curated)),
		uncurated: make(map[int]struct{}, len(uncurated)),
	}
	for _, y := range curated {
		c.curated[y] = struct{}{}
	}
	for _, y := range uncurated {
		if _, ok := c.curated[y]; ok {
			return nil, fmt.Errorf("year %d is both curated and uncurated", y)
		}
		c.uncurated[y] = struct{}{}
	}
	return c, nil
}

// CuratedYears returns the curated set, sorted.
func (c *Configuration) CuratedYears() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.curated)
}

// UncuratedYears returns the uncurated set, sorted.
func (c *Configuration) UncuratedYears() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.uncurated)
}

// SetCurated moves a year into the curated set (and out of the
// uncurated set if present).
func (c *Configuration) SetCurated(year int) {
	c.mutate(func() {
		delete(c.uncurated, year)
		c.curated[year] = struct{}{}
	})
}

// SetUncurated moves a year into the uncurated set.
func (c *Configuration) SetUncurated(year int) {
	c.mutate(func() {
		delete(c.curated, year)
		c.uncurated[year] = struct{}{}
	})
}

// Remove drops a year from both sets.
func (c *Configuration) Remove(year int) {
	c.mutate(func() {
		delete(c.curated, year)
		delete(c.uncurated, year)
	})
}

// Replace swaps the whole partition.
func (c *Configuration) Replace(curated, uncurated []int) error {
	next, err := New(curated, uncurated)
	if err != nil {
		return err
	}
	c.mutate(func() {
		c.curated = next.curated
		c.uncurated = next.uncurated
	})
	return nil
}

// OnChange registers an invalidation hook. Hooks run synchronously
// inside every mutation.
func (c *Configuration) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Signature returns a stable digest of the current partition. Caches
// derived from the partition are keyed and validated by it.
func (c *Configuration) Signature() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	b.WriteString("curated:")
	writeYears(&b, sortedKeys(c.curated))
	b.WriteString("|uncurated:")
	writeYears(&b, sortedKeys(c.uncurated))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func (c *Configuration) mutate(apply func()) {
	c.mu.Lock()
	apply()
	hooks := make([]func(), len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func sortedKeys(set map[int]struct{}) []int {
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func writeYears(b *strings.Builder, years []int) {
	for i, y := range years {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d", y)
	}
}
