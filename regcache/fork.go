package regcache

import (
	"github.com/colorfulnotion/regcache/log"
	"github.com/colorfulnotion/regcache/regerrors"
)

// ForkGuard holds a copy of the cache state taken by Fork.
type ForkGuard struct {
	c      *Cache
	gen    uint64
	guests []guestSlot
	hosts  []hostSlot
	done   bool
}

// Fork captures the slot arrays. Code emitted on a side path may change the
// cache freely; EndFork puts the captured state back for the main path.
func (c *Cache) Fork() *ForkGuard {
	c.checkStarted()
	c.assertAllUnlocked("fork")
	c.stats.Forks++
	log.Debug(log.RegCacheMonitoring, "fork", "free", c.NumFreeRegisters())
	return &ForkGuard{
		c:      c,
		gen:    c.gen,
		guests: append([]guestSlot(nil), c.guests...),
		hosts:  append([]hostSlot(nil), c.hosts...),
	}
}

// EndFork restores the captured state. A guard can be ended once, and only
// before the next Start.
func (f *ForkGuard) EndFork() {
	regerrors.Assert(!f.done, regerrors.ErrHandleReleased, "fork already ended")
	c := f.c
	c.assertAllUnlocked("end fork")
	regerrors.Assert(f.gen == c.gen, regerrors.ErrInconsistentBinding, "fork taken before a later Start")
	regerrors.Assert(len(f.guests) == len(c.guests) && len(f.hosts) == len(c.hosts),
		regerrors.ErrInconsistentBinding, "fork of %d/%d slots ended on %d/%d", len(f.guests), len(f.hosts), len(c.guests), len(c.hosts))
	copy(c.guests, f.guests)
	copy(c.hosts, f.hosts)
	f.done = true
	log.Debug(log.RegCacheMonitoring, "end fork", "free", c.NumFreeRegisters())
}

// Abandon drops the capture; the cache keeps its current state.
func (f *ForkGuard) Abandon() {
	f.done = true
}

func (f *ForkGuard) Done() bool {
	return f.done
}
