package regcache

import (
	"fmt"
	"strings"

	"github.com/colorfulnotion/regcache/log"
	"github.com/colorfulnotion/regcache/regerrors"
)

// Config is the backend-supplied shape of the host register file.
type Config struct {
	// HostRegisters is the size of the host register file; HostReg values
	// range over [0, HostRegisters).
	HostRegisters int
	// AllocationOrder lists the allocatable host registers by preference.
	// Registers not listed are never handed out.
	AllocationOrder []HostReg
	// Eviction is used as given. The zero value ranks every victim equally,
	// so eviction follows allocation order alone.
	Eviction EvictionParams
	// RegisterName names host registers in logs and snapshots. Optional.
	RegisterName func(HostReg) string
}

// Cache is the register cache for one compilation unit at a time. It is not
// safe for concurrent use; independent caches share nothing.
type Cache struct {
	cfg       Config
	backend   Backend
	lookahead Lookahead

	guests      []guestSlot
	hosts       []hostSlot
	constraints []constraint

	started bool
	gen     uint64 // Start count; a ForkGuard applies within one
	stats   Stats
}

// New validates cfg and returns a cache that must be Started before use.
func New(cfg Config, backend Backend) (*Cache, error) {
	if backend == nil {
		return nil, fmt.Errorf("regcache: nil backend")
	}
	if cfg.HostRegisters <= 0 {
		return nil, fmt.Errorf("%w: host register count %d", regerrors.ErrInvalidRegister, cfg.HostRegisters)
	}
	if len(cfg.AllocationOrder) == 0 {
		return nil, fmt.Errorf("%w: empty allocation order", regerrors.ErrInvalidRegister)
	}
	seen := make(map[HostReg]bool, len(cfg.AllocationOrder))
	for _, h := range cfg.AllocationOrder {
		if h < 0 || int(h) >= cfg.HostRegisters {
			return nil, fmt.Errorf("%w: host register %d outside [0,%d)", regerrors.ErrInvalidRegister, h, cfg.HostRegisters)
		}
		if seen[h] {
			return nil, fmt.Errorf("%w: host register %d listed twice", regerrors.ErrInvalidRegister, h)
		}
		seen[h] = true
	}
	cfg.AllocationOrder = append([]HostReg(nil), cfg.AllocationOrder...)

	c := &Cache{
		cfg:     cfg,
		backend: backend,
		hosts:   make([]hostSlot, cfg.HostRegisters),
	}
	for h := range c.hosts {
		c.hosts[h].unbind()
	}
	return c, nil
}

// Start resets the cache for a new compilation unit whose guest register i
// lives at homes[i].
func (c *Cache) Start(homes []MemoryLocation) {
	if c.started {
		c.assertAllUnlocked("start")
	}
	regerrors.Assert(len(homes) > 0, regerrors.ErrInvalidRegister, "no guest registers")
	c.guests = make([]guestSlot, len(homes))
	for g := range c.guests {
		c.guests[g].home = homes[g]
		c.guests[g].setDefault()
	}
	for h := range c.hosts {
		c.hosts[h] = hostSlot{}
		c.hosts[h].unbind()
	}
	c.constraints = make([]constraint, len(homes))
	c.stats = Stats{}
	c.started = true
	c.gen++
	log.Trace(log.RegCacheMonitoring, "start", "guests", len(homes), "hosts", len(c.cfg.AllocationOrder))
}

// SetLookahead installs the oracle consulted when choosing eviction victims.
// A nil oracle ranks victims by dirtiness alone.
func (c *Cache) SetLookahead(l Lookahead) {
	c.lookahead = l
}

func (c *Cache) Config() Config {
	return c.cfg
}

func (c *Cache) hostName(h HostReg) string {
	if c.cfg.RegisterName != nil {
		return c.cfg.RegisterName(h)
	}
	return fmt.Sprintf("h%d", int(h))
}

func (c *Cache) checkStarted() {
	regerrors.Assert(c.started, regerrors.ErrNotStarted, "")
}

func (c *Cache) checkGuest(g GuestReg) {
	c.checkStarted()
	regerrors.Assert(g >= 0 && int(g) < len(c.guests), regerrors.ErrInvalidRegister, "guest %d outside [0,%d)", g, len(c.guests))
}

func (c *Cache) isAllocatable(h HostReg) bool {
	for _, a := range c.cfg.AllocationOrder {
		if a == h {
			return true
		}
	}
	return false
}

// IsAllUnlocked reports that no guest or host lock and no pending
// constraint is outstanding.
func (c *Cache) IsAllUnlocked() bool {
	for g := range c.guests {
		if c.guests[g].locks > 0 || c.constraints[g].isActive() {
			return false
		}
	}
	for h := range c.hosts {
		if c.hosts[h].locks > 0 {
			return false
		}
	}
	return true
}

func (c *Cache) describeLocks() string {
	var held []string
	for g := range c.guests {
		if n := c.guests[g].locks; n > 0 {
			held = append(held, fmt.Sprintf("%s x%d", GuestReg(g), n))
		}
	}
	for h := range c.hosts {
		if n := c.hosts[h].locks; n > 0 {
			held = append(held, fmt.Sprintf("%s x%d", c.hostName(HostReg(h)), n))
		}
	}
	return strings.Join(held, ", ")
}

func (c *Cache) assertAllUnlocked(op string) {
	regerrors.Assert(c.IsAllUnlocked(), regerrors.ErrOutstandingLocks, "%s while holding %s", op, c.describeLocks())
}

// request merges a new access request into g's constraint and locks g.
// Once g has been realized the request must already be covered.
func (c *Cache) request(g GuestReg, add func(*constraint)) {
	c.checkGuest(g)
	ct := &c.constraints[g]
	if ct.realized != unrealized {
		var req constraint
		add(&req)
		regerrors.Assert(ct.satisfies(req), regerrors.ErrIncompatibleRealize,
			"%s realized as %s (read=%v write=%v), requested %s (read=%v write=%v revertable=%v)",
			g, ct.realized, ct.read, ct.write, req.requirement(), req.read, req.write, req.revertable)
	} else {
		add(ct)
	}
	c.guests[g].locks++
}

func (c *Cache) unlockGuest(g GuestReg) {
	s := &c.guests[g]
	regerrors.Assert(s.locks > 0, regerrors.ErrDoubleUnlock, "%s", g)
	s.locks--
	if s.locks == 0 {
		c.constraints[g] = constraint{}
	}
}

func (c *Cache) unlockHost(h HostReg) {
	hs := &c.hosts[h]
	regerrors.Assert(hs.locks > 0, regerrors.ErrDoubleUnlock, "%s", c.hostName(h))
	hs.locks--
}

// realize resolves g's accumulated constraint into a location, once.
func (c *Cache) realize(g GuestReg) {
	ct := &c.constraints[g]
	if ct.realized != unrealized {
		return
	}
	s := &c.guests[g]

	if ct.revertable {
		regerrors.Assert(!s.isDiscarded(), regerrors.ErrLoadDiscarded, "revertable bind of %s", g)
		if !s.revertable {
			c.storeFromRegister(g, storeMaintain)
		}
		c.bindToRegister(g, ct.read, ct.write)
		s.revertable = true
		ct.realized = realizedBound
		log.Debug(log.RegCacheMonitoring, "revertable bind", "guest", g, "loc", s.loc)
		return
	}

	switch {
	case s.isDiscarded(), s.isBound():
		c.bindToRegister(g, ct.read, ct.write)
		ct.realized = realizedBound
	case s.isImm():
		if ct.write || ct.killImm {
			c.bindToRegister(g, ct.read, ct.write)
			ct.realized = realizedBound
		} else {
			ct.realized = realizedImmediate
		}
	default:
		if ct.killMem {
			c.bindToRegister(g, ct.read, ct.write)
			ct.realized = realizedBound
		} else {
			ct.realized = realizedMemory
		}
	}
}

// bindToRegister gives g a host register, loading its value when load is
// set, and marks it dirty when dirty is set.
func (c *Cache) bindToRegister(g GuestReg, load, dirty bool) {
	s := &c.guests[g]
	if !s.isBound() {
		if load {
			regerrors.Assert(!s.isDiscarded(), regerrors.ErrLoadDiscarded, "%s", g)
		}
		h := c.getFreeHostReg()
		if load {
			c.backend.LoadRegister(g, s.loc, h)
			c.stats.Loads++
		}
		c.hosts[h].bind(g)
		s.setBound(h)
		c.stats.Binds++
		log.Debug(log.RegCacheMonitoring, "bind", "guest", g, "host", c.hostName(h), "load", load)
	}
	if dirty {
		s.inDefault = false
	}
}

type storeMode int

const (
	// storeFull writes the value home and drops the binding.
	storeFull storeMode = iota
	// storeMaintain writes the value home and keeps the binding clean.
	storeMaintain
)

func (c *Cache) storeFromRegister(g GuestReg, mode storeMode) {
	s := &c.guests[g]
	regerrors.Assert(!s.revertable, regerrors.ErrTransactionInProgress, "store of %s", g)
	switch loc := s.loc.(type) {
	case HostLocation:
		if !s.inDefault {
			c.backend.StoreRegister(g, loc, s.home)
			c.stats.Stores++
		}
		if mode == storeFull {
			c.hosts[loc.Reg].unbind()
			s.setDefault()
			log.Debug(log.RegCacheMonitoring, "unbind", "guest", g, "host", c.hostName(loc.Reg))
		} else {
			s.inDefault = true
		}
	case ImmediateLocation:
		if !s.inDefault {
			c.backend.StoreRegister(g, loc, s.home)
			c.stats.Stores++
		}
		if mode == storeFull {
			s.setDefault()
		} else {
			s.inDefault = true
		}
	}
}

// Flush writes every listed guest register home and drops its binding.
func (c *Cache) Flush(regs ...GuestReg) {
	c.checkStarted()
	c.assertAllUnlocked("flush")
	for _, g := range regs {
		c.checkGuest(g)
		regerrors.Assert(!c.guests[g].isDiscarded(), regerrors.ErrFlushDiscarded, "%s", g)
		c.storeFromRegister(g, storeFull)
	}
}

// FlushAll flushes every guest register. Discarded registers are dead and
// are left alone.
func (c *Cache) FlushAll() {
	c.checkStarted()
	c.assertAllUnlocked("flush")
	for g := range c.guests {
		if c.guests[g].isDiscarded() {
			continue
		}
		c.storeFromRegister(GuestReg(g), storeFull)
	}
	log.Trace(log.RegCacheMonitoring, "flush all", "stores", c.stats.Stores)
}

// FlushHost flushes whichever guest register is bound to h.
func (c *Cache) FlushHost(h HostReg) {
	c.checkStarted()
	regerrors.Assert(h >= 0 && int(h) < len(c.hosts), regerrors.ErrInvalidRegister, "host %d", h)
	c.assertAllUnlocked("flush host")
	if hs := &c.hosts[h]; !hs.free {
		c.storeFromRegister(hs.guest, storeFull)
	}
}

// Discard declares the listed registers dead. Their values are dropped
// without a store and may not be read again before being written.
func (c *Cache) Discard(regs ...GuestReg) {
	c.checkStarted()
	c.assertAllUnlocked("discard")
	for _, g := range regs {
		c.checkGuest(g)
		s := &c.guests[g]
		regerrors.Assert(!s.revertable, regerrors.ErrTransactionInProgress, "discard of %s", g)
		if h, ok := s.host(); ok {
			c.hosts[h].unbind()
		}
		s.setDiscarded()
		c.stats.Discards++
		log.Debug(log.RegCacheMonitoring, "discard", "guest", g)
	}
}

// PreloadRegisters binds and loads the listed registers while at least two
// host registers stay free. Immediates, bound and discarded registers are
// skipped.
func (c *Cache) PreloadRegisters(regs ...GuestReg) {
	c.checkStarted()
	for _, g := range regs {
		c.checkGuest(g)
		if c.NumFreeRegisters() < 2 {
			return
		}
		s := &c.guests[g]
		if s.isImm() || s.isBound() || s.isDiscarded() || s.locks > 0 {
			continue
		}
		c.bindToRegister(g, true, false)
	}
}

// Revert rolls back every open transaction: the value written since
// RevertableBind is dropped and the register is back in its home location,
// which still holds the pre-transaction value.
func (c *Cache) Revert() {
	c.checkStarted()
	c.assertAllUnlocked("revert")
	for g := range c.guests {
		if c.guests[g].revertable {
			c.revertRegister(GuestReg(g))
		}
	}
}

func (c *Cache) RevertRegister(g GuestReg) {
	c.checkGuest(g)
	c.assertAllUnlocked("revert")
	regerrors.Assert(c.guests[g].revertable, regerrors.ErrNotRevertable, "revert of %s", g)
	c.revertRegister(g)
}

func (c *Cache) revertRegister(g GuestReg) {
	s := &c.guests[g]
	s.revertable = false
	if h, ok := s.host(); ok {
		c.hosts[h].unbind()
	}
	s.setDefault()
	c.stats.Reverts++
	log.Debug(log.RegCacheMonitoring, "revert", "guest", g)
}

// Commit closes every open transaction, keeping the new values as ordinary
// dirty bindings. No code is emitted.
func (c *Cache) Commit() {
	c.checkStarted()
	c.assertAllUnlocked("commit")
	for g := range c.guests {
		if c.guests[g].revertable {
			c.commitRegister(GuestReg(g))
		}
	}
}

func (c *Cache) CommitRegister(g GuestReg) {
	c.checkGuest(g)
	c.assertAllUnlocked("commit")
	regerrors.Assert(c.guests[g].revertable, regerrors.ErrNotRevertable, "commit of %s", g)
	c.commitRegister(g)
}

func (c *Cache) commitRegister(g GuestReg) {
	c.guests[g].revertable = false
	c.stats.Commits++
	log.Debug(log.RegCacheMonitoring, "commit", "guest", g)
}

// SetImmediate records that g now holds the constant v. Any host binding is
// dropped without a store; the constant is dirty until flushed.
func (c *Cache) SetImmediate(g GuestReg, v uint64) {
	c.checkGuest(g)
	s := &c.guests[g]
	regerrors.Assert(s.locks == 0, regerrors.ErrOutstandingLocks, "set immediate of locked %s", g)
	regerrors.Assert(!s.revertable, regerrors.ErrTransactionInProgress, "set immediate of %s", g)
	if h, ok := s.host(); ok {
		c.hosts[h].unbind()
	}
	s.setImm(v, true)
	log.Trace(log.RegCacheMonitoring, "immediate", "guest", g, "value", v)
}

// Location reports where g currently lives, or nil once discarded.
func (c *Cache) Location(g GuestReg) Location {
	c.checkGuest(g)
	return c.guests[g].loc
}

func (c *Cache) IsImm(g GuestReg) bool {
	c.checkGuest(g)
	return c.guests[g].isImm()
}

// Imm returns g's value when it is a known constant.
func (c *Cache) Imm(g GuestReg) (uint64, bool) {
	c.checkGuest(g)
	imm, ok := c.guests[g].loc.(ImmediateLocation)
	return imm.Value, ok
}

func (c *Cache) HostRegister(g GuestReg) (HostReg, bool) {
	c.checkGuest(g)
	return c.guests[g].host()
}

func (c *Cache) IsBound(g GuestReg) bool {
	c.checkGuest(g)
	return c.guests[g].isBound()
}

// IsDirty reports that g's home memory is stale.
func (c *Cache) IsDirty(g GuestReg) bool {
	c.checkGuest(g)
	return c.guests[g].isDirty()
}

func (c *Cache) IsDiscarded(g GuestReg) bool {
	c.checkGuest(g)
	return c.guests[g].isDiscarded()
}

func (c *Cache) IsRevertable(g GuestReg) bool {
	c.checkGuest(g)
	return c.guests[g].revertable
}

func (c *Cache) IsLocked(g GuestReg) bool {
	c.checkGuest(g)
	return c.guests[g].locks > 0
}

// GuestOf returns the guest register bound to h.
func (c *Cache) GuestOf(h HostReg) (GuestReg, bool) {
	if h < 0 || int(h) >= len(c.hosts) || c.hosts[h].free {
		return -1, false
	}
	return c.hosts[h].guest, true
}

func (c *Cache) NumGuests() int {
	return len(c.guests)
}

// NumFreeRegisters counts allocatable host registers that are unbound and
// unlocked.
func (c *Cache) NumFreeRegisters() int {
	n := 0
	for _, h := range c.cfg.AllocationOrder {
		if c.hosts[h].free && c.hosts[h].locks == 0 {
			n++
		}
	}
	return n
}

func (c *Cache) Stats() Stats {
	return c.stats
}

// Check audits the guest/host bindings. It returns an error wrapping
// regerrors.ErrInconsistentBinding describing the first violation.
func (c *Cache) Check() error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", regerrors.ErrInconsistentBinding, fmt.Sprintf(format, args...))
	}
	for h := range c.hosts {
		hs := &c.hosts[h]
		if hs.locks < 0 {
			return fail("%s lock count %d", c.hostName(HostReg(h)), hs.locks)
		}
		if hs.free {
			continue
		}
		if !c.isAllocatable(HostReg(h)) {
			return fail("%s bound but not allocatable", c.hostName(HostReg(h)))
		}
		if hs.guest < 0 || int(hs.guest) >= len(c.guests) {
			return fail("%s bound to unknown guest %d", c.hostName(HostReg(h)), hs.guest)
		}
		if got, ok := c.guests[hs.guest].host(); !ok || got != HostReg(h) {
			return fail("%s claims %s, which is at %v", c.hostName(HostReg(h)), hs.guest, c.guests[hs.guest].loc)
		}
	}
	for g := range c.guests {
		s := &c.guests[g]
		if s.locks < 0 {
			return fail("%s lock count %d", GuestReg(g), s.locks)
		}
		if h, ok := s.host(); ok {
			if int(h) >= len(c.hosts) || c.hosts[h].free || c.hosts[h].guest != GuestReg(g) {
				return fail("%s bound to %s, which does not point back", GuestReg(g), c.hostName(h))
			}
		}
		if s.revertable && !s.isBound() {
			return fail("%s revertable but not bound", GuestReg(g))
		}
		if s.locks == 0 && c.constraints[g].isActive() {
			return fail("%s unlocked with a pending constraint", GuestReg(g))
		}
	}
	return nil
}
