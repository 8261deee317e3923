package regcache

import "github.com/colorfulnotion/regcache/regerrors"

// Realizer is a handle whose location can be resolved.
type Realizer interface {
	Realize()
}

// Realize resolves every handle's constraint. Acquire all handles an
// instruction needs first, then realize them together so that each guest
// register binds once with the union of its requests.
func (c *Cache) Realize(hs ...Realizer) {
	for _, h := range hs {
		h.Realize()
	}
}

// Use requests g for mode in any location: a host register, its home
// memory, or an immediate.
func (c *Cache) Use(g GuestReg, mode Mode) *OpArg {
	c.request(g, func(ct *constraint) { ct.addUse(mode) })
	return &OpArg{c: c, g: g}
}

// UseNoImm requests g in a host register or its home memory.
func (c *Cache) UseNoImm(g GuestReg, mode Mode) *OpArg {
	c.request(g, func(ct *constraint) { ct.addUseNoImm(mode) })
	return &OpArg{c: c, g: g}
}

// BindOrImm requests g in a host register or as an immediate.
func (c *Cache) BindOrImm(g GuestReg, mode Mode) *OpArg {
	c.request(g, func(ct *constraint) { ct.addBindOrImm(mode) })
	return &OpArg{c: c, g: g}
}

// Bind requests g in a host register.
func (c *Cache) Bind(g GuestReg, mode Mode) *RegHandle {
	c.request(g, func(ct *constraint) { ct.addBind(mode) })
	return &RegHandle{c: c, g: g, host: -1}
}

// RevertableBind requests g in a host register inside a transaction. Home
// memory is brought up to date before the binding so that Revert can drop
// the register without a store.
func (c *Cache) RevertableBind(g GuestReg, mode Mode) *RegHandle {
	c.request(g, func(ct *constraint) { ct.addRevertableBind(mode) })
	return &RegHandle{c: c, g: g, host: -1}
}

// Scratch locks a free host register for temporary use.
func (c *Cache) Scratch() *RegHandle {
	c.checkStarted()
	h := c.getFreeHostReg()
	c.hosts[h].locks++
	c.stats.Scratches++
	return &RegHandle{c: c, g: -1, host: h, scratch: true}
}

// ScratchReg locks the specific host register h, evicting its occupant.
func (c *Cache) ScratchReg(h HostReg) *RegHandle {
	c.checkStarted()
	regerrors.Assert(c.isAllocatable(h), regerrors.ErrInvalidRegister, "host %d is not allocatable", h)
	hs := &c.hosts[h]
	regerrors.Assert(hs.locks == 0, regerrors.ErrOutstandingLocks, "scratch of locked %s", c.hostName(h))
	if !hs.free {
		g := hs.guest
		regerrors.Assert(c.guests[g].locks == 0, regerrors.ErrOutstandingLocks, "scratch of %s holding locked %s", c.hostName(h), g)
		c.storeFromRegister(g, storeFull)
		c.stats.Evictions++
	}
	hs.locks++
	c.stats.Scratches++
	return &RegHandle{c: c, g: -1, host: h, scratch: true}
}

// OpArg holds one lock on a guest register requested through Use,
// UseNoImm or BindOrImm.
type OpArg struct {
	c        *Cache
	g        GuestReg
	released bool
}

func (a *OpArg) live() {
	regerrors.Assert(!a.released, regerrors.ErrHandleReleased, "%s", a.g)
}

func (a *OpArg) Guest() GuestReg {
	return a.g
}

func (a *OpArg) Realize() {
	a.live()
	a.c.realize(a.g)
}

func (a *OpArg) IsRealized() bool {
	a.live()
	return a.c.constraints[a.g].realized != unrealized
}

// Location returns the realized location of the operand.
func (a *OpArg) Location() Location {
	a.live()
	regerrors.Assert(a.c.constraints[a.g].realized != unrealized, regerrors.ErrUnrealizedAccess, "%s", a.g)
	return a.c.guests[a.g].loc
}

func (a *OpArg) IsImm() bool {
	_, ok := a.Location().(ImmediateLocation)
	return ok
}

func (a *OpArg) Imm() (uint64, bool) {
	imm, ok := a.Location().(ImmediateLocation)
	return imm.Value, ok
}

// Reg returns the host register of an operand realized into one.
func (a *OpArg) Reg() HostReg {
	loc, ok := a.Location().(HostLocation)
	regerrors.Assert(ok, regerrors.ErrIncompatibleRealize, "%s realized at %v, not a host register", a.g, a.c.guests[a.g].loc)
	return loc.Reg
}

// Unlock releases the lock. Unlocking twice is an error.
func (a *OpArg) Unlock() {
	regerrors.Assert(!a.released, regerrors.ErrDoubleUnlock, "%s", a.g)
	a.released = true
	a.c.unlockGuest(a.g)
}

// Release releases the lock if still held.
func (a *OpArg) Release() {
	if !a.released {
		a.Unlock()
	}
}

// Move transfers the lock to a new handle and invalidates a.
func (a *OpArg) Move() *OpArg {
	a.live()
	a.released = true
	return &OpArg{c: a.c, g: a.g}
}

// RegHandle holds one lock on a guest register requested through Bind or
// RevertableBind, or on a scratch host register.
type RegHandle struct {
	c        *Cache
	g        GuestReg
	host     HostReg
	scratch  bool
	released bool
}

func (r *RegHandle) live() {
	regerrors.Assert(!r.released, regerrors.ErrHandleReleased, "%s", r.name())
}

func (r *RegHandle) name() string {
	if r.scratch {
		return "scratch " + r.c.hostName(r.host)
	}
	return r.g.String()
}

// Guest returns the bound guest register, or -1 for a scratch handle.
func (r *RegHandle) Guest() GuestReg {
	return r.g
}

func (r *RegHandle) IsScratch() bool {
	return r.scratch
}

func (r *RegHandle) Realize() {
	r.live()
	if !r.scratch {
		r.c.realize(r.g)
	}
}

func (r *RegHandle) IsRealized() bool {
	r.live()
	return r.scratch || r.c.constraints[r.g].realized != unrealized
}

func (r *RegHandle) Reg() HostReg {
	r.live()
	if r.scratch {
		return r.host
	}
	regerrors.Assert(r.c.constraints[r.g].realized != unrealized, regerrors.ErrUnrealizedAccess, "%s", r.g)
	h, _ := r.c.guests[r.g].host()
	return h
}

func (r *RegHandle) Location() Location {
	return HostLocation{Reg: r.Reg()}
}

func (r *RegHandle) Unlock() {
	regerrors.Assert(!r.released, regerrors.ErrDoubleUnlock, "%s", r.name())
	r.released = true
	if r.scratch {
		r.c.unlockHost(r.host)
		return
	}
	r.c.unlockGuest(r.g)
}

func (r *RegHandle) Release() {
	if !r.released {
		r.Unlock()
	}
}

func (r *RegHandle) Move() *RegHandle {
	r.live()
	r.released = true
	return &RegHandle{c: r.c, g: r.g, host: r.host, scratch: r.scratch}
}
