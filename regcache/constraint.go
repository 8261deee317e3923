package regcache

type realization uint8

const (
	unrealized realization = iota
	realizedBound
	realizedImmediate
	realizedMemory
)

func (r realization) String() string {
	return [...]string{"unrealized", "bound", "immediate", "memory"}[r]
}

// constraint accumulates the requests made against one guest register
// while it is locked. It resets when the lock count returns to zero.
//
// killImm and killMem narrow the location requirement: AnyLocation is
// neither, BoundOrMemory sets killImm, BoundOrImmediate sets killMem and
// Bound sets both.
type constraint struct {
	realized   realization
	read       bool
	write      bool
	killImm    bool
	killMem    bool
	revertable bool
}

func (c *constraint) isActive() bool {
	return *c != constraint{}
}

func (c *constraint) addUse(mode Mode) {
	c.read = c.read || mode.reads()
	c.write = c.write || mode.writes()
}

func (c *constraint) addUseNoImm(mode Mode) {
	c.addUse(mode)
	c.killImm = true
}

func (c *constraint) addBindOrImm(mode Mode) {
	c.addUse(mode)
	c.killMem = true
}

func (c *constraint) addBind(mode Mode) {
	c.addUse(mode)
	c.killImm = true
	c.killMem = true
}

func (c *constraint) addRevertableBind(mode Mode) {
	c.addBind(mode)
	c.revertable = true
}

func (c *constraint) requirement() string {
	switch {
	case c.killImm && c.killMem:
		return "bound"
	case c.killImm:
		return "bound-or-memory"
	case c.killMem:
		return "bound-or-immediate"
	}
	return "any"
}

// satisfies reports whether a realized constraint also covers req, a fresh
// request made after realization.
func (c *constraint) satisfies(req constraint) bool {
	if req.revertable && !c.revertable {
		return false
	}
	if (req.read && !c.read) || (req.write && !c.write) {
		return false
	}
	switch c.realized {
	case realizedBound:
		return true
	case realizedImmediate:
		return !req.killImm
	case realizedMemory:
		return !req.killMem
	}
	return false
}
