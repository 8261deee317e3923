package regcache

// guestSlot is the cached state of one guest register.
//
//	loc == nil                    discarded
//	loc is MemoryLocation         default (value only in home memory)
//	loc is HostLocation           bound
//	loc is ImmediateLocation      known constant
//
// inDefault reports that home memory holds the current value. A bound or
// immediate slot with inDefault set is clean; without it, dirty.
type guestSlot struct {
	home       MemoryLocation
	loc        Location
	inDefault  bool
	revertable bool
	locks      int
}

func (s *guestSlot) isDiscarded() bool { return s.loc == nil }

func (s *guestSlot) isBound() bool {
	_, ok := s.loc.(HostLocation)
	return ok
}

func (s *guestSlot) isImm() bool {
	_, ok := s.loc.(ImmediateLocation)
	return ok
}

func (s *guestSlot) isAway() bool {
	return s.isBound() || s.isImm()
}

func (s *guestSlot) isDirty() bool {
	return s.isAway() && !s.inDefault
}

func (s *guestSlot) host() (HostReg, bool) {
	h, ok := s.loc.(HostLocation)
	return h.Reg, ok
}

func (s *guestSlot) setDefault() {
	s.loc = s.home
	s.inDefault = true
}

func (s *guestSlot) setBound(h HostReg) {
	s.loc = HostLocation{Reg: h}
}

func (s *guestSlot) setImm(v uint64, dirty bool) {
	s.loc = ImmediateLocation{Value: v}
	s.inDefault = !dirty
}

func (s *guestSlot) setDiscarded() {
	s.loc = nil
	s.inDefault = false
	s.revertable = false
}

// state names the slot for logs and snapshots.
func (s *guestSlot) state() string {
	switch s.loc.(type) {
	case nil:
		return "discarded"
	case HostLocation:
		return "bound"
	case ImmediateLocation:
		return "immediate"
	}
	return "default"
}

// hostSlot is the state of one host register. A scratch register is free
// but locked.
type hostSlot struct {
	guest GuestReg
	free  bool
	locks int
}

func (h *hostSlot) bind(g GuestReg) {
	h.guest = g
	h.free = false
}

func (h *hostSlot) unbind() {
	h.guest = -1
	h.free = true
}
