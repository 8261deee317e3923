// Package regcache is the register allocation cache of the block translator.
//
// A Cache tracks, for one compilation unit at a time, which host register
// holds which guest register, whether that copy is newer than the guest's
// home memory, and which values are compile time constants. The translator
// asks for access through handles (OpArg for reads/writes that may stay in
// memory or as an immediate, RegHandle when a host register is required),
// realizes them together, emits code against the locations they report and
// releases them. The cache never emits code itself; it asks its Backend to
// store or load a value whenever a binding changes.
//
// Every invariant violation panics with a *regerrors.AssertionError.
package regcache

import "fmt"

// GuestReg indexes the guest register file.
type GuestReg int

func (g GuestReg) String() string {
	return fmt.Sprintf("r%d", int(g))
}

// HostReg is a host register number as understood by the backend.
type HostReg int

// Mode is the access intent of a request.
type Mode uint8

const (
	Read Mode = 1 << iota
	Write
	ReadWrite = Read | Write
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadWrite:
		return "readwrite"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func (m Mode) reads() bool  { return m&Read != 0 }
func (m Mode) writes() bool { return m&Write != 0 }

// Location is where a guest value currently lives. It is one of
// MemoryLocation, HostLocation or ImmediateLocation.
type Location interface {
	isLocation()
	String() string
}

// MemoryLocation is an offset into the guest context area.
type MemoryLocation struct {
	Offset int32
}

// HostLocation is a host register.
type HostLocation struct {
	Reg HostReg
}

// ImmediateLocation is a value known at compile time.
type ImmediateLocation struct {
	Value uint64
}

func (MemoryLocation) isLocation()    {}
func (HostLocation) isLocation()      {}
func (ImmediateLocation) isLocation() {}

func (l MemoryLocation) String() string    { return fmt.Sprintf("[ctx+%#x]", l.Offset) }
func (l HostLocation) String() string      { return fmt.Sprintf("h%d", int(l.Reg)) }
func (l ImmediateLocation) String() string { return fmt.Sprintf("$%#x", l.Value) }

// Backend moves values on behalf of the cache.
type Backend interface {
	// StoreRegister writes the value of guest, currently held in src (a
	// HostLocation or ImmediateLocation), to its home location dst.
	StoreRegister(guest GuestReg, src Location, dst MemoryLocation)
	// LoadRegister places the value of guest, held in src (a MemoryLocation
	// or ImmediateLocation), into host register dst.
	LoadRegister(guest GuestReg, src Location, dst HostReg)
}

// Lookahead answers how often a guest register is referenced in the next
// window instructions. The cache only consults it to rank eviction victims.
type Lookahead interface {
	References(guest GuestReg, window int) int
}

// LookaheadFunc adapts a function to Lookahead.
type LookaheadFunc func(guest GuestReg, window int) int

func (f LookaheadFunc) References(guest GuestReg, window int) int {
	return f(guest, window)
}
