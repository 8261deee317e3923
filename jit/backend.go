package jit

import (
	"github.com/colorfulnotion/regcache/log"
	"github.com/colorfulnotion/regcache/pvm/x86"
	"github.com/colorfulnotion/regcache/regcache"
)

// X86Backend carries out the register cache's moves by appending spill and
// fill instructions to a code buffer. Guest homes are displacements from
// x86.BaseReg.
type X86Backend struct {
	code []byte
}

func NewX86Backend() *X86Backend {
	return &X86Backend{}
}

func hostReg(h regcache.HostReg) x86.X86Reg {
	return x86.Reg(int(h))
}

func (b *X86Backend) StoreRegister(g regcache.GuestReg, src regcache.Location, dst regcache.MemoryLocation) {
	switch s := src.(type) {
	case regcache.HostLocation:
		b.Emit(x86.EncodeMovRegToMem(hostReg(s.Reg), x86.BaseReg, dst.Offset))
	case regcache.ImmediateLocation:
		b.Emit(x86.EncodeStoreImm64(x86.BaseReg, dst.Offset, s.Value))
	default:
		log.Warn(log.JitMonitoring, "store from unexpected location", "guest", g, "src", src)
		return
	}
	log.Trace(log.JitMonitoring, "spill", "guest", g, "src", src, "dst", dst)
}

func (b *X86Backend) LoadRegister(g regcache.GuestReg, src regcache.Location, dst regcache.HostReg) {
	switch s := src.(type) {
	case regcache.MemoryLocation:
		b.Emit(x86.EncodeMovMemToReg(hostReg(dst), x86.BaseReg, s.Offset))
	case regcache.ImmediateLocation:
		b.Emit(x86.EncodeMovImm(hostReg(dst), s.Value))
	default:
		log.Warn(log.JitMonitoring, "load from unexpected location", "guest", g, "src", src)
		return
	}
	log.Trace(log.JitMonitoring, "fill", "guest", g, "src", src, "dst", x86.Name(int(dst)))
}

func (b *X86Backend) Emit(code []byte) {
	b.code = append(b.code, code...)
}

// Code returns the bytes emitted since the last Reset.
func (b *X86Backend) Code() []byte {
	return b.code
}

func (b *X86Backend) Len() int {
	return len(b.code)
}

func (b *X86Backend) Reset() {
	b.code = nil
}
