// Package x86 holds the x86-64 host register table and the handful of
// encoders the register cache backend and block translator need.
package x86

import (
	"fmt"
	"strings"
)

// X86Reg represents an x86-64 register with encoding information
type X86Reg struct {
	Name    string
	RegBits byte // 3-bit code for ModRM/SIB
	REXBit  byte // 1 if register index >= 8
}

// Number is the 4-bit hardware register number.
func (r X86Reg) Number() int {
	return int(r.REXBit)<<3 | int(r.RegBits)
}

func (r X86Reg) String() string {
	return r.Name
}

var (
	RAX = X86Reg{"rax", 0, 0}
	RCX = X86Reg{"rcx", 1, 0}
	RDX = X86Reg{"rdx", 2, 0}
	RBX = X86Reg{"rbx", 3, 0}
	RSP = X86Reg{"rsp", 4, 0}
	RBP = X86Reg{"rbp", 5, 0}
	RSI = X86Reg{"rsi", 6, 0}
	RDI = X86Reg{"rdi", 7, 0}
	R8  = X86Reg{"r8", 0, 1}
	R9  = X86Reg{"r9", 1, 1}
	R10 = X86Reg{"r10", 2, 1}
	R11 = X86Reg{"r11", 3, 1}
	R12 = X86Reg{"r12", 4, 1}
	R13 = X86Reg{"r13", 5, 1}
	R14 = X86Reg{"r14", 6, 1}
	R15 = X86Reg{"r15", 7, 1}
)

// NumRegisters is the size of the general purpose register file.
const NumRegisters = 16

// Registers is indexed by hardware number.
var Registers = [NumRegisters]X86Reg{
	RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI,
	R8, R9, R10, R11, R12, R13, R14, R15,
}

// BaseReg holds the address of the guest context area in generated code.
var BaseReg = R12

// regInfoList contains all allocatable registers in allocation order.
// rsp and rbp are never handed out; r12 is the context base.
var regInfoList = []X86Reg{
	RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R11, R13, R14, R15,
}

// DefaultAllocationOrder returns the hardware numbers of regInfoList.
func DefaultAllocationOrder() []int {
	order := make([]int, len(regInfoList))
	for i, r := range regInfoList {
		order[i] = r.Number()
	}
	return order
}

// Lookup resolves a register name such as "rax" or "R13".
func Lookup(name string) (X86Reg, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range Registers {
		if r.Name == name {
			return r, nil
		}
	}
	return X86Reg{}, fmt.Errorf("unknown x86-64 register %q", name)
}

// Reg returns the register with hardware number n.
func Reg(n int) X86Reg {
	return Registers[n&0xF]
}

// Name returns the name of hardware register n.
func Name(n int) string {
	if n < 0 || n >= NumRegisters {
		return fmt.Sprintf("r?%d", n)
	}
	return Registers[n].Name
}

// IsReserved reports whether the register may never be allocated.
func IsReserved(r X86Reg) bool {
	return r == RSP || r == RBP || r == BaseReg
}
