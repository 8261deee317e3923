package x86

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

var (
	ErrUnsupportedInstruction = errors.New("unsupported instruction")
	ErrMemoryFault            = errors.New("memory access outside context area")
)

// DefaultContextBase is where Machine places the context area.
const DefaultContextBase = 0x10000

// Machine is a minimal x86-64 register file plus one mapped memory window,
// enough to execute the moves and ALU operations the translator emits.
type Machine struct {
	Regs        [NumRegisters]uint64
	Context     []byte
	ContextBase uint64
	Steps       int
}

// NewMachine maps a zeroed context area of size bytes and points BaseReg at it.
func NewMachine(size int) *Machine {
	m := &Machine{
		Context:     make([]byte, size),
		ContextBase: DefaultContextBase,
	}
	m.Regs[BaseReg.Number()] = m.ContextBase
	return m
}

// Load64 and Store64 access the context area by offset.
func (m *Machine) Load64(offset int) uint64 {
	return binary.LittleEndian.Uint64(m.Context[offset:])
}

func (m *Machine) Store64(offset int, v uint64) {
	binary.LittleEndian.PutUint64(m.Context[offset:], v)
}

func regNumber(r x86asm.Reg) (n int, bits int, ok bool) {
	switch {
	case r >= x86asm.RAX && r <= x86asm.R15:
		return int(r - x86asm.RAX), 64, true
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return int(r - x86asm.EAX), 32, true
	}
	return 0, 0, false
}

func (m *Machine) address(mem x86asm.Mem, size int) (int, error) {
	addr := uint64(mem.Disp)
	if mem.Base != 0 {
		n, bits, ok := regNumber(mem.Base)
		if !ok || bits != 64 {
			return 0, fmt.Errorf("%w: base %v", ErrUnsupportedInstruction, mem.Base)
		}
		addr += m.Regs[n]
	}
	if mem.Index != 0 {
		n, _, ok := regNumber(mem.Index)
		if !ok {
			return 0, fmt.Errorf("%w: index %v", ErrUnsupportedInstruction, mem.Index)
		}
		addr += m.Regs[n] * uint64(mem.Scale)
	}
	if addr < m.ContextBase || addr+uint64(size) > m.ContextBase+uint64(len(m.Context)) {
		return 0, fmt.Errorf("%w: 0x%x", ErrMemoryFault, addr)
	}
	return int(addr - m.ContextBase), nil
}

func (m *Machine) read(arg x86asm.Arg, size int, signExtendImm bool) (uint64, error) {
	switch a := arg.(type) {
	case x86asm.Reg:
		n, _, ok := regNumber(a)
		if !ok {
			return 0, fmt.Errorf("%w: register %v", ErrUnsupportedInstruction, a)
		}
		return m.Regs[n], nil
	case x86asm.Mem:
		off, err := m.address(a, size)
		if err != nil {
			return 0, err
		}
		if size == 4 {
			return uint64(binary.LittleEndian.Uint32(m.Context[off:])), nil
		}
		return binary.LittleEndian.Uint64(m.Context[off:]), nil
	case x86asm.Imm:
		if signExtendImm {
			return uint64(int64(int32(a))), nil
		}
		return uint64(a), nil
	}
	return 0, fmt.Errorf("%w: operand %v", ErrUnsupportedInstruction, arg)
}

func (m *Machine) write(arg x86asm.Arg, size int, v uint64) error {
	switch a := arg.(type) {
	case x86asm.Reg:
		n, bits, ok := regNumber(a)
		if !ok {
			return fmt.Errorf("%w: register %v", ErrUnsupportedInstruction, a)
		}
		if bits == 32 {
			v = uint64(uint32(v))
		}
		m.Regs[n] = v
		return nil
	case x86asm.Mem:
		off, err := m.address(a, size)
		if err != nil {
			return err
		}
		if size == 4 {
			binary.LittleEndian.PutUint32(m.Context[off:], uint32(v))
		} else {
			binary.LittleEndian.PutUint64(m.Context[off:], v)
		}
		return nil
	}
	return fmt.Errorf("%w: destination %v", ErrUnsupportedInstruction, arg)
}

func operandSize(inst x86asm.Inst) int {
	if inst.MemBytes != 0 {
		return inst.MemBytes
	}
	if r, ok := inst.Args[0].(x86asm.Reg); ok {
		if _, bits, ok := regNumber(r); ok {
			return bits / 8
		}
	}
	return inst.DataSize / 8
}

var aluByOp = map[x86asm.Op]ALUOp{
	x86asm.ADD: ALUAdd,
	x86asm.OR:  ALUOr,
	x86asm.AND: ALUAnd,
	x86asm.SUB: ALUSub,
	x86asm.XOR: ALUXor,
}

// Emulate runs code until a ret or the end of the buffer.
func Emulate(code []byte, m *Machine) error {
	pc := 0
	for pc < len(code) {
		inst, err := x86asm.Decode(code[pc:], 64)
		if err != nil {
			return fmt.Errorf("offset 0x%x: %w", pc, err)
		}
		m.Steps++
		size := operandSize(inst)
		// only movabs carries a full 64-bit immediate
		signExtend := size == 8 && inst.Len != 10
		switch inst.Op {
		case x86asm.RET:
			return nil
		case x86asm.MOV:
			v, err := m.read(inst.Args[1], size, signExtend)
			if err != nil {
				return fmt.Errorf("offset 0x%x: %w", pc, err)
			}
			if err := m.write(inst.Args[0], size, v); err != nil {
				return fmt.Errorf("offset 0x%x: %w", pc, err)
			}
		default:
			op, ok := aluByOp[inst.Op]
			if !ok {
				return fmt.Errorf("offset 0x%x: %w: %v", pc, ErrUnsupportedInstruction, inst)
			}
			a, err := m.read(inst.Args[0], size, false)
			if err != nil {
				return fmt.Errorf("offset 0x%x: %w", pc, err)
			}
			b, err := m.read(inst.Args[1], size, signExtend)
			if err != nil {
				return fmt.Errorf("offset 0x%x: %w", pc, err)
			}
			if err := m.write(inst.Args[0], size, op.Apply(a, b)); err != nil {
				return fmt.Errorf("offset 0x%x: %w", pc, err)
			}
		}
		pc += inst.Len
	}
	return nil
}
