package program

// Builder assembles a Program one instruction at a time. It is used by tests
// and by the console to produce small programs without an external toolchain.
type Builder struct {
	code []byte
	k    []byte
	j    []uint32
}

func NewBuilder() *Builder {
	return &Builder{}
}

// PC is the offset the next instruction will be placed at.
func (b *Builder) PC() uint32 {
	return uint32(len(b.code))
}

// Emit appends a raw instruction.
func (b *Builder) Emit(opcode byte, args ...byte) *Builder {
	b.code = append(b.code, opcode)
	b.k = append(b.k, 1)
	b.code = append(b.code, args...)
	for range args {
		b.k = append(b.k, 0)
	}
	return b
}

func immBytes(v uint64) []byte {
	// shortest little-endian encoding that sign-extends back to v
	for l := uint32(0); l <= 4; l++ {
		if XEncode(DecodeE_l(E_l(v, l)), l) == v {
			return E_l(v, l)
		}
	}
	return E_l(v, 4)
}

func (b *Builder) Trap() *Builder        { return b.Emit(TRAP) }
func (b *Builder) Fallthrough() *Builder { return b.Emit(FALLTHROUGH) }

// LoadImm sets rd to the sign-extended 32-bit value imm.
func (b *Builder) LoadImm(rd int, imm uint64) *Builder {
	return b.Emit(LOAD_IMM, append([]byte{byte(rd)}, immBytes(imm)...)...)
}

func (b *Builder) LoadImm64(rd int, imm uint64) *Builder {
	return b.Emit(LOAD_IMM_64, append([]byte{byte(rd)}, E_l(imm, 8)...)...)
}

func (b *Builder) MoveReg(rd, ra int) *Builder {
	return b.Emit(MOVE_REG, byte(rd)|byte(ra)<<4)
}

// ThreeReg emits rd = ra <op> rb.
func (b *Builder) ThreeReg(opcode byte, rd, ra, rb int) *Builder {
	return b.Emit(opcode, byte(ra)|byte(rb)<<4, byte(rd))
}

// TwoRegImm emits ra = rb <op> imm.
func (b *Builder) TwoRegImm(opcode byte, ra, rb int, imm uint64) *Builder {
	return b.Emit(opcode, append([]byte{byte(ra) | byte(rb)<<4}, immBytes(imm)...)...)
}

// BranchEq emits a conditional jump to target when ra == rb.
func (b *Builder) BranchEq(ra, rb int, target uint32) *Builder {
	off := uint64(int64(target) - int64(b.PC()))
	return b.Emit(BRANCH_EQ, append([]byte{byte(ra) | byte(rb)<<4}, E_l(off, 4)...)...)
}

func (b *Builder) Jump(target uint32) *Builder {
	off := uint64(int64(target) - int64(b.PC()))
	return b.Emit(JUMP, E_l(off, 4)...)
}

// JumpTable appends an entry to the program's jump table.
func (b *Builder) JumpTable(target uint32) *Builder {
	b.j = append(b.j, target)
	return b
}

func (b *Builder) Build() *Program {
	code := append([]byte(nil), b.code...)
	k := append([]byte(nil), b.k...)
	z := uint8(1)
	for _, t := range b.j {
		for t >= 1<<(8*uint(z)) && z < 4 {
			z++
		}
	}
	return &Program{
		JSize: uint64(len(b.j)),
		Z:     z,
		CSize: uint64(len(code)),
		J:     append([]uint32(nil), b.j...),
		Code:  code,
		K:     k,
	}
}
