package program

func regLow(b byte) int  { return min(12, int(b&0x0F)) }
func regHigh(b byte) int { return min(12, int(b>>4)) }

// immAt decodes the l byte sign-extended immediate at args[off:]. Missing
// trailing bytes read as zero.
func immAt(args []byte, off, l int) uint64 {
	if l <= 0 {
		return 0
	}
	buf := make([]byte, l)
	if off < len(args) {
		copy(buf, args[off:])
	}
	return XEncode(DecodeE_l(buf), uint32(l))
}

func offsetAt(args []byte, off, l int) int64 {
	if l <= 0 {
		return 0
	}
	buf := make([]byte, l)
	if off < len(args) {
		copy(buf, args[off:])
	}
	return ZEncode(DecodeE_l(buf), uint32(l))
}

// ExtractTwoImm decodes STORE_IMM_*: (address, value).
func ExtractTwoImm(args []byte) (vx uint64, vy uint64) {
	if len(args) < 1 {
		return 0, 0
	}
	lx := min(4, int(args[0])%8)
	ly := min(4, max(0, len(args)-lx-1))
	return immAt(args, 1, lx), immAt(args, 1+lx, max(ly, 1))
}

// ExtractOneOffset decodes JUMP.
func ExtractOneOffset(args []byte) int64 {
	return offsetAt(args, 0, max(1, min(4, len(args))))
}

// ExtractOneRegOneImm decodes JUMP_IND, LOAD_IMM, LOAD_* and STORE_*.
func ExtractOneRegOneImm(args []byte) (reg int, vx uint64) {
	if len(args) < 1 {
		return 0, 0
	}
	lx := max(1, min(4, len(args)-1))
	return regLow(args[0]), immAt(args, 1, lx)
}

// ExtractOneRegExtImm decodes LOAD_IMM_64, whose immediate is always 8 bytes.
func ExtractOneRegExtImm(args []byte) (reg int, vx uint64) {
	if len(args) < 1 {
		return 0, 0
	}
	return regLow(args[0]), immAt(args, 1, 8)
}

// ExtractOneReg2Imm decodes STORE_IMM_IND_*.
func ExtractOneReg2Imm(args []byte) (reg int, vx uint64, vy uint64) {
	if len(args) < 1 {
		return 0, 0, 0
	}
	lx := min(4, int(args[0]>>4)%8)
	ly := max(1, min(4, len(args)-lx-1))
	return regLow(args[0]), immAt(args, 1, lx), immAt(args, 1+lx, ly)
}

// ExtractOneRegOneImmOneOffset decodes LOAD_IMM_JUMP and BRANCH_*_IMM.
func ExtractOneRegOneImmOneOffset(args []byte) (reg int, vx uint64, vy int64) {
	if len(args) < 1 {
		return 0, 0, 0
	}
	lx := min(4, int(args[0]>>4)%8)
	ly := max(1, min(4, len(args)-lx-1))
	return regLow(args[0]), immAt(args, 1, lx), offsetAt(args, 1+lx, ly)
}

// ExtractTwoRegisters decodes MOVE_REG and friends: rD, rA.
func ExtractTwoRegisters(args []byte) (regD, regA int) {
	if len(args) < 1 {
		return 0, 0
	}
	return regLow(args[0]), regHigh(args[0])
}

// ExtractTwoRegsOneImm decodes rA, rB, imm.
func ExtractTwoRegsOneImm(args []byte) (regA, regB int, imm uint64) {
	if len(args) < 1 {
		return 0, 0, 0
	}
	return regLow(args[0]), regHigh(args[0]), immAt(args, 1, min(4, len(args)-1))
}

// ExtractTwoRegsOneOffset decodes BRANCH_{EQ,NE,...}.
func ExtractTwoRegsOneOffset(args []byte) (regA, regB int, vx int64) {
	if len(args) < 1 {
		return 0, 0, 0
	}
	return regLow(args[0]), regHigh(args[0]), offsetAt(args, 1, max(1, min(4, len(args)-1)))
}

// ExtractTwoRegsAndTwoImmediates decodes LOAD_IMM_JUMP_IND.
func ExtractTwoRegsAndTwoImmediates(args []byte) (regA, regB int, vx, vy uint64) {
	if len(args) < 2 {
		padded := make([]byte, 2)
		copy(padded, args)
		args = padded
	}
	lx := min(4, int(args[1])%8)
	ly := max(1, min(4, len(args)-lx-2))
	return regLow(args[0]), regHigh(args[0]), immAt(args, 2, lx), immAt(args, 2+lx, ly)
}

// ExtractThreeRegs decodes rA, rB and the destination rD.
func ExtractThreeRegs(args []byte) (regA, regB, regD int) {
	if len(args) < 2 {
		padded := make([]byte, 2)
		copy(padded, args)
		args = padded
	}
	return regLow(args[0]), regHigh(args[0]), min(12, int(args[1]))
}
