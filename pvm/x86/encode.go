package x86

import "encoding/binary"

const (
	X86_REX_W = 0x08
	X86_REX_R = 0x04
	X86_REX_X = 0x02
	X86_REX_B = 0x01
)

const (
	X86_OP_ADD_RM_R   = 0x01
	X86_OP_ADD_R_RM   = 0x03
	X86_OP_OR_RM_R    = 0x09
	X86_OP_OR_R_RM    = 0x0B
	X86_OP_AND_RM_R   = 0x21
	X86_OP_AND_R_RM   = 0x23
	X86_OP_SUB_RM_R   = 0x29
	X86_OP_SUB_R_RM   = 0x2B
	X86_OP_XOR_RM_R   = 0x31
	X86_OP_XOR_R_RM   = 0x33
	X86_OP_REX        = 0x40
	X86_OP_GROUP1_IMM = 0x81
	X86_OP_MOV_RM_R   = 0x89
	X86_OP_MOV_R_RM   = 0x8B
	X86_OP_MOV_R_IMM  = 0xB8
	X86_OP_MOV_RM_IMM = 0xC7
	X86_OP_RET        = 0xC3
)

// ALUOp selects one of the two-operand integer instructions.
type ALUOp int

const (
	ALUAdd ALUOp = iota
	ALUOr
	ALUAnd
	ALUSub
	ALUXor
)

var aluOpcodes = map[ALUOp]struct {
	rmR, rRM, digit byte
}{
	ALUAdd: {X86_OP_ADD_RM_R, X86_OP_ADD_R_RM, 0},
	ALUOr:  {X86_OP_OR_RM_R, X86_OP_OR_R_RM, 1},
	ALUAnd: {X86_OP_AND_RM_R, X86_OP_AND_R_RM, 4},
	ALUSub: {X86_OP_SUB_RM_R, X86_OP_SUB_R_RM, 5},
	ALUXor: {X86_OP_XOR_RM_R, X86_OP_XOR_R_RM, 6},
}

func (op ALUOp) String() string {
	return [...]string{"add", "or", "and", "sub", "xor"}[op]
}

// Apply computes the 64-bit result of op.
func (op ALUOp) Apply(a, b uint64) uint64 {
	switch op {
	case ALUAdd:
		return a + b
	case ALUOr:
		return a | b
	case ALUAnd:
		return a & b
	case ALUSub:
		return a - b
	default:
		return a ^ b
	}
}

func buildREX(w, r, x, b bool) byte {
	rex := byte(X86_OP_REX)
	if w {
		rex |= X86_REX_W
	}
	if r {
		rex |= X86_REX_R
	}
	if x {
		rex |= X86_REX_X
	}
	if b {
		rex |= X86_REX_B
	}
	return rex
}

func encodeU32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// memOperand encodes ModRM (+SIB) + disp32 for [base+disp] with reg in the
// ModRM reg field.
func memOperand(reg byte, base X86Reg, disp int32) []byte {
	modrm := byte(0x80 | (reg&7)<<3 | base.RegBits)
	out := []byte{modrm}
	if base.RegBits == 4 { // rsp/r12 need a SIB byte
		out = append(out, 0x24)
	}
	return append(out, encodeU32(uint32(disp))...)
}

// EncodeMovRegToMem encodes: mov qword [base+disp32], src
func EncodeMovRegToMem(src, base X86Reg, disp int32) []byte {
	code := []byte{buildREX(true, src.REXBit == 1, false, base.REXBit == 1), X86_OP_MOV_RM_R}
	return append(code, memOperand(src.RegBits, base, disp)...)
}

// EncodeMovMemToReg encodes: mov dst, qword [base+disp32]
func EncodeMovMemToReg(dst, base X86Reg, disp int32) []byte {
	code := []byte{buildREX(true, dst.REXBit == 1, false, base.REXBit == 1), X86_OP_MOV_R_RM}
	return append(code, memOperand(dst.RegBits, base, disp)...)
}

// EncodeMovImm encodes the shortest mov that leaves imm in dst: a
// zero-extending mov r32, imm32 when imm fits, movabs otherwise.
func EncodeMovImm(dst X86Reg, imm uint64) []byte {
	if imm <= 0xFFFFFFFF {
		var code []byte
		if dst.REXBit == 1 {
			code = append(code, buildREX(false, false, false, true))
		}
		code = append(code, X86_OP_MOV_R_IMM+dst.RegBits)
		return append(code, encodeU32(uint32(imm))...)
	}
	code := []byte{buildREX(true, false, false, dst.REXBit == 1), X86_OP_MOV_R_IMM + dst.RegBits}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, imm)
	return append(code, buf...)
}

// EncodeStoreImm32 encodes: mov dword [base+disp32], imm32
func EncodeStoreImm32(base X86Reg, disp int32, imm uint32) []byte {
	var code []byte
	if base.REXBit == 1 {
		code = append(code, buildREX(false, false, false, true))
	}
	code = append(code, X86_OP_MOV_RM_IMM)
	code = append(code, memOperand(0, base, disp)...)
	return append(code, encodeU32(imm)...)
}

// EncodeStoreImm64 writes a 64-bit constant as two 32-bit halves.
func EncodeStoreImm64(base X86Reg, disp int32, imm uint64) []byte {
	low, high := splitU64(imm)
	code := EncodeStoreImm32(base, disp, low)
	return append(code, EncodeStoreImm32(base, disp+4, high)...)
}

// Split a uint64 into its lower 32 bits and higher 32 bits
func splitU64(v uint64) (low uint32, high uint32) {
	return uint32(v), uint32(v >> 32)
}

// EncodeMovRegReg encodes: mov dst, src (64-bit)
func EncodeMovRegReg(dst, src X86Reg) []byte {
	return EncodeALURegReg(-1, dst, src)
}

// EncodeALURegReg encodes: <op> dst, src (64-bit). op -1 is mov.
func EncodeALURegReg(op ALUOp, dst, src X86Reg) []byte {
	opcode := byte(X86_OP_MOV_RM_R)
	if op >= 0 {
		opcode = aluOpcodes[op].rmR
	}
	modrm := byte(0xC0 | src.RegBits<<3 | dst.RegBits)
	return []byte{buildREX(true, src.REXBit == 1, false, dst.REXBit == 1), opcode, modrm}
}

// EncodeALURegMem encodes: <op> dst, qword [base+disp32]
func EncodeALURegMem(op ALUOp, dst, base X86Reg, disp int32) []byte {
	code := []byte{buildREX(true, dst.REXBit == 1, false, base.REXBit == 1), aluOpcodes[op].rRM}
	return append(code, memOperand(dst.RegBits, base, disp)...)
}

// EncodeALURegImm encodes: <op> dst, imm32 (sign-extended to 64 bits)
func EncodeALURegImm(op ALUOp, dst X86Reg, imm int32) []byte {
	modrm := byte(0xC0 | aluOpcodes[op].digit<<3 | dst.RegBits)
	code := []byte{buildREX(true, false, false, dst.REXBit == 1), X86_OP_GROUP1_IMM, modrm}
	return append(code, encodeU32(uint32(imm))...)
}

// FitsImm32 reports whether v survives a sign-extending imm32 encoding.
func FitsImm32(v uint64) bool {
	return uint64(int64(int32(v))) == v
}

func EncodeRet() []byte {
	return []byte{X86_OP_RET}
}
