package x86

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTable(t *testing.T) {
	for n, r := range Registers {
		assert.Equal(t, n, r.Number(), r.Name)
	}
	order := DefaultAllocationOrder()
	assert.Len(t, order, 13)
	for _, n := range order {
		assert.False(t, IsReserved(Reg(n)), Name(n))
	}
	r, err := Lookup(" R13 ")
	require.NoError(t, err)
	assert.Equal(t, R13, r)
	_, err = Lookup("xmm0")
	assert.Error(t, err)
}

func TestSpillFillEncodings(t *testing.T) {
	// mov [r12+0x8], rax
	assert.Equal(t, []byte{0x49, 0x89, 0x84, 0x24, 0x08, 0, 0, 0}, EncodeMovRegToMem(RAX, R12, 8))
	// mov r13, [r12+0x10]
	assert.Equal(t, []byte{0x4d, 0x8b, 0xac, 0x24, 0x10, 0, 0, 0}, EncodeMovMemToReg(R13, R12, 16))
	// mov ecx, 5
	assert.Equal(t, []byte{0xb9, 5, 0, 0, 0}, EncodeMovImm(RCX, 5))
	// movabs r9, imm64
	assert.Len(t, EncodeMovImm(R9, 1<<40), 10)
	assert.Equal(t, byte(0x49), EncodeMovImm(R9, 1<<40)[0])
}

func TestDisassemble(t *testing.T) {
	var code []byte
	code = append(code, EncodeMovRegToMem(RBX, R12, 24)...)
	code = append(code, EncodeMovMemToReg(R15, R12, 0)...)
	code = append(code, EncodeStoreImm64(R12, 32, 0xdeadbeefcafef00d)...)
	code = append(code, EncodeALURegReg(ALUAdd, RAX, R8)...)
	code = append(code, EncodeALURegMem(ALUXor, RSI, R12, 8)...)
	code = append(code, EncodeALURegImm(ALUSub, R11, -3)...)
	code = append(code, EncodeRet()...)

	n, err := CountInstructions(code)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	out := Disassemble(code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "0x0000: "))
	assert.Contains(t, lines[0], "mov")
	assert.Contains(t, lines[0], "r12")
	assert.Contains(t, lines[7], "ret")
	assert.NotContains(t, out, "db 0x")
}

func TestEmulateMovesAndALU(t *testing.T) {
	m := NewMachine(128)
	m.Store64(0, 40)
	m.Store64(8, 2)

	var code []byte
	code = append(code, EncodeMovMemToReg(RAX, R12, 0)...)
	code = append(code, EncodeALURegMem(ALUAdd, RAX, R12, 8)...)
	code = append(code, EncodeMovRegToMem(RAX, R12, 16)...)
	code = append(code, EncodeMovImm(R10, 0xffff_0000_0000_0001)...)
	code = append(code, EncodeMovRegReg(RDX, R10)...)
	code = append(code, EncodeALURegImm(ALUAnd, RDX, -2)...)
	code = append(code, EncodeMovRegToMem(RDX, R12, 24)...)
	code = append(code, EncodeStoreImm64(R12, 32, 0x0123456789abcdef)...)
	code = append(code, EncodeMovImm(RCX, 7)...)
	code = append(code, EncodeALURegReg(ALUSub, RCX, RAX)...)
	code = append(code, EncodeMovRegToMem(RCX, R12, 40)...)
	code = append(code, EncodeRet()...)
	// never reached
	code = append(code, EncodeMovRegToMem(RAX, R12, 48)...)

	require.NoError(t, Emulate(code, m))
	assert.Equal(t, uint64(42), m.Load64(16))
	assert.Equal(t, uint64(0xffff_0000_0000_0000), m.Load64(24))
	assert.Equal(t, uint64(0x0123456789abcdef), m.Load64(32))
	assert.Equal(t, uint64(0xffff_ffff_ffff_ffdd), m.Load64(40)) // 7-42 wrapped
	assert.Equal(t, uint64(0), m.Load64(48))
}

func TestEmulateFaults(t *testing.T) {
	m := NewMachine(16)
	err := Emulate(EncodeMovRegToMem(RAX, R12, 64), m)
	assert.ErrorIs(t, err, ErrMemoryFault)

	// push rax
	err = Emulate([]byte{0x50}, m)
	assert.ErrorIs(t, err, ErrUnsupportedInstruction)
}

func TestALUApply(t *testing.T) {
	assert.Equal(t, uint64(5), ALUAdd.Apply(2, 3))
	assert.Equal(t, ^uint64(0), ALUSub.Apply(2, 3))
	assert.Equal(t, uint64(2), ALUAnd.Apply(6, 3))
	assert.Equal(t, uint64(7), ALUOr.Apply(6, 3))
	assert.Equal(t, uint64(5), ALUXor.Apply(6, 3))
	assert.True(t, FitsImm32(^uint64(0)))
	assert.False(t, FitsImm32(1<<31))
}
