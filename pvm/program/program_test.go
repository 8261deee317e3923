package program

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/regcache/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaturalCodec(t *testing.T) {
	for _, x := range []uint64{0, 1, 127, 128, 1 << 14, 1<<21 - 1, 1 << 40, 1<<63 + 5} {
		enc := E(x)
		got, n := DecodeE(enc)
		assert.Equal(t, x, got, "value %d", x)
		assert.Equal(t, uint32(len(enc)), n, "length for %d", x)
	}
	_, n := DecodeE([]byte{0xc0})
	assert.Equal(t, uint32(0), n, "truncated input")
}

func TestSignExtension(t *testing.T) {
	assert.Equal(t, uint64(0xffffffffffffff80), XEncode(0x80, 1))
	assert.Equal(t, uint64(0x7f), XEncode(0x7f, 1))
	assert.Equal(t, int64(-2), ZEncode(0xfffe, 2))
}

func sampleProgram() *Program {
	b := NewBuilder()
	b.LoadImm(1, 5).
		LoadImm64(2, 0x1122334455667788).
		ThreeReg(ADD_64, 3, 1, 2).
		TwoRegImm(ADD_IMM_64, 4, 3, 0xffffffffffffffff).
		Fallthrough()
	b.MoveReg(5, 4).
		BranchEq(5, 1, 0).
		Trap()
	return b.Build()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := sampleProgram()
	back, err := DecodeCorePart(p.Encode())
	require.NoError(t, err)
	assert.Equal(t, p.Code, back.Code)
	assert.Equal(t, p.K, back.K)
	assert.Equal(t, p.CSize, back.CSize)

	_, err = DecodeCorePart(p.Encode()[:5])
	assert.ErrorIs(t, err, ErrMalformedProgram)
}

func TestInstructionRoles(t *testing.T) {
	insts, err := sampleProgram().Instructions()
	require.NoError(t, err)
	require.Len(t, insts, 8)

	assert.Equal(t, byte(LOAD_IMM), insts[0].Opcode)
	assert.Equal(t, []int{1}, insts[0].DestRegs)
	assert.Equal(t, uint64(5), insts[0].Imm1)

	assert.Equal(t, uint64(0x1122334455667788), insts[1].Imm1)

	assert.Equal(t, []int{1, 2}, insts[2].SourceRegs)
	assert.Equal(t, []int{3}, insts[2].DestRegs)
	assert.True(t, insts[2].References(2))
	assert.False(t, insts[2].References(4))

	assert.Equal(t, []int{4}, insts[3].DestRegs)
	assert.Equal(t, []int{3}, insts[3].SourceRegs)
	assert.Equal(t, uint64(0xffffffffffffffff), insts[3].Imm1)

	assert.Equal(t, []int{5}, insts[5].DestRegs)
	assert.Equal(t, []int{4}, insts[5].SourceRegs)

	assert.Equal(t, []int{5, 1}, insts[6].SourceRegs)
	assert.Equal(t, -int64(insts[6].PC), insts[6].Offset)
	assert.Contains(t, insts[6].String(), "BRANCH_EQ")
}

func TestBasicBlocksAndAnalyze(t *testing.T) {
	p := sampleProgram()
	blocks, err := p.BasicBlocks()
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Len(t, blocks[0], 5)
	assert.Len(t, blocks[1], 2)
	assert.Len(t, blocks[2], 1)

	stats, err := p.Analyze()
	require.NoError(t, err)
	assert.Equal(t, 8, stats.InstructionCount)
	assert.Equal(t, 3, stats.BasicBlockCount)
	assert.Equal(t, 5, stats.MaxBlockLength)
	assert.Equal(t, 1, stats.RegisterWrites[5])
	assert.Equal(t, 2, stats.RegisterReads[1])
	assert.Equal(t, 8, p.CountInstructions())
}

func TestSkip(t *testing.T) {
	k := []byte{1, 0, 0, 1, 1}
	assert.Equal(t, uint64(2), Skip(k, 0))
	assert.Equal(t, uint64(0), Skip(k, 3))
	assert.Equal(t, uint64(0), Skip(k, 4))
	long := make([]byte, 40)
	long[0] = 1
	assert.Equal(t, uint64(MaxSkip), Skip(long, 0))
}

func TestReadBlob(t *testing.T) {
	blob := sampleProgram().Encode()
	dir := t.TempDir()

	zst, err := CompressZstd(blob)
	require.NoError(t, err)
	xzData, err := CompressXz(blob)
	require.NoError(t, err)

	files := map[string][]byte{
		"prog.bin": blob,
		"prog.zst": zst,
		"prog.xz":  xzData,
		"prog.hex": []byte(common.Bytes2Hex(blob) + "\n"),
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		got, err := ReadBlob(path)
		require.NoError(t, err, name)
		assert.Equal(t, blob, got, name)
	}

	p, err := Load(filepath.Join(dir, "prog.zst"))
	require.NoError(t, err)
	assert.Equal(t, 8, p.CountInstructions())
}
