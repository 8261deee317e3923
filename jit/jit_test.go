package jit

import (
	"strings"
	"testing"

	"github.com/colorfulnotion/regcache/config"
	"github.com/colorfulnotion/regcache/pvm/program"
	"github.com/colorfulnotion/regcache/pvm/x86"
	"github.com/colorfulnotion/regcache/regcache"
	"github.com/colorfulnotion/regcache/regerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// interpret is the reference semantics of the translated subset.
func interpret(insts []program.Instruction, regs []uint64) []uint64 {
	out := append([]uint64(nil), regs...)
	for _, inst := range insts {
		if op, ok := threeRegOps[inst.Opcode]; ok {
			out[inst.DestRegs[0]] = op.Apply(out[inst.SourceRegs[0]], out[inst.SourceRegs[1]])
			continue
		}
		if op, ok := immOps[inst.Opcode]; ok {
			out[inst.DestRegs[0]] = op.Apply(out[inst.SourceRegs[0]], inst.Imm1)
			continue
		}
		switch inst.Opcode {
		case program.LOAD_IMM, program.LOAD_IMM_64:
			out[inst.DestRegs[0]] = inst.Imm1
		case program.MOVE_REG:
			out[inst.DestRegs[0]] = out[inst.SourceRegs[0]]
		}
	}
	return out
}

func initialRegs() []uint64 {
	regs := make([]uint64, program.NumRegisters)
	for i := range regs {
		regs[i] = uint64(i)*0x0101010101 + 0x1000
	}
	regs[6] = 0xffffffff00000000
	return regs
}

type translatorCase struct {
	name    string
	new     func(t *testing.T) *Translator
	preload bool
}

func tinyTranslator(t *testing.T) *Translator {
	p, err := config.ReadProfile(config.DefaultProfile)
	require.NoError(t, err)
	require.NoError(t, p.SetAllocationOrder([]string{"rax", "rcx", "rdx"}))
	tr, err := NewTranslator(p)
	require.NoError(t, err)
	return tr
}

func profileTranslator(id string) func(t *testing.T) *Translator {
	return func(t *testing.T) *Translator {
		p, err := config.ReadProfile(id)
		require.NoError(t, err)
		tr, err := NewTranslator(p)
		require.NoError(t, err)
		return tr
	}
}

var translatorCases = []translatorCase{
	{"x86-64", profileTranslator("x86-64"), false},
	{"x86-64-small", profileTranslator("x86-64-small"), false},
	{"x86-64-small preload", profileTranslator("x86-64-small"), true},
	{"three registers", tinyTranslator, false},
	{"three registers preload", tinyTranslator, true},
}

func sampleProgram() *program.Program {
	return program.NewBuilder().
		LoadImm(0, 5).
		LoadImm64(1, 0x1122334455667788).
		MoveReg(2, 3).
		ThreeReg(program.ADD_64, 4, 2, 0).
		ThreeReg(program.SUB_64, 5, 6, 5).
		ThreeReg(program.XOR, 7, 7, 8).
		ThreeReg(program.OR, 9, 1, 9).
		TwoRegImm(program.ADD_IMM_64, 10, 11, ^uint64(2)).
		TwoRegImm(program.AND_IMM, 12, 12, 0xff).
		TwoRegImm(program.XOR_IMM, 3, 0, 7).
		ThreeReg(program.AND, 6, 6, 6).
		ThreeReg(program.SUB_64, 8, 1, 0).
		TwoRegImm(program.OR_IMM, 11, 4, 0x40).
		Trap().
		Build()
}

func TestTranslateSample(t *testing.T) {
	p := sampleProgram()
	insts, err := p.Instructions()
	require.NoError(t, err)
	want := interpret(insts, initialRegs())

	for _, tc := range translatorCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := tc.new(t)
			tr.SetPreload(tc.preload)
			blocks, err := tr.Translate(p)
			require.NoError(t, err)
			require.Len(t, blocks, 1)
			blk := blocks[0]
			assert.True(t, blk.Complete())
			assert.Equal(t, len(insts), blk.Instructions)

			got, err := Execute(blk, initialRegs())
			require.NoError(t, err, blk.Disassemble())
			assert.Equal(t, want, got, blk.Disassemble())
		})
	}
}

func TestConstantsFoldAway(t *testing.T) {
	p := program.NewBuilder().
		LoadImm(0, 7).
		LoadImm(1, 9).
		ThreeReg(program.ADD_64, 2, 0, 1).
		TwoRegImm(program.XOR_IMM, 3, 2, 1).
		MoveReg(4, 3).
		Fallthrough().
		Build()
	tr := profileTranslator("x86-64")(t)
	blocks, err := tr.Translate(p)
	require.NoError(t, err)
	blk := blocks[0]
	assert.Equal(t, 0, blk.Stats.Loads)
	assert.Equal(t, 5, blk.Stats.Stores)
	assert.Equal(t, 0, blk.Stats.Binds)

	n, err := x86.CountInstructions(blk.Code)
	require.NoError(t, err)
	// two dword stores per constant, then ret
	assert.Equal(t, 11, n)
	assert.NotContains(t, blk.Disassemble(), "add")

	got, err := Execute(blk, make([]uint64, program.NumRegisters))
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 9, 16, 17, 17}, got[:5])
}

func TestRegisterPressure(t *testing.T) {
	b := program.NewBuilder()
	for i := 0; i < 12; i++ {
		b.ThreeReg(program.ADD_64, i, i+1, i)
	}
	for i := 12; i > 0; i-- {
		b.ThreeReg(program.XOR, i, i-1, i)
	}
	p := b.Trap().Build()
	insts, err := p.Instructions()
	require.NoError(t, err)

	tr := tinyTranslator(t)
	blocks, err := tr.Translate(p)
	require.NoError(t, err)
	blk := blocks[0]
	assert.Greater(t, blk.Stats.Evictions, 0)

	got, err := Execute(blk, initialRegs())
	require.NoError(t, err)
	assert.Equal(t, interpret(insts, initialRegs()), got)
}

func TestUnsupportedInstructionsAreModeled(t *testing.T) {
	b := program.NewBuilder()
	b.ThreeReg(program.ADD_64, 0, 1, 2)
	b.ThreeReg(program.MUL_64, 3, 0, 1)
	start := b.PC()
	b.BranchEq(3, 4, start)
	b.LoadImm(5, 1)
	b.Trap()
	p := b.Build()

	tr := profileTranslator("x86-64")(t)
	blocks, err := tr.Translate(p)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, 2, blocks[0].Modeled)
	assert.False(t, blocks[0].Complete())
	assert.Equal(t, uint32(0), blocks[0].PC)
	assert.Equal(t, start+6, blocks[1].PC)
	assert.True(t, blocks[1].Complete())
	assert.True(t, strings.HasSuffix(strings.TrimSpace(blocks[0].Disassemble()), "ret"))
}

func TestEmptyBlock(t *testing.T) {
	tr := profileTranslator("x86-64")(t)
	_, err := tr.TranslateBlock(nil)
	assert.Error(t, err)
}

func TestTranslatorReusableAfterAssertion(t *testing.T) {
	prof, err := config.ReadProfile(config.DefaultProfile)
	require.NoError(t, err)
	require.NoError(t, prof.SetAllocationOrder([]string{"rax"}))
	tr, err := NewTranslator(prof)
	require.NoError(t, err)

	// a store of two immediates needs both in registers at once
	bad, err := program.NewBuilder().
		LoadImm(1, 7).
		LoadImm(2, 9).
		TwoRegImm(program.STORE_IND_U64, 1, 2, 0).
		Trap().
		Build().Instructions()
	require.NoError(t, err)
	_, err = tr.TranslateBlock(bad)
	require.ErrorIs(t, err, regerrors.ErrOutOfHostRegisters)
	assert.True(t, tr.Cache().IsAllUnlocked())

	good, err := program.NewBuilder().
		TwoRegImm(program.ADD_IMM_64, 0, 0, 1).
		Trap().
		Build().Instructions()
	require.NoError(t, err)
	blk, err := tr.TranslateBlock(good)
	require.NoError(t, err)
	got, err := Execute(blk, initialRegs())
	require.NoError(t, err)
	assert.Equal(t, interpret(good, initialRegs()), got)
}

func TestLookahead(t *testing.T) {
	p := program.NewBuilder().
		ThreeReg(program.ADD_64, 0, 1, 2).
		MoveReg(3, 1).
		LoadImm(1, 4).
		ThreeReg(program.OR, 2, 2, 2).
		Trap().
		Build()
	insts, err := p.Instructions()
	require.NoError(t, err)

	la := NewProgramLookahead(insts)
	assert.Equal(t, 2, la.References(1, 8))
	assert.Equal(t, 1, la.References(1, 1))
	assert.Equal(t, 1, la.References(2, 8))
	assert.Equal(t, 0, la.References(0, 8))
	la.Advance()
	assert.Equal(t, 1, la.Pos())
	assert.Equal(t, 1, la.References(1, 8))
	la.Seek(3)
	assert.Equal(t, 0, la.References(2, 8))
}

func TestBackendMoves(t *testing.T) {
	be := NewX86Backend()
	be.StoreRegister(1, regcache.HostLocation{Reg: 3}, regcache.MemoryLocation{Offset: 8})
	be.LoadRegister(2, regcache.MemoryLocation{Offset: 16}, 13)
	be.LoadRegister(3, regcache.ImmediateLocation{Value: 1 << 40}, 0)
	be.StoreRegister(4, regcache.ImmediateLocation{Value: 0xdeadbeefcafe}, regcache.MemoryLocation{Offset: 32})
	n, err := x86.CountInstructions(be.Code())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	m := x86.NewMachine(64)
	m.Regs[x86.RBX.Number()] = 42
	m.Store64(16, 99)
	require.NoError(t, x86.Emulate(be.Code(), m))
	assert.Equal(t, uint64(42), m.Load64(8))
	assert.Equal(t, uint64(99), m.Regs[x86.R13.Number()])
	assert.Equal(t, uint64(1<<40), m.Regs[x86.RAX.Number()])
	assert.Equal(t, uint64(0xdeadbeefcafe), m.Load64(32))

	be.Reset()
	assert.Equal(t, 0, be.Len())
}

func randomProgram(r *rand.Rand, n int) *program.Program {
	b := program.NewBuilder()
	reg := func() int { return r.Intn(program.NumRegisters) }
	imm32 := func() uint64 {
		if r.Intn(3) == 0 {
			return uint64(r.Intn(16))
		}
		return uint64(int64(int32(r.Uint32())))
	}
	three := []byte{program.ADD_64, program.SUB_64, program.AND, program.XOR, program.OR}
	withImm := []byte{program.ADD_IMM_64, program.AND_IMM, program.XOR_IMM, program.OR_IMM}
	for i := 0; i < n; i++ {
		switch r.Intn(8) {
		case 0:
			b.LoadImm(reg(), imm32())
		case 1:
			b.LoadImm64(reg(), r.Uint64())
		case 2:
			b.MoveReg(reg(), reg())
		case 3, 4, 5:
			b.ThreeReg(three[r.Intn(len(three))], reg(), reg(), reg())
		default:
			b.TwoRegImm(withImm[r.Intn(len(withImm))], reg(), reg(), imm32())
		}
	}
	return b.Trap().Build()
}

func TestRandomProgramsMatchReference(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 40; i++ {
		p := randomProgram(r, 5+r.Intn(40))
		insts, err := p.Instructions()
		require.NoError(t, err)
		want := interpret(insts, initialRegs())
		for _, tc := range translatorCases {
			tr := tc.new(t)
			tr.SetPreload(tc.preload)
			blocks, err := tr.Translate(p)
			require.NoError(t, err, "%s program %d", tc.name, i)
			require.Len(t, blocks, 1)
			got, err := Execute(blocks[0], initialRegs())
			require.NoError(t, err)
			require.Equal(t, want, got, "%s program %d\n%s", tc.name, i, blocks[0].Disassemble())
		}
	}
}
