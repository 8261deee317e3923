// Package jit translates PVM basic blocks into x86-64 code on top of the
// register cache.
package jit

import (
	"fmt"

	"github.com/colorfulnotion/regcache/config"
	"github.com/colorfulnotion/regcache/log"
	"github.com/colorfulnotion/regcache/pvm/program"
	"github.com/colorfulnotion/regcache/pvm/x86"
	"github.com/colorfulnotion/regcache/regcache"
	"github.com/colorfulnotion/regcache/regerrors"
)

var threeRegOps = map[byte]x86.ALUOp{
	program.ADD_64: x86.ALUAdd,
	program.SUB_64: x86.ALUSub,
	program.AND:    x86.ALUAnd,
	program.XOR:    x86.ALUXor,
	program.OR:     x86.ALUOr,
}

var immOps = map[byte]x86.ALUOp{
	program.ADD_IMM_64: x86.ALUAdd,
	program.AND_IMM:    x86.ALUAnd,
	program.XOR_IMM:    x86.ALUXor,
	program.OR_IMM:     x86.ALUOr,
}

func commutative(op x86.ALUOp) bool {
	return op != x86.ALUSub
}

// Block is the translation of one basic block. Code leaves every guest
// register in its home slot and ends with ret.
type Block struct {
	PC           uint32
	Code         []byte
	Stats        regcache.Stats
	Instructions int
	// Modeled counts instructions whose register traffic was modeled but
	// for which no code was emitted.
	Modeled int
}

func (b *Block) Disassemble() string {
	return x86.Disassemble(b.Code)
}

// Complete reports whether every instruction of the block produced code.
func (b *Block) Complete() bool {
	return b.Modeled == 0
}

type Translator struct {
	cache   *regcache.Cache
	backend *X86Backend
	homes   []regcache.MemoryLocation
	preload bool
}

// NewTranslator builds a translator for a host profile.
func NewTranslator(p *config.Profile) (*Translator, error) {
	cfg, err := p.CacheConfig()
	if err != nil {
		return nil, err
	}
	return NewTranslatorWithConfig(cfg, p.Homes())
}

func NewTranslatorWithConfig(cfg regcache.Config, homes []regcache.MemoryLocation) (*Translator, error) {
	backend := NewX86Backend()
	cache, err := regcache.New(cfg, backend)
	if err != nil {
		return nil, err
	}
	return &Translator{cache: cache, backend: backend, homes: homes}, nil
}

// SetPreload makes each block start by loading the registers it reads
// before writing.
func (t *Translator) SetPreload(on bool) {
	t.preload = on
}

func (t *Translator) Cache() *regcache.Cache {
	return t.cache
}

// Translate translates every basic block of p.
func (t *Translator) Translate(p *program.Program) ([]*Block, error) {
	blocks, err := p.BasicBlocks()
	if err != nil {
		return nil, err
	}
	out := make([]*Block, 0, len(blocks))
	for _, insts := range blocks {
		blk, err := t.TranslateBlock(insts)
		if err != nil {
			return out, err
		}
		out = append(out, blk)
	}
	return out, nil
}

// TranslateBlock translates one basic block. A cache assertion is returned
// as an error; the translator may be reused afterwards.
func (t *Translator) TranslateBlock(insts []program.Instruction) (blk *Block, err error) {
	defer regerrors.Recover(&err)
	if len(insts) == 0 {
		return nil, fmt.Errorf("empty block")
	}

	t.backend.Reset()
	t.cache.Start(t.homes)
	la := NewProgramLookahead(insts)
	t.cache.SetLookahead(la)
	blk = &Block{PC: insts[0].PC, Instructions: len(insts)}

	if t.preload {
		t.cache.PreloadRegisters(readBeforeWrite(insts)...)
	}
	for i, inst := range insts {
		la.Seek(i)
		if !t.translate(inst) {
			blk.Modeled++
		}
		log.Trace(log.JitMonitoring, "inst", "pc", inst.PC, "op", program.OpcodeToString(inst.Opcode), "bytes", t.backend.Len())
	}
	t.cache.FlushAll()
	t.backend.Emit(x86.EncodeRet())
	if err := t.cache.Check(); err != nil {
		return nil, err
	}

	blk.Code = append([]byte(nil), t.backend.Code()...)
	blk.Stats = t.cache.Stats()
	log.Debug(log.JitMonitoring, "block", "pc", blk.PC, "insts", blk.Instructions, "modeled", blk.Modeled,
		"bytes", len(blk.Code), "loads", blk.Stats.Loads, "stores", blk.Stats.Stores, "evictions", blk.Stats.Evictions)
	return blk, nil
}

// readBeforeWrite lists, in order of first use, the registers whose first
// reference in the block is a read.
func readBeforeWrite(insts []program.Instruction) []regcache.GuestReg {
	seen := make(map[int]bool)
	var out []regcache.GuestReg
	for _, inst := range insts {
		for _, r := range inst.SourceRegs {
			if !seen[r] {
				seen[r] = true
				out = append(out, regcache.GuestReg(r))
			}
		}
		for _, r := range inst.DestRegs {
			seen[r] = true
		}
	}
	return out
}

func guest(r int) regcache.GuestReg {
	return regcache.GuestReg(r)
}

// translate emits code for inst and reports whether it did. Instructions
// outside the supported subset only have their operands acquired so that
// register pressure stays realistic. Block exits are not emitted; every
// block returns through the final ret.
func (t *Translator) translate(inst program.Instruction) bool {
	op := inst.Opcode
	if aluOp, ok := threeRegOps[op]; ok {
		t.threeReg(aluOp, guest(inst.DestRegs[0]), guest(inst.SourceRegs[0]), guest(inst.SourceRegs[1]))
		return true
	}
	if aluOp, ok := immOps[op]; ok {
		t.regImm(aluOp, guest(inst.DestRegs[0]), guest(inst.SourceRegs[0]), inst.Imm1)
		return true
	}
	switch {
	case op == program.LOAD_IMM, op == program.LOAD_IMM_64:
		t.cache.SetImmediate(guest(inst.DestRegs[0]), inst.Imm1)
		return true
	case op == program.MOVE_REG:
		t.moveReg(guest(inst.DestRegs[0]), guest(inst.SourceRegs[0]))
		return true
	case op == program.LOAD_IMM_JUMP:
		t.cache.SetImmediate(guest(inst.DestRegs[0]), inst.Imm1)
		return false
	case program.IsBasicBlockTerminator(op):
		t.model(inst.SourceRegs, nil)
		return op == program.TRAP || op == program.FALLTHROUGH
	}
	t.model(inst.SourceRegs, inst.DestRegs)
	return false
}

func (t *Translator) model(srcs, dsts []int) {
	var hs []regcache.Realizer
	for _, r := range srcs {
		a := t.cache.UseNoImm(guest(r), regcache.Read)
		defer a.Release()
		hs = append(hs, a)
	}
	for _, r := range dsts {
		b := t.cache.Bind(guest(r), regcache.Write)
		defer b.Release()
		hs = append(hs, b)
	}
	t.cache.Realize(hs...)
}

func (t *Translator) moveReg(rd, ra regcache.GuestReg) {
	if v, ok := t.cache.Imm(ra); ok {
		t.cache.SetImmediate(rd, v)
		return
	}
	if rd == ra {
		return
	}
	d := t.cache.Bind(rd, regcache.Write)
	defer d.Release()
	a := t.cache.Use(ra, regcache.Read)
	defer a.Release()
	t.cache.Realize(a, d)
	t.movTo(hostReg(d.Reg()), a.Location())
}

// threeReg emits rd = ra op rb.
func (t *Translator) threeReg(op x86.ALUOp, rd, ra, rb regcache.GuestReg) {
	va, aImm := t.cache.Imm(ra)
	vb, bImm := t.cache.Imm(rb)
	if aImm && bImm {
		t.cache.SetImmediate(rd, op.Apply(va, vb))
		return
	}

	d := t.cache.Bind(rd, regcache.Write)
	defer d.Release()
	a := t.cache.Use(ra, regcache.Read)
	defer a.Release()
	b := t.cache.Use(rb, regcache.Read)
	defer b.Release()
	t.cache.Realize(a, b, d)
	dst := hostReg(d.Reg())

	switch {
	case rd == rb && rd != ra && commutative(op):
		t.aluFrom(op, dst, a.Location())
	case rd == rb && rd != ra:
		s := t.cache.Scratch()
		defer s.Release()
		tmp := hostReg(s.Reg())
		t.movTo(tmp, a.Location())
		t.backend.Emit(x86.EncodeALURegReg(op, tmp, dst))
		t.backend.Emit(x86.EncodeMovRegReg(dst, tmp))
	default:
		t.movTo(dst, a.Location())
		t.aluFrom(op, dst, b.Location())
	}
}

// regImm emits rd = rs op imm.
func (t *Translator) regImm(op x86.ALUOp, rd, rs regcache.GuestReg, imm uint64) {
	if v, ok := t.cache.Imm(rs); ok {
		t.cache.SetImmediate(rd, op.Apply(v, imm))
		return
	}
	d := t.cache.Bind(rd, regcache.Write)
	defer d.Release()
	s := t.cache.Use(rs, regcache.Read)
	defer s.Release()
	t.cache.Realize(s, d)
	dst := hostReg(d.Reg())
	t.movTo(dst, s.Location())
	t.aluImm(op, dst, imm)
}

// movTo emits dst = loc.
func (t *Translator) movTo(dst x86.X86Reg, loc regcache.Location) {
	switch l := loc.(type) {
	case regcache.HostLocation:
		if hostReg(l.Reg) != dst {
			t.backend.Emit(x86.EncodeMovRegReg(dst, hostReg(l.Reg)))
		}
	case regcache.MemoryLocation:
		t.backend.Emit(x86.EncodeMovMemToReg(dst, x86.BaseReg, l.Offset))
	case regcache.ImmediateLocation:
		t.backend.Emit(x86.EncodeMovImm(dst, l.Value))
	}
}

// aluFrom emits dst = dst op loc.
func (t *Translator) aluFrom(op x86.ALUOp, dst x86.X86Reg, loc regcache.Location) {
	switch l := loc.(type) {
	case regcache.HostLocation:
		t.backend.Emit(x86.EncodeALURegReg(op, dst, hostReg(l.Reg)))
	case regcache.MemoryLocation:
		t.backend.Emit(x86.EncodeALURegMem(op, dst, x86.BaseReg, l.Offset))
	case regcache.ImmediateLocation:
		t.aluImm(op, dst, l.Value)
	}
}

func (t *Translator) aluImm(op x86.ALUOp, dst x86.X86Reg, v uint64) {
	if x86.FitsImm32(v) {
		t.backend.Emit(x86.EncodeALURegImm(op, dst, int32(v)))
		return
	}
	s := t.cache.Scratch()
	defer s.Release()
	tmp := hostReg(s.Reg())
	t.backend.Emit(x86.EncodeMovImm(tmp, v))
	t.backend.Emit(x86.EncodeALURegReg(op, dst, tmp))
}
