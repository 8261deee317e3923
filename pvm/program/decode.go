package program

import (
	"fmt"
	"strings"
)

// MaxSkip bounds the argument length of a single instruction.
const MaxSkip = 24

// Instruction is one decoded PVM instruction with its guest register roles.
type Instruction struct {
	PC     uint32
	Opcode byte
	Args   []byte

	SourceRegs []int
	DestRegs   []int
	Imm1       uint64
	Imm2       uint64
	Offset     int64
}

func (i Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%5d: %s", i.PC, OpcodeToString(i.Opcode))
	if len(i.DestRegs) > 0 {
		fmt.Fprintf(&sb, " dst=%v", i.DestRegs)
	}
	if len(i.SourceRegs) > 0 {
		fmt.Fprintf(&sb, " src=%v", i.SourceRegs)
	}
	switch FormatOf(i.Opcode) {
	case FormatOneImm, FormatOneRegExtImm, FormatOneRegOneImm, FormatTwoRegsOneImm:
		fmt.Fprintf(&sb, " imm=%#x", i.Imm1)
	case FormatTwoImm, FormatOneRegTwoImm, FormatTwoRegsTwoImm:
		fmt.Fprintf(&sb, " imm=%#x,%#x", i.Imm1, i.Imm2)
	case FormatOneOffset, FormatTwoRegsOneOffset:
		fmt.Fprintf(&sb, " off=%d", i.Offset)
	case FormatOneRegImmOffset:
		fmt.Fprintf(&sb, " imm=%#x off=%d", i.Imm1, i.Offset)
	}
	return sb.String()
}

// References reports whether the instruction reads or writes guest register reg.
func (i Instruction) References(reg int) bool {
	for _, r := range i.SourceRegs {
		if r == reg {
			return true
		}
	}
	for _, r := range i.DestRegs {
		if r == reg {
			return true
		}
	}
	return false
}

// Skip returns the number of argument bytes following the instruction at pc.
func Skip(k []byte, pc uint64) uint64 {
	n := uint64(len(k))
	for i := pc + 1; i < n && i <= pc+MaxSkip+1; i++ {
		if k[i] == 1 {
			return i - pc - 1
		}
	}
	return min(MaxSkip, n-pc-1)
}

// DecodeInstruction fills in the operand roles of the instruction at pc.
func DecodeInstruction(opcode byte, args []byte, pc uint32) (Instruction, error) {
	inst := Instruction{PC: pc, Opcode: opcode, Args: args}
	switch FormatOf(opcode) {
	case FormatNoArgs:
	case FormatOneImm:
		inst.Imm1 = DecodeE_l(args[:min(4, len(args))])
	case FormatOneRegExtImm:
		reg, imm := ExtractOneRegExtImm(args)
		inst.DestRegs = []int{reg}
		inst.Imm1 = imm
	case FormatTwoImm:
		inst.Imm1, inst.Imm2 = ExtractTwoImm(args)
	case FormatOneOffset:
		inst.Offset = ExtractOneOffset(args)
	case FormatOneRegOneImm:
		reg, imm := ExtractOneRegOneImm(args)
		switch {
		case opcode == JUMP_IND, opcode >= STORE_U8:
			inst.SourceRegs = []int{reg}
		default:
			inst.DestRegs = []int{reg}
		}
		inst.Imm1 = imm
	case FormatOneRegTwoImm:
		reg, vx, vy := ExtractOneReg2Imm(args)
		inst.SourceRegs = []int{reg}
		inst.Imm1, inst.Imm2 = vx, vy
	case FormatOneRegImmOffset:
		reg, vx, off := ExtractOneRegOneImmOneOffset(args)
		if opcode == LOAD_IMM_JUMP {
			inst.DestRegs = []int{reg}
		} else {
			inst.SourceRegs = []int{reg}
		}
		inst.Imm1, inst.Offset = vx, off
	case FormatTwoRegs:
		regD, regA := ExtractTwoRegisters(args)
		inst.DestRegs = []int{regD}
		inst.SourceRegs = []int{regA}
	case FormatTwoRegsOneImm:
		regA, regB, imm := ExtractTwoRegsOneImm(args)
		if opcode <= STORE_IND_U64 {
			inst.SourceRegs = []int{regA, regB}
		} else {
			inst.DestRegs = []int{regA}
			inst.SourceRegs = []int{regB}
			if opcode == CMOV_IZ_IMM || opcode == CMOV_NZ_IMM {
				inst.SourceRegs = []int{regB, regA}
			}
		}
		inst.Imm1 = imm
	case FormatTwoRegsOneOffset:
		regA, regB, off := ExtractTwoRegsOneOffset(args)
		inst.SourceRegs = []int{regA, regB}
		inst.Offset = off
	case FormatTwoRegsTwoImm:
		regA, regB, vx, vy := ExtractTwoRegsAndTwoImmediates(args)
		inst.DestRegs = []int{regA}
		inst.SourceRegs = []int{regB}
		inst.Imm1, inst.Imm2 = vx, vy
	case FormatThreeRegs:
		regA, regB, regD := ExtractThreeRegs(args)
		inst.SourceRegs = []int{regA, regB}
		inst.DestRegs = []int{regD}
		if opcode == CMOV_IZ || opcode == CMOV_NZ {
			inst.SourceRegs = append(inst.SourceRegs, regD)
		}
	default:
		return inst, fmt.Errorf("pc %d: unknown opcode %d", pc, opcode)
	}
	return inst, nil
}

// Instructions decodes every instruction marked in K, in program order.
func (p *Program) Instructions() ([]Instruction, error) {
	var out []Instruction
	for pc := uint64(0); pc < uint64(len(p.Code)) && pc < uint64(len(p.K)); pc++ {
		if p.K[pc] != 1 {
			continue
		}
		skip := Skip(p.K, pc)
		end := min(pc+1+skip, uint64(len(p.Code)))
		inst, err := DecodeInstruction(p.Code[pc], p.Code[pc+1:end], uint32(pc))
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// BasicBlocks splits the instruction stream after every terminator.
func (p *Program) BasicBlocks() ([][]Instruction, error) {
	insts, err := p.Instructions()
	if err != nil {
		return nil, err
	}
	var blocks [][]Instruction
	start := 0
	for i, inst := range insts {
		if IsBasicBlockTerminator(inst.Opcode) {
			blocks = append(blocks, insts[start:i+1])
			start = i + 1
		}
	}
	if start < len(insts) {
		blocks = append(blocks, insts[start:])
	}
	return blocks, nil
}
