package jit

import (
	"github.com/colorfulnotion/regcache/pvm/program"
	"github.com/colorfulnotion/regcache/regcache"
)

// ProgramLookahead counts upcoming references to a guest register within
// the current block.
type ProgramLookahead struct {
	insts []program.Instruction
	pos   int
}

func NewProgramLookahead(insts []program.Instruction) *ProgramLookahead {
	return &ProgramLookahead{insts: insts}
}

// Seek places the window just after instruction i.
func (l *ProgramLookahead) Seek(i int) {
	l.pos = i
}

// Advance moves the window forward by one instruction.
func (l *ProgramLookahead) Advance() {
	l.pos++
}

func (l *ProgramLookahead) Pos() int {
	return l.pos
}

// References counts the instructions among the next window that read or
// write guest.
func (l *ProgramLookahead) References(guest regcache.GuestReg, window int) int {
	n := 0
	end := min(len(l.insts), l.pos+1+window)
	for i := l.pos + 1; i < end; i++ {
		if l.insts[i].References(int(guest)) {
			n++
		}
	}
	return n
}
