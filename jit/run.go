package jit

import (
	"errors"
	"fmt"

	"github.com/colorfulnotion/regcache/config"
	"github.com/colorfulnotion/regcache/pvm/x86"
)

// ErrNoSandbox is returned by RunSandbox in builds without the unicorn tag.
var ErrNoSandbox = errors.New("unicorn sandbox not built in (build with -tags unicorn)")

// Execute runs a block on the pure-Go emulator with guest register i held
// at context offset 8*i, and returns the registers afterwards.
func Execute(blk *Block, regs []uint64) ([]uint64, error) {
	m := x86.NewMachine(len(regs) * config.GuestSlotSize)
	for i, v := range regs {
		m.Store64(i*config.GuestSlotSize, v)
	}
	if err := x86.Emulate(blk.Code, m); err != nil {
		return nil, fmt.Errorf("block %d: %w", blk.PC, err)
	}
	out := make([]uint64, len(regs))
	for i := range out {
		out[i] = m.Load64(i * config.GuestSlotSize)
	}
	return out, nil
}
