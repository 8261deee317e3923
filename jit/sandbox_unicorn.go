//go:build unicorn
// +build unicorn

package jit

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/regcache/config"
	"github.com/colorfulnotion/regcache/pvm/x86"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"
)

const (
	sandboxCodeBase  = 0x100000
	sandboxStackTop  = 0x300000
	sandboxStackSize = 0x10000
	pageSize         = 0x1000
)

// SandboxAvailable reports whether RunSandbox executes code.
const SandboxAvailable = true

func pageAlign(n uint64) uint64 {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// RunSandbox executes a block in the unicorn CPU emulator with the same
// context layout as Execute.
func RunSandbox(blk *Block, regs []uint64) ([]uint64, error) {
	if len(blk.Code) == 0 {
		return nil, fmt.Errorf("block %d: no code", blk.PC)
	}
	mu, err := uc.NewUnicorn(uc.ARCH_X86, uc.MODE_64)
	if err != nil {
		return nil, fmt.Errorf("unicorn: %w", err)
	}
	defer mu.Close()

	ctxBase := uint64(x86.DefaultContextBase)
	ctxLen := len(regs) * config.GuestSlotSize
	if err := mu.MemMap(ctxBase, pageAlign(uint64(ctxLen))); err != nil {
		return nil, fmt.Errorf("context MemMap: %w", err)
	}
	ctx := make([]byte, ctxLen)
	for i, v := range regs {
		binary.LittleEndian.PutUint64(ctx[i*config.GuestSlotSize:], v)
	}
	if err := mu.MemWrite(ctxBase, ctx); err != nil {
		return nil, fmt.Errorf("write context: %w", err)
	}

	if err := mu.MemMap(sandboxCodeBase, pageAlign(uint64(len(blk.Code)))); err != nil {
		return nil, fmt.Errorf("code MemMap: %w", err)
	}
	if err := mu.MemWrite(sandboxCodeBase, blk.Code); err != nil {
		return nil, fmt.Errorf("write code: %w", err)
	}
	if err := mu.MemMap(sandboxStackTop-sandboxStackSize, sandboxStackSize); err != nil {
		return nil, fmt.Errorf("stack MemMap: %w", err)
	}
	if err := mu.RegWrite(uc.X86_REG_RSP, sandboxStackTop); err != nil {
		return nil, fmt.Errorf("set RSP: %w", err)
	}
	if err := mu.RegWrite(uc.X86_REG_R12, ctxBase); err != nil {
		return nil, fmt.Errorf("set R12: %w", err)
	}

	// stop on the trailing ret
	end := sandboxCodeBase + uint64(len(blk.Code)) - 1
	if err := mu.Start(sandboxCodeBase, end); err != nil {
		return nil, fmt.Errorf("block %d: emulation failed: %w", blk.PC, err)
	}

	out, err := mu.MemRead(ctxBase, uint64(ctxLen))
	if err != nil {
		return nil, fmt.Errorf("read context: %w", err)
	}
	res := make([]uint64, len(regs))
	for i := range res {
		res[i] = binary.LittleEndian.Uint64(out[i*config.GuestSlotSize:])
	}
	return res, nil
}
