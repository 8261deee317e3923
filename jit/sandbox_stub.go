//go:build !unicorn
// +build !unicorn

package jit

const SandboxAvailable = false

func RunSandbox(blk *Block, regs []uint64) ([]uint64, error) {
	return nil, ErrNoSandbox
}
