//go:build unicorn
// +build unicorn

package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxMatchesEmulator(t *testing.T) {
	require.True(t, SandboxAvailable)
	p := sampleProgram()
	for _, tc := range translatorCases {
		t.Run(tc.name, func(t *testing.T) {
			tr := tc.new(t)
			tr.SetPreload(tc.preload)
			blocks, err := tr.Translate(p)
			require.NoError(t, err)
			want, err := Execute(blocks[0], initialRegs())
			require.NoError(t, err)
			got, err := RunSandbox(blocks[0], initialRegs())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
