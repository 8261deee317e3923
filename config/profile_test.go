package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/regcache/regcache"
	"github.com/colorfulnotion/regcache/regerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinProfiles(t *testing.T) {
	assert.Equal(t, []string{"x86-64", "x86-64-small"}, Profiles())

	p, err := ReadProfile(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, 13, p.GuestRegisters)
	assert.Len(t, p.AllocationOrder, 13)
	assert.Equal(t, regcache.DefaultEvictionParams(), p.Eviction)

	cfg, err := p.CacheConfig()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.HostRegisters)
	assert.Equal(t, regcache.HostReg(0), cfg.AllocationOrder[0])
	assert.Equal(t, regcache.HostReg(13), cfg.AllocationOrder[10])
	assert.Equal(t, "r13", cfg.RegisterName(13))

	small, err := ReadProfile("x86-64-small")
	require.NoError(t, err)
	cfg, err = small.CacheConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.AllocationOrder, 6)
	assert.Equal(t, 16, small.Eviction.LookaheadCap)
}

func TestHomes(t *testing.T) {
	p, err := ReadProfile(DefaultProfile)
	require.NoError(t, err)
	homes := p.Homes()
	require.Len(t, homes, 13)
	assert.Equal(t, regcache.MemoryLocation{Offset: 96}, homes[12])
	assert.Equal(t, 104, p.ContextSize())
}

func TestReadProfileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"id": "custom", "host": "x86-64", "base": "r12", "guest_registers": 4,
		"allocation_order": ["r8", "R9"]
	}`), 0o644))
	p, err := ReadProfile(path)
	require.NoError(t, err)
	cfg, err := p.CacheConfig()
	require.NoError(t, err)
	assert.Equal(t, []regcache.HostReg{8, 9}, cfg.AllocationOrder)
	assert.Equal(t, regcache.DefaultEvictionParams(), cfg.Eviction)

	zero := filepath.Join(t.TempDir(), "order-only.json")
	require.NoError(t, os.WriteFile(zero, []byte(`{
		"id": "order-only", "host": "x86-64", "base": "r12", "guest_registers": 4,
		"allocation_order": ["rax"],
		"eviction": {"dirty_penalty": 0, "use_base": 0, "use_scale": 0, "lookahead_cap": 0}
	}`), 0o644))
	p, err = ReadProfile(zero)
	require.NoError(t, err)
	cfg, err = p.CacheConfig()
	require.NoError(t, err)
	assert.Equal(t, regcache.EvictionParams{}, cfg.Eviction)

	_, err = ReadProfile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestProfileValidation(t *testing.T) {
	tests := []struct {
		name  string
		order []string
		base  string
	}{
		{"reserved base", []string{"rax", "r12"}, "r12"},
		{"stack pointer", []string{"rsp"}, "r12"},
		{"unknown", []string{"xmm0"}, "r12"},
		{"duplicate", []string{"rax", "RAX"}, "r12"},
		{"empty", nil, "r12"},
		{"other base", []string{"rax"}, "r13"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Profile{Host: "x86-64", Base: tt.base, GuestRegisters: 13, AllocationOrder: tt.order}
			assert.ErrorIs(t, p.Validate(), regerrors.ErrInvalidRegister)
		})
	}

	p, err := ReadProfile(DefaultProfile)
	require.NoError(t, err)
	assert.Error(t, p.SetAllocationOrder([]string{"rbp"}))
	assert.Len(t, p.AllocationOrder, 13)
	require.NoError(t, p.SetAllocationOrder([]string{"rbx", "rsi"}))
	cfg, err := p.CacheConfig()
	require.NoError(t, err)
	assert.Equal(t, []regcache.HostReg{3, 6}, cfg.AllocationOrder)
}
