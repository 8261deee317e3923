// Package config holds the host profiles a register cache is built from.
package config

import (
	"embed"
	"fmt"
	"os"
	"sort"

	"github.com/colorfulnotion/regcache/pvm/x86"
	"github.com/colorfulnotion/regcache/regcache"
	"github.com/colorfulnotion/regcache/regerrors"
	"github.com/goccy/go-json"
)

//go:embed *.json
var configFS embed.FS

var profileFile = map[string]string{
	"x86-64":       "x86-64.json",
	"x86-64-small": "x86-64-small.json",
}

// DefaultProfile is used when no profile is named.
const DefaultProfile = "x86-64"

// GuestSlotSize is the size of one guest register in the context area.
const GuestSlotSize = 8

type Profile struct {
	ID              string                  `json:"id"`
	Host            string                  `json:"host"`
	Base            string                  `json:"base"`
	GuestRegisters  int                     `json:"guest_registers"`
	AllocationOrder []string                `json:"allocation_order"`
	Eviction        regcache.EvictionParams `json:"eviction"`
}

// Profiles lists the built-in profile ids.
func Profiles() []string {
	ids := make([]string, 0, len(profileFile))
	for id := range profileFile {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReadProfile loads a built-in profile by id, or a JSON file by path.
func ReadProfile(id string) (profile *Profile, err error) {
	var data []byte
	path, ok := profileFile[id]
	if ok {
		data, err = configFS.ReadFile(path)
	} else {
		data, err = os.ReadFile(id)
	}
	if err != nil {
		return nil, err
	}
	// a profile without an "eviction" object scores with the defaults
	profile = &Profile{Eviction: regcache.DefaultEvictionParams()}
	if err := json.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}
	return profile, nil
}

func (p *Profile) Validate() error {
	if p.Host != "x86-64" {
		return fmt.Errorf("unsupported host %q", p.Host)
	}
	base, err := x86.Lookup(p.Base)
	if err != nil {
		return fmt.Errorf("%w: base: %v", regerrors.ErrInvalidRegister, err)
	}
	if base != x86.BaseReg {
		return fmt.Errorf("%w: base must be %s, got %s", regerrors.ErrInvalidRegister, x86.BaseReg, base)
	}
	if p.GuestRegisters <= 0 {
		return fmt.Errorf("%w: %d guest registers", regerrors.ErrInvalidRegister, p.GuestRegisters)
	}
	if _, err := p.hostOrder(); err != nil {
		return err
	}
	return nil
}

// SetAllocationOrder replaces the allocation order with the named registers.
func (p *Profile) SetAllocationOrder(names []string) error {
	old := p.AllocationOrder
	p.AllocationOrder = names
	if _, err := p.hostOrder(); err != nil {
		p.AllocationOrder = old
		return err
	}
	return nil
}

func (p *Profile) hostOrder() ([]regcache.HostReg, error) {
	if len(p.AllocationOrder) == 0 {
		return nil, fmt.Errorf("%w: empty allocation order", regerrors.ErrInvalidRegister)
	}
	order := make([]regcache.HostReg, 0, len(p.AllocationOrder))
	seen := make(map[x86.X86Reg]bool)
	for _, name := range p.AllocationOrder {
		r, err := x86.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", regerrors.ErrInvalidRegister, err)
		}
		if x86.IsReserved(r) {
			return nil, fmt.Errorf("%w: %s is reserved", regerrors.ErrInvalidRegister, r)
		}
		if seen[r] {
			return nil, fmt.Errorf("%w: %s listed twice", regerrors.ErrInvalidRegister, r)
		}
		seen[r] = true
		order = append(order, regcache.HostReg(r.Number()))
	}
	return order, nil
}

// CacheConfig converts the profile into a regcache configuration.
func (p *Profile) CacheConfig() (regcache.Config, error) {
	order, err := p.hostOrder()
	if err != nil {
		return regcache.Config{}, err
	}
	return regcache.Config{
		HostRegisters:   x86.NumRegisters,
		AllocationOrder: order,
		Eviction:        p.Eviction,
		RegisterName:    func(h regcache.HostReg) string { return x86.Name(int(h)) },
	}, nil
}

// Homes lays the guest registers out back to back from offset 0 of the
// context area.
func (p *Profile) Homes() []regcache.MemoryLocation {
	homes := make([]regcache.MemoryLocation, p.GuestRegisters)
	for i := range homes {
		homes[i] = regcache.MemoryLocation{Offset: int32(i * GuestSlotSize)}
	}
	return homes
}

// ContextSize is the number of bytes the guest registers occupy.
func (p *Profile) ContextSize() int {
	return p.GuestRegisters * GuestSlotSize
}
