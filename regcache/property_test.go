package regcache

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// TestRandomOperations drives the cache with random instructions and checks
// after every step that bindings stay consistent and that every live guest
// register still reads back the value last written to it.
func TestRandomOperations(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		r := rand.New(rand.NewSource(seed))
		c, m := newTestCache(t, 12, 4)
		c.SetLookahead(LookaheadFunc(func(g GuestReg, window int) int {
			return int(g) % 3
		}))

		expect := make(map[GuestReg]uint64)
		for g := 0; g < 12; g++ {
			expect[GuestReg(g)] = uint64(g*100 + 1)
		}
		next := uint64(1 << 20)

		for step := 0; step < 300; step++ {
			g := GuestReg(r.Intn(12))
			_, live := expect[g]
			switch op := r.Intn(10); {
			case op < 5:
				randomInstruction(t, r, c, m, expect, &next)
			case op == 5:
				if live {
					c.Flush(g)
				}
			case op == 6:
				c.Discard(g)
				delete(expect, g)
			case op == 7:
				next++
				c.SetImmediate(g, next)
				expect[g] = next
			case op == 8:
				c.PreloadRegisters(GuestReg(r.Intn(12)), GuestReg(r.Intn(12)), GuestReg(r.Intn(12)))
			default:
				if !live {
					continue
				}
				old := expect[g]
				mode := Write
				if r.Intn(2) == 0 {
					mode = ReadWrite
				}
				h := c.RevertableBind(g, mode)
				c.Realize(h)
				if mode == ReadWrite {
					require.Equal(t, old, m.regs[h.Reg()], "seed %d step %d", seed, step)
				}
				next++
				m.write(h.Location(), next)
				h.Release()
				if r.Intn(2) == 0 {
					c.Commit()
					expect[g] = next
				} else {
					c.Revert()
				}
			}

			require.NoError(t, c.Check(), "seed %d step %d", seed, step)
			require.True(t, c.IsAllUnlocked(), "seed %d step %d", seed, step)
			for g, v := range expect {
				require.Equal(t, v, m.value(c, g), "seed %d step %d %s", seed, step, g)
			}
		}

		c.FlushAll()
		for g, v := range expect {
			require.Equal(t, v, m.mem[int32(g)*8], "seed %d %s", seed, g)
		}
	}
}

// randomInstruction requests up to three operands, realizes them together,
// writes through every write operand and optionally clobbers a scratch
// register before releasing.
func randomInstruction(t *testing.T, r *rand.Rand, c *Cache, m *machine, expect map[GuestReg]uint64, next *uint64) {
	type operand struct {
		g    GuestReg
		mode Mode
		h    Realizer
		loc  func() Location
		rel  func()
	}
	var ops []operand
	for n := 1 + r.Intn(3); n > 0; n-- {
		g := GuestReg(r.Intn(12))
		mode := Mode(1 + r.Intn(3))
		if _, live := expect[g]; !live {
			mode = Write
		}
		switch r.Intn(4) {
		case 0:
			a := c.Use(g, mode)
			ops = append(ops, operand{g, mode, a, a.Location, a.Release})
		case 1:
			a := c.UseNoImm(g, mode)
			ops = append(ops, operand{g, mode, a, a.Location, a.Release})
		case 2:
			a := c.BindOrImm(g, mode)
			ops = append(ops, operand{g, mode, a, a.Location, a.Release})
		default:
			h := c.Bind(g, mode)
			ops = append(ops, operand{g, mode, h, h.Location, h.Release})
		}
	}
	for _, o := range ops {
		c.Realize(o.h)
	}

	for _, o := range ops {
		if o.mode.reads() {
			require.Equal(t, expect[o.g], m.value(c, o.g), "read %s", o.g)
		}
	}
	written := map[GuestReg]bool{}
	for _, o := range ops {
		if o.mode.writes() && !written[o.g] {
			*next++
			m.write(o.loc(), *next)
			expect[o.g] = *next
			written[o.g] = true
		}
	}
	if r.Intn(2) == 0 {
		s := c.Scratch()
		m.write(s.Location(), 0xbad)
		s.Release()
	}
	for i := len(ops) - 1; i >= 0; i-- {
		ops[i].rel()
	}
}
