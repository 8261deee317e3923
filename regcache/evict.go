package regcache

import (
	"math"

	"github.com/colorfulnotion/regcache/log"
	"github.com/colorfulnotion/regcache/regerrors"
)

// EvictionParams shape the victim score. Lower scores are evicted first.
//
//	score = DirtyPenalty                                 if the binding is dirty
//	      + UseBase + UseScale*log2(1+refs)              if refs > 0
//
// where refs is the lookahead count over the next LookaheadCap instructions.
type EvictionParams struct {
	DirtyPenalty float64 `json:"dirty_penalty"`
	UseBase      float64 `json:"use_base"`
	UseScale     float64 `json:"use_scale"`
	LookaheadCap int     `json:"lookahead_cap"`
}

func DefaultEvictionParams() EvictionParams {
	return EvictionParams{
		DirtyPenalty: 2,
		UseBase:      1,
		UseScale:     1,
		LookaheadCap: 64,
	}
}

func (c *Cache) score(g GuestReg) float64 {
	p := c.cfg.Eviction
	s := 0.0
	if c.guests[g].isDirty() {
		s += p.DirtyPenalty
	}
	if c.lookahead != nil && p.LookaheadCap > 0 {
		if refs := c.lookahead.References(g, p.LookaheadCap); refs > 0 {
			s += p.UseBase + p.UseScale*math.Log2(1+float64(refs))
		}
	}
	return s
}

// getFreeHostReg returns an unlocked host register with no guest, evicting
// the lowest scoring unlocked binding when none is free.
func (c *Cache) getFreeHostReg() HostReg {
	for _, h := range c.cfg.AllocationOrder {
		if hs := &c.hosts[h]; hs.free && hs.locks == 0 {
			return h
		}
	}

	victim := HostReg(-1)
	best := math.Inf(1)
	for _, h := range c.cfg.AllocationOrder {
		hs := &c.hosts[h]
		if hs.free || hs.locks > 0 {
			continue
		}
		gs := &c.guests[hs.guest]
		if gs.locks > 0 || gs.revertable {
			continue
		}
		score := c.score(hs.guest)
		log.Trace(log.EvictMonitoring, "candidate", "host", c.hostName(h), "guest", hs.guest, "dirty", gs.isDirty(), "score", score)
		if score < best {
			victim, best = h, score
		}
	}
	if victim < 0 {
		regerrors.Fail(regerrors.ErrOutOfHostRegisters, "%d host registers, all locked", len(c.cfg.AllocationOrder))
	}

	g := c.hosts[victim].guest
	log.Debug(log.EvictMonitoring, "evict", "host", c.hostName(victim), "guest", g, "score", best)
	c.storeFromRegister(g, storeFull)
	c.stats.Evictions++
	return victim
}
