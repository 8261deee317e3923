// Package tuning searches eviction parameters for a program by translating
// it once per parameter set and comparing the register traffic.
package tuning

import (
	"context"
	"fmt"
	"sort"

	tdigest "github.com/caio/go-tdigest/v4"
	"github.com/colorfulnotion/regcache/config"
	"github.com/colorfulnotion/regcache/jit"
	"github.com/colorfulnotion/regcache/log"
	"github.com/colorfulnotion/regcache/pvm/program"
	"github.com/colorfulnotion/regcache/regcache"
	"github.com/colorfulnotion/regcache/regerrors"
	"golang.org/x/sync/errgroup"
)

// Grid is the set of values tried for each eviction parameter.
type Grid struct {
	DirtyPenalty []float64 `json:"dirty_penalty"`
	UseBase      []float64 `json:"use_base"`
	UseScale     []float64 `json:"use_scale"`
	LookaheadCap []int     `json:"lookahead_cap"`
}

func DefaultGrid() Grid {
	return Grid{
		DirtyPenalty: []float64{0, 1, 2, 4},
		UseBase:      []float64{0, 1},
		UseScale:     []float64{0.5, 1, 2},
		LookaheadCap: []int{0, 8, 64},
	}
}

// Params enumerates the grid.
func (g Grid) Params() []regcache.EvictionParams {
	var out []regcache.EvictionParams
	for _, dp := range g.DirtyPenalty {
		for _, ub := range g.UseBase {
			for _, us := range g.UseScale {
				for _, k := range g.LookaheadCap {
					out = append(out, regcache.EvictionParams{DirtyPenalty: dp, UseBase: ub, UseScale: us, LookaheadCap: k})
				}
			}
		}
	}
	return out
}

// Result summarizes one translation of the program.
type Result struct {
	Params    regcache.EvictionParams `json:"params"`
	Totals    regcache.Stats          `json:"totals"`
	Blocks    int                     `json:"blocks"`
	CodeBytes int                     `json:"code_bytes"`
	// per-block loads+stores
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

func Label(p regcache.EvictionParams) string {
	return fmt.Sprintf("dp=%g ub=%g us=%g k=%d", p.DirtyPenalty, p.UseBase, p.UseScale, p.LookaheadCap)
}

func (r Result) Label() string {
	return Label(r.Params)
}

func summarize(params regcache.EvictionParams, blocks []*jit.Block) (Result, error) {
	res := Result{Params: params, Blocks: len(blocks)}
	td, err := tdigest.New(tdigest.Compression(100))
	if err != nil {
		return res, err
	}
	for _, b := range blocks {
		res.Totals.Add(b.Stats)
		res.CodeBytes += len(b.Code)
		if err := td.Add(float64(b.Stats.Traffic())); err != nil {
			return res, err
		}
	}
	if td.Count() > 0 {
		res.P50 = td.Quantile(0.5)
		res.P90 = td.Quantile(0.9)
		res.P99 = td.Quantile(0.99)
	}
	return res, nil
}

// Sweep translates p with every parameter set, at most workers at a time.
// Each worker owns its translator and cache. Results keep the order of
// params.
func Sweep(ctx context.Context, profile *config.Profile, p *program.Program, params []regcache.EvictionParams, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(params))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ep := range params {
		i, ep := i, ep
		g.Go(func() (err error) {
			defer regerrors.Recover(&err)
			if err := ctx.Err(); err != nil {
				return err
			}
			prof := *profile
			prof.Eviction = ep
			tr, err := jit.NewTranslator(&prof)
			if err != nil {
				return err
			}
			blocks, err := tr.Translate(p)
			if err != nil {
				return fmt.Errorf("%s: %w", Label(ep), err)
			}
			res, err := summarize(ep, blocks)
			if err != nil {
				return err
			}
			results[i] = res
			log.Debug(log.TuningMonitoring, "sweep", "params", Label(ep), "loads", res.Totals.Loads, "stores", res.Totals.Stores, "evictions", res.Totals.Evictions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Rank orders results by traffic, then evictions, then code size. The sort
// is stable so equal results keep their sweep order.
func Rank(results []Result) []Result {
	out := append([]Result(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Totals, out[j].Totals
		if a.Traffic() != b.Traffic() {
			return a.Traffic() < b.Traffic()
		}
		if a.Evictions != b.Evictions {
			return a.Evictions < b.Evictions
		}
		return out[i].CodeBytes < out[j].CodeBytes
	})
	return out
}
