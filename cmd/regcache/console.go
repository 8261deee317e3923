package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/colorfulnotion/regcache/config"
	"github.com/colorfulnotion/regcache/jit"
	"github.com/colorfulnotion/regcache/pvm/x86"
	"github.com/colorfulnotion/regcache/regcache"
	"github.com/colorfulnotion/regcache/regerrors"
	"github.com/dop251/goja"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const consoleHelp = `rc.use(g, mode) rc.useNoImm(g, mode) rc.bindOrImm(g, mode) rc.bind(g, mode)
rc.revertableBind(g, mode) rc.scratch()          acquire a handle id; mode is "r", "w" or "rw"
rc.realize(id...) rc.loc(id) rc.release(id...)    realize, inspect and release handles
rc.flush(g...) rc.flushAll() rc.discard(g...) rc.preload(g...) rc.setImm(g, v)
rc.revert() rc.commit() rc.fork() rc.endFork()
rc.tree() rc.snapshot() rc.diff() rc.check() rc.stats() rc.code() rc.reset()
rc.errors()                                        names of the assertions raised since reset`

type consoleHandle interface {
	regcache.Realizer
	Location() regcache.Location
	Release()
}

// console drives a live cache on an x86 backend from JavaScript.
type console struct {
	vm      *goja.Runtime
	cache   *regcache.Cache
	backend *jit.X86Backend
	homes   []regcache.MemoryLocation
	handles map[int]consoleHandle
	nextID  int
	fork    *regcache.ForkGuard
	mark    regcache.Snapshot
	failed  []error // assertions raised since reset
	out     io.Writer
}

func newConsole(prof *config.Profile, out io.Writer) (*console, error) {
	cfg, err := prof.CacheConfig()
	if err != nil {
		return nil, err
	}
	backend := jit.NewX86Backend()
	cache, err := regcache.New(cfg, backend)
	if err != nil {
		return nil, err
	}
	c := &console{
		vm:      goja.New(),
		cache:   cache,
		backend: backend,
		homes:   prof.Homes(),
		out:     out,
	}
	c.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	c.reset()
	if err := c.install(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *console) reset() {
	for _, h := range c.handles {
		h.Release()
	}
	c.handles = make(map[int]consoleHandle)
	c.fork = nil
	c.failed = nil
	c.backend.Reset()
	c.cache.Start(c.homes)
	c.mark = c.cache.Snapshot()
}

func parseMode(s string) (regcache.Mode, error) {
	switch strings.ToLower(s) {
	case "r", "read":
		return regcache.Read, nil
	case "w", "write":
		return regcache.Write, nil
	case "rw", "readwrite":
		return regcache.ReadWrite, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func locString(loc regcache.Location) string {
	switch l := loc.(type) {
	case regcache.HostLocation:
		return x86.Name(int(l.Reg))
	case nil:
		return "discarded"
	default:
		return fmt.Sprint(l)
	}
}

// guard runs f, turning cache assertions and errors into JavaScript exceptions.
func (c *console) guard(f func() error) {
	var err error
	func() {
		defer regerrors.Recover(&err)
		err = f()
	}()
	if err != nil {
		var ae *regerrors.AssertionError
		if errors.As(err, &ae) {
			c.failed = append(c.failed, ae)
		}
		panic(c.vm.NewGoError(err))
	}
}

func (c *console) acquire(get func(regcache.GuestReg, regcache.Mode) consoleHandle) func(int, string) int {
	return func(g int, mode string) int {
		var id int
		c.guard(func() error {
			m, err := parseMode(mode)
			if err != nil {
				return err
			}
			c.nextID++
			id = c.nextID
			c.handles[id] = get(regcache.GuestReg(g), m)
			return nil
		})
		return id
	}
}

func (c *console) handle(id int) consoleHandle {
	h, ok := c.handles[id]
	if !ok {
		panic(c.vm.NewGoError(fmt.Errorf("no handle %d", id)))
	}
	return h
}

func guests(regs []int) []regcache.GuestReg {
	out := make([]regcache.GuestReg, len(regs))
	for i, r := range regs {
		out[i] = regcache.GuestReg(r)
	}
	return out
}

func (c *console) install() error {
	rc := c.vm.NewObject()
	set := func(name string, fn interface{}) {
		if err := rc.Set(name, fn); err != nil {
			panic(err)
		}
	}

	set("use", c.acquire(func(g regcache.GuestReg, m regcache.Mode) consoleHandle { return c.cache.Use(g, m) }))
	set("useNoImm", c.acquire(func(g regcache.GuestReg, m regcache.Mode) consoleHandle { return c.cache.UseNoImm(g, m) }))
	set("bindOrImm", c.acquire(func(g regcache.GuestReg, m regcache.Mode) consoleHandle { return c.cache.BindOrImm(g, m) }))
	set("bind", c.acquire(func(g regcache.GuestReg, m regcache.Mode) consoleHandle { return c.cache.Bind(g, m) }))
	set("revertableBind", c.acquire(func(g regcache.GuestReg, m regcache.Mode) consoleHandle { return c.cache.RevertableBind(g, m) }))
	set("scratch", func() int {
		var id int
		c.guard(func() error {
			c.nextID++
			id = c.nextID
			c.handles[id] = c.cache.Scratch()
			return nil
		})
		return id
	})
	set("realize", func(ids ...int) {
		hs := make([]regcache.Realizer, len(ids))
		for i, id := range ids {
			hs[i] = c.handle(id)
		}
		c.guard(func() error { c.cache.Realize(hs...); return nil })
	})
	set("loc", func(id int) string {
		h := c.handle(id)
		var s string
		c.guard(func() error { s = locString(h.Location()); return nil })
		return s
	})
	set("release", func(ids ...int) {
		for _, id := range ids {
			h := c.handle(id)
			delete(c.handles, id)
			c.guard(func() error { h.Release(); return nil })
		}
	})
	set("flush", func(regs ...int) { c.guard(func() error { c.cache.Flush(guests(regs)...); return nil }) })
	set("flushAll", func() { c.guard(func() error { c.cache.FlushAll(); return nil }) })
	set("discard", func(regs ...int) { c.guard(func() error { c.cache.Discard(guests(regs)...); return nil }) })
	set("preload", func(regs ...int) { c.guard(func() error { c.cache.PreloadRegisters(guests(regs)...); return nil }) })
	set("setImm", func(g int, v int64) {
		c.guard(func() error { c.cache.SetImmediate(regcache.GuestReg(g), uint64(v)); return nil })
	})
	set("revert", func() { c.guard(func() error { c.cache.Revert(); return nil }) })
	set("commit", func() { c.guard(func() error { c.cache.Commit(); return nil }) })
	set("fork", func() {
		c.guard(func() error {
			if c.fork != nil {
				return fmt.Errorf("fork already open")
			}
			c.fork = c.cache.Fork()
			return nil
		})
	})
	set("endFork", func() {
		c.guard(func() error {
			if c.fork == nil {
				return fmt.Errorf("no open fork")
			}
			c.fork.EndFork()
			c.fork = nil
			return nil
		})
	})
	set("tree", func() string { return c.cache.Snapshot().Tree() })
	set("snapshot", func() interface{} { return c.cache.Snapshot() })
	// diff reports changes since the previous diff (or reset).
	set("diff", func() string {
		var s string
		c.guard(func() error {
			cur := c.cache.Snapshot()
			d, err := regcache.DiffSnapshots(c.mark, cur)
			c.mark = cur
			s = d
			return err
		})
		return s
	})
	set("check", func() string {
		if err := c.cache.Check(); err != nil {
			return err.Error()
		}
		return "ok"
	})
	set("stats", func() regcache.Stats { return c.cache.Stats() })
	set("code", func() string { return x86.Disassemble(c.backend.Code()) })
	set("reset", func() { c.guard(func() error { c.reset(); return nil }) })
	set("errors", func() []string { return regerrors.GetErrorNames(c.failed) })
	set("help", func() string { return consoleHelp })

	if err := c.vm.Set("rc", rc); err != nil {
		return err
	}
	return c.vm.Set("print", func(args ...goja.Value) {
		for _, arg := range args {
			fmt.Fprintln(c.out, arg.Export())
		}
	})
}

func (c *console) eval(line string) (goja.Value, error) {
	return c.vm.RunString(line)
}

func newConsoleCmd() *cobra.Command {
	var pf profileFlags
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive JavaScript console over a live register cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := pf.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			c, err := newConsole(prof, out)
			if err != nil {
				return err
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "regcache> ",
				HistoryFile: filepath.Join(os.TempDir(), "regcache_console_history.txt"),
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			okColor := color.New(color.FgGreen)
			errColor := color.New(color.FgRed)
			fmt.Fprintf(out, "register cache console, profile %s with %d host registers\n", prof.ID, c.cache.NumFreeRegisters())
			fmt.Fprintln(out, consoleHelp)
			for {
				line, err := rl.Readline()
				if err != nil {
					return nil
				}
				line = strings.TrimSpace(line)
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				}
				v, err := c.eval(line)
				if err != nil {
					errColor.Fprintln(out, err)
					continue
				}
				if v != nil && !goja.IsUndefined(v) {
					okColor.Fprintln(out, v)
				}
			}
		},
	}
	pf.register(cmd)
	return cmd
}
