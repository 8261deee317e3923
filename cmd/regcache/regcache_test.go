package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/regcache/config"
	"github.com/colorfulnotion/regcache/pvm/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostRegList(t *testing.T) {
	var l hostRegList
	require.NoError(t, l.Set("rax, RCX"))
	require.NoError(t, l.Set("r8,"))
	assert.Equal(t, hostRegList{"rax", "rcx", "r8"}, l)
	assert.Equal(t, "rax,rcx,r8", l.String())
	assert.Equal(t, "regs", l.Type())
	assert.Error(t, l.Set("eax"))
}

func writeProgram(t *testing.T) string {
	p := program.NewBuilder().
		LoadImm(0, 5).
		ThreeReg(program.ADD_64, 1, 2, 3).
		ThreeReg(program.XOR, 4, 1, 5).
		ThreeReg(program.SUB_64, 6, 7, 8).
		TwoRegImm(program.OR_IMM, 9, 10, 0x11).
		ThreeReg(program.AND, 11, 12, 4).
		Trap().
		Build()
	path := filepath.Join(t.TempDir(), "prog.bin")
	require.NoError(t, os.WriteFile(path, p.Encode(), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), buf.String())
	return buf.String()
}

func TestTranslateCommand(t *testing.T) {
	path := writeProgram(t)
	out := run(t, "translate", path, "--host-regs", "rax,rcx,rdx")
	assert.Contains(t, out, "program: 7 instructions in 1 blocks")
	assert.Contains(t, out, "block 0x0")
	assert.Contains(t, out, "mov")
	assert.Contains(t, out, "blocks=1")

	out = run(t, "translate", "-q", "--profile", "x86-64-small", path)
	assert.NotContains(t, out, "block 0x0")
	assert.Contains(t, out, "modeled=0")
}

func TestTuneCommand(t *testing.T) {
	path := writeProgram(t)
	dir := t.TempDir()
	chart := filepath.Join(dir, "chart.html")
	db := filepath.Join(dir, "db")
	out := run(t, "tune", path, "--host-regs", "rax,rcx,rdx", "--db", db, "--chart", chart, "--top", "3", "-w", "4")
	assert.Contains(t, out, "72 parameter sets")
	assert.Contains(t, out, "  1  dp=")

	info, err := os.Stat(chart)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	out = run(t, "tune", path, "--host-regs", "rax,rcx,rdx", "--db", db, "--cached", "--top", "1")
	assert.Contains(t, out, "72 parameter sets")
}

func newTestConsole(t *testing.T) (*console, *bytes.Buffer) {
	prof, err := config.ReadProfile(config.DefaultProfile)
	require.NoError(t, err)
	var buf bytes.Buffer
	c, err := newConsole(prof, &buf)
	require.NoError(t, err)
	return c, &buf
}

func TestConsoleBindAndFlush(t *testing.T) {
	c, _ := newTestConsole(t)

	v, err := c.eval(`var a = rc.bind(3, "rw"); rc.realize(a); rc.loc(a)`)
	require.NoError(t, err)
	assert.Equal(t, "rax", v.String())

	v, err = c.eval(`rc.release(a); rc.check()`)
	require.NoError(t, err)
	assert.Equal(t, "ok", v.String())

	v, err = c.eval(`rc.stats().loads`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())

	v, err = c.eval(`rc.flushAll(); rc.stats().stores`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())

	v, err = c.eval(`rc.code()`)
	require.NoError(t, err)
	assert.Contains(t, v.String(), "mov")
}

func TestConsoleImmediatesAndFork(t *testing.T) {
	c, _ := newTestConsole(t)

	v, err := c.eval(`rc.setImm(2, 16); var u = rc.use(2, "r"); rc.realize(u); var l = rc.loc(u); rc.release(u); l`)
	require.NoError(t, err)
	assert.Equal(t, "$0x10", v.String())

	v, err = c.eval(`rc.diff()`)
	require.NoError(t, err)
	assert.Contains(t, v.String(), "immediate")

	_, err = c.eval(`rc.fork(); var b = rc.bind(4, "w"); rc.realize(b); rc.release(b); rc.endFork()`)
	require.NoError(t, err)
	v, err = c.eval(`rc.tree()`)
	require.NoError(t, err)
	assert.Contains(t, v.String(), "regcache")

	_, err = c.eval(`rc.endFork()`)
	assert.ErrorContains(t, err, "no open fork")
}

func TestConsoleErrors(t *testing.T) {
	c, _ := newTestConsole(t)

	_, err := c.eval(`rc.use(99, "r")`)
	assert.ErrorContains(t, err, "InvalidRegister")

	_, err = c.eval(`rc.use(1, "x")`)
	assert.ErrorContains(t, err, "unknown mode")

	_, err = c.eval(`rc.revert()`)
	assert.NoError(t, err)

	_, err = c.eval(`var h = rc.bind(1, "r"); rc.flushAll()`)
	assert.ErrorContains(t, err, "OutstandingLocks")

	v, err := c.eval(`rc.errors()`)
	require.NoError(t, err)
	assert.Equal(t, []string{"InvalidRegister", "OutstandingLocks"}, v.Export())

	v, err = c.eval(`rc.reset(); rc.check()`)
	require.NoError(t, err)
	assert.Equal(t, "ok", v.String())
	v, err = c.eval(`rc.errors()`)
	require.NoError(t, err)
	assert.Empty(t, v.Export())
}

func TestConsolePrint(t *testing.T) {
	c, buf := newTestConsole(t)
	_, err := c.eval(`print("hello", 3)`)
	require.NoError(t, err)
	assert.Equal(t, "hello\n3\n", buf.String())
}
