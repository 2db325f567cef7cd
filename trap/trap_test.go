package trap

import (
	"testing"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

func TestSyscallArgsReadsA0ThroughA5(t *testing.T) {
	var c TrapContext
	c.X[10] = 1
	c.X[11] = 2
	c.X[12] = 3
	c.X[17] = 64 // SYS_WRITE
	if c.SyscallNumber() != 64 {
		t.Fatalf("SyscallNumber() = %d, want 64", c.SyscallNumber())
	}
	args := c.SyscallArgs()
	if args[0] != 1 || args[1] != 2 || args[2] != 3 {
		t.Fatalf("SyscallArgs() = %v, want [1 2 3 0 0 0]", args)
	}
}

func TestAdvancePastEcall(t *testing.T) {
	c := TrapContext{Sepc: 0x1000}
	c.AdvancePastEcall()
	if c.Sepc != 0x1004 {
		t.Fatalf("Sepc = %#x, want %#x", c.Sepc, 0x1004)
	}
}

func TestAppInitContextSetsEntryAndStack(t *testing.T) {
	c := AppInitContext(0x1000, 0xf000, 0x8000, 2, 0x2000, 0x3000, 0x4000)
	if c.Sepc != 0x1000 || c.X[2] != 0xf000 {
		t.Fatalf("unexpected entry/sp in AppInitContext: sepc=%#x sp=%#x", c.Sepc, c.X[2])
	}
	if c.X[10] != 2 || c.X[11] != 0x2000 || c.X[12] != 0x3000 || c.X[13] != 0x4000 {
		t.Fatalf("unexpected argc/argv/envp/auxv: %v", c.X[10:14])
	}
}

func TestDispatchRunsSyscallHandlerAndAdvancesSepc(t *testing.T) {
	var called bool
	h := Handlers{
		Syscall: func(tid uint64, ctx *TrapContext) { called = true },
	}
	ctx := &TrapContext{Sepc: 0x2000}
	Dispatch(h, 1, UserEnvCall, ctx, 0)
	if !called {
		t.Fatal("expected Syscall handler to run for UserEnvCall")
	}
	if ctx.Sepc != 0x2004 {
		t.Fatalf("Sepc = %#x, want %#x after AdvancePastEcall", ctx.Sepc, 0x2004)
	}
}

func TestDispatchReportsExitFromAfterEachTrap(t *testing.T) {
	h := Handlers{
		AfterEachTrap: func(tid uint64) (bool, int) { return true, 9 },
	}
	exit, code := Dispatch(h, 1, UserEnvCall, &TrapContext{}, 0)
	if !exit || code != 9 {
		t.Fatalf("Dispatch = (%v, %d), want (true, 9)", exit, code)
	}
}

func TestErrCodeRoundTrip(t *testing.T) {
	if ErrCode(defs.SUCCESS) != 0 {
		t.Fatal("expected SUCCESS to encode as 0")
	}
	if int64(ErrCode(defs.EINVAL)) >= 0 {
		t.Fatal("expected a negative a0 value for EINVAL")
	}
}
