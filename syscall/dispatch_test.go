package syscall

import (
	"testing"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/vm"
)

func freshThread(t *testing.T) *proc.TaskControlBlock {
	mem.Init(0, 256)
	ms, ok := vm.NewMemorySet()
	if !ok {
		t.Fatal("expected memory set creation to succeed")
	}
	return proc.NewInit(ms, 0, 0)
}

func ctxFor(nr uint64, args ...uint64) *trap.TrapContext {
	var c trap.TrapContext
	c.X[17] = nr
	for i, a := range args {
		c.X[10+i] = a
	}
	return &c
}

func TestDispatchGetpid(t *testing.T) {
	tcb := freshThread(t)
	ctx := ctxFor(defs.SYS_GETPID)
	Dispatch(tcb, ctx)
	if got := ctx.X[10]; got != uint64(tcb.Process.Pid) {
		t.Fatalf("getpid returned %d, want %d", got, tcb.Process.Pid)
	}
}

func TestDispatchUnknownSyscallReturnsENOSYS(t *testing.T) {
	tcb := freshThread(t)
	ctx := ctxFor(9999)
	Dispatch(tcb, ctx)
	if int64(ctx.X[10]) != int64(defs.ENOSYS) {
		t.Fatalf("unknown syscall returned %d, want ENOSYS (%d)", int64(ctx.X[10]), defs.ENOSYS)
	}
}

func TestDispatchWriteToStdout(t *testing.T) {
	tcb := freshThread(t)
	buf := uintptr(0x9000)
	ms := tcb.Process.MemorySet
	ms.InsertArea(vm.NewMapArea(buf, buf+0x1000, vm.Framed, vm.PTE_R|vm.PTE_W|vm.PTE_U))
	msg := []byte("hi\n")
	ms.WriteUser(buf, msg)

	ctx := ctxFor(defs.SYS_WRITE, 1, uint64(buf), uint64(len(msg)))
	Dispatch(tcb, ctx)
	if got := int64(ctx.X[10]); got != int64(len(msg)) {
		t.Fatalf("write returned %d, want %d", got, len(msg))
	}
}

func TestDispatchBrkQueryReturnsCurrentEnd(t *testing.T) {
	tcb := freshThread(t)
	tcb.Process.MemorySet.HeapEnd = 0x20000
	ctx := ctxFor(defs.SYS_BRK, 0)
	Dispatch(tcb, ctx)
	if ctx.X[10] != 0x20000 {
		t.Fatalf("brk(0) returned %#x, want %#x", ctx.X[10], 0x20000)
	}
}

// TestDispatchWait4EncodesStatusWord exercises §8 scenario 2: a child
// exiting with code 42 is reported to wait4 as status word 42*256.
func TestDispatchWait4EncodesStatusWord(t *testing.T) {
	parent := freshThread(t)
	childTcb, err := proc.Fork(parent.Process)
	if err != defs.SUCCESS {
		t.Fatalf("fork failed: %d", err)
	}
	proc.Exit(childTcb, 42)

	statusPtr := uintptr(0x9000)
	ms := parent.Process.MemorySet
	ms.InsertArea(vm.NewMapArea(statusPtr, statusPtr+0x1000, vm.Framed, vm.PTE_R|vm.PTE_W|vm.PTE_U))

	ctx := ctxFor(defs.SYS_WAIT4, ^uint64(0), uint64(statusPtr), 0)
	Dispatch(parent, ctx)
	if got := int64(ctx.X[10]); got != int64(childTcb.Process.Pid) {
		t.Fatalf("wait4 returned pid %d, want %d", got, childTcb.Process.Pid)
	}
	buf, ok := ms.ReadUser(statusPtr, 4)
	if !ok {
		t.Fatal("expected to read back the status word")
	}
	status := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	if status != 42*256 {
		t.Fatalf("status word = %d, want %d", status, 42*256)
	}
}

func TestDispatchAbiStubsAlwaysSucceed(t *testing.T) {
	tcb := freshThread(t)
	for _, nr := range []uint64{defs.SYS_MOUNT, defs.SYS_UMOUNT2, defs.SYS_UMASK} {
		ctx := ctxFor(nr)
		Dispatch(tcb, ctx)
		if int64(ctx.X[10]) != 0 {
			t.Fatalf("stub syscall %d returned %d, want 0", nr, int64(ctx.X[10]))
		}
	}
}
