package proc

import (
	"testing"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/sched"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/vm"
)

func freshMemSet(t *testing.T) *vm.MemorySet {
	mem.Init(0, 256)
	ms, ok := vm.NewMemorySet()
	if !ok {
		t.Fatal("expected memory set creation to succeed")
	}
	return ms
}

func TestNewInitTidEqualsPid(t *testing.T) {
	ms := freshMemSet(t)
	tcb := NewInit(ms, 0, 0)
	if tcb.Tid != defs.Tid_t(tcb.Process.Pid) {
		t.Fatalf("main thread tid=%d, process pid=%d, want equal", tcb.Tid, tcb.Process.Pid)
	}
	if tcb.Process.MainThread() != tcb {
		t.Fatal("expected MainThread() to return the thread just created")
	}
}

func TestForkExitWaitRoundTrip(t *testing.T) {
	ms := freshMemSet(t)
	parentTcb := NewInit(ms, 0, 0)
	parent := parentTcb.Process

	childTcb, err := Fork(parent)
	if err != defs.SUCCESS {
		t.Fatalf("Fork failed: %d", err)
	}
	if !sched.IsReady(childTcb.SchedID()) {
		t.Fatal("expected forked child's thread to be enqueued ready")
	}

	Exit(childTcb, 7)

	ws, err := Wait4(parent, 0, false)
	if err != defs.SUCCESS {
		t.Fatalf("Wait4 failed: %d", err)
	}
	if !ws.Valid {
		t.Fatal("expected a valid wait status")
	}
	if ws.Pid != childTcb.Process.Pid {
		t.Fatalf("Wait4 pid = %d, want %d", ws.Pid, childTcb.Process.Pid)
	}
	if ws.Status != 7 {
		t.Fatalf("Wait4 status = %d, want 7", ws.Status)
	}

	if _, ok := Lookup(childTcb.Process.Pid); ok {
		t.Fatal("expected reaped child's pid to be removed from the pid table")
	}
}

func TestExitPostsSigchldAndWakesParent(t *testing.T) {
	ms := freshMemSet(t)
	parentTcb := NewInit(ms, 0, 0)
	parent := parentTcb.Process

	childTcb, err := Fork(parent)
	if err != defs.SUCCESS {
		t.Fatalf("Fork failed: %d", err)
	}
	parentTcb.SetStatus(Blocked)

	Exit(childTcb, 3)

	if parent.PendingGroup&(1<<uint(defs.SIGCHLD-1)) == 0 {
		t.Fatal("expected SIGCHLD to be pending on the parent process")
	}
	if !sched.IsReady(parentTcb.SchedID()) {
		t.Fatal("expected the blocked parent's main thread to be woken")
	}
}

// TestCloneHonorsTidFlags exercises §4.4's clone(flags, stack, ptid, tls,
// ctid): CLONE_PARENT_SETTID/CLONE_CHILD_SETTID must write the new tid
// into the caller's address space, and CLONE_CHILD_CLEARTID must record
// ctid as the new thread's clear_child_tid.
func TestCloneHonorsTidFlags(t *testing.T) {
	ms := freshMemSet(t)
	tcb := NewInit(ms, 0, 0)

	ptid := uintptr(0x9000)
	ctid := uintptr(0x9010)
	ms.InsertArea(vm.NewMapArea(0x9000, 0x9000+uintptr(defs.PAGE_SIZE), vm.Framed, vm.PTE_R|vm.PTE_W|vm.PTE_U))

	flags := CloneThread |
		CloneFlags(defs.CLONE_PARENT_SETTID) |
		CloneFlags(defs.CLONE_CHILD_SETTID) |
		CloneFlags(defs.CLONE_CHILD_CLEARTID)
	child, err := Clone(tcb, flags, 0, 0, ptid, ctid)
	if err != defs.SUCCESS {
		t.Fatalf("Clone failed: %d", err)
	}

	for _, addr := range []uintptr{ptid, ctid} {
		got, ok := ms.ReadUser(addr, 4)
		if !ok {
			t.Fatalf("expected to read tid back at %#x", addr)
		}
		tid := uint32(got[0]) | uint32(got[1])<<8 | uint32(got[2])<<16 | uint32(got[3])<<24
		if defs.Tid_t(tid) != child.Tid {
			t.Fatalf("tid written at %#x = %d, want %d", addr, tid, child.Tid)
		}
	}
	if child.ClearChildTid != ctid {
		t.Fatalf("ClearChildTid = %#x, want %#x", child.ClearChildTid, ctid)
	}
}

func TestWaitOnNonChildFails(t *testing.T) {
	ms := freshMemSet(t)
	parentTcb := NewInit(ms, 0, 0)

	unrelatedMs := freshMemSet(t)
	unrelatedTcb := NewInit(unrelatedMs, 0, 0)

	_, err := Wait4(parentTcb.Process, unrelatedTcb.Process.Pid, false)
	if err != defs.ECHILD {
		t.Fatalf("Wait4 on non-child = %d, want ECHILD", err)
	}
}

func TestWaitWithNoChildrenFails(t *testing.T) {
	ms := freshMemSet(t)
	tcb := NewInit(ms, 0, 0)

	_, err := Wait4(tcb.Process, 0, false)
	if err != defs.ECHILD {
		t.Fatalf("Wait4 with no children = %d, want ECHILD", err)
	}
}

func TestDoubleWaitOnSamePidSecondFails(t *testing.T) {
	ms := freshMemSet(t)
	parentTcb := NewInit(ms, 0, 0)
	parent := parentTcb.Process

	childTcb, _ := Fork(parent)
	Exit(childTcb, 0)

	if _, err := Wait4(parent, childTcb.Process.Pid, false); err != defs.SUCCESS {
		t.Fatalf("first Wait4 failed: %d", err)
	}
	if _, err := Wait4(parent, childTcb.Process.Pid, false); err != defs.ECHILD {
		t.Fatalf("second Wait4 on same pid = %d, want ECHILD", err)
	}
}
