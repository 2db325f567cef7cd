package proc

import (
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/futex"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/sched"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/vm"
)

// CloneFlags mirrors task/process.rs's CloneFlags bitflags (§4.4):
// whether the new task shares the caller's address space, fd table, and
// signal handlers, or gets independent copies.
type CloneFlags uint32

const (
	CloneVM      = CloneFlags(defs.CLONE_VM)
	CloneFS      = CloneFlags(defs.CLONE_FS)
	CloneFiles   = CloneFlags(defs.CLONE_FILES)
	CloneSighand = CloneFlags(defs.CLONE_SIGHAND)
	CloneThread  = CloneFlags(defs.CLONE_THREAD)
)

// Fork creates a new process that is a deep copy of parent (§4.4),
// grounded on task/process.rs's fork(): address space is duplicated byte
// for byte (vm.FromExistedUser, not copy-on-write; §3, §8), the fd table
// is shared by reference to the same underlying Files, and the child's
// single thread becomes its own process's main thread (tid == its own
// pid, invariant 5).
func Fork(parent *ProcessControlBlock) (*TaskControlBlock, defs.Err_t) {
	parent.mu.Lock()
	ms, ok := vm.FromExistedUser(parent.MemorySet)
	fds := parent.Fds.Fork()
	heapBase, heapEnd := parent.HeapBase, parent.HeapEnd
	actions := parent.SignalActions
	workPath, selfExe := parent.WorkPath, parent.SelfExe
	parent.mu.Unlock()
	if !ok {
		return nil, defs.ENOMEM
	}

	pid := allocPid()
	child := &ProcessControlBlock{
		Pid:           pid,
		Parent:        parent,
		MemorySet:     ms,
		Fds:           fds,
		HeapBase:      heapBase,
		HeapEnd:       heapEnd,
		SignalActions: actions,
		WorkPath:      workPath,
		SelfExe:       selfExe,
		ExitSignal:    defs.SIGCHLD,
	}
	pidMu.Lock()
	pidTable[pid] = child
	pidMu.Unlock()

	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()

	tcb := child.spawnThread(defs.Tid_t(pid))
	if !tcb.AllocTrapContext() {
		return nil, defs.ENOMEM
	}
	if caller := Current(); caller != nil && caller.Process == parent {
		tcb.Trap = caller.Trap
	}
	tcb.Trap.SetReturn(0) // fork(2) returns 0 in the child
	sched.PushBack(tcb)
	return tcb, defs.SUCCESS
}

// Clone creates a new thread within caller's process (§4.4) when flags
// includes CloneThread, mirroring task/process.rs's clone2(): it shares
// the process's address space and fd table rather than copying them, and
// its tid is freshly allocated rather than forced equal to a pid.
func Clone(caller *TaskControlBlock, flags CloneFlags, newStackTop, tls, ptid, ctid uintptr) (*TaskControlBlock, defs.Err_t) {
	if flags&CloneThread == 0 {
		return nil, defs.ENOSYS
	}
	p := caller.Process
	tid := p.allocTid()
	t := p.spawnThread(tid)
	if !t.AllocTrapContext() {
		return nil, defs.ENOMEM
	}
	t.Trap = caller.Trap
	if newStackTop != 0 {
		t.Trap.X[2] = uint64(newStackTop) // sp
	}
	if flags&CloneFlags(defs.CLONE_SETTLS) != 0 {
		t.Trap.X[4] = uint64(tls) // tp
	}
	t.Trap.SetReturn(0) // clone(2) returns 0 in the new thread

	// CLONE_PARENT_SETTID/CLONE_CHILD_SETTID write the new tid into the
	// caller's and/or child's address space (they are the same address
	// space under CLONE_VM/CLONE_THREAD); CLONE_CHILD_CLEARTID just
	// records ctid for the futex wake Exit performs on thread teardown
	// (§4.4).
	if flags&CloneFlags(defs.CLONE_PARENT_SETTID) != 0 && ptid != 0 {
		writeTidTo(p.MemorySet, ptid, tid)
	}
	if flags&CloneFlags(defs.CLONE_CHILD_SETTID) != 0 && ctid != 0 {
		writeTidTo(p.MemorySet, ctid, tid)
	}
	if flags&CloneFlags(defs.CLONE_CHILD_CLEARTID) != 0 {
		t.ClearChildTid = ctid
	}

	sched.PushBack(t)
	return t, defs.SUCCESS
}

func writeTidTo(ms *vm.MemorySet, va uintptr, tid defs.Tid_t) {
	b := make([]byte, 4)
	v := uint32(tid)
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
	ms.WriteUser(va, b)
}

// Execve replaces the calling process's address space with a freshly
// loaded image (§4.3), grounded on task/process.rs's exec(): it tears
// down the old MemorySet, installs the new one, resets the heap, and
// clears CLOEXEC-marked fds. Per POSIX, execve only affects the calling
// thread's process as a whole: every other thread in the process is
// killed first (§4.3's "execve is single-threaded afterward").
func Execve(caller *TaskControlBlock, ms *vm.MemorySet, heapBase, heapEnd uintptr, argv, envp []string) {
	p := caller.Process
	p.mu.Lock()
	old := p.MemorySet
	for _, t := range p.Tasks {
		if t != caller {
			t.SetStatus(Zombie)
			sched.Forget(t.SchedID())
		}
	}
	p.Tasks = []*TaskControlBlock{caller}
	p.MemorySet = ms
	p.HeapBase, p.HeapEnd = heapBase, heapEnd
	p.mu.Unlock()

	if old != nil {
		old.Destroy()
	}
	p.Fds.CloseAllOnExec()
}

// Exit marks t as exited with code, and if t was the process's last live
// thread, tears down the process: releases its address space, reparents
// its children to pid 1, and records the exit status for wait4 (§4.4,
// §7).
func Exit(t *TaskControlBlock, code int) {
	t.mu.Lock()
	t.Status = Zombie
	t.ExitCode = code
	ppn := t.TrapContextPpn
	t.TrapContextPpn = 0
	t.mu.Unlock()
	if ppn != 0 {
		mem.Dealloc(mem.Ppn_t(ppn))
	}
	sched.Forget(t.SchedID())

	p := t.Process
	if ctid := t.ClearChildTid; ctid != 0 {
		p.mu.Lock()
		ctidMs := p.MemorySet
		p.mu.Unlock()
		if ctidMs != nil {
			writeTidTo(ctidMs, ctid, 0)
		}
		futex.Wake(p.Pid, ctid, 1)
	}
	if p.ThreadCount() > 0 {
		return
	}

	p.mu.Lock()
	p.IsZombie = true
	p.ExitCode = code
	children := p.Children
	p.Children = nil
	ms := p.MemorySet
	p.MemorySet = nil
	parent := p.Parent
	p.mu.Unlock()

	if ms != nil {
		ms.Destroy()
	}
	futex.DropProcess(p.Pid)

	if initProc, ok := Lookup(defs.Pid_t(1)); ok && initProc != p {
		initProc.mu.Lock()
		initProc.Children = append(initProc.Children, children...)
		initProc.mu.Unlock()
		for _, c := range children {
			c.mu.Lock()
			c.Parent = initProc
			c.mu.Unlock()
		}
	}

	// Post the exit signal to the parent's pending set; RaiseGroup wakes
	// its main thread if it is blocked (§4.4's exit()/wait4() handoff).
	// ExitSignal is fixed at fork/NewInit time, so it is safe to read
	// without p.mu here.
	if parent != nil && p.ExitSignal != 0 {
		parent.RaiseGroup(p.ExitSignal)
	}
}

// Reap removes pid from the global pid table, performed by a parent's
// successful wait4 on a zombie child (task/process.rs's wait semantics):
// a pid stays allocated, and the child stays a Wait4-visible zombie,
// until its parent collects it.
func Reap(pid defs.Pid_t) {
	freePid(pid)
}
