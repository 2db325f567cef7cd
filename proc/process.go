// Package proc implements the task/process model (§4.4): TaskControlBlock
// (one schedulable thread) and ProcessControlBlock (the process-wide state
// a group of threads share), the pid/tid allocators, and fork/clone/
// execve/wait4/exit.
//
// Grounded on the teacher's proc/proc.go for the Go vocabulary around a
// process's control block (Waitst_t-style exit-status records, an
// accounting struct per task) and on
// _examples/original_source/kernel/src/task/process.rs and task/task.rs
// for the actual split between per-thread and per-process state, which
// biscuit does not need because it is single-threaded per Proc_t.
package proc

import (
	"sync"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/sched"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/vm"
)

// TaskStatus mirrors task/task.rs's TaskStatus enum (§4.4).
type TaskStatus int

const (
	Ready TaskStatus = iota
	Running
	Blocked
	Zombie
)

// TaskContext is the minimal register snapshot the scheduler swaps in
// simulation of task/context.rs's TaskContext; because this module never
// executes real RISC-V instructions there is no hardware register file to
// save, so only the bookkeeping the scheduler itself needs is kept: where
// a task resumes into the simulated trap-return/runnable loop. Grounded on the original's ra/sp/s-registers
// layout, reduced to its control-flow meaning rather than its bit layout.
type TaskContext struct {
	ResumePoint func()
}

// TaskControlBlock is one schedulable thread (§4.4), analogous to
// biscuit's Proc_t but deliberately split from process-wide state because
// biscuit has no thread/process distinction and this kernel does.
type TaskControlBlock struct {
	mu sync.Mutex

	Tid     defs.Tid_t
	Process *ProcessControlBlock // never nil; the owning process

	Status   TaskStatus
	ExitCode int

	// TrapContextPpn is the frame that would back this thread's trap
	// context page at defs.TrapContextVA in a real address space
	// (trap/context.rs); reserved by AllocTrapContext so the same
	// ownership/accounting invariant mem tracks for every other page
	// holds for this one too (§4.1, §8), even though Trap below is the
	// struct the rest of the kernel actually reads and writes.
	TrapContextPpn uint64
	Trap           trap.TrapContext
	Ctx            TaskContext

	SignalMask    uint64
	SignalPending uint64
	HandlingSig   int
	Killed        bool
	Frozen        bool

	ClearChildTid uintptr

	pendingBackup *signalBackup
	restoreInto   *trap.TrapContext
}

func (t *TaskControlBlock) Lock()   { t.mu.Lock() }
func (t *TaskControlBlock) Unlock() { t.mu.Unlock() }

func (t *TaskControlBlock) SetStatus(s TaskStatus) {
	t.mu.Lock()
	t.Status = s
	t.mu.Unlock()
}

func (t *TaskControlBlock) GetStatus() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Status
}

// AllocTrapContext reserves the frame backing t's trap context page
// (§4.1, §4.10); it must succeed before a task is ever handed to the
// scheduler. Returns false on physical memory exhaustion.
func (t *TaskControlBlock) AllocTrapContext() bool {
	f, ok := mem.New()
	if !ok {
		return false
	}
	t.mu.Lock()
	t.TrapContextPpn = uint64(f.Ppn)
	t.mu.Unlock()
	return true
}

// SchedID identifies t uniquely across every process, satisfying
// sched.Schedulable: pid and tid together, since tid alone only
// disambiguates threads within one process.
func (t *TaskControlBlock) SchedID() uint64 {
	return uint64(uint32(t.Process.Pid))<<32 | uint64(uint32(t.Tid))
}

// ID satisfies futex.Waiter and timer.Sleeper, both of which are kept
// independent of this package's struct layout to avoid an import cycle.
func (t *TaskControlBlock) ID() uint64 { return t.SchedID() }

// Wake moves a blocked thread back onto the ready queue, at the front so
// a just-woken waiter runs before tasks that were merely preempted
// (§4.4's wake-vs-preempt ordering), and satisfies futex.Waiter/
// timer.Sleeper.
func (t *TaskControlBlock) Wake() {
	t.SetStatus(Ready)
	sched.PushFront(t)
}

// ProcessControlBlock is the process-wide state a group of threads share
// (§4.4): address space, fd table, signal dispositions, children list.
// Grounded on task/process.rs's ProcessControlBlockInner, re-expressed
// with an explicit mutex instead of the original's UPSafeCell (this
// kernel is not assumed single-hart-without-preemption the way the
// original's interior-mutability trick relies on; §4.4, §8).
type ProcessControlBlock struct {
	mu sync.Mutex

	Pid    defs.Pid_t
	Parent *ProcessControlBlock
	Children []*ProcessControlBlock

	IsZombie bool
	ExitCode int
	ExitSignal int

	MemorySet *vm.MemorySet

	Tasks          []*TaskControlBlock
	nextTid        defs.Tid_t
	recycledTids   []defs.Tid_t

	Fds *FdTable

	HeapBase, HeapEnd uintptr

	SignalActions [defs.MaxSig + 1]SigAction
	SignalMask    uint64
	PendingGroup  uint64

	WorkPath string
	SelfExe  string
}

// SigAction mirrors rt_sigaction's disposition record (§4.7): a handler
// address (or SigDfl/SigIgn) plus the mask to install while the handler
// runs.
type SigAction struct {
	Handler uintptr
	Mask    uint64
}

var (
	pidMu       sync.Mutex
	nextPid     = defs.Pid_t(1)
	recycledPid []defs.Pid_t
	pidTable    = map[defs.Pid_t]*ProcessControlBlock{}
)

func allocPid() defs.Pid_t {
	pidMu.Lock()
	defer pidMu.Unlock()
	if n := len(recycledPid); n > 0 {
		p := recycledPid[n-1]
		recycledPid = recycledPid[:n-1]
		return p
	}
	p := nextPid
	nextPid++
	return p
}

func freePid(p defs.Pid_t) {
	pidMu.Lock()
	defer pidMu.Unlock()
	delete(pidTable, p)
	recycledPid = append(recycledPid, p)
}

// Lookup returns the process with the given pid, if it is still alive.
func Lookup(pid defs.Pid_t) (*ProcessControlBlock, bool) {
	pidMu.Lock()
	defer pidMu.Unlock()
	p, ok := pidTable[pid]
	return p, ok
}

// current is the thread occupying the single hart this kernel simulates,
// set by the scheduler each time it resumes a task. Biscuit tracks this
// per logical CPU; since this design has exactly one hart, one global
// suffices (§4.4, §5).
var (
	currentMu sync.Mutex
	current   *TaskControlBlock
)

// SetCurrent records t as the running thread, called by cmd/kernel's
// scheduling step (runQuantum) for each task sched.Run pops from the
// ready queue.
func SetCurrent(t *TaskControlBlock) {
	currentMu.Lock()
	current = t
	currentMu.Unlock()
}

// Current returns the running thread, or nil if the hart is idle.
func Current() *TaskControlBlock {
	currentMu.Lock()
	defer currentMu.Unlock()
	return current
}

// NewInit creates the first process (§4.4, analogous to task/process.rs's
// ProcessControlBlock::new for initproc): it has no parent and its main
// thread's tid is forced to equal its pid (invariant 5, §8).
func NewInit(ms *vm.MemorySet, heapBase, heapEnd uintptr) *TaskControlBlock {
	pid := allocPid()
	pcb := &ProcessControlBlock{
		Pid:       pid,
		MemorySet: ms,
		Fds:       NewFdTable(),
		HeapBase:  heapBase,
		HeapEnd:   heapEnd,
		ExitSignal: defs.SIGCHLD,
	}
	pidMu.Lock()
	pidTable[pid] = pcb
	pidMu.Unlock()

	tcb := pcb.spawnThread(defs.Tid_t(pid))
	return tcb
}

// spawnThread appends a new thread with the given tid to the process and
// returns it. The caller must already have allocated tid.
func (p *ProcessControlBlock) spawnThread(tid defs.Tid_t) *TaskControlBlock {
	t := &TaskControlBlock{
		Tid:     tid,
		Process: p,
		Status:  Ready,
	}
	p.mu.Lock()
	p.Tasks = append(p.Tasks, t)
	if tid >= p.nextTid {
		p.nextTid = tid + 1
	}
	p.mu.Unlock()
	return t
}

// allocTid returns a tid for a clone()d thread within p: the last entry of
// recycledTids if there is one, otherwise the next unused tid
// (task/task.rs-adjacent task/id.rs). Nothing in this package adds to
// recycledTids, so the tids of exited threads are not reused.
func (p *ProcessControlBlock) allocTid() defs.Tid_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.recycledTids); n > 0 {
		t := p.recycledTids[n-1]
		p.recycledTids = p.recycledTids[:n-1]
		return t
	}
	t := p.nextTid
	p.nextTid++
	return t
}

// MainThread returns tasks[0], the thread whose tid equals the process's
// pid (invariant 5, §8).
func (p *ProcessControlBlock) MainThread() *TaskControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Tasks) == 0 {
		return nil
	}
	return p.Tasks[0]
}

// ForEachOtherTask invokes fn for every thread in p except caller, used
// by exit_group to retire a multi-threaded process's other threads
// (§4.4).
func (p *ProcessControlBlock) ForEachOtherTask(caller *TaskControlBlock, fn func(*TaskControlBlock)) {
	p.mu.Lock()
	tasks := append([]*TaskControlBlock{}, p.Tasks...)
	p.mu.Unlock()
	for _, tt := range tasks {
		if tt != caller {
			fn(tt)
		}
	}
}

// ParentPid returns the parent's pid, or 1 (init) if p has no live
// parent, for getppid(2) (§6).
func (p *ProcessControlBlock) ParentPid() defs.Pid_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Parent == nil {
		return 1
	}
	return p.Parent.Pid
}

// ThreadCount reports how many threads the process currently has, for
// exit()'s "last thread tears down the process" rule (§4.4).
func (p *ProcessControlBlock) ThreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.Tasks {
		if t.GetStatus() != Zombie {
			n++
		}
	}
	return n
}
