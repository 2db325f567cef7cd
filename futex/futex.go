// Package futex implements process-private futex wait/wake (§4.8),
// grounded directly on
// _examples/original_source/kernel/src/sync/futex.rs: a map keyed by
// user virtual address, each holding a FIFO wait queue of blocked
// threads. Only FUTEX_PRIVATE_FLAG is supported (§4.8, §9): there is no
// shared-memory mapping across processes in this design, so a futex key
// is always (pid, uaddr), never a cross-process identity.
package futex

import (
	"sync"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

// Waiter is the minimal handle futex needs from a blocked task: an
// identity for the wait queue and a way to wake it back into the ready
// queue. Package proc's TaskControlBlock satisfies it directly and the
// syscall layer passes the thread itself, keeping futex free of a proc
// import (avoiding a dependency cycle: proc calls into futex, as Exit's
// DropProcess call does, not the other way around).
type Waiter interface {
	ID() uint64
	Wake()
}

type key struct {
	pid   defs.Pid_t
	uaddr uintptr
}

type entry struct {
	mu    sync.Mutex
	queue []Waiter
}

var (
	mu    sync.Mutex
	table = map[key]*entry{}
)

func getOrCreate(pid defs.Pid_t, uaddr uintptr) *entry {
	k := key{pid, uaddr}
	mu.Lock()
	defer mu.Unlock()
	e, ok := table[k]
	if !ok {
		e = &entry{}
		table[k] = e
	}
	return e
}

func peek(pid defs.Pid_t, uaddr uintptr) (*entry, bool) {
	k := key{pid, uaddr}
	mu.Lock()
	defer mu.Unlock()
	e, ok := table[k]
	return e, ok
}

// Wait registers w on uaddr's wait queue if *cur equals expected,
// matching futex_wait's compare-and-block (futex.rs): a mismatch returns
// EAGAIN immediately rather than blocking, so the caller never misses a
// wakeup that raced ahead of the syscall (§4.8).
func Wait(pid defs.Pid_t, uaddr uintptr, cur uint32, expected uint32, w Waiter) defs.Err_t {
	if cur != expected {
		return defs.EAGAIN
	}
	e := getOrCreate(pid, uaddr)
	e.mu.Lock()
	e.queue = append(e.queue, w)
	e.mu.Unlock()
	return defs.SUCCESS
}

// Wake pops up to n waiters from uaddr's queue and wakes each, returning
// how many were woken, matching futex_signal (futex.rs). EINVAL is
// returned only when no queue has ever been created for uaddr, the same
// distinction the original draws between "nobody is waiting" (0 woken,
// success) and "no such futex" (error) is not actually made by Linux, but
// is by this kernel's original source, so it is preserved here (§9).
func Wake(pid defs.Pid_t, uaddr uintptr, n int) (int, defs.Err_t) {
	e, ok := peek(pid, uaddr)
	if !ok {
		return 0, defs.EINVAL
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	woken := 0
	for woken < n && len(e.queue) > 0 {
		w := e.queue[0]
		e.queue = e.queue[1:]
		w.Wake()
		woken++
	}
	return woken, defs.SUCCESS
}

// DropProcess discards every futex entry belonging to pid, for process
// teardown on exit (§4.4): a dead process's futexes can never be waited
// on again.
func DropProcess(pid defs.Pid_t) {
	mu.Lock()
	defer mu.Unlock()
	for k := range table {
		if k.pid == pid {
			delete(table, k)
		}
	}
}
