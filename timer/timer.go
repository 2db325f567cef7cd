// Package timer implements the monotonic tick source and the sleep
// queue backing nanosleep (§4.9), grounded on
// _examples/original_source/kernel/src/timer.rs: a min-heap of
// (wake-tick, waiter) pairs, checked once per timer interrupt.
package timer

import (
	"container/heap"
	"sync"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

// current is the kernel's free-running tick counter, advanced once per
// simulated timer interrupt (timer.rs's TICKS).
var (
	mu      sync.Mutex
	current uint64
)

func Now() uint64 {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// Advance moves the tick counter forward by n ticks and wakes every
// sleeper whose deadline has passed, returning the woken waiters in
// deadline order (timer.rs's check_timer, called from the SupervisorTimer
// trap path, trap/mod.rs).
func Advance(n uint64) []Sleeper {
	mu.Lock()
	current += n
	now := current
	mu.Unlock()

	var woken []Sleeper
	pq.mu.Lock()
	for pq.h.Len() > 0 && pq.h[0].deadline <= now {
		item := heap.Pop(&pq.h).(*item)
		woken = append(woken, item.s)
	}
	pq.mu.Unlock()
	return woken
}

// Sleeper is the minimal handle the timer needs to wake a blocked task,
// parallel to futex.Waiter: kept as an interface so this package does not
// import proc and create a cycle.
type Sleeper interface {
	ID() uint64
	Wake()
}

type item struct {
	deadline uint64
	s        Sleeper
	index    int
}

type itemHeap []*item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(*item)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

var pq = struct {
	mu sync.Mutex
	h  itemHeap
}{}

// SleepUntil registers s to be woken at or after deadline tick, as
// nanosleep's blocking half does (§4.9).
func SleepUntil(deadline uint64, s Sleeper) {
	pq.mu.Lock()
	heap.Push(&pq.h, &item{deadline: deadline, s: s})
	pq.mu.Unlock()
}

// NanosleepTicks converts a (seconds, nanoseconds) duration into a tick
// count at the configured tick frequency, for sys_nanosleep's argument
// marshalling (§6).
func NanosleepTicks(ticksPerSecond uint64, sec, nsec uint64) uint64 {
	return sec*ticksPerSecond + (nsec*ticksPerSecond)/1_000_000_000
}

// ITimer mirrors setitimer/getitimer's value/interval pair (§4.9, §9:
// kept for ABI compatibility even though no userland program in scope
// exercises repeating timers).
type ITimer struct {
	ValueTicks    uint64
	IntervalTicks uint64
}

// ITimerVal is the process-visible current/next state of an interval
// timer (task/process.rs's ProcessControlBlockInner.itimer); no syscall
// in this kernel returns it.
type ITimerVal struct {
	Armed     bool
	Remaining uint64
	Interval  uint64
}

// Rusage mirrors the teacher's accnt-style CPU-time accounting
// (task/rusage.rs). No syscall reads it: times(2) reports the tick
// counter and wait4 reports only the exit status.
type Rusage struct {
	UTimeTicks uint64
	STimeTicks uint64
}

func (r *Rusage) AddUser(ticks uint64) { r.UTimeTicks += ticks }
func (r *Rusage) AddSys(ticks uint64)  { r.STimeTicks += ticks }

// ValidateTimespec rejects a negative or overflowing nsec field the way
// clock_gettime/nanosleep's argument validation must (§6, §7).
func ValidateTimespec(sec int64, nsec int64) defs.Err_t {
	if sec < 0 || nsec < 0 || nsec >= 1_000_000_000 {
		return defs.EINVAL
	}
	return defs.SUCCESS
}
