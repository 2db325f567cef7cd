// Package mem implements the physical frame allocator (§4.1): a
// bump-plus-free-list allocator over a fixed window of physical page
// numbers, and the FrameTracker RAII handle that ties a frame's lifetime
// to whichever MapArea or heap/mmap dictionary owns it (§3).
//
// The allocator itself is grounded on the teacher's mem.Physmem_t
// (mem/mem.go) for naming and on the Rust original's StackFrameAllocator
// for semantics: biscuit's allocator is a per-cpu refcounted design built
// for SMP, which is more machinery than a single-hart kernel needs, so we
// keep biscuit's Pa_t/PPN vocabulary but reduce the algorithm to the
// bump+recycled-list scheme the spec calls for.
package mem

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Ppn_t is a physical page number (a physical address shifted right by
// PAGE_SHIFT bits).
type Ppn_t uint64

const pageSize = 0x1000

// OOMHook is called when the allocator is exhausted; if it releases no
// frame, the allocation reports failure (ok == false). The filesystem collaborator is expected to register a hook that
// drops cached pages and returns how many frames it released (§4.1, §9).
type OOMHook func(need int) (released int)

// allocator is the single, package-global bump+free-list allocator. A real
// kernel has exactly one: there is only one hart and one physical memory
// window.
type allocator struct {
	mu sync.Mutex

	lo, hi   Ppn_t // [lo, hi) is the adopted window
	current  Ppn_t // next never-yet-handed-out ppn
	recycled []Ppn_t

	oom OOMHook
}

var global allocator

// Init adopts the window [loPpn, hiPpn) as free, as in §4.1's init. It must
// be called exactly once, before the first Alloc.
func Init(loPpn, hiPpn Ppn_t) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.lo = loPpn
	global.hi = hiPpn
	global.current = loPpn
	global.recycled = global.recycled[:0]
	logrus.WithFields(logrus.Fields{
		"lo_ppn": loPpn,
		"hi_ppn": hiPpn,
		"frames": hiPpn - loPpn,
	}).Info("mem: frame allocator initialized")
}

// SetOOMHook installs the filesystem collaborator's page-cache eviction
// hook (§4.1, §9).
func SetOOMHook(h OOMHook) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.oom = h
}

func (a *allocator) allocLocked() (Ppn_t, bool) {
	if n := len(a.recycled); n > 0 {
		ppn := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return ppn, true
	}
	if a.current == a.hi {
		return 0, false
	}
	ppn := a.current
	a.current++
	return ppn, true
}

// rawAlloc hands out one physical frame, without zeroing it, invoking the
// OOM hook on exhaustion before giving up. It never blocks (§4.1).
func rawAlloc() (Ppn_t, bool) {
	global.mu.Lock()
	ppn, ok := global.allocLocked()
	hook := global.oom
	global.mu.Unlock()
	if ok {
		return ppn, true
	}
	if hook == nil {
		return 0, false
	}
	if released := hook(1); released < 1 {
		return 0, false
	}
	global.mu.Lock()
	ppn, ok = global.allocLocked()
	global.mu.Unlock()
	return ppn, ok
}

// Dealloc returns ppn to the free list (§4.1). It panics on a double-free
// or an out-of-range ppn, since that indicates page-table corruption, a
// fatal condition per §7.
func Dealloc(ppn Ppn_t) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if ppn >= global.current || ppn < global.lo {
		panic(fmt.Sprintf("mem: frame ppn=%#x has not been allocated", ppn))
	}
	for _, r := range global.recycled {
		if r == ppn {
			panic(fmt.Sprintf("mem: double free of frame ppn=%#x", ppn))
		}
	}
	global.recycled = append(global.recycled, ppn)
}

// Unallocated reports how many frames remain available, for reservation
// checks and OOM accounting (§4.1).
func Unallocated() int {
	global.mu.Lock()
	defer global.mu.Unlock()
	return len(global.recycled) + int(global.hi-global.current)
}

// FrameTracker is the RAII handle from §3/§9: at most one owning tracker
// exists per ppn; a Cover()-created tracker is non-owning and never frees
// on release, because some other owner (a Marked MapArea's source) is
// responsible for it.
type FrameTracker struct {
	Ppn   Ppn_t
	owned bool
}

// New allocates a frame and zero-fills it before returning, per §4.1's
// invariant that a frame is always zeroed before first use.
func New() (*FrameTracker, bool) {
	ppn, ok := rawAlloc()
	if !ok {
		return nil, false
	}
	Zero(ppn)
	return &FrameTracker{Ppn: ppn, owned: true}, true
}

// Cover wraps ppn in a non-owning tracker: Release is then a no-op,
// because some other FrameTracker (or the page cache) owns the frame's
// lifetime (§4.1; used for Marked map areas).
func Cover(ppn Ppn_t) *FrameTracker {
	return &FrameTracker{Ppn: ppn, owned: false}
}

// Release returns the frame to the allocator if this tracker owns it.
// Safe to call more than once; only the first call has an effect.
func (f *FrameTracker) Release() {
	if f == nil || !f.owned {
		return
	}
	f.owned = false
	Dealloc(f.Ppn)
}

// Bytes returns the 4 KiB backing store for the frame, aliased directly
// onto physical memory via the kernel's identity map. Outside of a real
// MMU this is simulated with an in-process byte arena so tests can
// exercise read/write/copy semantics without real physical memory.
func (f *FrameTracker) Bytes() []byte {
	return Bytes(f.Ppn)
}

// arena backs every frame's contents for this in-process simulation: the
// kernel normally reaches a frame's bytes through the identity-mapped
// kernel address space, which this package stands in for.
var arena = map[Ppn_t]*[pageSize]byte{}
var arenaMu sync.Mutex

// Bytes returns the page contents for ppn, allocating backing storage for
// it lazily. It is the one place the allocator fakes "physical memory" so
// the rest of the kernel can treat frames as addressable storage.
func Bytes(ppn Ppn_t) []byte {
	arenaMu.Lock()
	defer arenaMu.Unlock()
	pg, ok := arena[ppn]
	if !ok {
		pg = &[pageSize]byte{}
		arena[ppn] = pg
	}
	return pg[:]
}

// Zero clears a frame's contents; FrameTracker.New relies on this to
// satisfy the "always zeroed before first use" invariant.
func Zero(ppn Ppn_t) {
	b := Bytes(ppn)
	for i := range b {
		b[i] = 0
	}
}
