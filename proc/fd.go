package proc

import (
	"sync"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/console"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

// File is the narrow interface every open file description satisfies
// (§4.5): this kernel does not implement a real on-disk filesystem
// (non-goal, §1), so the only concrete implementations are the console
// (package console) and an in-memory pipe; both are reached exclusively
// through this interface, the same role fdops.Fdops_i plays in the
// teacher (fdops/fdops.go).
type File interface {
	Read(buf []byte) (int, defs.Err_t)
	Write(buf []byte) (int, defs.Err_t)
	Close() defs.Err_t
}

// Fd is one entry of a process's file descriptor table, grounded on the
// teacher's Fd_t (fd/fd.go): a reference to the underlying file plus the
// permission/cloexec bits private to this table slot.
type Fd struct {
	File        File
	CloseOnExec bool
}

// DefaultNOFILE is the soft limit on open fds a fresh process starts
// with (§3: "a shared file-descriptor table ... with soft/hard NOFILE
// limits"); HardNOFILE is the ceiling a process may raise its own soft
// limit to.
const (
	DefaultNOFILE = 1024
	HardNOFILE    = 4096
)

// FdTable is a process-wide, refcounted-by-sharing table of open Fds
// (§4.5), analogous to the teacher's per-process fd array guarded by its
// own mutex (proc/proc.go's Fdl_t).
type FdTable struct {
	mu        sync.Mutex
	slots     []*Fd // nil entries are free slots
	softLimit int
	hardLimit int
}

// NewFdTable builds a fresh table with fd 0/1/2 wired to the shared
// console device (§4.5, §4.6), as a freshly exec'd process expects.
func NewFdTable() *FdTable {
	t := &FdTable{slots: make([]*Fd, 3), softLimit: DefaultNOFILE, hardLimit: HardNOFILE}
	for i := range t.slots {
		t.slots[i] = &Fd{File: console.Console{}}
	}
	return t
}

// Install places f in the lowest free slot at or above min, as open(2)
// and dup2-style calls require, failing with EMFILE once the table's
// soft NOFILE limit (§3) would be exceeded.
func (t *FdTable) Install(f *Fd, min int) (int, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := min; i < len(t.slots); i++ {
		if t.slots[i] == nil {
			t.slots[i] = f
			return i, defs.SUCCESS
		}
	}
	if len(t.slots) >= t.softLimit {
		return -1, defs.EMFILE
	}
	t.slots = append(t.slots, f)
	return len(t.slots) - 1, defs.SUCCESS
}

// SoftLimit and HardLimit report the table's current NOFILE limits
// (§3); SetSoftLimit implements the raise-within-hard-ceiling half of
// setrlimit(RLIMIT_NOFILE) this design supports.
func (t *FdTable) SoftLimit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.softLimit
}

func (t *FdTable) HardLimit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hardLimit
}

func (t *FdTable) SetSoftLimit(n int) defs.Err_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 0 || n > t.hardLimit {
		return defs.EINVAL
	}
	t.softLimit = n
	return defs.SUCCESS
}

func (t *FdTable) Get(fd int) (*Fd, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return nil, false
	}
	return t.slots[fd], true
}

// Close drops fd's slot and, since Fds are not separately refcounted in
// this design (each slot owns its File outright, unlike dup'd fds in a
// full POSIX table which would need refcounting across processes sharing
// CLONE_FILES), closes the underlying file immediately.
func (t *FdTable) Close(fd int) defs.Err_t {
	t.mu.Lock()
	f, ok := t.slotAt(fd)
	if ok {
		t.slots[fd] = nil
	}
	t.mu.Unlock()
	if !ok {
		return defs.EBADF
	}
	return f.File.Close()
}

func (t *FdTable) slotAt(fd int) (*Fd, bool) {
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return nil, false
	}
	return t.slots[fd], true
}

// Dup3 installs a copy of oldfd's Fd at newfd, closing whatever was there
// (§4.5, dup3(2) semantics). oldfd == newfd is an error per dup3(2).
func (t *FdTable) Dup3(oldfd, newfd int, cloexec bool) defs.Err_t {
	if oldfd == newfd {
		return defs.EINVAL
	}
	t.mu.Lock()
	old, ok := t.slotAt(oldfd)
	if !ok {
		t.mu.Unlock()
		return defs.EBADF
	}
	for newfd >= len(t.slots) {
		t.slots = append(t.slots, nil)
	}
	prev := t.slots[newfd]
	t.slots[newfd] = &Fd{File: old.File, CloseOnExec: cloexec}
	t.mu.Unlock()
	if prev != nil {
		prev.File.Close()
	}
	return defs.SUCCESS
}

// Dup is dup(2): install a copy of oldfd at the lowest free slot.
func (t *FdTable) Dup(oldfd int) (int, defs.Err_t) {
	t.mu.Lock()
	old, ok := t.slotAt(oldfd)
	t.mu.Unlock()
	if !ok {
		return -1, defs.EBADF
	}
	return t.Install(&Fd{File: old.File}, 0)
}

// CloseAllOnExec drops every CLOEXEC-marked fd, as execve must (§4.3).
func (t *FdTable) CloseAllOnExec() {
	t.mu.Lock()
	var toClose []File
	for i, f := range t.slots {
		if f != nil && f.CloseOnExec {
			toClose = append(toClose, f.File)
			t.slots[i] = nil
		}
	}
	t.mu.Unlock()
	for _, f := range toClose {
		f.Close()
	}
}

// Fork returns a table sharing the same File references as t (open file
// state, like a pipe's position, is process-independent storage once
// opened, so a plain copy of the slot list is a faithful fork: no
// refcount needs bumping because each File is reached from at most one
// table after fork in this design; see DESIGN.md).
func (t *FdTable) Fork() *FdTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := &FdTable{slots: make([]*Fd, len(t.slots)), softLimit: t.softLimit, hardLimit: t.hardLimit}
	copy(nt.slots, t.slots)
	return nt
}
