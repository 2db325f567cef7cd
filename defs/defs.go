// Package defs holds the types and constants shared by every layer of the
// kernel: thread/process identifiers, the POSIX error numbers the syscall
// dispatcher returns, and the fixed memory-map constants that the virtual
// memory and trap-entry packages agree on. It is the RISC-V64 analogue of
// biscuit's defs package, trimmed to what a single-hart SV39 kernel needs
// and re-keyed to Linux syscall numbering instead of biscuit's own ABI.
package defs

import "golang.org/x/sys/unix"

// Tid_t identifies a thread. A process's main thread's tid always equals
// its pid: TaskControlBlock.process.tasks[0].tid == pid (invariant 5, §8).
type Tid_t int

// Pid_t identifies a process.
type Pid_t int

// Err_t is a POSIX errno, encoded negative per the syscall ABI in §6: a
// successful syscall returns a non-negative value in a0, a failed one
// returns -errno.
type Err_t int

// Error numbers the syscall surface returns (§6, §7), sourced from
// golang.org/x/sys/unix rather than hand-copied so the numeric values
// track the platform definitions exactly instead of being guessed.
const (
	SUCCESS   Err_t = 0
	EPERM     Err_t = -Err_t(unix.EPERM)
	ENOENT    Err_t = -Err_t(unix.ENOENT)
	ESRCH     Err_t = -Err_t(unix.ESRCH)
	EINTR     Err_t = -Err_t(unix.EINTR)
	EIO       Err_t = -Err_t(unix.EIO)
	EBADF     Err_t = -Err_t(unix.EBADF)
	ECHILD    Err_t = -Err_t(unix.ECHILD)
	EAGAIN    Err_t = -Err_t(unix.EAGAIN)
	ENOMEM    Err_t = -Err_t(unix.ENOMEM)
	EACCES    Err_t = -Err_t(unix.EACCES)
	EFAULT    Err_t = -Err_t(unix.EFAULT)
	EEXIST    Err_t = -Err_t(unix.EEXIST)
	ENOTDIR   Err_t = -Err_t(unix.ENOTDIR)
	EISDIR    Err_t = -Err_t(unix.EISDIR)
	EINVAL    Err_t = -Err_t(unix.EINVAL)
	ENFILE    Err_t = -Err_t(unix.ENFILE)
	EMFILE    Err_t = -Err_t(unix.EMFILE)
	ENOTTY    Err_t = -Err_t(unix.ENOTTY)
	ENOSPC    Err_t = -Err_t(unix.ENOSPC)
	ESPIPE    Err_t = -Err_t(unix.ESPIPE)
	ERANGE    Err_t = -Err_t(unix.ERANGE)
	ENOSYS    Err_t = -Err_t(unix.ENOSYS)
	ENOTEMPTY Err_t = -Err_t(unix.ENOTEMPTY)
	ETIMEDOUT Err_t = -Err_t(unix.ETIMEDOUT)
	ENOTSOCK  Err_t = -Err_t(unix.ENOTSOCK)
	ENOEXEC   Err_t = -Err_t(unix.ENOEXEC)
	EPIPE     Err_t = -Err_t(unix.EPIPE)
)

// PAGE_SIZE is the SV39 page size; every page-granular computation in the
// mem and vm packages is keyed off it.
const (
	PAGE_SIZE  = 0x1000
	PAGE_SHIFT = 12
)

// Memory map (§6), QEMU build profile. K210 only differs in MemoryEnd,
// which lives in config.Profile rather than as a second constant set
// (REDESIGN FLAGS: pick one profile per build; the other is data, not code).
const (
	Trampoline       = ^uintptr(0) - PAGE_SIZE + 1
	SignalTrampoline = Trampoline - PAGE_SIZE

	StackTop = 0x1_0000_0000
	MmapBase = 0x2000_0000
	DynBase  = 0x6000_0000

	// UserStackSize is the fixed size of the initial user stack mapped
	// below StackTop (config.rs's USER_STACK_SIZE).
	UserStackSize = PAGE_SIZE * 10
)

// TrapContextVA returns the fixed user-space virtual address of a thread's
// trap context page: one page below the signal trampoline, indexed by tid
// so every thread in a process gets a distinct slot.
func TrapContextVA(tid Tid_t) uintptr {
	return SignalTrampoline - PAGE_SIZE - uintptr(tid)*PAGE_SIZE
}

// MaxSig is the highest supported signal number; actions are indexed
// 1..=MaxSig.
const MaxSig = 64
