// Package syscall implements the numeric-id-to-handler dispatch table
// (§6), grounded on the teacher's kernel/syscall.go: one sys_<name>
// function per syscall, registered by number and invoked with the
// argument words already pulled out of the trap context.
//
// Argument marshalling (reading a pathname, a struct, a buffer) goes
// through the calling thread's vm.MemorySet via ReadUser/WriteUser/
// ReadUserCString rather than a raw pointer dereference, since this
// module never runs with real hardware-backed user memory.
package syscall

import (
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
)

// handler is one syscall's implementation: given the calling thread and
// its six raw argument words, return the value to place in a0 (already
// negative-errno encoded on failure per §6).
type handler func(t *proc.TaskControlBlock, args [6]uint64) uint64

var table = map[uint64]handler{}

func register(n uint64, h handler) { table[n] = h }

func init() {
	register(defs.SYS_READ, sysRead)
	register(defs.SYS_WRITE, sysWrite)
	register(defs.SYS_CLOSE, sysClose)
	register(defs.SYS_DUP, sysDup)
	register(defs.SYS_DUP3, sysDup3)
	register(defs.SYS_EXIT, sysExit)
	register(defs.SYS_EXIT_GROUP, sysExitGroup)
	register(defs.SYS_SET_TID_ADDR, sysSetTidAddress)
	register(defs.SYS_FUTEX, sysFutex)
	register(defs.SYS_NANOSLEEP, sysNanosleep)
	register(defs.SYS_SCHED_YIELD, sysSchedYield)
	register(defs.SYS_KILL, sysKill)
	register(defs.SYS_TKILL, sysTkill)
	register(defs.SYS_RT_SIGACTION, sysRtSigaction)
	register(defs.SYS_RT_SIGPROCMASK, sysRtSigprocmask)
	register(defs.SYS_RT_SIGRETURN, sysRtSigreturn)
	register(defs.SYS_GETPID, sysGetpid)
	register(defs.SYS_GETPPID, sysGetppid)
	register(defs.SYS_BRK, sysBrk)
	register(defs.SYS_MUNMAP, sysMunmap)
	register(defs.SYS_MMAP, sysMmap)
	register(defs.SYS_MPROTECT, sysMprotect)
	register(defs.SYS_WAIT4, sysWait4)
	register(defs.SYS_SHUTDOWN, sysShutdown)

	for _, stub := range []uint64{
		defs.SYS_MOUNT, defs.SYS_UMOUNT2, defs.SYS_GETITIMER,
		defs.SYS_SETITIMER, defs.SYS_UMASK, defs.SYS_SENDFILE,
	} {
		register(stub, sysAlwaysSucceeds)
	}
}

// Dispatch is installed as trap.Handlers.Syscall: it decodes the syscall
// number and arguments out of ctx, looks up the handler, and writes the
// result back into a0. An unregistered number returns -ENOSYS, matching
// the original's default match arm in syscall/mod.rs.
func Dispatch(t *proc.TaskControlBlock, ctx *trap.TrapContext) {
	n := ctx.SyscallNumber()
	args := ctx.SyscallArgs()
	h, ok := table[n]
	if !ok {
		ctx.SetReturn(trap.ErrCode(defs.ENOSYS))
		return
	}
	ret := h(t, args)
	// rt_sigreturn and a successful execve both replace the entire trap
	// frame rather than just a0: sigreturn resumes wherever the signal
	// interrupted the thread (sys_sigreturn's trap_cx_ptr overwrite,
	// syscall/signal.rs), and execve starts the new image at its own
	// entry point and stack (app_init_context, mm/memory_set.rs).
	if n == defs.SYS_RT_SIGRETURN || n == defs.SYS_EXECVE {
		if restored, ok := t.TakeRestoredContext(); ok {
			*ctx = restored
			return
		}
	}
	ctx.SetReturn(ret)
}

func sysAlwaysSucceeds(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	return trap.ErrCode(defs.SUCCESS)
}
