package syscall

import (
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/sched"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
)

func sysExit(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	proc.Exit(t, int(int32(args[0])))
	return 0
}

// sysExitGroup tears down every thread in the calling process (§4.4),
// whereas sys_exit only retires the calling thread: exit_group is what a
// multi-threaded process's libc _exit actually issues.
func sysExitGroup(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	code := int(int32(args[0]))
	t.Process.ForEachOtherTask(t, func(other *proc.TaskControlBlock) {
		proc.Exit(other, code)
	})
	proc.Exit(t, code)
	return 0
}

func sysSetTidAddress(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	t.ClearChildTid = uintptr(args[0])
	return uint64(t.Tid)
}

func sysGetpid(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	return uint64(t.Process.Pid)
}

func sysGetppid(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	return uint64(t.Process.ParentPid())
}

func sysSchedYield(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	sched.PushBack(t)
	return 0
}

func sysBrk(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	newEnd := uintptr(args[0])
	if newEnd == 0 {
		return uint64(t.Process.MemorySet.HeapEnd)
	}
	if err := t.Process.MemorySet.Brk(newEnd); err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	return uint64(t.Process.MemorySet.HeapEnd)
}

// sysMmap implements the anonymous-mmap boundary behavior of §8: a
// zero-length request or the sentinel start address -1 is rejected up
// front with EPERM, matching syscall/process.rs:366's
// "if start as isize == -1 || len == 0 { return EPERM; }" before any
// area bookkeeping happens.
func sysMmap(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	start, length, prot, flags := args[0], args[1], int(args[2]), int(args[3])
	if int64(start) == -1 || length == 0 {
		return trap.ErrCode(defs.EPERM)
	}
	addr, err := t.Process.MemorySet.Mmap(uintptr(start), uintptr(length), prot, flags)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	return uint64(addr)
}

func sysMunmap(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	return trap.ErrCode(t.Process.MemorySet.Munmap(uintptr(args[0])))
}

func sysMprotect(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	return trap.ErrCode(t.Process.MemorySet.Mprotect(uintptr(args[0]), uintptr(args[1]), int(args[2])))
}

func sysWait4(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	pid := defs.Pid_t(int32(args[0]))
	nohang := args[2]&uint64(defs.WNOHANG) != 0
	ws, err := proc.Wait4(t.Process, pid, nohang)
	if err == defs.EAGAIN {
		// No matching child has exited yet: the caller gets -EAGAIN and
		// is not blocked; nothing re-issues the call on its behalf.
		return trap.ErrCode(defs.EAGAIN)
	}
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	if !ws.Valid {
		return 0
	}
	statusPtr := uintptr(args[1])
	if statusPtr != 0 {
		buf := make([]byte, 4)
		// A negative exit code came from ExitCodeForSignal (§7: "signal-
		// induced exits encode the negative signal number as the process
		// exit code") and is reported as-is; a normal exit(2) code is
		// masked and shifted per §4.6/§7's "(code & 0xff) << 8".
		var status uint32
		if ws.Status < 0 {
			status = uint32(int32(ws.Status))
		} else {
			status = (uint32(ws.Status) & 0xff) << 8
		}
		for i := 0; i < 4; i++ {
			buf[i] = byte(status >> (8 * i))
		}
		t.Process.MemorySet.WriteUser(statusPtr, buf)
	}
	return uint64(ws.Pid)
}

func sysShutdown(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	Halted = true
	HaltCode = int(int32(args[0]))
	return 0
}

// Halted and HaltCode are observed by cmd/kernel's scheduling loop to
// stop the machine on sys_shutdown (§6's non-standard SYS_SHUTDOWN
// extension, used by the userland test harness).
var (
	Halted   bool
	HaltCode int
)
