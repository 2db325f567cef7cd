package syscall

import (
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/timer"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
)

func init() {
	register(defs.SYS_TIMES, sysTimes)
	register(defs.SYS_CLOCK_GETTIME, sysClockGettime)
}

// sysTimes writes a struct tms {utime, stime, cutime, cstime} in clock
// ticks (§4.9): utime is the current tick count and the other three
// fields are zero. It returns the tick count.
func sysTimes(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	bufPtr := uintptr(args[0])
	if bufPtr == 0 {
		return uint64(timer.Now())
	}
	buf := make([]byte, 32)
	putU64(buf[0:8], timer.Now())
	if !t.Process.MemorySet.WriteUser(bufPtr, buf) {
		return trap.ErrCode(defs.EFAULT)
	}
	return uint64(timer.Now())
}

// sysClockGettime writes a struct timespec derived from the tick counter
// at the configured tick frequency (§4.9).
func sysClockGettime(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	tsPtr := uintptr(args[1])
	ticks := timer.Now()
	sec := ticks / TicksPerSecond
	nsec := (ticks % TicksPerSecond) * (1_000_000_000 / TicksPerSecond)
	buf := make([]byte, 16)
	putU64(buf[0:8], sec)
	putU64(buf[8:16], nsec)
	if !t.Process.MemorySet.WriteUser(tsPtr, buf) {
		return trap.ErrCode(defs.EFAULT)
	}
	return trap.ErrCode(defs.SUCCESS)
}
