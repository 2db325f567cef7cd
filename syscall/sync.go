package syscall

import (
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/futex"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/sched"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/timer"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
)

// TicksPerSecond is the simulated timer frequency sys_nanosleep converts
// durations against (§4.9); cmd/kernel's config.Profile may override it
// per board.
var TicksPerSecond uint64 = 100

func sysFutex(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	uaddr := uintptr(args[0])
	op := int(args[1]) &^ defs.FUTEX_PRIVATE_FLAG
	val := uint32(args[2])

	data, ok := t.Process.MemorySet.ReadUser(uaddr, 4)
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}
	cur := getU32(data)

	switch op {
	case defs.FUTEX_WAIT:
		err := futex.Wait(t.Process.Pid, uaddr, cur, val, t)
		if err != defs.SUCCESS {
			return trap.ErrCode(err)
		}
		t.SetStatus(proc.Blocked)
		sched.MarkBlocked(t)
		return trap.ErrCode(defs.SUCCESS)
	case defs.FUTEX_WAKE:
		n, err := futex.Wake(t.Process.Pid, uaddr, int(val))
		if err != defs.SUCCESS {
			return trap.ErrCode(err)
		}
		return uint64(n)
	default:
		return trap.ErrCode(defs.ENOSYS)
	}
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// sysNanosleep blocks the calling thread until TicksPerSecond-scaled
// ticks have elapsed (§4.9), mirroring sys_nanosleep's use of the sleep
// queue (timer.rs) rather than a busy loop.
func sysNanosleep(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	reqPtr := uintptr(args[0])
	data, ok := t.Process.MemorySet.ReadUser(reqPtr, 16)
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}
	sec := int64(getU64(data[0:8]))
	nsec := int64(getU64(data[8:16]))
	if err := timer.ValidateTimespec(sec, nsec); err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	ticks := timer.NanosleepTicks(TicksPerSecond, uint64(sec), uint64(nsec))
	timer.SleepUntil(timer.Now()+ticks, t)
	t.SetStatus(proc.Blocked)
	sched.MarkBlocked(t)
	return trap.ErrCode(defs.SUCCESS)
}
