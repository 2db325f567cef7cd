package syscall

import (
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	sig "github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/signal"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
)

// sysKill marks signo pending for the whole process identified by pid
// (§4.7): it sets the bit in that process's group-pending set, and
// whichever of its threads next runs check_signals (AfterEachTrap in
// cmd/kernel's wiring) handles it.
func sysKill(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	pid, signo := defs.Pid_t(int32(args[0])), int(args[1])
	target, ok := proc.Lookup(pid)
	if !ok {
		return trap.ErrCode(defs.ESRCH)
	}
	target.RaiseGroup(signo)
	return trap.ErrCode(defs.SUCCESS)
}

// sysTkill delivers signo to one specific thread (tgkill/tkill's
// per-thread targeting, §4.7), unlike kill's whole-process delivery.
func sysTkill(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	tid, signo := defs.Tid_t(int32(args[0])), int(args[1])
	target := t.Process.FindThread(tid)
	if target == nil {
		return trap.ErrCode(defs.ESRCH)
	}
	target.Raise(signo)
	return trap.ErrCode(defs.SUCCESS)
}

func sysRtSigaction(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	signo := int(args[0])
	if signo < 1 || signo > defs.MaxSig || defs.IsKernelHandled(signo) {
		return trap.ErrCode(defs.EINVAL)
	}
	actPtr, oldActPtr := uintptr(args[1]), uintptr(args[2])
	p := t.Process

	if oldActPtr != 0 {
		old := p.GetAction(signo)
		writeSigaction(p, oldActPtr, old)
	}
	if actPtr != 0 {
		data, ok := p.MemorySet.ReadUser(actPtr, 16)
		if !ok {
			return trap.ErrCode(defs.EFAULT)
		}
		handler := getU64(data[0:8])
		mask := getU64(data[8:16])
		p.SetAction(signo, sig.Action{Handler: uintptr(handler), Mask: mask})
	}
	return trap.ErrCode(defs.SUCCESS)
}

func writeSigaction(p *proc.ProcessControlBlock, va uintptr, a sig.Action) {
	buf := make([]byte, 16)
	putU64(buf[0:8], uint64(a.Handler))
	putU64(buf[8:16], a.Mask)
	p.MemorySet.WriteUser(va, buf)
}

func sysRtSigprocmask(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	how, setPtr, oldSetPtr := int(args[0]), uintptr(args[1]), uintptr(args[2])
	old := t.SignalMask
	if oldSetPtr != 0 {
		buf := make([]byte, 8)
		putU64(buf, old)
		t.Process.MemorySet.WriteUser(oldSetPtr, buf)
	}
	if setPtr == 0 {
		return trap.ErrCode(defs.SUCCESS)
	}
	data, ok := t.Process.MemorySet.ReadUser(setPtr, 8)
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}
	newMask := getU64(data)
	switch how {
	case defs.SIG_BLOCK:
		t.SignalMask = old | newMask
	case defs.SIG_UNBLOCK:
		t.SignalMask = old &^ newMask
	case defs.SIG_SETMASK:
		t.SignalMask = newMask
	default:
		return trap.ErrCode(defs.EINVAL)
	}
	return trap.ErrCode(defs.SUCCESS)
}

// sysRtSigreturn restores the TrapContext that was backed up before a
// handler was invoked and the mask that was active before the handler
// ran (§4.7), mirroring sys_sigreturn (syscall/signal.rs).
func sysRtSigreturn(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	ctx, savedMask, ok := t.PopSignalBackup()
	if !ok {
		return trap.ErrCode(defs.EINVAL)
	}
	t.RestoreTrapContext(ctx)
	t.SignalMask = savedMask
	t.HandlingSig = 0
	return uint64(ctx.X[10])
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
