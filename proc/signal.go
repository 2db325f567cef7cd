package proc

import (
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	sig "github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/signal"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
)

// FindThread returns the thread with the given tid within p, if alive.
func (p *ProcessControlBlock) FindThread(tid defs.Tid_t) *TaskControlBlock {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.Tasks {
		if t.Tid == tid {
			return t
		}
	}
	return nil
}

// GetAction/SetAction access the process-shared signal disposition table
// (§4.7): every thread in a process observes the same sigaction, per
// POSIX.
func (p *ProcessControlBlock) GetAction(signo int) sig.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sig.Action{
		Handler: p.SignalActions[signo].Handler,
		Mask:    p.SignalActions[signo].Mask,
	}
}

func (p *ProcessControlBlock) SetAction(signo int, a sig.Action) {
	p.mu.Lock()
	p.SignalActions[signo] = SigAction{Handler: a.Handler, Mask: a.Mask}
	p.mu.Unlock()
}

// RaiseGroup marks signo pending for the whole process (kill(2)'s target,
// §4.7): any one of its threads may end up handling it, matching the
// original's per-process signals_pending bitset (task/process.rs).
func (p *ProcessControlBlock) RaiseGroup(signo int) {
	p.mu.Lock()
	p.PendingGroup = sig.SetPending(p.PendingGroup, signo)
	main := p.mainThreadLocked()
	p.mu.Unlock()
	if main != nil && main.GetStatus() == Blocked {
		main.Wake()
	}
}

func (p *ProcessControlBlock) mainThreadLocked() *TaskControlBlock {
	if len(p.Tasks) == 0 {
		return nil
	}
	return p.Tasks[0]
}

// Raise marks signo pending for this specific thread (tkill's target,
// §4.7).
func (t *TaskControlBlock) Raise(signo int) {
	t.mu.Lock()
	t.SignalPending = sig.SetPending(t.SignalPending, signo)
	t.mu.Unlock()
	t.Wake()
}

// signalBackup holds the interrupted TrapContext and mask a handler
// invocation will restore on sigreturn (task/task.rs's trap_ctx_backup).
type signalBackup struct {
	ctx  trap.TrapContext
	mask uint64
}

// EnterHandler snapshots ctx and the current mask for sigreturn and
// returns the mask the caller should install and run the handler under. It
// is the Go-level analogue of handle_signals rewriting the trap frame to
// point at the user handler (trap/mod.rs, §4.7).
func (t *TaskControlBlock) EnterHandler(ctx *trap.TrapContext, action sig.Action, signo int) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	handlerMask, savedMask := sig.InstallMask(t.SignalMask, action, signo)
	t.pendingBackup = &signalBackup{ctx: *ctx, mask: savedMask}
	t.HandlingSig = signo
	return handlerMask
}

// PopSignalBackup returns and clears the backup EnterHandler stashed, for
// sigreturn to restore (§4.7).
func (t *TaskControlBlock) PopSignalBackup() (trap.TrapContext, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingBackup == nil {
		return trap.TrapContext{}, 0, false
	}
	b := t.pendingBackup
	t.pendingBackup = nil
	return b.ctx, b.mask, true
}

// RestoreTrapContext stashes the backed-up register file for
// TakeRestoredContext, whose caller on the trap-return path writes it
// back into the live context; used by sysRtSigreturn.
func (t *TaskControlBlock) RestoreTrapContext(saved trap.TrapContext) {
	t.mu.Lock()
	t.restoreInto = &saved
	t.mu.Unlock()
}

// TakeRestoredContext returns whatever RestoreTrapContext most recently
// stashed, for the trap-return path to apply before resuming the thread.
func (t *TaskControlBlock) TakeRestoredContext() (trap.TrapContext, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.restoreInto == nil {
		return trap.TrapContext{}, false
	}
	c := *t.restoreInto
	t.restoreInto = nil
	return c, true
}

// DeliverPendingSignal implements the post-trap step every trap takes
// before returning to user mode (check_signals_of_current_process and
// handle_signals, trap/mod.rs, §4.7): pick the lowest signal pending for
// this thread or its whole process that isn't masked, apply its
// disposition, and report whether the thread must exit. ctx is rewritten
// in place for the Deliver case, exactly as handle_signals redirects the
// trap frame at the user handler.
func (t *TaskControlBlock) DeliverPendingSignal(ctx *trap.TrapContext) (exit bool, code int) {
	p := t.Process
	p.mu.Lock()
	group := p.PendingGroup
	p.mu.Unlock()

	t.mu.Lock()
	pending := t.SignalPending | group
	mask := t.SignalMask
	t.mu.Unlock()

	signo, ok := sig.NextDeliverable(pending, mask)
	if !ok {
		return false, 0
	}

	t.mu.Lock()
	t.SignalPending = sig.ClearPending(t.SignalPending, signo)
	t.mu.Unlock()
	p.mu.Lock()
	p.PendingGroup = sig.ClearPending(p.PendingGroup, signo)
	p.mu.Unlock()

	action := p.GetAction(signo)
	switch sig.Decide(signo, action) {
	case sig.Ignore:
		return false, 0
	case sig.KernelHandle:
		t.mu.Lock()
		switch signo {
		case defs.SIGSTOP:
			t.Frozen = true
		case defs.SIGCONT:
			t.Frozen = false
		}
		t.mu.Unlock()
		return false, 0
	case sig.Terminate:
		return true, defs.ExitCodeForSignal(signo)
	case sig.Deliver:
		handlerMask := t.EnterHandler(ctx, action, signo)
		t.mu.Lock()
		t.SignalMask = handlerMask
		t.mu.Unlock()
		ctx.X[1] = uint64(defs.SignalTrampoline) // ra: return through the sigreturn trampoline
		ctx.Sepc = uint64(action.Handler)
		ctx.X[10] = uint64(signo)
		return false, 0
	}
	return false, 0
}
