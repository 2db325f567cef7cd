// Package signal implements the pending/mask bitset operations and
// delivery-decision logic of the signal engine (§4.7), grounded on
// trap/mod.rs's check_signals_of_current_process/handle_signals and
// task/process.rs's signal fields. It is deliberately independent of
// package proc's struct layout: it operates on plain uint64 bitsets and
// Action values so proc, the syscall layer, and trap can
// all share it without a dependency cycle.
package signal

import "github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"

// Action is a signal disposition: a handler address (or SigDfl/SigIgn)
// plus the mask to install for the handler's duration (rt_sigaction's
// struct sigaction, §4.7).
type Action struct {
	Handler uintptr
	Mask    uint64
}

func bit(sig int) uint64 { return 1 << uint(sig-1) }

// SetPending marks sig pending in set.
func SetPending(set uint64, sig int) uint64 { return set | bit(sig) }

// ClearPending unmarks sig in set.
func ClearPending(set uint64, sig int) uint64 { return set &^ bit(sig) }

// IsPending reports whether sig is set in set.
func IsPending(set uint64, sig int) bool { return set&bit(sig) != 0 }

// Disposition describes what the kernel should do about a pending signal
// once it has been selected for delivery.
type Disposition int

const (
	// Ignore: either SIG_IGN is installed, or SIG_DFL is installed for a
	// signal that is not a check-error signal; discard silently.
	Ignore Disposition = iota
	// Terminate: no user handler, and the signal is a check-error signal
	// (§4.7) or SIGKILL; process exits with ExitCodeForSignal(sig).
	Terminate
	// Deliver: invoke the installed user handler via a trap-frame
	// rewrite.
	Deliver
	// KernelHandle: SIGSTOP/SIGCONT, handled entirely inside the kernel
	// without ever reaching userland.
	KernelHandle
)

// Decide picks the disposition for sig given its installed action,
// mirroring handle_signals's per-signal switch (trap/mod.rs).
func Decide(sig int, action Action) Disposition {
	// SIGKILL is kernel-handled in the sense that no user handler can
	// intercept it, but unlike SIGSTOP/SIGCONT its handling is to
	// terminate the process (§4.7), not to stay entirely in-kernel with
	// no exit. Check it before the general KernelHandle case.
	if sig == defs.SIGKILL {
		return Terminate
	}
	if defs.IsKernelHandled(sig) {
		return KernelHandle
	}
	if action.Handler == defs.SigIgn {
		return Ignore
	}
	if action.Handler == defs.SigDfl {
		if defs.IsCheckError(sig) {
			return Terminate
		}
		return Ignore
	}
	return Deliver
}

// NextDeliverable scans pending&^mask from signal 1 upward and returns the
// lowest-numbered signal that is both pending and unblocked, mirroring
// check_signals_of_current_process's scan order (trap/mod.rs). SIGKILL
// and SIGSTOP are scanned first regardless of mask, since neither can be
// blocked (§4.7: "SIGKILL and SIGSTOP cannot be masked").
func NextDeliverable(pending, mask uint64) (int, bool) {
	for _, forced := range []int{defs.SIGKILL, defs.SIGSTOP} {
		if IsPending(pending, forced) {
			return forced, true
		}
	}
	deliverable := pending &^ mask
	for sig := 1; sig <= defs.MaxSig; sig++ {
		if deliverable&bit(sig) != 0 {
			return sig, true
		}
	}
	return 0, false
}

// InstallMask computes the mask to run the handler under: the handler's
// own mask bitwise-ORed with the signal itself (so a handler never
// re-enters on its own signal unless SA_NODEFER was requested, which this
// kernel does not support, §9). savedMask is current, the mask to restore
// on sigreturn.
func InstallMask(current uint64, action Action, sig int) (handlerMask, savedMask uint64) {
	return action.Mask | bit(sig), current
}
