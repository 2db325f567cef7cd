package signal

import (
	"testing"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

func TestPendingBitsetRoundTrip(t *testing.T) {
	var set uint64
	set = SetPending(set, defs.SIGINT)
	if !IsPending(set, defs.SIGINT) {
		t.Fatal("expected SIGINT to be pending after SetPending")
	}
	set = ClearPending(set, defs.SIGINT)
	if IsPending(set, defs.SIGINT) {
		t.Fatal("expected SIGINT to be cleared")
	}
}

func TestDecideDefaultCheckErrorTerminates(t *testing.T) {
	got := Decide(defs.SIGSEGV, Action{Handler: defs.SigDfl})
	if got != Terminate {
		t.Fatalf("Decide(SIGSEGV, SIG_DFL) = %v, want Terminate", got)
	}
}

func TestDecideDefaultNonCheckErrorIgnored(t *testing.T) {
	got := Decide(defs.SIGUSR1, Action{Handler: defs.SigDfl})
	if got != Ignore {
		t.Fatalf("Decide(SIGUSR1, SIG_DFL) = %v, want Ignore", got)
	}
}

func TestDecideUserHandlerDelivers(t *testing.T) {
	got := Decide(defs.SIGUSR1, Action{Handler: 0x1000})
	if got != Deliver {
		t.Fatalf("Decide with installed handler = %v, want Deliver", got)
	}
}

func TestDecideKernelHandledSignals(t *testing.T) {
	for _, sig := range []int{defs.SIGSTOP, defs.SIGCONT} {
		if got := Decide(sig, Action{Handler: 0x1000}); got != KernelHandle {
			t.Fatalf("Decide(%d, handler installed) = %v, want KernelHandle", sig, got)
		}
	}
}

// TestDecideSigkillAlwaysTerminates exercises §4.7/§8: SIGKILL cannot be
// caught, ignored, or blocked — even with a handler installed it kills
// the process rather than staying kernel-internal like SIGSTOP/SIGCONT.
func TestDecideSigkillAlwaysTerminates(t *testing.T) {
	if got := Decide(defs.SIGKILL, Action{Handler: 0x1000}); got != Terminate {
		t.Fatalf("Decide(SIGKILL, handler installed) = %v, want Terminate", got)
	}
	if got := Decide(defs.SIGKILL, Action{Handler: defs.SigDfl}); got != Terminate {
		t.Fatalf("Decide(SIGKILL, SIG_DFL) = %v, want Terminate", got)
	}
}

func TestNextDeliverableRespectsMaskExceptForcedSignals(t *testing.T) {
	pending := SetPending(SetPending(0, defs.SIGUSR1), defs.SIGKILL)
	mask := uint64(1) << uint(defs.SIGUSR1-1)

	sig, ok := NextDeliverable(pending, mask)
	if !ok || sig != defs.SIGKILL {
		t.Fatalf("NextDeliverable = (%d, %v), want (SIGKILL, true) since SIGKILL ignores mask", sig, ok)
	}
}

func TestNextDeliverablePicksLowestUnblocked(t *testing.T) {
	pending := SetPending(SetPending(0, defs.SIGHUP), defs.SIGUSR1)
	sig, ok := NextDeliverable(pending, 0)
	if !ok || sig != defs.SIGHUP {
		t.Fatalf("NextDeliverable = (%d, %v), want (SIGHUP, true)", sig, ok)
	}
}
