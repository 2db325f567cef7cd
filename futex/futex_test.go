package futex

import "testing"

type fakeWaiter struct {
	id   uint64
	woke bool
}

func (f *fakeWaiter) ID() uint64 { return f.id }
func (f *fakeWaiter) Wake()      { f.woke = true }

func TestWaitMismatchReturnsEAGAIN(t *testing.T) {
	w := &fakeWaiter{id: 1}
	if err := Wait(1, 0x1000, 5, 6, w); err == 0 {
		t.Fatal("expected EAGAIN on value mismatch")
	}
}

func TestWakeWakesWaiters(t *testing.T) {
	w1 := &fakeWaiter{id: 1}
	w2 := &fakeWaiter{id: 2}
	if err := Wait(2, 0x2000, 0, 0, w1); err != 0 {
		t.Fatalf("Wait w1 failed: %d", err)
	}
	if err := Wait(2, 0x2000, 0, 0, w2); err != 0 {
		t.Fatalf("Wait w2 failed: %d", err)
	}

	n, err := Wake(2, 0x2000, 1)
	if err != 0 {
		t.Fatalf("Wake failed: %d", err)
	}
	if n != 1 {
		t.Fatalf("Wake woke %d, want 1", n)
	}
	if !w1.woke {
		t.Fatal("expected FIFO order: w1 should be woken first")
	}
	if w2.woke {
		t.Fatal("expected only one waiter to be woken")
	}
}

func TestWakeOnUnknownFutexReturnsEINVAL(t *testing.T) {
	if _, err := Wake(3, 0x3000, 1); err == 0 {
		t.Fatal("expected EINVAL waking a futex nobody has waited on")
	}
}

func TestDropProcessClearsItsFutexes(t *testing.T) {
	w := &fakeWaiter{id: 9}
	Wait(4, 0x4000, 0, 0, w)
	DropProcess(4)
	if _, err := Wake(4, 0x4000, 1); err == 0 {
		t.Fatal("expected futex table entry to be gone after DropProcess")
	}
}
