package sched

import "testing"

type fakeTask uint64

func (f fakeTask) SchedID() uint64 { return uint64(f) }

func reset() {
	for _, id := range []uint64{1, 2, 3} {
		Forget(id)
	}
}

func TestReadyAndBlockedPartitionLiveTasks(t *testing.T) {
	reset()
	t.Cleanup(reset)

	PushBack(fakeTask(1))
	MarkBlocked(fakeTask(2))

	if !IsReady(1) || IsBlocked(1) {
		t.Fatalf("task 1 should be ready, not blocked")
	}
	if IsReady(2) || !IsBlocked(2) {
		t.Fatalf("task 2 should be blocked, not ready")
	}
}

func TestPushFrontPrecedesPushBack(t *testing.T) {
	reset()
	t.Cleanup(reset)

	PushBack(fakeTask(1))
	PushFront(fakeTask(2))

	if got := Pop(); got.SchedID() != 2 {
		t.Fatalf("first popped = %d, want the front-pushed (woken) task 2", got.SchedID())
	}
	if got := Pop(); got.SchedID() != 1 {
		t.Fatalf("second popped = %d, want the back-pushed (preempted) task 1", got.SchedID())
	}
}

func TestMarkBlockedThenWakeMovesToReadyFront(t *testing.T) {
	reset()
	t.Cleanup(reset)

	PushBack(fakeTask(1))
	MarkBlocked(fakeTask(2))
	PushFront(fakeTask(2))

	if IsBlocked(2) {
		t.Fatal("waking a task must clear it from the blocked set")
	}
	if got := Pop(); got.SchedID() != 2 {
		t.Fatalf("woken task should run before the already-queued one, got %d", got.SchedID())
	}
}

func TestForgetRemovesFromBothSets(t *testing.T) {
	reset()
	t.Cleanup(reset)

	PushBack(fakeTask(1))
	MarkBlocked(fakeTask(2))
	Forget(1)
	Forget(2)

	if IsReady(1) || IsBlocked(1) || IsReady(2) || IsBlocked(2) {
		t.Fatal("Forget must drop a task from whichever set held it")
	}
}

func TestEnqueueIsIdempotentPerID(t *testing.T) {
	reset()
	t.Cleanup(reset)

	PushBack(fakeTask(1))
	PushBack(fakeTask(1))
	if Len() != 1 {
		t.Fatalf("Len() = %d, want 1: re-pushing an already-queued id must not duplicate it", Len())
	}
}
