package mem

import "testing"

func TestAllocDeallocReuse(t *testing.T) {
	Init(0, 4)

	f1, ok := New()
	if !ok {
		t.Fatal("expected New to succeed with frames available")
	}
	f2, ok := New()
	if !ok {
		t.Fatal("expected second New to succeed")
	}
	if f1.Ppn == f2.Ppn {
		t.Fatalf("expected distinct ppns, got %#x twice", f1.Ppn)
	}

	before := Unallocated()
	f1.Release()
	if got := Unallocated(); got != before+1 {
		t.Fatalf("Unallocated() after release = %d, want %d", got, before+1)
	}

	f3, ok := New()
	if !ok {
		t.Fatal("expected New to succeed by reusing freed frame")
	}
	if f3.Ppn != f1.Ppn {
		t.Fatalf("expected allocator to reuse freed ppn %#x, got %#x", f1.Ppn, f3.Ppn)
	}
}

func TestAllocExhaustion(t *testing.T) {
	Init(0, 2)
	SetOOMHook(nil)

	if _, ok := New(); !ok {
		t.Fatal("expected first alloc to succeed")
	}
	if _, ok := New(); !ok {
		t.Fatal("expected second alloc to succeed")
	}
	if _, ok := New(); ok {
		t.Fatal("expected allocator to be exhausted")
	}
}

func TestOOMHookReclaims(t *testing.T) {
	Init(0, 1)
	reclaimed := false
	SetOOMHook(func(need int) int {
		reclaimed = true
		Dealloc(0)
		return 1
	})
	defer SetOOMHook(nil)

	if _, ok := New(); !ok {
		t.Fatal("expected first alloc to succeed")
	}
	f, ok := New()
	if !ok {
		t.Fatal("expected OOM hook to free a frame and let alloc succeed")
	}
	if !reclaimed {
		t.Fatal("expected OOM hook to be invoked")
	}
	if f.Ppn != 0 {
		t.Fatalf("expected reclaimed ppn 0, got %#x", f.Ppn)
	}
}

func TestCoverDoesNotFree(t *testing.T) {
	Init(0, 2)
	before := Unallocated()
	tr := Cover(0)
	tr.Release()
	if got := Unallocated(); got != before {
		t.Fatalf("Cover().Release() changed Unallocated(): before=%d after=%d", before, got)
	}
}

func TestNewFrameIsZeroed(t *testing.T) {
	Init(0, 2)
	f, ok := New()
	if !ok {
		t.Fatal("expected alloc to succeed")
	}
	b := f.Bytes()
	b[0] = 0xff
	f.Release()

	f2, ok := New()
	if !ok {
		t.Fatal("expected alloc to succeed")
	}
	if f2.Ppn != f.Ppn {
		t.Skip("allocator did not reuse the same ppn; zero check not meaningful")
	}
	for i, v := range f2.Bytes() {
		if v != 0 {
			t.Fatalf("expected frame to be zeroed at byte %d, got %#x", i, v)
		}
	}
}

func TestDeallocPanicsOnDoubleFree(t *testing.T) {
	Init(0, 2)
	f, _ := New()
	Dealloc(f.Ppn)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	Dealloc(f.Ppn)
}
