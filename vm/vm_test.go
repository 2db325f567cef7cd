package vm

import (
	"testing"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"
)

func TestMapUnmapRoundTrip(t *testing.T) {
	mem.Init(0, 64)
	pt, ok := NewPageTable()
	if !ok {
		t.Fatal("expected page table allocation to succeed")
	}
	f, _ := mem.New()
	vpn := VpnOf(0x1000)
	pt.Map(vpn, f.Ppn, PTE_R|PTE_W|PTE_U)

	pte, ok := pt.Translate(vpn)
	if !ok {
		t.Fatal("expected mapped vpn to translate")
	}
	if pte.Ppn() != f.Ppn {
		t.Fatalf("got ppn %#x, want %#x", pte.Ppn(), f.Ppn)
	}
	if !pte.Readable() || !pte.Writable() || !pte.UserAccessible() {
		t.Fatal("expected R|W|U flags to survive round trip")
	}

	pt.Unmap(vpn)
	if _, ok := pt.Translate(vpn); ok {
		t.Fatal("expected vpn to be unmapped")
	}
}

func TestMapPanicsOnDoubleMap(t *testing.T) {
	mem.Init(0, 64)
	pt, _ := NewPageTable()
	f, _ := mem.New()
	vpn := VpnOf(0x2000)
	pt.Map(vpn, f.Ppn, PTE_R)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic mapping an already-mapped vpn")
		}
	}()
	pt.Map(vpn, f.Ppn, PTE_R)
}

func TestInsertAreaRejectsOverlap(t *testing.T) {
	mem.Init(0, 64)
	ms, ok := NewMemorySet()
	if !ok {
		t.Fatal("expected memory set creation to succeed")
	}
	a1 := NewMapArea(0x1000, 0x3000, Framed, PTE_R|PTE_W|PTE_U)
	if !ms.InsertArea(a1) {
		t.Fatal("expected first area insert to succeed")
	}

	a2 := NewMapArea(0x2000, 0x4000, Framed, PTE_R|PTE_U)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overlapping MapArea insertion")
		}
	}()
	ms.InsertArea(a2)
}

func TestMmapMunmap(t *testing.T) {
	mem.Init(0, 64)
	ms, _ := NewMemorySet()

	addr, err := ms.Mmap(0, 0x3000, defs.PROT_READ|defs.PROT_WRITE, defs.MAP_PRIVATE|defs.MAP_ANONYMOUS)
	if err != defs.SUCCESS {
		t.Fatalf("Mmap failed: %d", err)
	}
	if !ms.WriteUser(addr, []byte("hi")) {
		t.Fatal("expected write into freshly mmapped region to succeed")
	}

	if err := ms.Munmap(addr); err != defs.SUCCESS {
		t.Fatalf("Munmap failed: %d", err)
	}
	if _, ok := ms.Translate(VpnOf(addr)); ok {
		t.Fatal("expected region to be unmapped after Munmap")
	}
}

func TestMmapAdvancesCursorByLengthPlusGuardPage(t *testing.T) {
	mem.Init(0, 64)
	ms, _ := NewMemorySet()

	first, err := ms.Mmap(0, 0x1000, defs.PROT_READ, defs.MAP_PRIVATE|defs.MAP_ANONYMOUS)
	if err != defs.SUCCESS {
		t.Fatalf("first Mmap failed: %d", err)
	}
	second, err := ms.Mmap(0, 0x1000, defs.PROT_READ, defs.MAP_PRIVATE|defs.MAP_ANONYMOUS)
	if err != defs.SUCCESS {
		t.Fatalf("second Mmap failed: %d", err)
	}
	if want := first + 0x1000 + pageSize; second != want {
		t.Fatalf("second mmap start = %#x, want %#x (a guard page past the first mapping)", second, want)
	}
}

func TestMmapFixedSkipsAlreadyMappedPages(t *testing.T) {
	mem.Init(0, 64)
	ms, _ := NewMemorySet()

	base := uintptr(0x40000)
	ms.InsertArea(NewMapArea(base, base+pageSize, Framed, PTE_R|PTE_W|PTE_U))
	ms.WriteUser(base, []byte("keep"))

	addr, err := ms.Mmap(base, 0x2000, defs.PROT_READ|defs.PROT_WRITE, defs.MAP_FIXED|defs.MAP_ANONYMOUS)
	if err != defs.SUCCESS {
		t.Fatalf("fixed Mmap failed: %d", err)
	}
	if addr != base {
		t.Fatalf("fixed Mmap returned %#x, want %#x", addr, base)
	}

	got, ok := ms.ReadUser(base, 4)
	if !ok || string(got) != "keep" {
		t.Fatalf("expected the already-mapped page to survive MAP_FIXED, got %q ok=%v", got, ok)
	}
	if _, ok := ms.Translate(VpnOf(base + pageSize)); !ok {
		t.Fatal("expected the second page of the fixed range to be freshly mapped")
	}
}

func TestMprotectChangesPermissionAndRejectsUnmapped(t *testing.T) {
	mem.Init(0, 64)
	ms, _ := NewMemorySet()

	addr := uintptr(0x50000)
	ms.InsertArea(NewMapArea(addr, addr+0x2000, Framed, PTE_R|PTE_W|PTE_U))

	if err := ms.Mprotect(addr, 0x2000, defs.PROT_READ); err != defs.SUCCESS {
		t.Fatalf("Mprotect failed: %d", err)
	}
	pte, ok := ms.Translate(VpnOf(addr))
	if !ok {
		t.Fatal("expected page to remain mapped after Mprotect")
	}
	if pte.Writable() {
		t.Fatal("expected PROT_READ-only Mprotect to clear the writable bit")
	}

	if err := ms.Mprotect(addr, 0x4000, defs.PROT_READ); err != defs.EPERM {
		t.Fatalf("Mprotect over a partially-unmapped range = %d, want EPERM", err)
	}
}

func TestMapUserStackThenBuildStackWritesLand(t *testing.T) {
	mem.Init(0, 64)
	ms, _ := NewMemorySet()

	if !ms.MapUserStack(defs.StackTop) {
		t.Fatal("expected MapUserStack to succeed")
	}
	sp, argc, argvPtr, envpPtr, auxvPtr, ok := ms.BuildStack(defs.StackTop, []string{"init"}, nil, nil, "init")
	if !ok {
		t.Fatal("expected BuildStack to report every write landed once the stack is mapped")
	}
	if sp >= defs.StackTop || sp < defs.StackTop-defs.UserStackSize {
		t.Fatalf("sp = %#x, want within the mapped stack range", sp)
	}
	if argc != 1 || argvPtr == 0 || envpPtr == 0 || auxvPtr == 0 {
		t.Fatalf("unexpected BuildStack results: argc=%d argvPtr=%#x envpPtr=%#x auxvPtr=%#x", argc, argvPtr, envpPtr, auxvPtr)
	}
}

func TestBuildStackWithoutMappedStackFails(t *testing.T) {
	mem.Init(0, 64)
	ms, _ := NewMemorySet()

	_, _, _, _, _, ok := ms.BuildStack(defs.StackTop, nil, nil, nil, "init")
	if ok {
		t.Fatal("expected BuildStack to fail when the user stack was never mapped")
	}
}

func TestBrkGrowAndShrink(t *testing.T) {
	mem.Init(0, 64)
	ms, _ := NewMemorySet()
	ms.HeapBase = 0x10000
	ms.HeapEnd = 0x10000
	ms.InsertArea(NewMapArea(ms.HeapBase, ms.HeapBase, Framed, PTE_R|PTE_W|PTE_U))

	if err := ms.Brk(ms.HeapBase + 0x2000); err != defs.SUCCESS {
		t.Fatalf("Brk grow failed: %d", err)
	}
	if _, ok := ms.Translate(VpnOf(ms.HeapBase)); !ok {
		t.Fatal("expected heap start page to be mapped after growth")
	}

	if err := ms.Brk(ms.HeapBase); err != defs.SUCCESS {
		t.Fatalf("Brk shrink failed: %d", err)
	}
	if _, ok := ms.Translate(VpnOf(ms.HeapBase)); ok {
		t.Fatal("expected heap start page to be unmapped after shrink to base")
	}
}

func TestFromExistedUserDeepCopiesNotCOW(t *testing.T) {
	mem.Init(0, 64)
	src, _ := NewMemorySet()
	a := NewMapArea(0x5000, 0x6000, Framed, PTE_R|PTE_W|PTE_U)
	src.InsertArea(a)
	src.WriteUser(0x5000, []byte("parent"))

	dst, ok := FromExistedUser(src)
	if !ok {
		t.Fatal("expected FromExistedUser to succeed")
	}
	dst.WriteUser(0x5000, []byte("CHILD!"))

	srcBytes, _ := src.ReadUser(0x5000, 6)
	if string(srcBytes) != "parent" {
		t.Fatalf("parent memory mutated by child write: got %q", srcBytes)
	}

	dstBytes, _ := dst.ReadUser(0x5000, 6)
	if string(dstBytes) != "CHILD!" {
		t.Fatalf("child memory not independently writable: got %q", dstBytes)
	}
}
