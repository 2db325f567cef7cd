// Package vm implements SV39 address translation (§3): three-level page
// tables, the MapArea/MemorySet address-space model, mmap/munmap/mprotect,
// ELF-derived address-space construction, and the fixed-layout user stack
// assembly (build_stack, §6).
//
// The page-table walk is grounded on the teacher's vm/pmap.go
// (pmap_pgtbl's level-by-level walk and _instpg's allocate-on-demand
// behavior), re-keyed from biscuit's 4-level x86-64 layout to SV39's
// 9/9/9/12 split, which is specified exactly in
// _examples/original_source/kernel/src/mm/address.rs and used throughout
// mm/memory_set.rs and mm/page_table.rs.
package vm

import (
	"fmt"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"
)

const (
	pageSize   = defs.PAGE_SIZE
	pageShift  = defs.PAGE_SHIFT
	ppnBits    = 9
	ppnMask    = (1 << ppnBits) - 1
	sv39Levels = 3
)

// PTEFlags mirrors the SV39 PTE flag bits (§3): V/R/W/X/U/G/A/D, in the
// same bit positions the hardware defines so a PTE's raw uint64 value can
// be handed to trap/context-switch code unmodified.
type PTEFlags uint16

const (
	PTE_V PTEFlags = 1 << 0
	PTE_R PTEFlags = 1 << 1
	PTE_W PTEFlags = 1 << 2
	PTE_X PTEFlags = 1 << 3
	PTE_U PTEFlags = 1 << 4
	PTE_G PTEFlags = 1 << 5
	PTE_A PTEFlags = 1 << 6
	PTE_D PTEFlags = 1 << 7
)

// PageTableEntry is one SV39 leaf or directory entry: a physical page
// number plus flags, packed the way the hardware expects (ppn in bits
// 10-53, flags in bits 0-7) even though this simulation never hands the
// raw value to real hardware.
type PageTableEntry uint64

func NewPTE(ppn mem.Ppn_t, flags PTEFlags) PageTableEntry {
	return PageTableEntry(uint64(ppn)<<10 | uint64(flags))
}

func (pte PageTableEntry) Ppn() mem.Ppn_t  { return mem.Ppn_t(uint64(pte) >> 10) }
func (pte PageTableEntry) Flags() PTEFlags { return PTEFlags(uint64(pte) & 0xff) }
func (pte PageTableEntry) Valid() bool     { return pte.Flags()&PTE_V != 0 }
func (pte PageTableEntry) Readable() bool  { return pte.Flags()&PTE_R != 0 }
func (pte PageTableEntry) Writable() bool  { return pte.Flags()&PTE_W != 0 }
func (pte PageTableEntry) Executable() bool {
	return pte.Flags()&PTE_X != 0
}
func (pte PageTableEntry) UserAccessible() bool { return pte.Flags()&PTE_U != 0 }

// VirtPageNum is a virtual page number: a virtual address with the page
// offset stripped off.
type VirtPageNum uint64

func VpnOf(va uintptr) VirtPageNum      { return VirtPageNum(va >> pageShift) }
func (v VirtPageNum) Addr() uintptr     { return uintptr(v) << pageShift }
func (v VirtPageNum) indexes() [3]uint64 {
	x := uint64(v)
	var idx [3]uint64
	for i := 2; i >= 0; i-- {
		idx[i] = x & ppnMask
		x >>= ppnBits
	}
	return idx
}

// PageTable is one address space's SV39 radix tree (§3). It owns every
// directory frame it allocates (tracked in frames) but never owns leaf
// frames: those belong to the MapArea that inserted them.
type PageTable struct {
	Root   mem.Ppn_t
	frames []*mem.FrameTracker
}

// NewPageTable allocates a fresh, empty root directory.
func NewPageTable() (*PageTable, bool) {
	root, ok := mem.New()
	if !ok {
		return nil, false
	}
	return &PageTable{Root: root.Ppn, frames: []*mem.FrameTracker{root}}, true
}

func dirEntries(ppn mem.Ppn_t) []PageTableEntry {
	b := mem.Bytes(ppn)
	n := len(b) / 8
	out := make([]PageTableEntry, n)
	for i := 0; i < n; i++ {
		var v uint64
		for j := 0; j < 8; j++ {
			v |= uint64(b[i*8+j]) << (8 * j)
		}
		out[i] = PageTableEntry(v)
	}
	return out
}

func setDirEntry(ppn mem.Ppn_t, idx uint64, pte PageTableEntry) {
	b := mem.Bytes(ppn)
	v := uint64(pte)
	for j := 0; j < 8; j++ {
		b[int(idx)*8+j] = byte(v >> (8 * j))
	}
}

// findPte walks the three levels for vpn, allocating intermediate
// directories along the way when create is true (as in pmap_pgtbl,
// vm/pmap.go). It returns the directory ppn and leaf index holding the
// final PTE slot.
func (pt *PageTable) findPte(vpn VirtPageNum, create bool) (dir mem.Ppn_t, idx uint64, ok bool) {
	idxs := vpn.indexes()
	dir = pt.Root
	for level := 0; level < sv39Levels-1; level++ {
		entries := dirEntries(dir)
		pte := entries[idxs[level]]
		if !pte.Valid() {
			if !create {
				return 0, 0, false
			}
			next, allocOk := mem.New()
			if !allocOk {
				return 0, 0, false
			}
			pt.frames = append(pt.frames, next)
			setDirEntry(dir, idxs[level], NewPTE(next.Ppn, PTE_V))
			dir = next.Ppn
			continue
		}
		dir = pte.Ppn()
	}
	return dir, idxs[sv39Levels-1], true
}

// Map installs a leaf PTE for vpn pointing at ppn with the given flags
// (always ORed with PTE_V). It panics if vpn is already mapped, matching
// the original's `assert!(!pte.is_valid(), ...)` (mm/page_table.rs).
func (pt *PageTable) Map(vpn VirtPageNum, ppn mem.Ppn_t, flags PTEFlags) {
	dir, idx, ok := pt.findPte(vpn, true)
	if !ok {
		panic(fmt.Sprintf("vm: out of memory mapping vpn=%#x", vpn))
	}
	entries := dirEntries(dir)
	if entries[idx].Valid() {
		panic(fmt.Sprintf("vm: vpn=%#x already mapped", vpn))
	}
	setDirEntry(dir, idx, NewPTE(ppn, flags|PTE_V))
}

// Unmap clears the leaf PTE for vpn. It panics if vpn was not mapped,
// matching the original's `assert!(pte.is_valid(), ...)`.
func (pt *PageTable) Unmap(vpn VirtPageNum) {
	dir, idx, ok := pt.findPte(vpn, false)
	if !ok {
		panic(fmt.Sprintf("vm: vpn=%#x was never mapped", vpn))
	}
	entries := dirEntries(dir)
	if !entries[idx].Valid() {
		panic(fmt.Sprintf("vm: vpn=%#x not mapped", vpn))
	}
	setDirEntry(dir, idx, PageTableEntry(0))
}

// Translate returns the PTE mapping vpn, if any.
func (pt *PageTable) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	dir, idx, ok := pt.findPte(vpn, false)
	if !ok {
		return 0, false
	}
	entries := dirEntries(dir)
	pte := entries[idx]
	if !pte.Valid() {
		return 0, false
	}
	return pte, true
}

// TranslateVA resolves a virtual address to its physical address, for
// reading/writing user memory from kernel code (Userdmap8_inner's role in
// vm/as.go, generalized to SV39).
func (pt *PageTable) TranslateVA(va uintptr) (uintptr, bool) {
	pte, ok := pt.Translate(VpnOf(va))
	if !ok {
		return 0, false
	}
	offset := va & (pageSize - 1)
	return uintptr(pte.Ppn())<<pageShift | offset, true
}
