package vm

import (
	"sort"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"
)

// MapType distinguishes how a MapArea's pages were obtained (§3):
// Framed areas own freshly allocated frames; Identical areas point at a
// fixed physical range (unused outside the kernel's own address space in
// this design, kept for parity with the original); Marked areas are
// handled exactly like Framed ones: mapOne gives each page a freshly
// allocated frame that the area owns, so a Marked area never maps frames
// owned by something else.
type MapType int

const (
	Identical MapType = iota
	Framed
	Marked
)

// MapPermission is the subset of PTE flags a MapArea grants uniformly
// across all its pages, always including PTE_U for user mappings.
type MapPermission = PTEFlags

// MapArea is one contiguous, permission-uniform virtual range within a
// MemorySet (§3), grounded on mm/memory_set.rs's MapArea struct.
type MapArea struct {
	StartVpn, EndVpn VirtPageNum
	MapType          MapType
	Perm             MapPermission
	frames           map[VirtPageNum]*mem.FrameTracker
}

func NewMapArea(startVA, endVA uintptr, mt MapType, perm MapPermission) *MapArea {
	return &MapArea{
		StartVpn: VpnOf(startVA),
		EndVpn:   VpnOf(roundUp(endVA)),
		MapType:  mt,
		Perm:     perm,
		frames:   make(map[VirtPageNum]*mem.FrameTracker),
	}
}

func roundUp(va uintptr) uintptr {
	if va&(pageSize-1) == 0 {
		return va
	}
	return (va &^ (pageSize - 1)) + pageSize
}

func (a *MapArea) overlaps(o *MapArea) bool {
	return a.StartVpn < o.EndVpn && o.StartVpn < a.EndVpn
}

// mapOne installs one page of the area, allocating a fresh owned frame for
// Framed/Marked areas or using the identity ppn for Identical areas.
func (a *MapArea) mapOne(pt *PageTable, vpn VirtPageNum) bool {
	var ppn mem.Ppn_t
	switch a.MapType {
	case Identical:
		ppn = mem.Ppn_t(vpn)
	default:
		f, ok := mem.New()
		if !ok {
			return false
		}
		a.frames[vpn] = f
		ppn = f.Ppn
	}
	pt.Map(vpn, ppn, a.Perm)
	return true
}

func (a *MapArea) mapAll(pt *PageTable) bool {
	for vpn := a.StartVpn; vpn < a.EndVpn; vpn++ {
		if !a.mapOne(pt, vpn) {
			return false
		}
	}
	return true
}

func (a *MapArea) unmapOne(pt *PageTable, vpn VirtPageNum) {
	if a.MapType != Identical {
		if f, ok := a.frames[vpn]; ok {
			f.Release()
			delete(a.frames, vpn)
		}
	}
	pt.Unmap(vpn)
}

func (a *MapArea) unmapAll(pt *PageTable) {
	for vpn := a.StartVpn; vpn < a.EndVpn; vpn++ {
		if _, ok := pt.Translate(vpn); ok {
			a.unmapOne(pt, vpn)
		}
	}
}

// copyFrom deep-copies another area's page contents into freshly allocated
// frames of this area, for the non-COW fork behavior mm/memory_set.rs's
// from_existed_user implements (§3: "forked children get independent
// copies of every page, not copy-on-write mappings").
func (a *MapArea) copyFrom(pt *PageTable, src *MapArea) {
	for vpn := src.StartVpn; vpn < src.EndVpn; vpn++ {
		srcPte, ok := srcFrameLookup(src, vpn)
		if !ok {
			continue
		}
		a.mapOne(pt, vpn)
		dst := mem.Bytes(mustPpn(a, pt, vpn))
		copy(dst, mem.Bytes(srcPte))
	}
}

func srcFrameLookup(a *MapArea, vpn VirtPageNum) (mem.Ppn_t, bool) {
	if f, ok := a.frames[vpn]; ok {
		return f.Ppn, true
	}
	return 0, false
}

func mustPpn(a *MapArea, pt *PageTable, vpn VirtPageNum) mem.Ppn_t {
	pte, ok := pt.Translate(vpn)
	if !ok {
		panic("vm: just-mapped vpn has no translation")
	}
	return pte.Ppn()
}

// MemorySet is one process's complete address space (§3): a page table
// plus the list of MapAreas that describe it, grounded on
// mm/memory_set.rs's MemorySet struct.
type MemorySet struct {
	PageTable *PageTable
	Areas     []*MapArea

	HeapBase, HeapEnd uintptr
	MmapBase, MmapEnd uintptr
}

func NewMemorySet() (*MemorySet, bool) {
	pt, ok := NewPageTable()
	if !ok {
		return nil, false
	}
	return &MemorySet{
		PageTable: pt,
		MmapBase:  defs.MmapBase,
		MmapEnd:   defs.MmapBase,
	}, true
}

// InsertArea validates non-overlap (invariant: "no two MapAreas in a
// MemorySet ever overlap", §8) and then maps it into the page table.
func (ms *MemorySet) InsertArea(a *MapArea) bool {
	for _, existing := range ms.Areas {
		if a.overlaps(existing) {
			panic("vm: overlapping MapArea insertion")
		}
	}
	if !a.mapAll(ms.PageTable) {
		return false
	}
	ms.Areas = append(ms.Areas, a)
	return true
}

// RemoveAreaByStart unmaps and drops the area starting at startVpn, as
// munmap and thread-stack teardown need (mm/memory_set.rs's
// remove_area_with_start_vpn).
func (ms *MemorySet) RemoveAreaByStart(startVpn VirtPageNum) bool {
	for i, a := range ms.Areas {
		if a.StartVpn == startVpn {
			a.unmapAll(ms.PageTable)
			ms.Areas = append(ms.Areas[:i], ms.Areas[i+1:]...)
			return true
		}
	}
	return false
}

// areaContaining finds the MapArea covering vpn, if any.
func (ms *MemorySet) areaContaining(vpn VirtPageNum) (*MapArea, int) {
	for i, a := range ms.Areas {
		if vpn >= a.StartVpn && vpn < a.EndVpn {
			return a, i
		}
	}
	return nil, -1
}

// ShrinkAreaTo and AppendAreaTo implement brk's grow/shrink halves
// (mm/memory_set.rs's APIs of the same name), operating on the heap area.
func (ms *MemorySet) ShrinkAreaTo(startVpn, newEndVpn VirtPageNum) bool {
	a, _ := ms.areaContaining(startVpn)
	if a == nil || a.StartVpn != startVpn {
		return false
	}
	for vpn := newEndVpn; vpn < a.EndVpn; vpn++ {
		a.unmapOne(ms.PageTable, vpn)
	}
	a.EndVpn = newEndVpn
	return true
}

func (ms *MemorySet) AppendAreaTo(startVpn, newEndVpn VirtPageNum) bool {
	// Look the area up by its start rather than by containment, so an
	// empty heap area (StartVpn == EndVpn) can still be grown.
	var a *MapArea
	for _, cand := range ms.Areas {
		if cand.StartVpn == startVpn {
			a = cand
			break
		}
	}
	if a == nil {
		return false
	}
	for vpn := a.EndVpn; vpn < newEndVpn; vpn++ {
		if !a.mapOne(ms.PageTable, vpn) {
			return false
		}
	}
	a.EndVpn = newEndVpn
	return true
}

// Translate exposes the underlying page table's lookup for syscall
// argument marshalling.
func (ms *MemorySet) Translate(vpn VirtPageNum) (PageTableEntry, bool) {
	return ms.PageTable.Translate(vpn)
}

// FromExistedUser deep-copies src into a new MemorySet: every MapArea is
// recreated and every present page's bytes are copied into a freshly
// allocated frame, matching the original's explicitly non-COW fork
// (mm/memory_set.rs's from_existed_user; §3, §8).
func FromExistedUser(src *MemorySet) (*MemorySet, bool) {
	ms, ok := NewMemorySet()
	if !ok {
		return nil, false
	}
	ms.HeapBase, ms.HeapEnd = src.HeapBase, src.HeapEnd
	ms.MmapBase, ms.MmapEnd = src.MmapBase, src.MmapEnd

	areas := make([]*MapArea, len(src.Areas))
	copy(areas, src.Areas)
	sort.Slice(areas, func(i, j int) bool { return areas[i].StartVpn < areas[j].StartVpn })

	for _, srcArea := range areas {
		dst := &MapArea{
			StartVpn: srcArea.StartVpn,
			EndVpn:   srcArea.EndVpn,
			MapType:  srcArea.MapType,
			Perm:     srcArea.Perm,
			frames:   make(map[VirtPageNum]*mem.FrameTracker),
		}
		dst.copyFrom(ms.PageTable, srcArea)
		ms.Areas = append(ms.Areas, dst)
	}
	return ms, true
}

// Destroy releases every owned frame across every area and the page
// table's own directory frames, for process teardown on exit (§4.4).
func (ms *MemorySet) Destroy() {
	for _, a := range ms.Areas {
		a.unmapAll(ms.PageTable)
	}
	ms.Areas = nil
	for _, f := range ms.PageTable.frames {
		f.Release()
	}
	ms.PageTable.frames = nil
}
