package vm

import "github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"

// Mmap carves length bytes out of the MemorySet's mmap region (§4.2, §8),
// grounded on mm/memory_set.rs's mmap. Only anonymous mappings are
// implemented: file-backed mmap is out of scope (§1 Non-goals: no real
// filesystem). startAddr is honored only when flags carries MAP_FIXED
// (§4.3); otherwise the mapping is placed at the mmap_end cursor.
func (ms *MemorySet) Mmap(startAddr uintptr, length uintptr, prot int, flags int) (uintptr, defs.Err_t) {
	length = roundUp(length)
	perm := protToPerm(prot)

	if flags&defs.MAP_FIXED != 0 && startAddr != 0 {
		return ms.mmapFixed(startAddr, length, perm)
	}

	start := ms.MmapEnd
	a := NewMapArea(start, start+length, Framed, perm)
	if !ms.InsertArea(a) {
		return 0, defs.ENOMEM
	}
	// §4.3: "advance it by len + PAGE_SIZE" — the guard page between
	// successive grow-cursor mappings.
	ms.MmapEnd = start + length + pageSize
	return start, defs.SUCCESS
}

// mmapFixed installs a mapping at exactly startAddr, skipping any VPN
// already mapped in the MemorySet (§4.3: "skipping already-mapped VPNs
// under MAP_FIXED"), matching the original's fixed-address path
// (mm/memory_set.rs). The newly mapped VPNs are tracked by a MapArea
// spanning the full requested range so Munmap/Mprotect can still find
// them by start address; VPNs the loop skipped remain owned by whatever
// area already mapped them.
func (ms *MemorySet) mmapFixed(startAddr, length uintptr, perm MapPermission) (uintptr, defs.Err_t) {
	a := NewMapArea(startAddr, startAddr+length, Framed, perm)
	for vpn := a.StartVpn; vpn < a.EndVpn; vpn++ {
		if _, ok := ms.PageTable.Translate(vpn); ok {
			continue
		}
		if !a.mapOne(ms.PageTable, vpn) {
			return 0, defs.ENOMEM
		}
	}
	ms.Areas = append(ms.Areas, a)
	if end := startAddr + length; end > ms.MmapEnd {
		ms.MmapEnd = end + pageSize
	}
	return startAddr, defs.SUCCESS
}

// Munmap removes the mapping starting at addr. The original requires an
// exact area-start match (mm/memory_set.rs's munmap); partial unmaps
// inside a larger mapping are not supported (§4.2, §9).
func (ms *MemorySet) Munmap(addr uintptr) defs.Err_t {
	if !ms.RemoveAreaByStart(VpnOf(addr)) {
		return defs.EINVAL
	}
	return defs.SUCCESS
}

// Mprotect changes the permission bits of every VPN in
// [addr.floor(), (addr+len).ceil()) (§4.3), by unmapping and remapping
// each page with the new flags (mirrors the original's approach of
// rebuilding PTEs on permission change, mm/memory_set.rs). It fails with
// EPERM if any VPN in the range is not mapped, matching the original's
// first-unmapped-VPN check (mm/memory_set.rs:621-648). protToPerm always
// grants PTE_U, so U is preserved across the change without special
// casing (§9 Open Questions: A/D bits are simply never set, so there is
// nothing else to preserve).
func (ms *MemorySet) Mprotect(addr uintptr, length uintptr, prot int) defs.Err_t {
	startVpn := VpnOf(addr)
	endVpn := VpnOf(roundUp(addr + length))
	newPerm := protToPerm(prot)

	for vpn := startVpn; vpn < endVpn; vpn++ {
		if _, ok := ms.PageTable.Translate(vpn); !ok {
			return defs.EPERM
		}
	}
	touchedAreas := map[*MapArea]bool{}
	for vpn := startVpn; vpn < endVpn; vpn++ {
		pte, _ := ms.PageTable.Translate(vpn)
		ms.PageTable.Unmap(vpn)
		ms.PageTable.Map(vpn, pte.Ppn(), newPerm)
		if a, _ := ms.areaContaining(vpn); a != nil {
			touchedAreas[a] = true
		}
	}
	for a := range touchedAreas {
		a.Perm = newPerm
	}
	return defs.SUCCESS
}

func protToPerm(prot int) MapPermission {
	perm := MapPermission(PTE_U)
	if prot&defs.PROT_READ != 0 {
		perm |= PTE_R
	}
	if prot&defs.PROT_WRITE != 0 {
		perm |= PTE_W
	}
	if prot&defs.PROT_EXEC != 0 {
		perm |= PTE_X
	}
	return perm
}

// Brk grows or shrinks the heap area to newEnd (§4.2), grounded on the
// original's heap handling in task/process.rs's exec/clone paths, which
// keep a single Framed heap area from HeapBase to a movable HeapEnd.
func (ms *MemorySet) Brk(newEnd uintptr) defs.Err_t {
	if newEnd < ms.HeapBase {
		return defs.EINVAL
	}
	oldVpn, newVpn := VpnOf(roundUp(ms.HeapEnd)), VpnOf(roundUp(newEnd))
	switch {
	case newVpn > oldVpn:
		if !ms.AppendAreaTo(VpnOf(ms.HeapBase), newVpn) {
			return defs.ENOMEM
		}
	case newVpn < oldVpn:
		ms.ShrinkAreaTo(VpnOf(ms.HeapBase), newVpn)
	}
	ms.HeapEnd = newEnd
	return defs.SUCCESS
}
