package vm

import "github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"

// WriteUser copies data into the mapped user pages starting at va,
// crossing page boundaries as needed. It is the generalized analogue of
// the teacher's Userdmap8_inner (vm/as.go) used for kernel-to-user copies
// (argv/envp/auxv assembly, syscall out-parameters).
func (ms *MemorySet) WriteUser(va uintptr, data []byte) bool {
	for len(data) > 0 {
		pte, ok := ms.Translate(VpnOf(va))
		if !ok {
			return false
		}
		page := mem.Bytes(pte.Ppn())
		off := va & (pageSize - 1)
		n := copy(page[off:], data)
		data = data[n:]
		va += uintptr(n)
	}
	return true
}

// ReadUser is WriteUser's inverse, for syscall argument marshalling
// (reading a user buffer's contents into kernel-visible bytes).
func (ms *MemorySet) ReadUser(va uintptr, n int) ([]byte, bool) {
	out := make([]byte, 0, n)
	for len(out) < n {
		pte, ok := ms.Translate(VpnOf(va))
		if !ok {
			return nil, false
		}
		page := mem.Bytes(pte.Ppn())
		off := va & (pageSize - 1)
		want := n - len(out)
		avail := len(page) - int(off)
		if want > avail {
			want = avail
		}
		out = append(out, page[off:int(off)+want]...)
		va += uintptr(want)
	}
	return out, true
}

// ReadUserCString reads a NUL-terminated string starting at va, for
// syscalls that take a `const char *` (openat's pathname, execve's argv
// entries).
func (ms *MemorySet) ReadUserCString(va uintptr) (string, bool) {
	var out []byte
	for {
		pte, ok := ms.Translate(VpnOf(va))
		if !ok {
			return "", false
		}
		page := mem.Bytes(pte.Ppn())
		off := int(va & (pageSize - 1))
		for ; off < len(page); off++ {
			if page[off] == 0 {
				return string(out), true
			}
			out = append(out, page[off])
		}
		va = (va &^ (pageSize - 1)) + pageSize
	}
}
