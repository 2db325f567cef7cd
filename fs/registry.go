// Package fs is the narrow external-collaborator interface execve uses
// to resolve a pathname to ELF bytes (§4.3). A full on-disk filesystem is
// explicitly out of scope (§1 Non-goals: no persistent storage), so this
// package is reduced to an in-memory registry of named programs, the
// minimum surface execve needs; it also supplies the page-cache eviction
// hook mem.SetOOMHook expects (§4.1, §9), here a no-op since there is no
// cache to evict.
package fs

import (
	"sync"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

var (
	mu    sync.RWMutex
	files = map[string][]byte{}
)

// Register makes path's ELF bytes resolvable by execve/openat (§4.3),
// used by cmd/kernel to install the programs it preloads from the kernel
// image and by tests to install a synthetic program.
func Register(path string, elfBytes []byte) {
	mu.Lock()
	files[path] = elfBytes
	mu.Unlock()
}

// Lookup resolves path to its ELF bytes, or ENOENT if nothing was
// registered under that name.
func Lookup(path string) ([]byte, defs.Err_t) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := files[path]
	if !ok {
		return nil, defs.ENOENT
	}
	return b, defs.SUCCESS
}

// OOMHook is installed via mem.SetOOMHook at boot (§4.1, §9): since this
// design keeps no evictable page cache, it always reports nothing
// released, letting the allocator's caller fall through to its own
// out-of-memory handling.
func OOMHook(need int) int { return 0 }
