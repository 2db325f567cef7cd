package vm

import "github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"

// AuxEntry is one (type, value) pair of the ELF auxiliary vector passed to
// the dynamic linker and libc startup code (§4.3).
type AuxEntry struct {
	Type  uint64
	Value uint64
}

// Auxiliary vector types used by build_stack (mm/memory_set.rs), matching
// the Linux/glibc values.
const (
	AT_NULL   = 0
	AT_PHDR   = 3
	AT_PHENT  = 4
	AT_PHNUM  = 5
	AT_PAGESZ = 6
	AT_BASE   = 7
	AT_ENTRY  = 9
	AT_UID    = 11
	AT_GID    = 13
	AT_HWCAP  = 16
	AT_RANDOM = 25
	AT_EXECFN = 31
	AT_PLATFORM = 15
)

// randomBytesSource lets tests substitute deterministic bytes for
// AT_RANDOM instead of reaching for crypto/rand, kept as a package
// variable the way the teacher isolates other nondeterminism (e.g.
// util.Rdtsc-backed seeds).
var randomBytesSource = func(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(0xa5 ^ i)
	}
	return b
}

// MapUserStack installs the Framed, R|W|U user-stack area
// [stackTop-defs.UserStackSize, stackTop), the counterpart of the
// original's TaskUserRes::alloc_user_res mapping a fixed-size stack below
// STACK_TOP (config.rs's USER_STACK_SIZE). Every exec/initial-spawn path
// must call this before BuildStack, since BuildStack writes into that
// range and has nothing to map it itself.
func (ms *MemorySet) MapUserStack(stackTop uintptr) bool {
	a := NewMapArea(stackTop-defs.UserStackSize, stackTop, Framed, PTE_R|PTE_W|PTE_U)
	return ms.InsertArea(a)
}

// BuildStack lays out argv, envp, the platform string, 16 random bytes,
// padding, and the auxiliary vector on the user stack, in the exact push
// order of the original's build_stack (mm/memory_set.rs), and returns the
// final stack pointer, the argc/argv/envp/auxv registers execve hands to
// the entry point, and whether every write actually landed (the caller is
// expected to have mapped the stack with MapUserStack first).
func (ms *MemorySet) BuildStack(stackTop uintptr, argv, envp []string, auxv []AuxEntry, execfn string) (sp uintptr, argc int, argvPtr uintptr, envpPtr uintptr, auxvPtr uintptr, ok bool) {
	sp = stackTop
	ok = true

	pushString := func(s string) uintptr {
		b := append([]byte(s), 0)
		sp -= uintptr(len(b))
		ok = ms.WriteUser(sp, b) && ok
		return sp
	}

	var envpPtrs []uintptr
	for i := len(envp) - 1; i >= 0; i-- {
		envpPtrs = append(envpPtrs, pushString(envp[i]))
	}
	var argvPtrs []uintptr
	for i := len(argv) - 1; i >= 0; i-- {
		argvPtrs = append(argvPtrs, pushString(argv[i]))
	}
	execfnPtr := pushString(execfn)
	platformPtr := pushString("RISC-V64")

	randBytes := randomBytesSource(16)
	sp -= 16
	sp &^= 15
	ok = ms.WriteUser(sp, randBytes) && ok
	randomPtr := sp

	full := append([]AuxEntry{}, auxv...)
	full = append(full,
		AuxEntry{AT_PLATFORM, uint64(platformPtr)},
		AuxEntry{AT_RANDOM, uint64(randomPtr)},
		AuxEntry{AT_EXECFN, uint64(execfnPtr)},
		AuxEntry{AT_NULL, 0},
	)
	for i := len(full) - 1; i >= 0; i-- {
		sp -= 16
		buf := make([]byte, 16)
		putU64(buf[0:8], full[i].Type)
		putU64(buf[8:16], full[i].Value)
		ok = ms.WriteUser(sp, buf) && ok
	}
	auxvPtr = sp

	sp -= 8 // envp NULL terminator
	for _, p := range envpPtrs {
		sp -= 8
		ok = putU64Ptr(ms, sp, uint64(p)) && ok
	}
	envpPtr = sp

	sp -= 8 // argv NULL terminator
	for _, p := range argvPtrs {
		sp -= 8
		ok = putU64Ptr(ms, sp, uint64(p)) && ok
	}
	argvPtr = sp

	argc = len(argv)
	sp -= 8
	ok = putU64Ptr(ms, sp, uint64(argc)) && ok

	return sp, argc, argvPtr, envpPtr, auxvPtr, ok
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func putU64Ptr(ms *MemorySet, va uintptr, v uint64) bool {
	b := make([]byte, 8)
	putU64(b, v)
	return ms.WriteUser(va, b)
}

// DefaultAuxv builds the PHDR/PHENT/PHNUM/PAGESZ/ENTRY/BASE auxv entries
// shared by every ELF load (mm/memory_set.rs's from_elf), leaving the
// caller to append AT_PLATFORM/AT_RANDOM/AT_EXECFN/AT_NULL via BuildStack.
func DefaultAuxv(phdrVA uintptr, phentsize, phnum int, entry uintptr, interpBase uintptr) []AuxEntry {
	return []AuxEntry{
		{AT_PHDR, uint64(phdrVA)},
		{AT_PHENT, uint64(phentsize)},
		{AT_PHNUM, uint64(phnum)},
		{AT_PAGESZ, defs.PAGE_SIZE},
		{AT_BASE, uint64(interpBase)},
		{AT_ENTRY, uint64(entry)},
		{AT_UID, 0},
		{AT_GID, 0},
		{AT_HWCAP, 0},
	}
}
