package syscall

import (
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/fs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/loader"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/vm"
)

func init() {
	register(defs.SYS_EXECVE, sysExecve)
	register(defs.SYS_CLONE, sysClone)
	register(defs.SYS_GETCWD, sysGetcwd)
}

// sysExecve replaces the caller's address space with the named program
// (§4.3), grounded on task/process.rs's exec(): resolve the pathname
// through the fs collaborator, parse and map its ELF (and its PT_INTERP
// dynamic linker, if any), assemble argv/envp/auxv on a fresh stack, and
// hand control to Execve to install the new state.
func sysExecve(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	path, ok := t.Process.MemorySet.ReadUserCString(uintptr(args[0]))
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}
	argv, ok := readStringArray(t.Process.MemorySet, uintptr(args[1]))
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}
	envp, ok := readStringArray(t.Process.MemorySet, uintptr(args[2]))
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}

	raw, err := fs.Lookup(path)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	img, perr := loader.Parse(raw)
	if perr != nil {
		return trap.ErrCode(defs.ENOEXEC)
	}
	var interp *loader.Image
	if img.Interp != "" {
		interpRaw, err := fs.Lookup(img.Interp)
		if err != defs.SUCCESS {
			return trap.ErrCode(err)
		}
		interp, perr = loader.Parse(interpRaw)
		if perr != nil {
			return trap.ErrCode(defs.ENOEXEC)
		}
	}

	ms, ok := vm.NewMemorySet()
	if !ok {
		return trap.ErrCode(defs.ENOMEM)
	}
	res, lerr := loader.LoadInto(ms, img, interp)
	if lerr != nil {
		return trap.ErrCode(defs.ENOMEM)
	}
	if !ms.MapUserStack(defs.StackTop) {
		return trap.ErrCode(defs.ENOMEM)
	}

	auxv := vm.DefaultAuxv(res.PhdrVA, res.PhEntSize, res.PhNum, res.Entry, res.InterpBase)
	sp, argc, argvPtr, envpPtr, auxvPtr, ok := ms.BuildStack(defs.StackTop, argv, envp, auxv, path)
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}

	proc.Execve(t, ms, ms.HeapBase, ms.HeapEnd, argv, envp)
	newCtx := trap.AppInitContext(res.Entry, sp, 0, argc, argvPtr, envpPtr, auxvPtr)
	t.RestoreTrapContext(newCtx)
	return 0
}

func readStringArray(ms *vm.MemorySet, va uintptr) ([]string, bool) {
	if va == 0 {
		return nil, true
	}
	var out []string
	for {
		ptrBytes, ok := ms.ReadUser(va, 8)
		if !ok {
			return nil, false
		}
		ptr := getU64(ptrBytes)
		if ptr == 0 {
			return out, true
		}
		s, ok := ms.ReadUserCString(uintptr(ptr))
		if !ok {
			return nil, false
		}
		out = append(out, s)
		va += 8
	}
}

// sysClone implements clone(2) restricted to CLONE_THREAD|CLONE_VM
// (thread creation within a process) per §4.4/§9: a full fork-via-clone
// path is covered separately by proc.Fork, invoked by the userland
// fork(2) wrapper via this same syscall number with no CLONE_THREAD bit
// set.
func sysClone(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	// clone(flags, stack, ptid, tls, ctid), per §4.4's clone signature.
	flags := proc.CloneFlags(args[0])
	newSP := uintptr(args[1])
	ptid := uintptr(args[2])
	tls := uintptr(args[3])
	ctid := uintptr(args[4])

	if flags&proc.CloneThread == 0 {
		child, err := proc.Fork(t.Process)
		if err != defs.SUCCESS {
			return trap.ErrCode(err)
		}
		return uint64(child.Process.Pid)
	}
	child, err := proc.Clone(t, flags, newSP, tls, ptid, ctid)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	return uint64(child.Tid)
}

func sysGetcwd(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	buf, size := uintptr(args[0]), int(args[1])
	path := t.Process.WorkPath
	if path == "" {
		path = "/"
	}
	b := append([]byte(path), 0)
	if len(b) > size {
		return trap.ErrCode(defs.ERANGE)
	}
	if !t.Process.MemorySet.WriteUser(buf, b) {
		return trap.ErrCode(defs.EFAULT)
	}
	return uint64(buf)
}
