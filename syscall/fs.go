package syscall

import (
	"bytes"
	"io"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/fs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
)

func init() {
	register(defs.SYS_PIPE2, sysPipe2)
	register(defs.SYS_OPENAT, sysOpenat)
	for _, stub := range []uint64{defs.SYS_MKDIRAT, defs.SYS_UNLINKAT} {
		register(stub, sysAlwaysSucceeds)
	}
}

func sysRead(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	fd, buf, count := int(args[0]), uintptr(args[1]), int(args[2])
	f, ok := t.Process.Fds.Get(fd)
	if !ok {
		return trap.ErrCode(defs.EBADF)
	}
	tmp := make([]byte, count)
	n, err := f.File.Read(tmp)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	if !t.Process.MemorySet.WriteUser(buf, tmp[:n]) {
		return trap.ErrCode(defs.EFAULT)
	}
	return uint64(n)
}

func sysWrite(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	fd, buf, count := int(args[0]), uintptr(args[1]), int(args[2])
	f, ok := t.Process.Fds.Get(fd)
	if !ok {
		return trap.ErrCode(defs.EBADF)
	}
	data, ok := t.Process.MemorySet.ReadUser(buf, count)
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}
	n, err := f.File.Write(data)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	return uint64(n)
}

func sysClose(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	return trap.ErrCode(t.Process.Fds.Close(int(args[0])))
}

func sysDup(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	nfd, err := t.Process.Fds.Dup(int(args[0]))
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	return uint64(nfd)
}

func sysDup3(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	cloexec := args[2]&uint64(defs.O_CLOEXEC) != 0
	err := t.Process.Fds.Dup3(int(args[0]), int(args[1]), cloexec)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	return uint64(args[1])
}

// sysPipe2 installs a connected pair of proc.Files into the caller's fd
// table and writes their numbers to the two-int array at args[0] (§6, id
// 59; §8 scenario 3).
func sysPipe2(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	fdsPtr := uintptr(args[0])
	r, w := proc.PipeEnds()
	cloexec := args[1]&uint64(defs.O_CLOEXEC) != 0

	rfd, err := t.Process.Fds.Install(&proc.Fd{File: r, CloseOnExec: cloexec}, 0)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	wfd, err := t.Process.Fds.Install(&proc.Fd{File: w, CloseOnExec: cloexec}, 0)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}

	buf := make([]byte, 8)
	putU32(buf[0:4], uint32(rfd))
	putU32(buf[4:8], uint32(wfd))
	if !t.Process.MemorySet.WriteUser(fdsPtr, buf) {
		return trap.ErrCode(defs.EFAULT)
	}
	return trap.ErrCode(defs.SUCCESS)
}

func putU32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// sysOpenat resolves path against the in-memory program registry (§4.3's
// fs collaborator) rather than a real filesystem: there is no writable
// storage in this design (§1 Non-goals), so only O_RDONLY opens of an
// already-registered name succeed: O_WRONLY, O_RDWR or O_CREAT fail with
// EACCES, and a name that is not registered fails with fs.Lookup's
// ENOENT.
func sysOpenat(t *proc.TaskControlBlock, args [6]uint64) uint64 {
	pathPtr := uintptr(args[1])
	flags := int(args[2])
	path, ok := t.Process.MemorySet.ReadUserCString(pathPtr)
	if !ok {
		return trap.ErrCode(defs.EFAULT)
	}
	if flags&defs.O_WRONLY != 0 || flags&defs.O_RDWR != 0 || flags&defs.O_CREAT != 0 {
		return trap.ErrCode(defs.EACCES)
	}
	data, err := fs.Lookup(path)
	if err != defs.SUCCESS {
		return trap.ErrCode(err)
	}
	cloexec := flags&defs.O_CLOEXEC != 0
	fd, ferr := t.Process.Fds.Install(&proc.Fd{File: &readOnlyFile{r: bytes.NewReader(data)}, CloseOnExec: cloexec}, 0)
	if ferr != defs.SUCCESS {
		return trap.ErrCode(ferr)
	}
	return uint64(fd)
}

// readOnlyFile adapts a registered program's bytes to proc.File so
// openat can hand back something readable without a real filesystem
// backing it.
type readOnlyFile struct {
	r *bytes.Reader
}

func (f *readOnlyFile) Read(buf []byte) (int, defs.Err_t) {
	n, err := f.r.Read(buf)
	if err != nil && err != io.EOF {
		return n, defs.EIO
	}
	return n, defs.SUCCESS
}

func (f *readOnlyFile) Write(buf []byte) (int, defs.Err_t) {
	return 0, defs.EBADF
}

func (f *readOnlyFile) Close() defs.Err_t { return defs.SUCCESS }
