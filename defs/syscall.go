package defs

import "golang.org/x/sys/unix"

// Syscall numbers (§6): the Linux RISC-V64 numbering, not biscuit's own
// compact ABI. The dispatcher in package syscall indexes its handler table
// by these.
const (
	SYS_GETCWD        = 17
	SYS_DUP           = 23
	SYS_DUP3          = 24
	SYS_MKDIRAT       = 34
	SYS_UNLINKAT      = 35
	SYS_OPENAT        = 56
	SYS_CLOSE         = 57
	SYS_PIPE2         = 59
	SYS_READ          = 63
	SYS_WRITE         = 64
	SYS_EXIT          = 93
	SYS_EXIT_GROUP    = 94
	SYS_SET_TID_ADDR  = 96
	SYS_FUTEX         = 98
	SYS_NANOSLEEP     = 101
	SYS_SCHED_YIELD   = 124
	SYS_KILL          = 129
	SYS_TKILL         = 130
	SYS_RT_SIGACTION  = 134
	SYS_RT_SIGPROCMASK = 135
	SYS_RT_SIGRETURN  = 139
	SYS_TIMES         = 153
	SYS_CLOCK_GETTIME = 169
	SYS_GETPID        = 172
	SYS_GETPPID       = 173
	SYS_BRK           = 214
	SYS_MUNMAP        = 215
	SYS_CLONE         = 220
	SYS_EXECVE        = 221
	SYS_MMAP          = 222
	SYS_MPROTECT      = 226
	SYS_WAIT4         = 260
	// SYS_SHUTDOWN is a non-standard extension (§6): halt the machine;
	// a nonzero argument reports a failure exit to the test harness.
	SYS_SHUTDOWN = 2000

	// Stubs kept for ABI compatibility with a musl/BusyBox userland
	// (§9 open questions): these always succeed without doing anything.
	SYS_MOUNT     = 40
	SYS_UMOUNT2   = 39
	SYS_GETITIMER = 102
	SYS_SETITIMER = 103
	SYS_UMASK     = 166
	SYS_SENDFILE  = 71
)

// open(2) flags, CSIGNAL and clone(2) flags, mmap/mprotect flags: sourced
// from golang.org/x/sys/unix so the bit patterns match the real Linux ABI
// the userland ELF binaries were built against.
const (
	O_RDONLY    = unix.O_RDONLY
	O_WRONLY    = unix.O_WRONLY
	O_RDWR      = unix.O_RDWR
	O_CREAT     = unix.O_CREAT
	O_EXCL      = unix.O_EXCL
	O_TRUNC     = unix.O_TRUNC
	O_APPEND    = unix.O_APPEND
	O_NONBLOCK  = unix.O_NONBLOCK
	O_DIRECTORY = unix.O_DIRECTORY
	O_CLOEXEC   = unix.O_CLOEXEC

	PROT_NONE  = unix.PROT_NONE
	PROT_READ  = unix.PROT_READ
	PROT_WRITE = unix.PROT_WRITE
	PROT_EXEC  = unix.PROT_EXEC

	MAP_SHARED    = unix.MAP_SHARED
	MAP_PRIVATE   = unix.MAP_PRIVATE
	MAP_FIXED     = unix.MAP_FIXED
	MAP_ANONYMOUS = unix.MAP_ANON
	MAP_FAILED    = -1

	CSIGNAL             = 0x000000ff
	CLONE_VM            = 0x00000100
	CLONE_FS            = 0x00000200
	CLONE_FILES         = 0x00000400
	CLONE_SIGHAND       = 0x00000800
	CLONE_THREAD        = 0x00010000
	CLONE_SETTLS        = 0x00080000
	CLONE_PARENT_SETTID = 0x00100000
	CLONE_CHILD_CLEARTID = 0x00200000
	CLONE_CHILD_SETTID  = 0x01000000

	WNOHANG    = unix.WNOHANG
	WUNTRACED  = unix.WUNTRACED
	WCONTINUED = unix.WCONTINUED
)

// futex(2) operations (§4.8). Only WAIT and WAKE, and only the
// process-private flavor, are implemented (§4.8: cross-process futexes are
// not supported).
const (
	FUTEX_WAIT         = 0
	FUTEX_WAKE         = 1
	FUTEX_PRIVATE_FLAG = 128
	FUTEX_CMD_MASK     = ^FUTEX_PRIVATE_FLAG
)

// rt_sigprocmask(2) how values.
const (
	SIG_BLOCK   = 0
	SIG_UNBLOCK = 1
	SIG_SETMASK = 2
)
