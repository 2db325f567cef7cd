// Package trap models the trap-context layout and the scause-based
// dispatch that the original's trap/mod.rs performs in trampoline
// assembly and trap_handler. Because this module runs as an ordinary Go
// process rather than on real RISC-V hardware, there is no __alltraps
// assembly to write; TrapContext is instead a plain struct the syscall,
// signal, and scheduler packages read and write directly, and Dispatch is
// an ordinary function call rather than a trap vector.
package trap

import "github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"

// TrapContext is the saved user-mode register file (§4.10), laid out in
// the same field order as the original's TrapContext (trap/context.rs)
// so the fixed-VA trap-context page's byte layout stays meaningful even
// though this module never actually maps it for a real trampoline to
// read.
type TrapContext struct {
	X         [32]uint64 // general-purpose registers x0-x31
	Sstatus   uint64
	Sepc      uint64 // return address on trap_return
	KernelSP  uint64
	TrapHandler uint64
}

// regA0 and regA7 index x[10] and x[17]; a0..a7 (x[10..17]) are the
// argument/return registers the RISC-V Linux syscall ABI uses (§6).
const (
	regA0 = 10
	regA7 = 17
)

func (c *TrapContext) SyscallNumber() uint64 { return c.X[regA7] }

func (c *TrapContext) SyscallArgs() [6]uint64 {
	var a [6]uint64
	copy(a[:], c.X[regA0:regA0+6])
	return a
}

func (c *TrapContext) SetReturn(v uint64) { c.X[regA0] = v }

// AdvancePastEcall moves sepc past the 4-byte ecall instruction, matching
// trap_handler's `cx.sepc += 4` for the UserEnvCall case (trap/mod.rs),
// so a syscall's trap_return resumes at the instruction after ecall
// rather than re-executing it.
func (c *TrapContext) AdvancePastEcall() { c.Sepc += 4 }

// AppInitContext builds the TrapContext a freshly exec'd thread (or the
// init process's first thread) resumes into (app_init_context in the original): entry point in sepc,
// the assembled user stack pointer in x[2] (sp), and argc/argv/envp/auxv
// in a0/a1/a2/a3 per the Linux RISC-V calling convention for _start (§4.3).
func AppInitContext(entry, sp uintptr, kernelSP uint64, argc int, argv, envp, auxv uintptr) TrapContext {
	var c TrapContext
	c.Sepc = uint64(entry)
	c.X[2] = uint64(sp)
	c.X[regA0] = uint64(argc)
	c.X[regA0+1] = uint64(argv)
	c.X[regA0+2] = uint64(envp)
	c.X[regA0+3] = uint64(auxv)
	c.KernelSP = kernelSP
	return c
}

// Backup returns a copy of c, for the signal-handler trap-frame swap
// (§4.7): before invoking a user signal handler the kernel copies the
// interrupted TrapContext aside and points the live one at the handler;
// sigreturn restores the copy (trap_ctx_backup in task/task.rs).
func (c TrapContext) Backup() TrapContext { return c }

// ErrCode packs the defs.Err_t return value into a0 the way a syscall
// handler's return value is written back (§6: "a0 holds the return
// value, or -errno on failure").
func ErrCode(e defs.Err_t) uint64 { return uint64(int64(e)) }
