// Command kernel boots the simulated RISC-V64 supervisor core: load a
// board profile, bring up the physical frame allocator, stage the init
// program into the fs registry, build its address space and initial
// trap context, and drive the scheduler's idle loop until the machine
// halts (§4, §5, §7).
//
// Grounded on kernel/main.go's boot sequence (mem.Phys_init, fs.StartFS,
// the initial exec of bin/init, then bowing out to the scheduler via
// res.Resend()), restructured around golang.org/x/sync/errgroup for the
// two independent boot-time reads (the board profile and the init
// binary) that have no ordering dependency on each other.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/config"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/fs"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/image"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/loader"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/mem"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/proc"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/sched"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/syscall"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/timer"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/trap"
	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/vm"
)

// kernelImageEnd is where the original's linker script places the end of
// the kernel's own image on the QEMU platform (os.ld's ekernel symbol);
// frames below it are never handed to the allocator.
const kernelImageEnd = 0x8020_0000

func main() {
	configPath := flag.String("config", "", "board profile YAML (defaults to the QEMU profile)")
	initPath := flag.String("init", "", "ELF binary on the host filesystem to exec as pid 1")
	imagePath := flag.String("image", "", "optional mkimage container to preload extra programs from")
	flag.Parse()

	if *initPath == "" {
		fmt.Fprintln(os.Stderr, "kernel: -init <path> is required")
		os.Exit(1)
	}

	profile, initELF, err := loadBootInputs(*configPath, *initPath)
	if err != nil {
		logrus.WithError(err).Fatal("kernel: boot failed")
	}

	logrus.WithFields(logrus.Fields{
		"board":      profile.Board,
		"memory_end": profile.MemoryEndHex,
		"init":       profile.InitProgram,
	}).Info("kernel: booting")

	lo, hi := profile.FrameWindow(kernelImageEnd)
	mem.Init(mem.Ppn_t(lo), mem.Ppn_t(hi))
	mem.SetOOMHook(fs.OOMHook)
	syscall.TicksPerSecond = profile.TicksPerSecond

	fs.Register(profile.InitProgram, initELF)
	if *imagePath != "" {
		if err := preloadImage(*imagePath); err != nil {
			logrus.WithError(err).Fatal("kernel: failed to preload image")
		}
	}

	initTask, err := bootInit(profile.InitProgram)
	if err != nil {
		logrus.WithError(err).Fatal("kernel: failed to start init")
	}

	handlers := bootHandlers()
	sched.PushBack(initTask)
	sched.Run(func(s sched.Schedulable) bool {
		return runQuantum(s.(*proc.TaskControlBlock), handlers)
	})

	logrus.WithField("code", syscall.HaltCode).Info("kernel: halted")
}

// loadBootInputs reads the board profile and the init binary's bytes
// concurrently: neither depends on the other, the same independence
// kernel/main.go's own boot stages (net_init, dmap_init, device attach)
// exploit with bare goroutines. errgroup adds the missing piece biscuit's
// ad hoc goroutines don't need in a single-process kernel but this
// module does: propagating the first error and cancelling the rest.
func loadBootInputs(configPath, initPath string) (config.Profile, []byte, error) {
	var profile config.Profile
	var initELF []byte

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if configPath == "" {
			profile = config.QEMU
			return nil
		}
		p, err := config.Load(configPath)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		b, err := os.ReadFile(initPath)
		if err != nil {
			return fmt.Errorf("kernel: read init binary: %w", err)
		}
		initELF = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return config.Profile{}, nil, err
	}
	return profile, initELF, nil
}

// preloadImage registers every program an mkimage container bundled, so
// execve can resolve more than just the one program named by -init
// (§4.3, §9).
func preloadImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	order, entries, err := image.Unpack(f)
	if err != nil {
		return err
	}
	for _, name := range order {
		fs.Register(name, entries[name])
	}
	logrus.WithField("count", len(order)).Info("kernel: preloaded image")
	return nil
}

// bootInit resolves path in the fs registry, loads its ELF image (and
// PT_INTERP dynamic linker, if any) into a fresh address space, and
// creates it as process 1 with tid == pid (invariant 5, §8).
func bootInit(path string) (*proc.TaskControlBlock, error) {
	raw, errno := fs.Lookup(path)
	if errno != defs.SUCCESS {
		return nil, fmt.Errorf("kernel: init binary %s not registered", path)
	}
	img, err := loader.Parse(raw)
	if err != nil {
		return nil, err
	}
	var interp *loader.Image
	if img.Interp != "" {
		interpRaw, errno := fs.Lookup(img.Interp)
		if errno != defs.SUCCESS {
			return nil, fmt.Errorf("kernel: interpreter %s not registered", img.Interp)
		}
		interp, err = loader.Parse(interpRaw)
		if err != nil {
			return nil, err
		}
	}

	ms, ok := vm.NewMemorySet()
	if !ok {
		return nil, fmt.Errorf("kernel: out of memory building init's address space")
	}
	res, err := loader.LoadInto(ms, img, interp)
	if err != nil {
		return nil, err
	}
	if !ms.MapUserStack(defs.StackTop) {
		return nil, fmt.Errorf("kernel: out of memory mapping init's user stack")
	}

	auxv := vm.DefaultAuxv(res.PhdrVA, res.PhEntSize, res.PhNum, res.Entry, res.InterpBase)
	sp, argc, argvPtr, envpPtr, auxvPtr, ok := ms.BuildStack(defs.StackTop, []string{path}, nil, auxv, path)
	if !ok {
		return nil, fmt.Errorf("kernel: failed to write init's initial stack contents")
	}

	t := proc.NewInit(ms, ms.HeapBase, ms.HeapEnd)
	if !t.AllocTrapContext() {
		return nil, fmt.Errorf("kernel: out of memory allocating init's trap context")
	}
	t.Trap = trap.AppInitContext(res.Entry, sp, 0, argc, argvPtr, envpPtr, auxvPtr)
	return t, nil
}

// bootHandlers wires trap.Dispatch's injected callbacks to the syscall
// dispatcher and the fatal-fault/signal-delivery paths (§4.10, §7) —
// exactly the job the assembly trampoline and trap_handler's match arms
// do on real hardware.
func bootHandlers() trap.Handlers {
	return trap.Handlers{
		Syscall: func(tid uint64, ctx *trap.TrapContext) {
			if t := proc.Current(); t != nil {
				syscall.Dispatch(t, ctx)
			}
		},
		PageFault: func(tid uint64, ctx *trap.TrapContext, addr uint64) {
			logrus.WithFields(logrus.Fields{"tid": tid, "addr": addr}).Warn("kernel: page fault, killing thread")
			if t := proc.Current(); t != nil {
				proc.Exit(t, int(defs.EFAULT))
			}
		},
		IllegalInstr: func(tid uint64, ctx *trap.TrapContext) {
			logrus.WithField("tid", tid).Warn("kernel: illegal instruction, killing thread")
			if t := proc.Current(); t != nil {
				proc.Exit(t, int(defs.EINVAL))
			}
		},
		TimerTick: func() {
			for _, s := range timer.Advance(1) {
				s.Wake()
			}
		},
		// AfterEachTrap is check_signals_of_current_process's post-trap
		// step (trap/mod.rs): report that the thread should exit either
		// because the trap it just took (e.g. sys_exit) already marked
		// it zombie, or because a pending signal's disposition is fatal.
		AfterEachTrap: func(tid uint64) (bool, int) {
			t := proc.Current()
			if t == nil {
				return true, 0
			}
			if t.GetStatus() == proc.Zombie {
				return true, t.ExitCode
			}
			return t.DeliverPendingSignal(&t.Trap)
		},
	}
}

// runQuantum runs one scheduling quantum for t (one trap's worth of
// work), matching Dispatch's per-trap contract, and reports whether the
// machine as a whole should halt: either the ready queue has run dry or
// sys_shutdown fired.
func runQuantum(t *proc.TaskControlBlock, handlers trap.Handlers) bool {
	proc.SetCurrent(t)
	exit, code := trap.Dispatch(handlers, t.SchedID(), trap.UserEnvCall, &t.Trap, 0)
	proc.SetCurrent(nil)

	switch {
	case exit && t.GetStatus() != proc.Zombie:
		proc.Exit(t, code)
	case !exit && t.GetStatus() == proc.Ready:
		sched.PushBack(t)
	}
	return syscall.Halted || sched.Len() == 0
}
