// Package config loads the board-specific boot profile (§6's QEMU vs
// K210 memory-end distinction, REDESIGN FLAGS: "pick one profile per
// build; the other is data, not code"). It is the one place this kernel
// takes a dependency on gopkg.in/yaml.v3, the same library choice
// QubicOS-Spark's configuration loader in the retrieval pack makes for
// its own board profiles.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

// Profile is one board's boot-time parameters: where physical memory
// ends, how many ticks the timer fires per second, and which program the
// kernel execve's as process 1.
type Profile struct {
	Board          string `yaml:"board"`
	MemoryEndHex   string `yaml:"memory_end"`
	TicksPerSecond uint64 `yaml:"ticks_per_second"`
	InitProgram    string `yaml:"init_program"`

	memoryEnd uintptr
}

// QEMU and K210 are the two board profiles the original ships
// (config.rs's cfg_if! on board feature flags), expressed as data instead
// of a compile-time feature switch now that there is no separate build
// per board.
var (
	QEMU = Profile{
		Board:          "qemu",
		MemoryEndHex:   "0x88000000",
		TicksPerSecond: 100,
		InitProgram:    "/bin/init",
		memoryEnd:      0x8800_0000,
	}
	K210 = Profile{
		Board:          "k210",
		MemoryEndHex:   "0x80800000",
		TicksPerSecond: 100,
		InitProgram:    "/bin/init",
		memoryEnd:      0x8080_0000,
	}
)

// MemoryEnd returns the physical address one past the last usable frame.
func (p Profile) MemoryEnd() uintptr { return p.memoryEnd }

// Load reads a YAML boot profile from path, falling back to QEMU's
// defaults for any field the file omits.
func Load(path string) (Profile, error) {
	p := QEMU
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	end, err := parseHex(p.MemoryEndHex)
	if err != nil {
		return Profile{}, fmt.Errorf("config: memory_end: %w", err)
	}
	p.memoryEnd = end
	if p.TicksPerSecond == 0 {
		p.TicksPerSecond = 100
	}
	return p, nil
}

func parseHex(s string) (uintptr, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "0x%x", &v)
	if err != nil {
		return 0, err
	}
	return uintptr(v), nil
}

// FrameWindow converts a profile's memory end into the [lo, hi) ppn range
// mem.Init expects, reserving every frame below kernelEnd rounded up to a
// page boundary, which the kernel image itself occupies (the same reservation new_kernel's
// identity map carves out in mm/memory_set.rs).
func (p Profile) FrameWindow(kernelEnd uintptr) (lo, hi uint64) {
	lo = uint64(roundUp(kernelEnd)) >> defs.PAGE_SHIFT
	hi = uint64(p.memoryEnd) >> defs.PAGE_SHIFT
	return lo, hi
}

func roundUp(va uintptr) uintptr {
	const mask = defs.PAGE_SIZE - 1
	if va&mask == 0 {
		return va
	}
	return (va &^ mask) + defs.PAGE_SIZE
}
