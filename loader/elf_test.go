package loader

import (
	"debug/elf"
	"testing"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/vm"
)

func TestPermOf(t *testing.T) {
	cases := []struct {
		flags elf.ProgFlag
		want  vm.MapPermission
	}{
		{elf.PF_R, vm.PTE_U | vm.PTE_R},
		{elf.PF_R | elf.PF_W, vm.PTE_U | vm.PTE_R | vm.PTE_W},
		{elf.PF_R | elf.PF_X, vm.PTE_U | vm.PTE_R | vm.PTE_X},
	}
	for _, c := range cases {
		if got := permOf(c.flags); got != c.want {
			t.Errorf("permOf(%v) = %v, want %v", c.flags, got, c.want)
		}
	}
}

func TestRoundUp4k(t *testing.T) {
	cases := []struct{ in, want uintptr }{
		{0, 0},
		{1, 0x1000},
		{0x1000, 0x1000},
		{0x1001, 0x2000},
	}
	for _, c := range cases {
		if got := roundUp4k(c.in); got != c.want {
			t.Errorf("roundUp4k(%#x) = %#x, want %#x", c.in, got, c.want)
		}
	}
}
