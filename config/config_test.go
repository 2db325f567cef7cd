package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.yaml")
	content := []byte("board: k210\nmemory_end: \"0x80800000\"\nticks_per_second: 50\ninit_program: /bin/sh\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Board != "k210" {
		t.Fatalf("Board = %q, want k210", p.Board)
	}
	if p.MemoryEnd() != 0x8080_0000 {
		t.Fatalf("MemoryEnd() = %#x, want %#x", p.MemoryEnd(), 0x8080_0000)
	}
	if p.TicksPerSecond != 50 {
		t.Fatalf("TicksPerSecond = %d, want 50", p.TicksPerSecond)
	}
}

func TestFrameWindow(t *testing.T) {
	lo, hi := QEMU.FrameWindow(0x80201000)
	if lo != 0x80201000>>12 {
		t.Fatalf("lo = %#x, want %#x", lo, 0x80201000>>12)
	}
	if hi != uint64(QEMU.MemoryEnd())>>12 {
		t.Fatalf("hi = %#x, want %#x", hi, uint64(QEMU.MemoryEnd())>>12)
	}
}
