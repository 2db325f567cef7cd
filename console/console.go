// Package console simulates the SBI console (§4.6): a single shared
// byte-oriented device backing stdin/stdout/stderr, reached only through
// putchar/getchar the way the original's console.rs wraps SBI calls, plus
// a panic/backtrace dumper for fatal kernel errors.
//
// The backtrace dumper is grounded on the teacher's caller.Callerdump
// (caller/caller.go), which walks runtime.Caller frames rather than
// hand-rolling a stack walker; logrus carries the formatted trace the way
// the rest of this kernel's ambient logging does.
package console

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

var (
	mu  sync.Mutex
	out = bufio.NewWriter(os.Stdout)
	in  = bufio.NewReader(os.Stdin)
)

// Putchar writes a single byte to the console, as the original's
// console::print wraps sbi_call(SBI_CONSOLE_PUTCHAR, ...).
func Putchar(c byte) {
	mu.Lock()
	out.WriteByte(c)
	if c == '\n' {
		out.Flush()
	}
	mu.Unlock()
}

// Getchar blocks for a single byte from the console, mirroring
// sbi_call(SBI_CONSOLE_GETCHAR, ...). Returns ok=false at EOF.
func Getchar() (byte, bool) {
	mu.Lock()
	defer mu.Unlock()
	b, err := in.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

// Console is the File implementation (matching proc.File's method set by
// structural typing) backing fd 0/1/2 in a fresh process's fd table
// (§4.5, §4.6).
type Console struct{}

func (Console) Read(buf []byte) (int, defs.Err_t) {
	for i := range buf {
		b, ok := Getchar()
		if !ok {
			return i, defs.SUCCESS
		}
		buf[i] = b
		if b == '\n' {
			return i + 1, defs.SUCCESS
		}
	}
	return len(buf), defs.SUCCESS
}

func (Console) Write(buf []byte) (int, defs.Err_t) {
	for _, b := range buf {
		Putchar(b)
	}
	return len(buf), defs.SUCCESS
}

func (Console) Close() defs.Err_t { return defs.SUCCESS }

// Panic logs a fatal kernel error together with its call stack and halts
// the calling goroutine by re-panicking, matching the original's
// panic_handler behavior of printing then looping forever (§7: a kernel
// panic is unrecoverable, unlike a user fault which only kills the
// offending process).
func Panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logrus.WithField("backtrace", callerdump()).Error("kernel panic: " + msg)
	panic(msg)
}

// callerdump walks the Go call stack the way caller.Callerdump does,
// returning it as a single string suitable for a structured log field.
func callerdump() string {
	s := ""
	for skip := 2; skip < 2+32; skip++ {
		pc, file, line, ok := runtime.Caller(skip)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		name := "?"
		if fn != nil {
			name = fn.Name()
		}
		s += fmt.Sprintf("%s:%d %s\n", file, line, name)
	}
	return s
}
