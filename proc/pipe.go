package proc

import (
	"sync"

	"github.com/Littlew0od/OSKernel2023-Main.os-2-1-1/defs"
)

// pipeBuf is the shared state behind one pipe(2) pair (§4.6's fd table
// holds the two ends; this is the object both ends point at), grounded
// on the teacher's circular-buffer-backed pipe but built on a plain
// slice since this kernel is single-hart: there is no concurrent
// producer goroutine to race against, so a mutex without a condition
// variable is enough.
type pipeBuf struct {
	mu        sync.Mutex
	data      []byte
	readOpen  bool
	writeOpen bool
}

// PipeEnds creates a connected read/write pair of Files, as sys_pipe2
// installs into the caller's fd table (§6, id 59).
func PipeEnds() (r, w File) {
	b := &pipeBuf{readOpen: true, writeOpen: true}
	return pipeReadEnd{b}, pipeWriteEnd{b}
}

type pipeReadEnd struct{ b *pipeBuf }

// Read drains whatever bytes are buffered. A pipe in this design never
// blocks the caller: this kernel runs one hart at a time, so a reader
// that found the buffer empty could never be woken by a writer that
// cannot run until the reader yields. EAGAIN signals "nothing yet, try
// again after the writer has run" instead of parking the thread (unlike
// futex_wait, which can rely on a second thread eventually running).
func (p pipeReadEnd) Read(buf []byte) (int, defs.Err_t) {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		if !b.writeOpen {
			return 0, defs.SUCCESS
		}
		return 0, defs.EAGAIN
	}
	n := copy(buf, b.data)
	b.data = b.data[n:]
	return n, defs.SUCCESS
}

func (p pipeReadEnd) Write(buf []byte) (int, defs.Err_t) {
	return 0, defs.EBADF
}

func (p pipeReadEnd) Close() defs.Err_t {
	b := p.b
	b.mu.Lock()
	b.readOpen = false
	b.mu.Unlock()
	return defs.SUCCESS
}

type pipeWriteEnd struct{ b *pipeBuf }

func (p pipeWriteEnd) Read(buf []byte) (int, defs.Err_t) {
	return 0, defs.EBADF
}

// Write appends to the buffer, failing with EPIPE if the read end has
// already been closed (the usual "broken pipe" signal-free fallback
// this design uses in place of posting SIGPIPE, since SIGPIPE is not
// among the signals §4.7 enumerates as kernel-delivered).
func (p pipeWriteEnd) Write(buf []byte) (int, defs.Err_t) {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.readOpen {
		return 0, defs.EPIPE
	}
	b.data = append(b.data, buf...)
	return len(buf), defs.SUCCESS
}

func (p pipeWriteEnd) Close() defs.Err_t {
	b := p.b
	b.mu.Lock()
	b.writeOpen = false
	b.mu.Unlock()
	return defs.SUCCESS
}
