// Package halreal is an integration-test-only hal.HAL backed by real OS
// memory: golang.org/x/sys/unix.Mmap provides the backing arena and
// unix.Mprotect lets a test verify that a copy-on-write PTE's {present,
// writable} flags correspond to an actual hardware write-protection fault,
// not just a bookkeeping bit. It is never used outside *_test.go files —
// halsim is what kpp/frame/ptm/aso/fault run against normally.
package halreal

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"

	"vmcore/hal"
)

// Real is a hal.HAL backed by an anonymous mmap'd arena.
type Real struct {
	mem     []byte
	flushes int
}

// New mmaps an anonymous, read-write arena of size bytes.
func New(size int) (*Real, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("halreal: mmap: %w", err)
	}
	return &Real{mem: mem}, nil
}

// Close unmaps the arena.
func (r *Real) Close() error {
	return unix.Munmap(r.mem)
}

func (r *Real) slot(p hal.Phys) []byte {
	off := int(p)
	if off < 0 || off+hal.PageSize > len(r.mem) {
		panic(fmt.Sprintf("halreal: physical address %#x out of range", p))
	}
	return r.mem[off : off+hal.PageSize]
}

func entryOffset(idx uintptr) int {
	if idx >= hal.EntriesPerTable {
		panic("halreal: page-table index out of range")
	}
	return int(idx) * 4
}

// ReadPDE implements hal.HAL.
func (r *Real) ReadPDE(dir hal.Phys, idx uintptr) hal.PDE { return r.readWord(dir, idx) }

// WritePDE implements hal.HAL.
func (r *Real) WritePDE(dir hal.Phys, idx uintptr, v hal.PDE) { r.writeWord(dir, idx, v) }

// ReadPTE implements hal.HAL.
func (r *Real) ReadPTE(tab hal.Phys, idx uintptr) hal.PTE { return r.readWord(tab, idx) }

// WritePTE implements hal.HAL.
func (r *Real) WritePTE(tab hal.Phys, idx uintptr, v hal.PTE) { r.writeWord(tab, idx, v) }

func (r *Real) readWord(base hal.Phys, idx uintptr) hal.Word {
	pg := r.slot(base)
	off := entryOffset(idx)
	return hal.Word(binary.LittleEndian.Uint32(pg[off : off+4]))
}

func (r *Real) writeWord(base hal.Phys, idx uintptr, v hal.Word) {
	pg := r.slot(base)
	off := entryOffset(idx)
	binary.LittleEndian.PutUint32(pg[off:off+4], uint32(v))
}

// Bytes implements hal.HAL.
func (r *Real) Bytes(p hal.Phys) []byte { return r.slot(p) }

// ZeroPage implements hal.HAL.
func (r *Real) ZeroPage(p hal.Phys) {
	pg := r.slot(p)
	for i := range pg {
		pg[i] = 0
	}
}

// Physcpy implements hal.HAL.
func (r *Real) Physcpy(dst, src hal.Phys) {
	copy(r.slot(dst), r.slot(src))
}

// TLBFlush implements hal.HAL. Go's runtime gives no direct INVLPG
// access; this only counts flushes, since correctness of the simulated
// model does not depend on an actual TLB.
func (r *Real) TLBFlush() { r.flushes++ }

// Flushes reports how many TLB flushes have been emitted so far.
func (r *Real) Flushes() int { return r.flushes }

// Panic implements hal.HAL.
func (r *Real) Panic(msg string) { panic(msg) }

// Printf implements hal.HAL.
func (r *Real) Printf(format string, args ...any) { fmt.Printf(format, args...) }

// Protect applies real hardware write protection to the page at p,
// letting an integration test confirm that a copy-on-write PTE's
// software bits are backed by an actual protection fault if the
// mapping were installed for real.
func (r *Real) Protect(p hal.Phys, writable bool) error {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mprotect(r.slot(p), prot)
}
