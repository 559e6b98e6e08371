// Package halsim is the default vmcore.hal.HAL implementation: physical
// memory is a plain Go byte slice, exactly as the teacher's mem.Physmem_t
// backs kernel-visible memory with a direct-mapped slice (mem.Dmap). It
// requires no privileges and is what every unit test in kpp, frame, ptm,
// aso, and fault runs against.
package halsim

import (
	"encoding/binary"
	"fmt"

	"vmcore/hal"
)

// Sim is a software simulation of physical memory plus the PDE/PTE word
// accessors layered on top of it.
type Sim struct {
	mem     []byte
	flushes int
	panics  []string
}

// New allocates a simulated physical memory arena of size bytes, zeroed.
func New(size int) *Sim {
	return &Sim{mem: make([]byte, size)}
}

func (s *Sim) slot(p hal.Phys) []byte {
	off := int(p)
	if off < 0 || off+hal.PageSize > len(s.mem) {
		panic(fmt.Sprintf("halsim: physical address %#x out of range", p))
	}
	return s.mem[off : off+hal.PageSize]
}

func entryOffset(idx uintptr) int {
	if idx >= hal.EntriesPerTable {
		panic("halsim: page-table index out of range")
	}
	return int(idx) * 4
}

// ReadPDE implements hal.HAL.
func (s *Sim) ReadPDE(dir hal.Phys, idx uintptr) hal.PDE {
	return s.readWord(dir, idx)
}

// WritePDE implements hal.HAL.
func (s *Sim) WritePDE(dir hal.Phys, idx uintptr, v hal.PDE) {
	s.writeWord(dir, idx, v)
}

// ReadPTE implements hal.HAL.
func (s *Sim) ReadPTE(tab hal.Phys, idx uintptr) hal.PTE {
	return s.readWord(tab, idx)
}

// WritePTE implements hal.HAL.
func (s *Sim) WritePTE(tab hal.Phys, idx uintptr, v hal.PTE) {
	s.writeWord(tab, idx, v)
}

func (s *Sim) readWord(base hal.Phys, idx uintptr) hal.Word {
	pg := s.slot(base)
	off := entryOffset(idx)
	return hal.Word(binary.LittleEndian.Uint32(pg[off : off+4]))
}

func (s *Sim) writeWord(base hal.Phys, idx uintptr, v hal.Word) {
	pg := s.slot(base)
	off := entryOffset(idx)
	binary.LittleEndian.PutUint32(pg[off:off+4], uint32(v))
}

// Bytes implements hal.HAL.
func (s *Sim) Bytes(p hal.Phys) []byte {
	return s.slot(p)
}

// ZeroPage implements hal.HAL.
func (s *Sim) ZeroPage(p hal.Phys) {
	pg := s.slot(p)
	for i := range pg {
		pg[i] = 0
	}
}

// Physcpy implements hal.HAL.
func (s *Sim) Physcpy(dst, src hal.Phys) {
	copy(s.slot(dst), s.slot(src))
}

// TLBFlush implements hal.HAL. The simulation has no TLB to invalidate;
// it only counts flushes so tests can assert one happened.
func (s *Sim) TLBFlush() {
	s.flushes++
}

// Flushes reports how many TLB flushes have been emitted so far.
func (s *Sim) Flushes() int { return s.flushes }

// Panic implements hal.HAL. It records the message and then panics with
// it, so tests can recover() the invariant violation while other callers
// see an ordinary panic.
func (s *Sim) Panic(msg string) {
	s.panics = append(s.panics, msg)
	panic(msg)
}

// Printf implements hal.HAL.
func (s *Sim) Printf(format string, args ...any) {
	fmt.Printf(format, args...)
}
