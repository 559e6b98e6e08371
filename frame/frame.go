// Package frame implements the Frame Allocator: a reference-counted
// allocator over the physical user-memory region, the ground truth for
// who holds each physical frame. Grounded on the teacher's
// mem.Physmem_t.Refup/Refdown/_phys_new (mem/mem.go), simplified to the
// spec's O(NR_FRAMES) first-fit scan — acceptable given short,
// interrupt-disabled call paths on a single CPU, per spec.md §4.2.
package frame

import (
	"sync"

	"vmcore/hal"
)

// No is a physical frame number: (physical address >> PageShift), biased
// by UBasePhys>>PageShift. It is a distinct named type, so it does not mix
// implicitly with other integers; an explicit conversion such as No(n)
// still compiles.
type No uint32

// Phys returns the physical address this frame number names.
func (n No) Phys() hal.Phys { return hal.Phys(n) << hal.PageShift }

// FromPhys recovers a frame number from a page-aligned physical address,
// the inverse of No.Phys.
func FromPhys(p hal.Phys) No { return No(p >> hal.PageShift) }

// Allocator is the Frame Allocator.
type Allocator struct {
	mu   sync.Mutex
	base hal.Phys // UBasePhys
	ref  []uint32
}

// New creates an allocator over n frames of physical memory starting at
// base (conventionally hal.UBasePhys).
func New(base hal.Phys, n int) *Allocator {
	return &Allocator{base: base, ref: make([]uint32, n)}
}

func (a *Allocator) addrToID(f No) int {
	id := int(f) - int(a.base>>hal.PageShift)
	if id < 0 || id >= len(a.ref) {
		panic("frame: frame number out of range")
	}
	return id
}

func (a *Allocator) idToAddr(id int) No {
	return No(int(a.base>>hal.PageShift) + id)
}

// Alloc performs a first-fit scan over frames with refcount 0, sets the
// refcount to 1, and returns the frame number. It returns (0, false) on
// exhaustion, per spec.md §4.2.
func (a *Allocator) Alloc() (No, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.ref {
		if a.ref[i] == 0 {
			a.ref[i] = 1
			return a.idToAddr(i), true
		}
	}
	return 0, false
}

// Free decrements fno's refcount. Freeing an already-free frame is fatal,
// per spec.md §4.2.
func (a *Allocator) Free(fno No) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.addrToID(fno)
	if a.ref[id] == 0 {
		panic("frame: double free on page frame")
	}
	a.ref[id]--
}

// Share increments fno's refcount; used when a PTE is duplicated under
// copy-on-write.
func (a *Allocator) Share(fno No) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ref[a.addrToID(fno)]++
}

// IsShared reports whether fno's refcount exceeds 1.
func (a *Allocator) IsShared(fno No) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ref[a.addrToID(fno)] > 1
}

// Refcount returns fno's current refcount, for invariant tests and
// internal/diag.
func (a *Allocator) Refcount(fno No) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ref[a.addrToID(fno)]
}

// Snapshot returns a copy of the allocator's refcount array.
func (a *Allocator) Snapshot() []uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uint32, len(a.ref))
	copy(out, a.ref)
	return out
}

// Len reports the allocator's capacity in frames.
func (a *Allocator) Len() int { return len(a.ref) }
