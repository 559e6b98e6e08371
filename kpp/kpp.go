// Package kpp implements the Kernel Page Pool: a fixed array of
// equally-sized kernel-virtual pages used for kernel-internal allocations
// (page directories, page tables, kernel stacks). Grounded on the
// teacher's mem.Physmem_t free-list allocator (mem/mem.go), simplified to
// the spec's first-fit ascending scan since the pool is small and
// single-CPU (no per-CPU free lists, no atomics).
package kpp

import (
	"sync"

	"vmcore/hal"
)

// Page is a kernel page pool slot. It is a distinct type — it cannot be
// fabricated from an arbitrary integer, only returned by Pool.Get — per
// the newtype guidance in spec.md §9.
type Page struct {
	idx  uint32
	phys hal.Phys
}

// Phys is the physical address backing this kernel page.
func (p Page) Phys() hal.Phys { return p.phys }

// Virt is the kernel-virtual address of this page within the pool.
func (p Page) Virt() uintptr { return hal.KPoolVirt + uintptr(p.idx)*hal.PageSize }

// Pool is the Kernel Page Pool.
type Pool struct {
	mu   sync.Mutex
	hw   hal.HAL
	base hal.Phys
	ref  []int32
}

// New creates a pool of n pages backed by physical memory starting at
// base, using hw for zeroing.
func New(hw hal.HAL, base hal.Phys, n int) *Pool {
	return &Pool{hw: hw, base: base, ref: make([]int32, n)}
}

// Get scans the pool in ascending index order and returns the first page
// with refcount 0, incrementing it to 1. If clean, the page is zeroed
// before being returned. It returns (Page{}, false) on exhaustion and logs
// a pool-overflow diagnostic, per spec.md §4.1.
func (p *Pool) Get(clean bool) (Page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.ref {
		if p.ref[i] == 0 {
			p.ref[i] = 1
			pg := Page{idx: uint32(i), phys: p.slotPhys(i)}
			if clean {
				p.hw.ZeroPage(pg.phys)
			}
			return pg, true
		}
	}
	p.hw.Printf("kpp: kernel page pool overflow (0/%d free)\n", len(p.ref))
	return Page{}, false
}

// Put releases pg back to the pool. Putting an already-free page is
// fatal, per spec.md §4.1.
func (p *Pool) Put(pg Page) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if int(pg.idx) >= len(p.ref) {
		p.hw.Panic("kpp: put of out-of-range kernel page")
	}
	if p.ref[pg.idx] == 0 {
		p.hw.Panic("kpp: double free on kernel page")
	}
	p.ref[pg.idx]--
}

func (p *Pool) slotPhys(idx int) hal.Phys {
	return p.base + hal.Phys(idx*hal.PageSize)
}

// Snapshot returns a copy of the pool's refcount array, used by the §8
// round-trip property tests and by internal/diag's pprof snapshot.
func (p *Pool) Snapshot() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int32, len(p.ref))
	copy(out, p.ref)
	return out
}

// Len reports the pool's capacity in pages.
func (p *Pool) Len() int { return len(p.ref) }
