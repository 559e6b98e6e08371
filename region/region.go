// Package region is the minimal memory-region collaborator spec.md §1 and
// §6 treat as external (the region abstraction, its locking, growth, and
// lookup primitives belong to a different subsystem — spec.md names
// findreg, growreg, lockreg, unlockreg as consumed, not owned, by the VM
// core). It implements exactly that surface so fault.Vfault/Pfault and
// aso.ReadPage have something real to call.
package region

import (
	"sync"

	"vmcore/hal"
	"vmcore/kfile"
)

// Mode is a region's permission bitmask.
type Mode uint

// MayWrite is the permission bit spec.md's fault handlers consult to
// decide whether a demand-zero page is mapped writable.
const MayWrite Mode = 1 << 0

// File describes a region's optional file backing.
type File struct {
	Inode kfile.Inode
	Off   int64
}

// Region is a contiguous virtual-address range with uniform permissions
// and optional file backing, owned by the region subsystem per spec.md's
// glossary. Its lock is "the region lock" spec.md's fault handlers
// acquire before touching any PTE.
type Region struct {
	mu   sync.Mutex
	Mode Mode
	File File
	// HasFile reports whether File is meaningful; a region with no file
	// backing is purely anonymous (demand-zero only).
	HasFile bool
}

// NewAnon creates an anonymous region with the given mode.
func NewAnon(mode Mode) *Region {
	return &Region{Mode: mode}
}

// NewFile creates a file-backed region with the given mode and backing.
func NewFile(mode Mode, inode kfile.Inode, off int64) *Region {
	return &Region{Mode: mode, File: File{Inode: inode, Off: off}, HasFile: true}
}

// Lock acquires the region lock.
func (r *Region) Lock() { r.mu.Lock() }

// Unlock releases the region lock.
func (r *Region) Unlock() { r.mu.Unlock() }

// ProcessRegion places a Region at a virtual-address range within one
// process's address space.
type ProcessRegion struct {
	Start uintptr
	Len   uintptr
	Reg   *Region
}

// End returns the exclusive end address of the mapping.
func (pr *ProcessRegion) End() uintptr { return pr.Start + pr.Len }

func (pr *ProcessRegion) contains(vaddr uintptr) bool {
	return vaddr >= pr.Start && vaddr < pr.End()
}

// List is a process's list of mapped regions, plus which one (if any) is
// the growable stack region.
type List struct {
	mu      sync.Mutex
	regions []*ProcessRegion
	stack   *ProcessRegion
}

// NewList creates an empty region list.
func NewList() *List {
	return &List{}
}

// Add inserts pr into the list.
func (l *List) Add(pr *ProcessRegion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.regions = append(l.regions, pr)
}

// AddStack inserts pr into the list and marks it as the stack region,
// i.e. the one spec.md's stack_region(proc) returns.
func (l *List) AddStack(pr *ProcessRegion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.regions = append(l.regions, pr)
	l.stack = pr
}

// Find returns the ProcessRegion containing vaddr, i.e. spec.md's
// find_region(proc, vaddr).
func (l *List) Find(vaddr uintptr) (*ProcessRegion, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, pr := range l.regions {
		if pr.contains(vaddr) {
			return pr, true
		}
	}
	return nil, false
}

// Stack returns the process's stack region, i.e. spec.md's
// stack_region(proc).
func (l *List) Stack() (*ProcessRegion, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stack, l.stack != nil
}

// IsStack reports whether pr is the list's designated stack region.
func (l *List) IsStack(pr *ProcessRegion) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return pr == l.stack
}

// Grow extends pr downward by bytes — the stack grows toward lower
// addresses — i.e. spec.md's grow_region(proc, preg, bytes). It returns
// hal.EINVAL if bytes is not a whole number of pages.
func (l *List) Grow(pr *ProcessRegion, bytes uintptr) hal.Err {
	if bytes%hal.PageSize != 0 {
		return hal.EINVAL
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	pr.Start -= bytes
	pr.Len += bytes
	return hal.Ok
}
