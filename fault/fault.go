// Package fault implements the Fault Handlers: the validity-fault and
// protection-fault entry points the trap dispatcher calls when a user
// instruction touches a virtual address with no translation, or touches
// one it may not write. Grounded on original_source/src/kernel/mm/paging.c's
// vfault/pfault, built entirely out of aso's and ptm's primitives — per
// spec.md §2, "most of the weight is in §4.4 and §4.5", so this package
// stays thin by design.
package fault

import (
	"vmcore/aso"
	"vmcore/frame"
	"vmcore/hal"
	"vmcore/kfile"
	"vmcore/kpp"
	"vmcore/proc"
	"vmcore/ptm"
	"vmcore/region"
)

// Vfault resolves a validity fault at vaddr: no translation covers the
// address yet. It locates the covering region (growing the stack region
// downward by one page first if vaddr lies in the page just below it),
// installs a page table if
// the PDE is clear, marks the PTE demand-fill or demand-zero if it is
// still clear, and then immediately materializes it — reading the page
// in from its backing file or allocating and zeroing it — per spec.md
// §4.5.1. A vaddr covered by no region, and not reachable by growing the
// stack, is a segmentation fault. A PTE that, after marking, is neither
// demand-fill nor demand-zero is also a fault: vfault is only ever
// called on an address with no valid translation.
func Vfault(hw hal.HAL, kp *kpp.Pool, fa *frame.Allocator, rd kfile.Reader, pr *proc.Process, vaddr uintptr) hal.Err {
	preg, ok := pr.Regions.Find(vaddr)
	if !ok {
		below, bok := pr.Regions.Find(vaddr + hal.PageSize)
		if !bok || !pr.Regions.IsStack(below) {
			return hal.EFAULT
		}
		if err := pr.Regions.Grow(below, hal.PageSize); err != hal.Ok {
			return hal.EFAULT
		}
		preg = below
	}

	preg.Reg.Lock()
	defer preg.Reg.Unlock()

	pde := ptm.PDEOf(hw, pr, vaddr)
	if ptm.PDEIsClear(pde.Get()) {
		pgtab, ok := kp.Get(true)
		if !ok {
			return hal.ENOMEM
		}
		aso.MapPageTable(hw, pr, vaddr, pgtab)
	}

	slot, ok := ptm.PTEOf(hw, pr, vaddr)
	if !ok {
		hw.Panic("fault: page table missing immediately after mapping")
	}

	v := slot.Get()
	if v.Has(hal.FlagPresent) {
		// Already resolved by a prior vfault on this address.
		return hal.Ok
	}
	if ptm.PTEIsClear(v) {
		mark := aso.PageZero
		if preg.Reg.HasFile {
			mark = aso.PageFill
		}
		aso.MarkPage(hw, slot, mark)
		v = slot.Get()
	}

	mayWrite := preg.Reg.Mode&region.MayWrite != 0
	switch {
	case v.Has(hal.FlagFill):
		return aso.ReadPage(hw, fa, rd, pr, preg.Reg.File.Inode, preg.Reg.File.Off, mayWrite, vaddr)
	case v.Has(hal.FlagZero):
		return aso.AllocUserPage(hw, fa, pr, vaddr, mayWrite)
	default:
		return hal.EFAULT
	}
}

// Pfault resolves a protection fault at vaddr, where a valid translation
// already covers the address: a write to a copy-on-write PTE triggers
// cow_disable, per spec.md §4.5.2. A non-write access through an
// existing translation always succeeds. A write to a PTE that is
// neither copy-on-write nor already writable, or to a copy-on-write PTE
// in a region without MayWrite, is a protection fault (hal.EFAULT).
func Pfault(hw hal.HAL, fa *frame.Allocator, pr *proc.Process, vaddr uintptr, write bool) hal.Err {
	preg, ok := pr.Regions.Find(vaddr)
	if !ok {
		return hal.EFAULT
	}

	preg.Reg.Lock()
	defer preg.Reg.Unlock()

	slot, ok := ptm.PTEOf(hw, pr, vaddr)
	if !ok {
		return hal.EFAULT
	}
	if !write {
		return hal.Ok
	}

	v := slot.Get()
	if aso.COWEnabled(v) {
		if preg.Reg.Mode&region.MayWrite == 0 {
			return hal.EFAULT
		}
		return aso.COWDisable(hw, fa, slot)
	}
	if !v.Has(hal.FlagWrite) {
		return hal.EFAULT
	}
	return hal.Ok
}
