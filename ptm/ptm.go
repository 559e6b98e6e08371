// Package ptm is the Page-Table Machinery: pure, typed accessors that
// translate a (*proc.Process, virtual address) pair into a page-directory
// or page-table entry, plus the constructors/clearers/predicates those
// entries need. Grounded on the getpde/getpte/pde_init/pte_init
// family in original_source/src/kernel/mm/paging.c, translated into Go's
// typed-slot idiom (a PDESlot/PTESlot is a location, not a copy, matching
// C's `struct pde *`/`struct pte *`).
package ptm

import (
	"vmcore/hal"
	"vmcore/proc"
)

// PDESlot names one page-directory-entry location.
type PDESlot struct {
	hw  hal.HAL
	dir hal.Phys
	idx uintptr
}

// Get reads the current value of the slot.
func (s PDESlot) Get() hal.PDE { return s.hw.ReadPDE(s.dir, s.idx) }

// Set writes v into the slot.
func (s PDESlot) Set(v hal.PDE) { s.hw.WritePDE(s.dir, s.idx, v) }

// PTESlot names one page-table-entry location.
type PTESlot struct {
	hw  hal.HAL
	tab hal.Phys
	idx uintptr
}

// Get reads the current value of the slot.
func (s PTESlot) Get() hal.PTE { return s.hw.ReadPTE(s.tab, s.idx) }

// Set writes v into the slot.
func (s PTESlot) Set(v hal.PTE) { s.hw.WritePTE(s.tab, s.idx, v) }

// PDEOf indexes pr's page directory by the top-level bits of vaddr —
// spec.md §4.3's pde_of.
func PDEOf(hw hal.HAL, pr *proc.Process, vaddr uintptr) PDESlot {
	return PDESlot{hw: hw, dir: pr.Cr3, idx: hal.PGTab(vaddr)}
}

// PTEOf reads the PDE's frame number, reconstructs the kernel-virtual
// address of that page table, then indexes by the middle bits of vaddr —
// spec.md §4.3's pte_of. Behaviour when the PDE is not present is
// undefined in spec.md ("callers must ensure presence"); this
// implementation surfaces that as ok=false rather than reading garbage.
func PTEOf(hw hal.HAL, pr *proc.Process, vaddr uintptr) (PTESlot, bool) {
	pde := PDEOf(hw, pr, vaddr).Get()
	if !pde.Has(hal.FlagPresent) {
		return PTESlot{}, false
	}
	// (frame << PAGE_SHIFT) + KBASE_VIRT, per spec.md §4.3. pde.Frame()
	// already yields a page-aligned physical address (the frame number
	// pre-shifted), so this reproduces the formula exactly; translating
	// the resulting kernel-virtual address back to a physical one
	// subtracts KBaseVirt again, since the kernel region is identity-
	// offset-mapped in this model.
	kvaddr := uintptr(pde.Frame()) + hal.KBaseVirt
	tab := hal.Phys(kvaddr - hal.KBaseVirt)
	return PTESlot{hw: hw, tab: tab, idx: hal.PG(vaddr)}, true
}

// PDEInit sets {present, writable, user} = 1 and installs frame, per
// spec.md §4.3's pde_init.
func PDEInit(frame hal.Phys) hal.PDE {
	return hal.Word(0).Set(hal.FlagPresent | hal.FlagWrite | hal.FlagUser).WithFrame(frame)
}

// PDEClear zeros a PDE's flags, per spec.md §4.3's pde_clear.
func PDEClear() hal.PDE { return 0 }

// PDEIsClear reports whether a PDE names no page table.
func PDEIsClear(v hal.PDE) bool { return !v.Has(hal.FlagPresent) }

// PTEInit sets present=1, user=1, writable=writable, and clears
// cow/zero/fill, per spec.md §4.3's pte_init(writable). The caller
// installs the frame number separately with WithFrame.
func PTEInit(writable bool) hal.PTE {
	v := hal.Word(0).Set(hal.FlagPresent | hal.FlagUser)
	if writable {
		v = v.Set(hal.FlagWrite)
	}
	return v
}

// PTEClear zeros present/cow/zero/fill, per spec.md §4.3's pte_clear.
func PTEClear() hal.PTE { return 0 }

// PTEIsClear reports whether none of {present, fill, zero} is set, per
// spec.md §4.3's pte_is_clear.
func PTEIsClear(v hal.PTE) bool {
	return !v.Any(hal.FlagPresent | hal.FlagFill | hal.FlagZero)
}

// PTECopy verbatim-duplicates the semantic flags {present, writable,
// user, cow, zero, fill} of src. The frame number is NOT copied, per
// spec.md §4.3's pte_copy.
func PTECopy(src hal.PTE) hal.PTE {
	const semantic = hal.FlagPresent | hal.FlagWrite | hal.FlagUser |
		hal.FlagCOW | hal.FlagZero | hal.FlagFill
	return src & semantic
}
