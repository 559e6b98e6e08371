// Package aso implements Address-Space Operations: building, cloning, and
// destroying per-process address spaces, mapping page tables into user
// space, copy-on-write linking, and teardown. Grounded function-by-
// function on original_source/src/kernel/mm/paging.c (mappgtab, umappgtab,
// crtpgdir, dstrypgdir, allocupg, readpg, cpypg, freeupg, markpg, linkupg,
// cow_enable/cow_enabled/cow_disable) and on the teacher's Vm_t critical-
// section style (biscuit/src/vm/as.go's Lock_pmap/Page_insert) for how a
// Go kernel package structures these operations around a HAL.
package aso

import (
	"encoding/binary"

	"vmcore/frame"
	"vmcore/hal"
	"vmcore/kfile"
	"vmcore/kpp"
	"vmcore/proc"
	"vmcore/ptm"
)

// MapPageTable installs pgtab as the page table backing the PDE slot that
// covers vaddr. The target PDE must currently be clear; violating that is
// fatal, per spec.md §4.4.1.
func MapPageTable(hw hal.HAL, pr *proc.Process, vaddr uintptr, pgtab kpp.Page) {
	pde := ptm.PDEOf(hw, pr, vaddr)
	if !ptm.PDEIsClear(pde.Get()) {
		hw.Panic("aso: mapping over a busy page table directory entry")
	}
	pde.Set(ptm.PDEInit(pgtab.Phys()))
	if pr == proc.Current {
		hw.TLBFlush()
	}
}

// UnmapPageTable clears the PDE slot that covers vaddr. The target PDE
// must currently be present; violating that is fatal. (spec.md's source
// reads as the inverse of this — see spec.md §9's Open Questions — this
// implementation adopts the resolved, non-inverted precondition.)
func UnmapPageTable(hw hal.HAL, pr *proc.Process, vaddr uintptr) {
	pde := ptm.PDEOf(hw, pr, vaddr)
	if ptm.PDEIsClear(pde.Get()) {
		hw.Panic("aso: unmapping a clear page table directory entry")
	}
	pde.Set(ptm.PDEClear())
	if pr == proc.Current {
		hw.TLBFlush()
	}
}

// savedEBPOffset is where this model keeps the saved frame pointer of the
// interrupt-stack frame living at the top of a kernel stack page, mirroring
// the original's struct intstack sitting at the high end of the stack.
const savedEBPOffset = hal.PageSize - 8

func readSavedEBP(hw hal.HAL, stack kpp.Page) uintptr {
	b := hw.Bytes(stack.Phys())
	return uintptr(binary.LittleEndian.Uint64(b[savedEBPOffset:]))
}

func writeSavedEBP(hw hal.HAL, stack kpp.Page, v uintptr) {
	b := hw.Bytes(stack.Phys())
	binary.LittleEndian.PutUint64(b[savedEBPOffset:], uint64(v))
}

// CreatePageDir builds child's page directory and kernel stack, cloned
// from curr, per spec.md §4.4.2. It returns hal.Ok on success or
// hal.ENOMEM on kernel-page exhaustion, rolling back any partial
// allocation in reverse order.
func CreatePageDir(hw hal.HAL, kp *kpp.Pool, child, curr *proc.Process) hal.Err {
	pgdir, ok := kp.Get(true)
	if !ok {
		return hal.ENOMEM
	}
	kstack, ok := kp.Get(false)
	if !ok {
		kp.Put(pgdir)
		return hal.ENOMEM
	}

	// Copy exactly four PDE slots by reference: the identity-mapped low
	// region (slot 0), the kernel base, the kernel pool, and the initial
	// ramdisk mapping. All other PDEs remain cleared. User mappings are
	// NOT inherited here — link_upg performs user COW copying separately,
	// driven by the process-fork path.
	for _, slotVA := range []uintptr{proc.SlotIdentity, proc.SlotKBase, proc.SlotKPool, proc.SlotInitrd} {
		idx := hal.PGTab(slotVA)
		v := hw.ReadPDE(curr.Cr3, idx)
		hw.WritePDE(pgdir.Phys(), idx, v)
	}

	hw.Physcpy(kstack.Phys(), curr.KStack.Phys())

	child.Kesp = curr.Kesp - curr.KStack.Virt() + kstack.Virt()
	if curr.Running {
		ebp := readSavedEBP(hw, curr.KStack)
		newEBP := ebp - curr.KStack.Virt() + kstack.Virt()
		writeSavedEBP(hw, kstack, newEBP)
	}

	child.Cr3 = pgdir.Phys()
	child.PageDir = pgdir
	child.KStack = kstack
	return hal.Ok
}

// DestroyPageDir returns proc's kernel stack and page directory to the
// Kernel Page Pool, per spec.md §4.4.3. User page tables and user frames
// are NOT released here; the region layer must have already unmapped
// every user PDE and freed user frames before calling this.
func DestroyPageDir(kp *kpp.Pool, pr *proc.Process) {
	kp.Put(pr.KStack)
	kp.Put(pr.PageDir)
}

// AllocUserPage allocates a frame, installs it at vaddr with the given
// writability, flushes the TLB, and zeroes the page through its direct
// mapping, per spec.md §4.4.4. It returns hal.ENOMEM if no frame is
// available.
func AllocUserPage(hw hal.HAL, fa *frame.Allocator, pr *proc.Process, vaddr uintptr, writable bool) hal.Err {
	fno, ok := fa.Alloc()
	if !ok {
		return hal.ENOMEM
	}
	va := hal.PageAlign(vaddr)
	slot, ok := ptm.PTEOf(hw, pr, va)
	if !ok {
		// The region layer is required to have installed the covering
		// page table before any page can be mapped into it; this is an
		// undefined precondition violation, not a runtime condition.
		hw.Panic("aso: alloc_upg with no page table mapped")
	}
	slot.Set(ptm.PTEInit(writable).WithFrame(fno.Phys()))
	hw.TLBFlush()
	hw.ZeroPage(fno.Phys())
	return hal.Ok
}

// ReadPage allocates a user page at vaddr and fills it from the region's
// backing file starting at the computed file offset, per spec.md §4.4.5.
// Short reads are acceptable; the unread tail stays zero because
// AllocUserPage already zeroed the page. A failed read frees the page and
// fails.
func ReadPage(hw hal.HAL, fa *frame.Allocator, rd kfile.Reader, pr *proc.Process, inode kfile.Inode, fileOff int64, mayWrite bool, vaddr uintptr) hal.Err {
	va := hal.PageAlign(vaddr)
	if err := AllocUserPage(hw, fa, pr, va, mayWrite); err != hal.Ok {
		return err
	}
	slot, _ := ptm.PTEOf(hw, pr, va)
	off := fileOff + int64(hal.PG(va))*hal.PageSize
	buf := hw.Bytes(slot.Get().Frame())
	if _, err := rd.ReadAt(inode, buf, off); err != nil {
		FreeUserPage(hw, fa, slot)
		return hal.EFAULT
	}
	return hal.Ok
}

// CopyPage allocates a new frame, duplicates src's semantic PTE flags
// into dst, installs the new frame on dst, and byte-copies the page
// contents from src's frame, per spec.md §4.4.6. The source must already
// be present in core.
func CopyPage(hw hal.HAL, fa *frame.Allocator, dst, src ptm.PTESlot) hal.Err {
	fno, ok := fa.Alloc()
	if !ok {
		return hal.ENOMEM
	}
	sv := src.Get()
	dst.Set(ptm.PTECopy(sv).WithFrame(fno.Phys()))
	hw.Physcpy(fno.Phys(), sv.Frame())
	return hal.Ok
}

// FreeUserPage releases the frame (if any) referenced by pte and clears
// it, per spec.md §4.4.7. A clear PTE is a no-op. A demand-fill or
// demand-zero PTE is simply cleared, with no frame to free. Any other
// non-present state is fatal.
func FreeUserPage(hw hal.HAL, fa *frame.Allocator, pte ptm.PTESlot) {
	v := pte.Get()
	if ptm.PTEIsClear(v) {
		return
	}
	if !v.Has(hal.FlagPresent) {
		if v.Any(hal.FlagFill | hal.FlagZero) {
			pte.Set(ptm.PTEClear())
			hw.TLBFlush()
			return
		}
		hw.Panic("aso: freeing invalid user page")
	}
	fa.Free(frame.FromPhys(v.Frame()))
	pte.Set(ptm.PTEClear())
	hw.TLBFlush()
}

// Mark names the demand-paging classification installed by MarkPage.
type Mark int

const (
	// PageFill marks a PTE demand-fill: on fault, read from the backing
	// file.
	PageFill Mark = iota
	// PageZero marks a PTE demand-zero: on fault, allocate and zero.
	PageZero
)

// MarkPage sets exactly one of {fill, zero} on pte and clears the other,
// per spec.md §4.4.8. pte must not be present; marking a present page is
// fatal.
func MarkPage(hw hal.HAL, pte ptm.PTESlot, mark Mark) {
	v := pte.Get()
	if v.Has(hal.FlagPresent) {
		hw.Panic("aso: marking a present page")
	}
	switch mark {
	case PageFill:
		v = v.Set(hal.FlagFill).Clear(hal.FlagZero)
	case PageZero:
		v = v.Clear(hal.FlagFill).Set(hal.FlagZero)
	default:
		hw.Panic("aso: invalid page mark")
	}
	pte.Set(v)
}

// COWEnable transitions pte to read-only copy-on-write: cow=1,
// writable=0, per spec.md §4.4.10's cow_enable.
func COWEnable(pte ptm.PTESlot) {
	v := pte.Get()
	pte.Set(v.Clear(hal.FlagWrite).Set(hal.FlagCOW))
}

// COWEnabled reports whether v is a copy-on-write mapping (cow set,
// writable clear), per spec.md §4.4.10's cow_enabled.
func COWEnabled(v hal.PTE) bool {
	return v.Has(hal.FlagCOW) && !v.Has(hal.FlagWrite)
}

// COWDisable resolves copy-on-write sharing on pte, per spec.md §4.4.10's
// cow_disable. If the referenced frame is shared, the page is copied into
// a freshly allocated frame and the old frame's refcount is decremented;
// otherwise the frame is reused as-is. Either way cow is cleared and
// writable is set. It returns hal.ENOMEM on frame-allocation failure.
func COWDisable(hw hal.HAL, fa *frame.Allocator, pte ptm.PTESlot) hal.Err {
	v := pte.Get()
	oldFno := frame.FromPhys(v.Frame())
	if fa.IsShared(oldFno) {
		newFno, ok := fa.Alloc()
		if !ok {
			return hal.ENOMEM
		}
		hw.Physcpy(newFno.Phys(), v.Frame())
		fa.Free(oldFno)
		v = v.WithFrame(newFno.Phys())
	}
	v = v.Clear(hal.FlagCOW).Set(hal.FlagWrite)
	pte.Set(v)
	return hal.Ok
}

// LinkUserPage shares a user mapping from src into dst, for use by fork,
// per spec.md §4.4.9. A clear source leaves dst untouched (clear). A
// demand-fill/demand-zero source is copied verbatim (no frame involved).
// A present, writable source is downgraded to copy-on-write in src before
// its refcount is shared and its (now downgraded) state is duplicated
// into dst; a source that is already read-only or already COW is left
// alone beyond the refcount bump.
func LinkUserPage(hw hal.HAL, fa *frame.Allocator, src, dst ptm.PTESlot) {
	sv := src.Get()
	if ptm.PTEIsClear(sv) {
		return
	}
	if !sv.Has(hal.FlagPresent) {
		if sv.Any(hal.FlagFill | hal.FlagZero) {
			dst.Set(sv)
			return
		}
		hw.Panic("aso: linking invalid user page")
	}
	if sv.Has(hal.FlagWrite) {
		COWEnable(src)
		sv = src.Get()
	}
	fa.Share(frame.FromPhys(sv.Frame()))
	dst.Set(sv)
}
