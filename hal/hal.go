// Package hal is the hardware-abstraction boundary the rest of vmcore is
// built on: physical memory access, page-directory/page-table word layout,
// TLB invalidation, and the kernel's panic/print primitives. Everything
// above this package — kpp, frame, ptm, aso, fault — is written against
// the HAL interface and never assumes how physical memory is actually
// backed. Two implementations exist: halsim (a Go-slice-backed simulation,
// used by every unit test) and halreal (golang.org/x/sys/unix-backed,
// exercised only by the integration tests).
package hal

// PageShift is the base-2 exponent of the page size.
const PageShift = 12

// PageSize is the size of a single page/frame in bytes.
const PageSize = 1 << PageShift

// PageOffset masks the in-page offset of a virtual or physical address.
const PageOffset = PageSize - 1

// PageMask clears the in-page offset, leaving the page-aligned base.
const PageMask = ^uintptr(PageOffset)

// EntriesPerTable is the number of PDE/PTE slots in one page directory or
// page table page: a page holds PageSize/4 four-byte entries.
const EntriesPerTable = PageSize / 4

// Two-level 32-bit paging: 10 directory bits, 10 table bits, 12 offset bits.
const (
	dirShift   = PageShift + 10
	tableShift = PageShift
	indexMask  = EntriesPerTable - 1
)

// Kernel address-space layout. These are simulation parameters: the real
// constants are fixed by the boot loader, which spec.md §1 explicitly
// treats as an external collaborator out of scope for this module.
const (
	// KBaseVirt is the virtual base of the kernel image and the start of
	// the PDE slot shared by reference across every address space.
	KBaseVirt uintptr = 0xC0000000

	// KPoolVirt is the virtual base of the Kernel Page Pool.
	KPoolVirt uintptr = 0xD0000000

	// InitrdVirt is the virtual base of the boot-time ramdisk mapping,
	// the fourth PDE slot copied verbatim by CreatePageDir.
	InitrdVirt uintptr = 0xC4000000

	// KPoolPages is the number of slots in the Kernel Page Pool.
	KPoolPages = 32

	// KPoolSize is the byte size of the Kernel Page Pool.
	KPoolSize = KPoolPages * PageSize

	// KStackSize is the size of one process's kernel stack: one kernel
	// page, per spec.md §3 ("Process address space ... owns ... one
	// kernel stack (a kernel page)").
	KStackSize = PageSize

	// UBasePhys is the physical base of user memory. The frame allocator
	// biases frame numbers by UBasePhys>>PageShift, per spec.md §4.2.
	// Choosing it immediately after the kernel pool keeps the simulated
	// physical arena contiguous and small.
	UBasePhys Phys = KPoolSize
)

// PGTab returns the page-directory index (top 10 bits) of a virtual
// address — spec.md §4.3's PGTAB(vaddr).
func PGTab(vaddr uintptr) uintptr {
	return (vaddr >> dirShift) & indexMask
}

// PG returns the page-table index (middle 10 bits) of a virtual address —
// spec.md §4.3's PG(vaddr).
func PG(vaddr uintptr) uintptr {
	return (vaddr >> tableShift) & indexMask
}

// PageAlign rounds a virtual address down to its containing page, i.e.
// `vaddr & PAGE_MASK`.
func PageAlign(vaddr uintptr) uintptr {
	return vaddr & PageMask
}

// Phys is a physical address. Only HAL implementations construct one from
// an arbitrary integer; everyone else receives them from frame/kpp
// allocation or PDE/PTE frame fields.
type Phys uintptr

// Err is a kernel error code: zero is success, negative values name a
// specific failure. This mirrors the teacher's defs.Err_t convention
// (small negative integers, not Go `error`) because these codes cross
// into the imagined hardware trap path alongside panics.
type Err int

const (
	// Ok indicates success.
	Ok Err = 0
	// EFAULT: the address has no backing region, or a write violated a
	// read-only mapping.
	EFAULT Err = -1
	// ENOMEM: a physical frame or kernel page could not be allocated.
	ENOMEM Err = -2
	// ENOHEAP: a bounded internal resource (e.g. a copy loop's budget)
	// was exhausted.
	ENOHEAP Err = -3
	// EINVAL: a caller-supplied argument is invalid.
	EINVAL Err = -4
)

// Word is a raw hardware page-table word: the low bits hold flags, the
// high bits hold a page-aligned physical frame address. It underlies both
// PDE and PTE; the two types differ only in which flag bits are
// meaningful, exactly as a page directory and page table share one
// hardware entry format.
type Word uint32

// Flag bits common to PDE and PTE.
const (
	FlagPresent Word = 1 << 0
	FlagWrite   Word = 1 << 1
	FlagUser    Word = 1 << 2
)

// Flag bits meaningful only on a PTE.
const (
	FlagCOW  Word = 1 << 3
	FlagZero Word = 1 << 4
	FlagFill Word = 1 << 5
)

const flagMask Word = 0xfff
const addrMask Word = ^flagMask

// PDE is a page-directory entry: {present, writable, user} plus the frame
// number of the page table it names.
type PDE = Word

// PTE is a page-table entry: {present, writable, user, cow, zero, fill}
// plus the frame number of the mapped physical page.
type PTE = Word

// Has reports whether all of the given flag bits are set.
func (w Word) Has(f Word) bool { return w&f == f }

// Any reports whether any of the given flag bits are set.
func (w Word) Any(f Word) bool { return w&f != 0 }

// Set returns w with the given flag bits set.
func (w Word) Set(f Word) Word { return w | f }

// Clear returns w with the given flag bits cleared.
func (w Word) Clear(f Word) Word { return w &^ f }

// Frame returns the page-aligned physical frame address encoded in w.
func (w Word) Frame() Phys { return Phys(w & addrMask) }

// WithFrame returns w with its frame address replaced by p, preserving
// flags. p must be page-aligned.
func (w Word) WithFrame(p Phys) Word {
	if Word(p)&flagMask != 0 {
		panic("hal: frame address is not page-aligned")
	}
	return (w &^ addrMask) | (Word(p) & addrMask)
}

// HAL is the hardware-abstraction interface every layer above it is
// written against.
type HAL interface {
	// ReadPDE/WritePDE access slot idx of the page directory whose
	// physical base address is dir.
	ReadPDE(dir Phys, idx uintptr) PDE
	WritePDE(dir Phys, idx uintptr, v PDE)

	// ReadPTE/WritePTE access slot idx of the page table whose physical
	// base address is tab.
	ReadPTE(tab Phys, idx uintptr) PTE
	WritePTE(tab Phys, idx uintptr, v PTE)

	// Bytes returns the direct byte-level view of the page at p, length
	// PageSize. Writes through the returned slice are writes to physical
	// memory, exactly like the teacher's mem.Physmem_t.Dmap.
	Bytes(p Phys) []byte

	// ZeroPage fills the page at p with zero bytes.
	ZeroPage(p Phys)

	// Physcpy copies PageSize bytes from src to dst.
	Physcpy(dst, src Phys)

	// TLBFlush invalidates the currently installed address space's
	// translation cache.
	TLBFlush()

	// Panic reports an invariant violation and terminates, exactly like
	// the teacher's kpanic.
	Panic(msg string)

	// Printf reports a non-fatal diagnostic, exactly like the teacher's
	// kprintf.
	Printf(format string, args ...any)
}
