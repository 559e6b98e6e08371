// Package proc is the minimal process-handle collaborator spec.md §1
// treats as external (the process table, scheduler, and signal delivery
// proper belong to a different subsystem). It exposes exactly the fields
// spec.md §6 lists as consumed from "Process": pgdir, cr3, kstack, kesp,
// KERNEL_RUNNING(proc), and curr_proc.
package proc

import (
	"vmcore/hal"
	"vmcore/kpp"
	"vmcore/region"
)

// Process is one address space's process handle.
type Process struct {
	// PageDir is the kernel page backing this process's page directory.
	PageDir kpp.Page
	// Cr3 is the physical address of the page directory, i.e. what a
	// real CPU would load into the page-directory-base register.
	Cr3 hal.Phys
	// KStack is the kernel page backing this process's kernel stack.
	KStack kpp.Page
	// Kesp is the saved kernel stack pointer.
	Kesp uintptr
	// Regions is this process's region list.
	Regions *region.List
	// Running reports whether an interrupt-stack frame is live for this
	// process (spec.md's KERNEL_RUNNING(proc)).
	Running bool
}

// New creates a process handle with an empty region list.
func New() *Process {
	return &Process{Regions: region.NewList()}
}

// Current is the currently executing process (spec.md's curr_proc). The
// VM core assumes single-CPU cooperative scheduling: there is exactly one
// current process at a time, never concurrently running on two CPUs.
var Current *Process

// The four PDE slots every child page directory shares by reference with
// its parent, per aso.CreatePageDir: the low identity mapping, the kernel
// image, the Kernel Page Pool, and the boot-time ramdisk.
const (
	SlotIdentity uintptr = 0
	SlotKBase            = hal.KBaseVirt
	SlotKPool            = hal.KPoolVirt
	SlotInitrd           = hal.InitrdVirt
)
