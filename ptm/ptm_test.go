package ptm

import (
	"testing"

	"vmcore/hal"
	"vmcore/hal/halsim"
	"vmcore/proc"
)

func TestPDEInitClearIsClear(t *testing.T) {
	if !PDEIsClear(PDEClear()) {
		t.Fatal("a cleared PDE must report clear")
	}
	if PDEIsClear(PDEInit(0x1000)) {
		t.Fatal("an initialised PDE must not report clear")
	}
}

func TestPTEOfFollowsPDE(t *testing.T) {
	const dirPhys, tabPhys hal.Phys = 0, hal.PageSize
	sim := halsim.New(3 * hal.PageSize)
	pr := &proc.Process{Cr3: dirPhys}

	vaddr := uintptr(0x00401000)
	PDEOf(sim, pr, vaddr).Set(PDEInit(tabPhys))

	slot, ok := PTEOf(sim, pr, vaddr)
	if !ok {
		t.Fatal("expected a present PDE to resolve a PTE slot")
	}
	slot.Set(PTEInit(true).WithFrame(2 * hal.PageSize))

	got := slot.Get()
	if !got.Has(hal.FlagPresent | hal.FlagWrite | hal.FlagUser) {
		t.Fatalf("unexpected PTE flags: %#x", got)
	}
	if got.Frame() != 2*hal.PageSize {
		t.Fatalf("unexpected frame: %#x", got.Frame())
	}
}

func TestPTEOfFailsOnClearPDE(t *testing.T) {
	sim := halsim.New(hal.PageSize)
	pr := &proc.Process{Cr3: 0}

	if _, ok := PTEOf(sim, pr, 0x1000); ok {
		t.Fatal("expected PTEOf to fail when the covering PDE is clear")
	}
}

func TestPTECopyDropsFrame(t *testing.T) {
	src := PTEInit(true).WithFrame(hal.PageSize).Set(hal.FlagCOW)
	got := PTECopy(src)
	if got.Frame() != 0 {
		t.Fatalf("expected pte_copy to drop the frame, got %#x", got.Frame())
	}
	if !got.Has(hal.FlagPresent | hal.FlagWrite | hal.FlagUser | hal.FlagCOW) {
		t.Fatalf("expected semantic flags preserved, got %#x", got)
	}
}

func TestPTEIsClear(t *testing.T) {
	if !PTEIsClear(PTEClear()) {
		t.Fatal("a cleared PTE must report clear")
	}
	fillOnly := hal.Word(0).Set(hal.FlagFill)
	if PTEIsClear(fillOnly) {
		t.Fatal("a demand-fill PTE must not report clear")
	}
}
