package hal_test

import (
	"os"
	"os/exec"
	"syscall"
	"testing"

	"vmcore/aso"
	"vmcore/fault"
	"vmcore/frame"
	"vmcore/hal"
	"vmcore/hal/halreal"
	"vmcore/kpp"
	"vmcore/proc"
	"vmcore/ptm"
	"vmcore/region"
)

const crashChildEnv = "VMCORE_HALREAL_CRASH_CHILD"

// TestMain lets this binary re-exec itself as a crash-test child: see
// TestProtectIsEnforcedByTheKernel.
func TestMain(m *testing.M) {
	if os.Getenv(crashChildEnv) == "1" {
		writeReadOnlyPage()
		os.Exit(0) // unreachable if Protect actually enforces read-only
	}
	os.Exit(m.Run())
}

func writeReadOnlyPage() {
	r, err := halreal.New(hal.PageSize)
	if err != nil {
		os.Exit(2)
	}
	defer r.Close()
	if err := r.Protect(0, false); err != nil {
		os.Exit(3)
	}
	r.Bytes(0)[0] = 1
}

// TestProtectIsEnforcedByTheKernel re-execs this binary as a child that
// writes to a page halreal.Protect marked read-only. The kernel, not
// vmcore's own bookkeeping, must kill that child with SIGSEGV — this is
// what distinguishes halreal from halsim, whose Protect equivalent would
// be a no-op software flag.
func TestProtectIsEnforcedByTheKernel(t *testing.T) {
	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), crashChildEnv+"=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected the child to be killed for writing a read-only page, it exited successfully")
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected an *exec.ExitError, got %T: %v", err, err)
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		t.Fatalf("expected a syscall.WaitStatus, got %T", exitErr.Sys())
	}
	if !ws.Signaled() || ws.Signal() != syscall.SIGSEGV {
		t.Fatalf("expected the child to die from SIGSEGV, got %v", ws)
	}
}

// TestDemandZeroForkCOWAgainstRealMemory runs the demand-zero, fork, and
// copy-on-write write scenario from fault/golden_test.go again, but with
// halreal's real mmap'd arena standing in for halsim: it proves aso and
// fault drive an actual hal.HAL implementation, not just the simulation
// every other test in the tree uses.
func TestDemandZeroForkCOWAgainstRealMemory(t *testing.T) {
	const frames = 4
	r, err := halreal.New(hal.KPoolSize + frames*hal.PageSize)
	if err != nil {
		t.Fatalf("halreal.New: %v", err)
	}
	defer r.Close()

	kp := kpp.New(r, 0, hal.KPoolPages)
	fa := frame.New(hal.UBasePhys, frames)
	vaddr := uintptr(0x08000000)

	parentPgdir, ok := kp.Get(true)
	if !ok {
		t.Fatal("expected to allocate a parent page directory")
	}
	parent := proc.New()
	parent.Cr3 = parentPgdir.Phys()
	parent.PageDir = parentPgdir
	parent.Regions.Add(&region.ProcessRegion{Start: vaddr, Len: hal.PageSize, Reg: region.NewAnon(region.MayWrite)})

	if err := fault.Vfault(r, kp, fa, nil, parent, vaddr); err != hal.Ok {
		t.Fatalf("Vfault: %v", err)
	}
	parentSlot, ok := ptm.PTEOf(r, parent, vaddr)
	if !ok {
		t.Fatal("expected the parent's PTE slot to resolve")
	}
	for _, b := range r.Bytes(parentSlot.Get().Frame()) {
		if b != 0 {
			t.Fatalf("expected a zero-filled page, got %#x", b)
		}
	}

	childPgdir, ok := kp.Get(true)
	if !ok {
		t.Fatal("expected a child page directory")
	}
	child := proc.New()
	child.Cr3 = childPgdir.Phys()
	child.PageDir = childPgdir
	child.Regions.Add(&region.ProcessRegion{Start: vaddr, Len: hal.PageSize, Reg: region.NewAnon(region.MayWrite)})
	childPgtab, ok := kp.Get(true)
	if !ok {
		t.Fatal("expected a child page table")
	}
	aso.MapPageTable(r, child, vaddr, childPgtab)
	childSlot, ok := ptm.PTEOf(r, child, vaddr)
	if !ok {
		t.Fatal("expected the child's PTE slot to resolve")
	}

	aso.LinkUserPage(r, fa, parentSlot, childSlot)
	if !fa.IsShared(frame.FromPhys(parentSlot.Get().Frame())) {
		t.Fatal("expected the frame to be shared after LinkUserPage")
	}

	if err := fault.Pfault(r, fa, child, vaddr, true); err != hal.Ok {
		t.Fatalf("Pfault (child cow write): %v", err)
	}
	cv := childSlot.Get()
	if cv.Has(hal.FlagCOW) || !cv.Has(hal.FlagWrite) {
		t.Fatalf("expected cow disabled and writable, got %#x", cv)
	}
	if pv := parentSlot.Get(); !pv.Has(hal.FlagCOW) {
		t.Fatalf("expected the parent's PTE to remain copy-on-write, got %#x", pv)
	}

	page := r.Bytes(cv.Frame())
	page[0] = 0x42
	if page[0] != 0x42 {
		t.Fatal("expected the write to land in the child's own real memory")
	}
}
