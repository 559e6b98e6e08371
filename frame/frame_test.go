package frame

import "testing"

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New(0x1000, 4)

	fno, ok := a.Alloc()
	if !ok {
		t.Fatal("expected a free frame")
	}
	if a.Refcount(fno) != 1 {
		t.Fatalf("expected refcount 1, got %d", a.Refcount(fno))
	}
	a.Free(fno)
	if a.Refcount(fno) != 0 {
		t.Fatalf("expected refcount 0 after free, got %d", a.Refcount(fno))
	}
}

func TestShareAndIsShared(t *testing.T) {
	a := New(0, 2)
	fno, _ := a.Alloc()

	if a.IsShared(fno) {
		t.Fatal("freshly allocated frame must not be shared")
	}
	a.Share(fno)
	if !a.IsShared(fno) {
		t.Fatal("expected frame to be shared after Share")
	}
	a.Free(fno)
	if a.IsShared(fno) {
		t.Fatal("frame referenced only once, must no longer be shared")
	}
	a.Free(fno)
	if a.IsShared(fno) {
		t.Fatal("frame should no longer be shared")
	}
}

func TestDoubleFreePanics(t *testing.T) {
	a := New(0, 1)
	fno, _ := a.Alloc()
	a.Free(fno)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	a.Free(fno)
}

func TestPhysRoundTrip(t *testing.T) {
	a := New(0x2000, 4)
	fno, _ := a.Alloc()

	if fno.Phys() != 0x2000 {
		t.Fatalf("expected base physical address, got %#x", fno.Phys())
	}
	if got := FromPhys(fno.Phys()); got != fno {
		t.Fatalf("FromPhys(Phys()) = %d, want %d", got, fno)
	}
}

func TestExhaustion(t *testing.T) {
	a := New(0, 1)
	if _, ok := a.Alloc(); !ok {
		t.Fatal("expected the only frame")
	}
	if _, ok := a.Alloc(); ok {
		t.Fatal("expected exhaustion")
	}
}
