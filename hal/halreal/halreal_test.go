package halreal

import (
	"testing"

	"vmcore/hal"
)

func TestPDERoundTrip(t *testing.T) {
	r, err := New(4 * hal.PageSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	r.WritePDE(0, 3, 0xdeadb000)
	if got := r.ReadPDE(0, 3); got != 0xdeadb000 {
		t.Fatalf("ReadPDE = %#x, want %#x", got, 0xdeadb000)
	}
}

func TestProtectAcceptsReadOnlyAndWritable(t *testing.T) {
	r, err := New(hal.PageSize)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.Protect(0, false); err != nil {
		t.Fatalf("Protect(read-only): %v", err)
	}
	if err := r.Protect(0, true); err != nil {
		t.Fatalf("Protect(writable): %v", err)
	}
}
