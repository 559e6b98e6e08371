// Package diag provides crash-diagnostic and occupancy-reporting helpers
// for the VM core: a pprof profile of kernel-page-pool and frame
// occupancy, an instruction disassembler for the bytes around a faulting
// address, and comma-grouped diagnostic counters. None of this is on the
// hot path of kpp/frame/aso/fault; it exists for the same reason the
// teacher bundles github.com/google/pprof and golang.org/x/arch/x86/x86asm
// in its dependency stack — to turn a kernel panic into something a human
// can read.
package diag

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/google/pprof/profile"

	"vmcore/frame"
	"vmcore/kpp"
)

// FrameSnapshot builds a pprof profile with one sample per in-use frame,
// value = current refcount, for an operator to load into `pprof -top` (or
// ship to a profiling backend) when diagnosing a frame leak or unexpected
// sharing pattern.
func FrameSnapshot(fa *frame.Allocator) *profile.Profile {
	refs := fa.Snapshot()

	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "refcount", Unit: "count"}},
		Function:   []*profile.Function{{ID: 1, Name: "frame"}},
		Location:   []*profile.Location{{ID: 1, Line: []profile.Line{{Function: &profile.Function{ID: 1, Name: "frame"}}}}},
	}
	for i, r := range refs {
		if r == 0 {
			continue
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{p.Location[0]},
			Value:    []int64{int64(r)},
			Label:    map[string][]string{"frame_index": {fmt.Sprintf("%d", i)}},
		})
	}
	return p
}

// PoolSnapshot builds the same kind of profile for the Kernel Page Pool,
// one sample per in-use slot.
func PoolSnapshot(kp *kpp.Pool) *profile.Profile {
	refs := kp.Snapshot()

	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "refcount", Unit: "count"}},
		Function:   []*profile.Function{{ID: 1, Name: "kpp"}},
		Location:   []*profile.Location{{ID: 1, Line: []profile.Line{{Function: &profile.Function{ID: 1, Name: "kpp"}}}}},
	}
	for i, r := range refs {
		if r == 0 {
			continue
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{p.Location[0]},
			Value:    []int64{int64(r)},
			Label:    map[string][]string{"slot_index": {fmt.Sprintf("%d", i)}},
		})
	}
	return p
}

// Disassemble decodes one x86 instruction at the start of code and
// returns its GNU-syntax mnemonic, for printing the faulting instruction
// alongside a page-fault panic. It returns an error string rather than an
// error so it is always safe to print from a panic handler.
func Disassemble(code []byte, pc uint64, mode int) string {
	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		return fmt.Sprintf("<bad instruction: %v>", err)
	}
	return x86asm.GNUSyntax(inst, pc, nil)
}

var counter = message.NewPrinter(language.English)

// Countf formats a diagnostic message with comma-grouped integers, for
// occupancy reports like "kpp: 12,345 of 32,768 pages in use" that stay
// readable as the pool grows.
func Countf(format string, args ...any) string {
	return counter.Sprintf(format, args...)
}
