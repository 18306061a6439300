package dynload

import "testing"

// newTestCtx builds a LoadContext wired directly against a UnifiedPort,
// bypassing the full OpenELFView/PlanLayout pipeline so relocation logic
// can be tested against hand-picked Rela values.
func newTestCtx(t *testing.T, arch Arch, base, vmaBase, size uint32) (*LoadContext, *UnifiedPort) {
	t.Helper()
	port := NewUnifiedPort(base, size, arch)
	allocBase, pctx, err := port.Alloc(size, 0)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	ctx := &LoadContext{
		port: port,
		arch: arch,
		Mode: ModeUnified,
		Unified: unifiedRegion{
			RAMBase: allocBase,
			VMABase: vmaBase,
			Size:    size,
			PortCtx: pctx,
		},
	}
	return ctx, port
}

func TestRelocateXtensa_Relative(t *testing.T) {
	ctx, port := newTestCtx(t, ArchXtensa, 0x2000, 0x1000, 0x100)
	ctx.view = &ELFView{relocs: []Rela{
		{Offset: 0x1004, Type: rXtensaRelative, Addend: 0x1000},
	}}

	if err := relocateXtensa(ctx, port); err != nil {
		t.Fatalf("relocate failed: %v", err)
	}

	v, err := readWord(port, 0x2004)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != 0x2000 {
		t.Fatalf("expected relocated value 0x2000, got 0x%x", v)
	}
}

func TestRelocateXtensa_SlotOpSkipped(t *testing.T) {
	ctx, port := newTestCtx(t, ArchXtensa, 0x2000, 0x1000, 0x100)
	ctx.view = &ELFView{relocs: []Rela{
		{Offset: 0x1008, Type: rXtensaSlot0Op, Addend: 0},
	}}

	if err := port.WriteBytes(0x2008, []byte{0xaa, 0xbb, 0xcc, 0xdd}); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
	if err := relocateXtensa(ctx, port); err != nil {
		t.Fatalf("relocate failed: %v", err)
	}
	v, err := readWord(port, 0x2008)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != 0xddccbbaa {
		t.Fatalf("expected SLOT0_OP target untouched, got 0x%x", v)
	}
}

func TestRelocateXtensa_UnresolvedJmpSlotWarnsAndZeroes(t *testing.T) {
	ctx, port := newTestCtx(t, ArchXtensa, 0x2000, 0x1000, 0x100)
	ctx.view = &ELFView{relocs: []Rela{
		{Offset: 0x1010, Type: rXtensaJmpSlot, SymValue: 0, SymbolName: "missing_fn"},
	}}
	if err := port.WriteBytes(0x2010, []byte{1, 1, 1, 1}); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
	if err := relocateXtensa(ctx, port); err != nil {
		t.Fatalf("relocate failed: %v", err)
	}
	v, err := readWord(port, 0x2010)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected zeroed JMP_SLOT, got 0x%x", v)
	}
}

func TestRelocateRiscv_PCRelHi20_SubtractsTextOffset(t *testing.T) {
	// A split-I/D-bus port where the instruction bus views the same
	// physical memory at dataAddr+delta (FixedOffsetPort): PCREL_HI20 must
	// subtract that delta from the AUIPC's own computed offset (§4.6.3),
	// since the AUIPC executes from the instruction-bus address but the
	// value it must reconstruct is a data-bus target.
	const delta = 0x1000
	port := NewFixedOffsetPort(0x3000, 0x200, delta, ArchRiscv32)
	allocBase, pctx, err := port.Alloc(0x200, 0)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	ctx := &LoadContext{
		port: port,
		arch: ArchRiscv32,
		Mode: ModeUnified,
		Unified: unifiedRegion{
			RAMBase: allocBase,
			VMABase: 0x1000,
			Size:    0x200,
			PortCtx: pctx,
		},
	}

	target := uint32(0x1000 + 0x2345)
	ctx.view = &ELFView{relocs: []Rela{
		{Offset: 0x1000, Type: rRiscvPCRelHi20, SymValue: target, Addend: 0},
		{Offset: 0x1004, Type: rRiscvPCRelLo12I, SymValue: 0x1000, Addend: 0},
	}}

	if err := port.WriteBytes(0x3000, []byte{0x17, 0x05, 0x00, 0x00}); err != nil {
		t.Fatalf("seed AUIPC failed: %v", err)
	}
	if err := port.WriteBytes(0x3004, []byte{0x13, 0x05, 0x05, 0x00}); err != nil {
		t.Fatalf("seed addi failed: %v", err)
	}

	if err := relocateRiscv32(ctx, port); err != nil {
		t.Fatalf("relocate failed: %v", err)
	}

	hiWord, err := readWord(port, 0x3000)
	if err != nil {
		t.Fatalf("read hi word failed: %v", err)
	}
	loWord, err := readWord(port, 0x3004)
	if err != nil {
		t.Fatalf("read lo word failed: %v", err)
	}

	hi := int32(hiWord & 0xfffff000)
	lo := int32(loWord) >> 20
	got := hi + lo
	wantDelta := int32(target) - int32(0x1000) - int32(delta)
	if got != wantDelta {
		t.Fatalf("expected reassembled delta %d (with text offset subtracted), got %d", wantDelta, got)
	}
}

func TestRelocateRiscv_JumpSlot_WritesSymValueDirectly(t *testing.T) {
	// JUMP_SLOT/PLT targets are host-resolved absolute addresses already
	// (§4.6.1): they must be written as-is, never translated through
	// ToExecAddr, on a port where that translation would otherwise change
	// the value (FixedOffsetPort/PageMappedPort).
	const delta = 0x1000
	port := NewFixedOffsetPort(0x3000, 0x200, delta, ArchRiscv32)
	allocBase, pctx, err := port.Alloc(0x200, 0)
	if err != nil {
		t.Fatalf("alloc failed: %v", err)
	}
	ctx := &LoadContext{
		port: port,
		arch: ArchRiscv32,
		Mode: ModeUnified,
		Unified: unifiedRegion{
			RAMBase: allocBase,
			VMABase: 0x1000,
			Size:    0x200,
			PortCtx: pctx,
		},
	}

	const hostPrintf = 0x08012345
	ctx.view = &ELFView{relocs: []Rela{
		{Offset: 0x1008, Type: rRiscvJumpSlot, SymValue: hostPrintf, SymbolName: "printf"},
	}}

	if err := relocateRiscv32(ctx, port); err != nil {
		t.Fatalf("relocate failed: %v", err)
	}

	v, err := readWord(port, 0x3008)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if v != hostPrintf {
		t.Fatalf("expected JUMP_SLOT to hold host address 0x%x untranslated, got 0x%x", hostPrintf, v)
	}
}

func TestRelocateRiscv_PCRelHiLoPair(t *testing.T) {
	ctx, port := newTestCtx(t, ArchRiscv32, 0x3000, 0x1000, 0x200)

	// AUIPC at 0x1000 targets data at 0x1000 + 0x2345 = 0x3345 (link-time
	// VMA space); its paired LO12_I lives at 0x1004 and references the
	// HI20 relocation's own address via SymValue.
	target := uint32(0x1000 + 0x2345)
	ctx.view = &ELFView{relocs: []Rela{
		{Offset: 0x1000, Type: rRiscvPCRelHi20, SymValue: target, Addend: 0},
		{Offset: 0x1004, Type: rRiscvPCRelLo12I, SymValue: 0x1000, Addend: 0},
	}}

	// Seed AUIPC (opcode 0x17) and an addi (I-type) at the LO12 site.
	if err := port.WriteBytes(0x3000, []byte{0x17, 0x05, 0x00, 0x00}); err != nil {
		t.Fatalf("seed AUIPC failed: %v", err)
	}
	if err := port.WriteBytes(0x3004, []byte{0x13, 0x05, 0x05, 0x00}); err != nil {
		t.Fatalf("seed addi failed: %v", err)
	}

	if err := relocateRiscv32(ctx, port); err != nil {
		t.Fatalf("relocate failed: %v", err)
	}

	hiWord, err := readWord(port, 0x3000)
	if err != nil {
		t.Fatalf("read hi word failed: %v", err)
	}
	loWord, err := readWord(port, 0x3004)
	if err != nil {
		t.Fatalf("read lo word failed: %v", err)
	}

	hi := int32(hiWord & 0xfffff000)
	lo := int32(loWord) >> 20
	got := hi + lo
	wantDelta := int32(target) - int32(0x1000) // offset of AUIPC's own VMA
	if got != wantDelta {
		t.Fatalf("expected reassembled delta %d, got %d", wantDelta, got)
	}
}
