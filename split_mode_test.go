package dynload

import "testing"

// newSplitTestCtx builds a LoadContext against a real split-alloc port
// (WordOnlyPort) with a data VMA range sitting entirely above the text VMA
// range — a legal, disjoint layout that destForVMA's missing upper bound
// used to misroute through TextBase.
func newSplitTestCtx(t *testing.T) (*LoadContext, *WordOnlyPort) {
	t.Helper()
	const (
		textVMALo, textVMAHi = 0x1000, 0x1100
		dataVMALo, dataVMAHi = 0x3000, 0x3100
	)
	port := NewWordOnlyPort(0x8000, 0x200, 0x9000, 0x200, ArchRiscv32)
	textBase, dataBase, textCtx, dataCtx, err := port.AllocSplit(textVMAHi-textVMALo, dataVMAHi-dataVMALo, 0)
	if err != nil {
		t.Fatalf("AllocSplit failed: %v", err)
	}
	ctx := &LoadContext{
		port: port,
		arch: ArchRiscv32,
		Mode: ModeSplit,
		Split: splitRegions{
			TextBase: textBase, TextVMALo: textVMALo, TextVMAHi: textVMAHi, TextSize: textVMAHi - textVMALo, TextCtx: textCtx,
			DataBase: dataBase, DataVMALo: dataVMALo, DataVMAHi: dataVMAHi, DataSize: dataVMAHi - dataVMALo, DataCtx: dataCtx,
		},
	}
	return ctx, port
}

func TestDestForVMA_SplitMode_DataAboveTextRoutesToData(t *testing.T) {
	ctx, _ := newSplitTestCtx(t)

	// 0x3050 sits inside the data range, well above TextVMAHi (0x1100):
	// the missing upper-bound check used to satisfy `vma >= TextVMALo`
	// and misroute this through TextBase.
	dest, err := destForVMA(ctx, 0x3050)
	if err != nil {
		t.Fatalf("destForVMA failed: %v", err)
	}
	want := ctx.Split.DataBase + (0x3050 - ctx.Split.DataVMALo)
	if dest != want {
		t.Fatalf("expected data-routed dest 0x%x, got 0x%x", want, dest)
	}

	textDest, err := destForVMA(ctx, 0x1050)
	if err != nil {
		t.Fatalf("destForVMA failed: %v", err)
	}
	wantText := ctx.Split.TextBase + (0x1050 - ctx.Split.TextVMALo)
	if textDest != wantText {
		t.Fatalf("expected text-routed dest 0x%x, got 0x%x", wantText, textDest)
	}
}

func TestRelocateRiscv_SplitMode_RelativeRelocInDataRegion(t *testing.T) {
	ctx, port := newSplitTestCtx(t)

	// The relocation site (r.Offset) lies in the data region, above the
	// text range: before the fix this word landed in the text arena
	// instead, via the unbounded `vma >= TextVMALo` check.
	ctx.view = &ELFView{relocs: []Rela{
		{Offset: 0x3004, Type: rRiscvRelative, Addend: 0x1000},
	}}

	if err := relocateRiscv32(ctx, port); err != nil {
		t.Fatalf("relocate failed: %v", err)
	}

	v, err := readWord(port, ctx.Split.DataBase+4)
	if err != nil {
		t.Fatalf("read at data base failed: %v", err)
	}
	wantLoadBase, err := loadBaseFor(ctx, 0x1000)
	if err != nil {
		t.Fatalf("loadBaseFor failed: %v", err)
	}
	if v != wantLoadBase {
		t.Fatalf("expected relocated value 0x%x at data-routed address, got 0x%x", wantLoadBase, v)
	}

	// The text arena must be untouched: reading the equivalent offset
	// there should not show the relocated word.
	stray, err := port.ReadBytes(ctx.Split.TextBase+4, 4)
	if err != nil {
		t.Fatalf("ReadBytes on text arena failed: %v", err)
	}
	for _, b := range stray {
		if b != 0 {
			t.Fatalf("expected text arena untouched, got %v", stray)
		}
	}
}

func TestResolveSymbol_SplitMode_DataSymbolAboveText(t *testing.T) {
	ctx, port := newSplitTestCtx(t)

	ctx.view = &ELFView{symtab: []Symbol{
		{}, // reserved null entry
		{Name: "config_table", Value: 0x3010, Type: 1 /* STT_OBJECT */},
	}}

	st, err := BuildSymbolTable(ctx, port)
	if err != nil {
		t.Fatalf("BuildSymbolTable failed: %v", err)
	}
	addr, err := ResolveSymbol(st, "config_table")
	if err != nil {
		t.Fatalf("ResolveSymbol failed: %v", err)
	}
	want := ctx.Split.DataBase + (0x3010 - ctx.Split.DataVMALo)
	if addr != want {
		t.Fatalf("expected data-routed symbol address 0x%x, got 0x%x", want, addr)
	}
}
