package dynload

// PortMemContext carries everything the relocator and resolver need to
// translate between a VMA and the memory a chip port actually allocated
// for it (§3.2).
type PortMemContext struct {
	MMUOff   int
	MMUCount int

	// TextOffset is the constant added to a data-bus address to obtain the
	// matching instruction-bus address; 0 on unified-bus chips.
	TextOffset uint32

	// Split-allocation bookkeeping recorded by split-allocating ports
	// (WordOnlyPort sets TextLoadBase/DataLoadBase/SplitAlloc and uses
	// TextLoadBase in Free). The relocator's region lookup (loadBaseFor)
	// reads the LoadContext's splitRegions, not these fields.
	TextLoadBase uint32
	TextVMALo    uint32
	TextVMAHi    uint32
	DataLoadBase uint32
	DataVMALo    uint32
	DataVMAHi    uint32
	SplitAlloc   bool
}

// Port is the chip-porting layer's contract (§4.2, §6.2). The relocator
// and resolver never branch on chip identity; they branch only on the
// capabilities a Port reports and on the Arch the image was built for.
type Port interface {
	// Capabilities (pure).
	RequiresSplitAlloc() bool
	PreferExternalRAM() bool
	AllowInternalRAMFallback() bool

	// Operations (effectful).
	Alloc(size uint32, caps uint32) (base uint32, ctx *PortMemContext, err error)
	AllocSplit(textSize, dataSize uint32, caps uint32) (textBase, dataBase uint32, textCtx, dataCtx *PortMemContext, err error)
	Free(base uint32, ctx *PortMemContext)
	ToExecAddr(ctx *PortMemContext, dataAddr uint32) uint32
	SyncCache(base, size uint32) error

	// WriteBytes and ReadBytes give the image writer (C4) and relocator
	// (C6) access to the memory behind a base address returned by Alloc.
	// On the real firmware, "destination" in §4.4 is just a raw pointer
	// derived from Alloc's return value and writes are plain stores; a
	// portable Go implementation has no equivalent of deref'ing an
	// arbitrary integer as a pointer without `unsafe`, so the port
	// contract is extended with these two memory-access primitives beyond
	// §4.2's four effectful operations. Every Port implementation below
	// backs them with real memory it owns.
	WriteBytes(addr uint32, data []byte) error
	ReadBytes(addr uint32, n uint32) ([]byte, error)

	// Arch reports the instruction-set architecture this port's chip
	// executes, used by the orchestrator to pick the relocator/fixup
	// implementation pairing (§9 "Polymorphic dispatch without
	// inheritance").
	Arch() Arch
}

// WordAlignedExec is implemented by ports whose executable memory only
// supports word-aligned stores (§4.2 variant 4), so the image writer
// (§4.4 "Word-aligned I/O") knows to synthesize 32-bit writes.
type WordAlignedExec interface {
	WordAlignedOnly() bool
}

func wordAlignedOnly(p Port) bool {
	wa, ok := p.(WordAlignedExec)
	return ok && wa.WordAlignedOnly()
}
