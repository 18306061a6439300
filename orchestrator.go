package dynload

import "sync"

// PartitionReader is the seam between the loader and wherever an image's
// bytes actually live (flash partition, OTA staging buffer, a plain file
// during a host-simulated test run). It mirrors io.ReaderAt's shape but
// drops the error-on-EOF fuss that package does for partial reads: a
// short read is reported back to OpenELFView as IoShort instead (§6.1).
type PartitionReader interface {
	ReadAt(offset int64, dest []byte) (int, error)
	Size() int64
}

// PartitionResolver maps a partition label (as named in §4.9's
// `load(partition_label, caps)`) to the reader backing it, without this
// module reaching into real flash-partition APIs itself (out of scope
// per §1b). NewLoader accepts one so Load/Reload can take a label.
type PartitionResolver func(label string) (PartitionReader, error)

// Loader is the single entry point external callers use (C9, §4.9, §6).
// It owns at most one active LoadContext at a time (§5); a second Load
// while one is already Ready is rejected rather than silently replacing
// it, forcing callers through Reload/Unload explicitly.
type Loader struct {
	mu      sync.Mutex
	port    Port
	resolve PartitionResolver

	ctx             *LoadContext
	updateAvailable bool
}

// NewLoader creates a Loader bound to a single chip port for its whole
// lifetime; a chip only ever has one port, so there is no API to swap it.
// resolve may be nil if the caller only ever uses LoadFromBuffer; Load
// and Reload then return NotSupported.
func NewLoader(port Port, resolve PartitionResolver) *Loader {
	return &Loader{port: port, resolve: resolve}
}

// Load validates, lays out, allocates, writes, fixes up, relocates and
// publishes the symbol table for the image resident at partitionLabel
// (§4.9's `load(partition_label, caps)`), leaving the loader Ready on
// success. Returns InvalidState if a context is already loaded.
func (l *Loader) Load(partitionLabel string, caps uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx != nil {
		return newError(ErrInvalidState, "a load is already active; call Unload or Reload first")
	}

	reader, err := l.resolvePartition(partitionLabel)
	if err != nil {
		return err
	}

	ctx, err := l.runPipeline(reader.ReadAt, reader.Size(), caps)
	if err != nil {
		return err
	}
	l.ctx = ctx
	l.updateAvailable = false
	return nil
}

// resolvePartition looks partitionLabel up via the resolver supplied to
// NewLoader, reporting NotSupported if none was given and NotFound if the
// label is unknown to it.
func (l *Loader) resolvePartition(partitionLabel string) (PartitionReader, error) {
	if l.resolve == nil {
		return nil, newError(ErrNotSupported, "loader was not configured with a partition resolver")
	}
	reader, err := l.resolve(partitionLabel)
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, newErrorf(ErrNotFound, "partition %q not found", partitionLabel)
	}
	return reader, nil
}

// LoadFromBuffer is Load for an image already fully resident in memory,
// the common case in tests and the demo harness.
func (l *Loader) LoadFromBuffer(image []byte, caps uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx != nil {
		return newError(ErrInvalidState, "a load is already active; call Unload or Reload first")
	}

	ctx, err := l.runPipeline(sliceReader(image), int64(len(image)), caps)
	if err != nil {
		return err
	}
	l.ctx = ctx
	l.updateAvailable = false
	return nil
}

// Unload tears the active context down, freeing every region the port
// handed out. A second Unload with nothing loaded is InvalidState (§8.1).
func (l *Loader) Unload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ctx == nil {
		return newError(ErrInvalidState, "nothing loaded")
	}
	l.ctx.reset()
	l.ctx = nil
	l.updateAvailable = false
	return nil
}

// Reload unloads whatever is active, if anything, then loads the image at
// partitionLabel as a replacement (§4.9, scenario S3). If the new load
// fails, the previous context is not resurrected. A successful Reload
// clears UpdateAvailable's "an update landed since the last load" signal;
// a failed one leaves it set.
func (l *Loader) Reload(partitionLabel string, caps uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	reader, err := l.resolvePartition(partitionLabel)
	if err != nil {
		return err
	}

	if l.ctx != nil {
		l.ctx.reset()
		l.ctx = nil
	}

	ctx, err := l.runPipeline(reader.ReadAt, reader.Size(), caps)
	if err != nil {
		return err
	}
	l.ctx = ctx
	l.updateAvailable = false
	return nil
}

// MarkUpdateAvailable flags that a new image has been staged (e.g. an OTA
// write completed) without itself touching the running context, so a
// cooperative caller can finish whatever it's doing before calling Reload
// (§5 "cooperative reload", scenario S6).
func (l *Loader) MarkUpdateAvailable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updateAvailable = true
}

// UpdateAvailable reports whether MarkUpdateAvailable has fired since the
// last successful Load/LoadFromBuffer/Reload or the last Unload.
func (l *Loader) UpdateAvailable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateAvailable
}

// Symbols returns the active image's exported symbol table, or nil if
// nothing is loaded.
func (l *Loader) Symbols() *SymbolTable {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx == nil {
		return nil
	}
	return l.ctx.symtab
}

// Resolve looks up name in the active image's symbol table.
func (l *Loader) Resolve(name string) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx == nil {
		return 0, newError(ErrInvalidState, "nothing loaded")
	}
	return ResolveSymbol(l.ctx.symtab, name)
}

// runPipeline drives a fresh LoadContext through every stage (§5),
// tearing it back down to Empty on the first failure so callers never
// observe a partially-loaded state.
func (l *Loader) runPipeline(read ReadFunc, size int64, caps uint32) (*LoadContext, error) {
	view, err := OpenELFView(read, size)
	if err != nil {
		return nil, err
	}
	tracef("opened ELF view: machine=%d entry=0x%x segments=%d", view.Machine(), view.Entry(), len(view.Segments()))

	arch := view.Arch()
	if arch == ArchUnknown {
		return nil, newErrorf(ErrInvalidFormat, "unsupported e_machine %d", view.Machine())
	}
	if arch != l.port.Arch() {
		return nil, newErrorf(ErrInvalidFormat, "image built for %s, port is %s", arch, l.port.Arch())
	}

	ctx := &LoadContext{view: view, port: l.port, arch: arch, entry: view.Entry(), state: stateValidated}

	layout, err := PlanLayout(view, l.port)
	if err != nil {
		return nil, err
	}
	ctx.layout = layout
	ctx.state = stateLaidOut
	tracef("layout planned: split=%v", layout.Split)

	if err := allocate(ctx, l.port, caps); err != nil {
		ctx.reset()
		return nil, err
	}
	ctx.state = stateAllocated
	tracef("allocated: mode=%v", ctx.Mode)

	if err := WriteImage(ctx, l.port); err != nil {
		ctx.reset()
		return nil, err
	}
	ctx.state = stateLoaded
	tracef("image written")

	if err := ApplyFixups(ctx, l.port); err != nil {
		ctx.reset()
		return nil, err
	}
	ctx.state = stateFixed
	tracef("fixups applied")

	if err := Relocate(ctx, l.port); err != nil {
		ctx.reset()
		return nil, err
	}
	ctx.state = stateRelocated
	tracef("relocations applied")

	if err := SyncCache(ctx, l.port); err != nil {
		ctx.reset()
		return nil, err
	}

	symtab, err := BuildSymbolTable(ctx, l.port)
	if err != nil {
		ctx.reset()
		return nil, err
	}
	ctx.symtab = symtab
	ctx.state = stateReady
	tracef("ready: %d exported symbols", len(symtab.Names))

	return ctx, nil
}

// allocate requests memory from the port per the planned layout, filling
// in ctx.Mode and the matching region.
func allocate(ctx *LoadContext, port Port, caps uint32) error {
	if !ctx.layout.Split {
		base, pctx, err := port.Alloc(ctx.layout.RAMSize, caps)
		if err != nil {
			return err
		}
		ctx.Mode = ModeUnified
		ctx.Unified = unifiedRegion{
			RAMBase: base,
			VMABase: ctx.layout.VMAMin,
			Size:    ctx.layout.RAMSize,
			PortCtx: pctx,
		}
		return nil
	}

	textBase, dataBase, textCtx, dataCtx, err := port.AllocSplit(ctx.layout.TextSize, ctx.layout.DataSize, caps)
	if err != nil {
		return err
	}
	ctx.Mode = ModeSplit
	ctx.Split = splitRegions{
		TextBase:  textBase,
		TextVMALo: ctx.layout.TextVMALo,
		TextVMAHi: ctx.layout.TextVMAHi,
		TextSize:  ctx.layout.TextSize,
		TextCtx:   textCtx,
		DataBase:  dataBase,
		DataVMALo: ctx.layout.DataVMALo,
		DataVMAHi: ctx.layout.DataVMAHi,
		DataSize:  ctx.layout.DataSize,
		DataCtx:   dataCtx,
	}
	return nil
}
