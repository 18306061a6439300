package dynload

// WordOnlyPort models §4.2 variant 4: executable memory that only
// supports word-aligned 32-bit stores, so text must live in its own
// region separate from byte-addressable data. RequiresSplitAlloc is true;
// no address translation is needed since both regions share one bus view.
type WordOnlyPort struct {
	text *arena
	data *arena
	arch Arch
}

// NewWordOnlyPort creates a word-only-exec port with textSize bytes of
// word-aligned-only executable memory at textBase and dataSize bytes of
// byte-addressable data memory at dataBase.
func NewWordOnlyPort(textBase, textSize, dataBase, dataSize uint32, arch Arch) *WordOnlyPort {
	return &WordOnlyPort{
		text: newArena(textBase, textSize),
		data: newArena(dataBase, dataSize),
		arch: arch,
	}
}

func (p *WordOnlyPort) RequiresSplitAlloc() bool      { return true }
func (p *WordOnlyPort) PreferExternalRAM() bool       { return false }
func (p *WordOnlyPort) AllowInternalRAMFallback() bool { return false }
func (p *WordOnlyPort) Arch() Arch                    { return p.arch }
func (p *WordOnlyPort) WordAlignedOnly() bool          { return true }

func (p *WordOnlyPort) Alloc(size uint32, caps uint32) (uint32, *PortMemContext, error) {
	return 0, nil, newError(ErrInvalidState, "word-only port requires split allocation")
}

func (p *WordOnlyPort) AllocSplit(textSize, dataSize uint32, caps uint32) (uint32, uint32, *PortMemContext, *PortMemContext, error) {
	textBase, err := p.text.alloc(textSize)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	dataBase, err := p.data.alloc(dataSize)
	if err != nil {
		p.text.free()
		return 0, 0, nil, nil, err
	}
	textCtx := &PortMemContext{SplitAlloc: true, TextLoadBase: textBase}
	dataCtx := &PortMemContext{SplitAlloc: true, DataLoadBase: dataBase}
	return textBase, dataBase, textCtx, dataCtx, nil
}

func (p *WordOnlyPort) Free(base uint32, ctx *PortMemContext) {
	if ctx == nil {
		return
	}
	if ctx.TextLoadBase == base {
		p.text.free()
	} else {
		p.data.free()
	}
}

func (p *WordOnlyPort) ToExecAddr(ctx *PortMemContext, dataAddr uint32) uint32 {
	return dataAddr
}

func (p *WordOnlyPort) SyncCache(base, size uint32) error {
	return nil
}

func (p *WordOnlyPort) WriteBytes(addr uint32, data []byte) error {
	if err := p.text.writeBytes(addr, data); err == nil {
		return nil
	}
	return p.data.writeBytes(addr, data)
}

func (p *WordOnlyPort) ReadBytes(addr uint32, n uint32) ([]byte, error) {
	if b, err := p.text.readBytes(addr, n); err == nil {
		return b, nil
	}
	return p.data.readBytes(addr, n)
}
