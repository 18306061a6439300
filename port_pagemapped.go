package dynload

// mmuPageSize is the page size the simulated MMU mapping table operates
// on; a real chip's value depends on its MMU (e.g. 64KB on some Xtensa
// parts), kept as a named constant here rather than a magic number.
const mmuPageSize = 0x10000

// PageMappedPort models §4.2 variant 3: external RAM holding code is only
// reachable on the instruction bus through page-table entries the port
// must claim at alloc time and release at free time. The simulated MMU
// table here is a fixed-size slot array; claiming N consecutive free
// entries and computing the resulting instruction-bus offset mirrors the
// real port's behaviour without modelling actual page-table hardware.
type PageMappedPort struct {
	dataArena *arena
	mmuSlots  []bool
	instrBase uint32 // base VMA of the instruction-bus window
	arch      Arch
}

// NewPageMappedPort creates a page-mapped port. dataBase/size describe the
// data-bus-addressable external RAM; instrBase is the start of the
// instruction-bus window the MMU table maps pages into; mmuTableEntries is
// the number of page slots available for claiming.
func NewPageMappedPort(dataBase, size, instrBase uint32, mmuTableEntries int, arch Arch) *PageMappedPort {
	return &PageMappedPort{
		dataArena: newArena(dataBase, size),
		mmuSlots:  make([]bool, mmuTableEntries),
		instrBase: instrBase,
		arch:      arch,
	}
}

func (p *PageMappedPort) RequiresSplitAlloc() bool      { return false }
func (p *PageMappedPort) PreferExternalRAM() bool       { return true }
func (p *PageMappedPort) AllowInternalRAMFallback() bool { return false }
func (p *PageMappedPort) Arch() Arch                    { return p.arch }

func (p *PageMappedPort) claimPages(n int) (int, error) {
	for start := 0; start+n <= len(p.mmuSlots); start++ {
		free := true
		for i := start; i < start+n; i++ {
			if p.mmuSlots[i] {
				free = false
				break
			}
		}
		if free {
			for i := start; i < start+n; i++ {
				p.mmuSlots[i] = true
			}
			return start, nil
		}
	}
	return 0, newError(ErrNoMem, "no consecutive free MMU entries")
}

func (p *PageMappedPort) releasePages(off, n int) {
	for i := off; i < off+n && i < len(p.mmuSlots); i++ {
		p.mmuSlots[i] = false
	}
}

func (p *PageMappedPort) Alloc(size uint32, caps uint32) (uint32, *PortMemContext, error) {
	base, err := p.dataArena.alloc(size)
	if err != nil {
		return 0, nil, err
	}
	pages := (int(size) + mmuPageSize - 1) / mmuPageSize
	if pages == 0 {
		pages = 1
	}
	tableIdx, err := p.claimPages(pages)
	if err != nil {
		p.dataArena.free()
		return 0, nil, err
	}
	instrWindowStart := p.instrBase + uint32(tableIdx)*mmuPageSize
	offset := instrWindowStart - base
	return base, &PortMemContext{
		MMUOff:     tableIdx,
		MMUCount:   pages,
		TextOffset: offset,
	}, nil
}

func (p *PageMappedPort) AllocSplit(textSize, dataSize uint32, caps uint32) (uint32, uint32, *PortMemContext, *PortMemContext, error) {
	return 0, 0, nil, nil, newError(ErrInvalidState, "page-mapped port does not support split allocation")
}

func (p *PageMappedPort) Free(base uint32, ctx *PortMemContext) {
	if ctx != nil {
		p.releasePages(ctx.MMUOff, ctx.MMUCount)
	}
	p.dataArena.free()
}

func (p *PageMappedPort) ToExecAddr(ctx *PortMemContext, dataAddr uint32) uint32 {
	if ctx == nil {
		return dataAddr
	}
	return dataAddr + ctx.TextOffset
}

func (p *PageMappedPort) SyncCache(base, size uint32) error {
	return nil
}

func (p *PageMappedPort) WriteBytes(addr uint32, data []byte) error {
	return p.dataArena.writeBytes(addr, data)
}

func (p *PageMappedPort) ReadBytes(addr uint32, n uint32) ([]byte, error) {
	return p.dataArena.readBytes(addr, n)
}
