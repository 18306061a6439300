package dynload

// FixedOffsetPort models §4.2 variant 2: a chip whose instruction and data
// buses view the same physical RAM through a constant address offset
// (e.g. a RISC-V MCU executing from a region also reachable on the data
// bus at dataAddr + delta). Allocation is still a single unified region;
// only ToExecAddr differs from UnifiedPort.
type FixedOffsetPort struct {
	arena *arena
	delta uint32
	arch  Arch
}

// NewFixedOffsetPort creates a fixed-offset port. delta is added to a
// data-bus address to obtain the matching instruction-bus address.
func NewFixedOffsetPort(base, size, delta uint32, arch Arch) *FixedOffsetPort {
	return &FixedOffsetPort{arena: newArena(base, size), delta: delta, arch: arch}
}

func (p *FixedOffsetPort) RequiresSplitAlloc() bool      { return false }
func (p *FixedOffsetPort) PreferExternalRAM() bool       { return false }
func (p *FixedOffsetPort) AllowInternalRAMFallback() bool { return true }
func (p *FixedOffsetPort) Arch() Arch                    { return p.arch }

func (p *FixedOffsetPort) Alloc(size uint32, caps uint32) (uint32, *PortMemContext, error) {
	base, err := p.arena.alloc(size)
	if err != nil {
		return 0, nil, err
	}
	return base, &PortMemContext{TextOffset: p.delta}, nil
}

func (p *FixedOffsetPort) AllocSplit(textSize, dataSize uint32, caps uint32) (uint32, uint32, *PortMemContext, *PortMemContext, error) {
	return 0, 0, nil, nil, newError(ErrInvalidState, "fixed-offset port does not support split allocation")
}

func (p *FixedOffsetPort) Free(base uint32, ctx *PortMemContext) {
	p.arena.free()
}

func (p *FixedOffsetPort) ToExecAddr(ctx *PortMemContext, dataAddr uint32) uint32 {
	if ctx == nil {
		return dataAddr + p.delta
	}
	return dataAddr + ctx.TextOffset
}

func (p *FixedOffsetPort) SyncCache(base, size uint32) error {
	return nil
}

func (p *FixedOffsetPort) WriteBytes(addr uint32, data []byte) error {
	return p.arena.writeBytes(addr, data)
}

func (p *FixedOffsetPort) ReadBytes(addr uint32, n uint32) ([]byte, error) {
	return p.arena.readBytes(addr, n)
}
