package dynload

// UnifiedPort models §4.2 variant 1: a chip whose internal RAM is directly
// executable and addressed identically from the data and instruction
// buses (e.g. a Cortex-M style unified-bus MCU). ToExecAddr is the
// identity function and allocation is a single direct region.
type UnifiedPort struct {
	arena *arena
	arch  Arch
}

// NewUnifiedPort creates a unified-bus port with size bytes of simulated
// RAM starting at base, executing images for the given architecture.
func NewUnifiedPort(base, size uint32, arch Arch) *UnifiedPort {
	return &UnifiedPort{arena: newArena(base, size), arch: arch}
}

func (p *UnifiedPort) RequiresSplitAlloc() bool      { return false }
func (p *UnifiedPort) PreferExternalRAM() bool       { return false }
func (p *UnifiedPort) AllowInternalRAMFallback() bool { return true }
func (p *UnifiedPort) Arch() Arch                    { return p.arch }

func (p *UnifiedPort) Alloc(size uint32, caps uint32) (uint32, *PortMemContext, error) {
	base, err := p.arena.alloc(size)
	if err != nil {
		return 0, nil, err
	}
	return base, &PortMemContext{TextOffset: 0}, nil
}

func (p *UnifiedPort) AllocSplit(textSize, dataSize uint32, caps uint32) (uint32, uint32, *PortMemContext, *PortMemContext, error) {
	return 0, 0, nil, nil, newError(ErrInvalidState, "unified port does not support split allocation")
}

func (p *UnifiedPort) Free(base uint32, ctx *PortMemContext) {
	p.arena.free()
}

func (p *UnifiedPort) ToExecAddr(ctx *PortMemContext, dataAddr uint32) uint32 {
	return dataAddr
}

func (p *UnifiedPort) SyncCache(base, size uint32) error {
	return nil
}

func (p *UnifiedPort) WriteBytes(addr uint32, data []byte) error {
	return p.arena.writeBytes(addr, data)
}

func (p *UnifiedPort) ReadBytes(addr uint32, n uint32) ([]byte, error) {
	return p.arena.readBytes(addr, n)
}
