//go:build windows
// +build windows

package dynload

import "sync"

// HostSimPort on Windows falls back to a plain Go byte slice instead of
// mmap/mprotect (golang.org/x/sys/windows has no POSIX-shaped
// mmap/mprotect pair); W^X is therefore not actually enforced by the OS
// here, only modelled by the in-use bookkeeping below. Behaviourally this
// matches the Unix build for every other purpose the loader pipeline
// relies on.
type HostSimPort struct {
	mu    sync.Mutex
	mem   []byte
	base  uint32
	inUse bool
	arch  Arch
}

func NewHostSimPort(base, size uint32, arch Arch) (*HostSimPort, error) {
	return &HostSimPort{mem: make([]byte, size), base: base, arch: arch}, nil
}

func (p *HostSimPort) RequiresSplitAlloc() bool       { return false }
func (p *HostSimPort) PreferExternalRAM() bool        { return false }
func (p *HostSimPort) AllowInternalRAMFallback() bool { return true }
func (p *HostSimPort) Arch() Arch                     { return p.arch }

func (p *HostSimPort) Alloc(size uint32, caps uint32) (uint32, *PortMemContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse {
		return 0, nil, newError(ErrNoMem, "host-sim arena already in use")
	}
	if size > uint32(len(p.mem)) {
		return 0, nil, newErrorf(ErrNoMem, "host-sim mapping too small: need %d, have %d", size, len(p.mem))
	}
	p.inUse = true
	return p.base, &PortMemContext{TextOffset: 0}, nil
}

func (p *HostSimPort) AllocSplit(textSize, dataSize uint32, caps uint32) (uint32, uint32, *PortMemContext, *PortMemContext, error) {
	return 0, 0, nil, nil, newError(ErrInvalidState, "host-sim unified port does not support split allocation")
}

func (p *HostSimPort) Free(base uint32, ctx *PortMemContext) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.mem {
		p.mem[i] = 0
	}
	p.inUse = false
}

func (p *HostSimPort) ToExecAddr(ctx *PortMemContext, dataAddr uint32) uint32 { return dataAddr }

func (p *HostSimPort) SyncCache(base, size uint32) error { return errCacheSyncUnsupported }

func (p *HostSimPort) FinalizeExec(base uint32) error { return nil }

func (p *HostSimPort) offset(addr uint32) (int64, error) {
	off := int64(addr) - int64(p.base)
	if off < 0 || off > int64(len(p.mem)) {
		return 0, newErrorf(ErrInvalidArg, "address 0x%x outside host-sim mapping", addr)
	}
	return off, nil
}

func (p *HostSimPort) WriteBytes(addr uint32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	off, err := p.offset(addr)
	if err != nil {
		return err
	}
	if off+int64(len(data)) > int64(len(p.mem)) {
		return newErrorf(ErrInvalidArg, "write out of host-sim bounds at 0x%x", addr)
	}
	copy(p.mem[off:], data)
	return nil
}

func (p *HostSimPort) ReadBytes(addr uint32, n uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	off, err := p.offset(addr)
	if err != nil {
		return nil, err
	}
	if off+int64(n) > int64(len(p.mem)) {
		return nil, newErrorf(ErrInvalidArg, "read out of host-sim bounds at 0x%x", addr)
	}
	out := make([]byte, n)
	copy(out, p.mem[off:off+int64(n)])
	return out, nil
}

func (p *HostSimPort) Close() error { return nil }
