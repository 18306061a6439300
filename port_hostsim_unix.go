//go:build linux || darwin
// +build linux darwin

package dynload

import (
	"sync"

	"golang.org/x/sys/unix"
)

// HostSimPort backs the loader with real, W^X-respecting memory obtained
// from the host OS via mmap/mprotect, standing in for §4.2 variant 1 (a
// unified-bus chip whose RAM is directly executable) on a development
// machine. It exists so the full pipeline — allocate, write, fix up,
// relocate, sync cache, resolve, call — is exercisable end to end without
// real MCU hardware (§8.4 scenarios S1-S6).
type HostSimPort struct {
	mu      sync.Mutex
	mapping []byte
	base    uint32
	inUse   bool
	arch    Arch
}

// NewHostSimPort reserves size bytes of anonymous, initially read-write
// memory. base is a synthetic address used only to key the arena-style
// bookkeeping the rest of the pipeline expects; it is not the real mmap
// pointer (real pointers don't fit a uint32 "MCU address" on a 64-bit
// host), so HostSimPort translates between the two internally.
func NewHostSimPort(base, size uint32, arch Arch) (*HostSimPort, error) {
	mapping, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, newErrorf(ErrNoMem, "mmap failed: %v", err)
	}
	return &HostSimPort{mapping: mapping, base: base, arch: arch}, nil
}

func (p *HostSimPort) RequiresSplitAlloc() bool      { return false }
func (p *HostSimPort) PreferExternalRAM() bool       { return false }
func (p *HostSimPort) AllowInternalRAMFallback() bool { return true }
func (p *HostSimPort) Arch() Arch                    { return p.arch }

func (p *HostSimPort) Alloc(size uint32, caps uint32) (uint32, *PortMemContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse {
		return 0, nil, newError(ErrNoMem, "host-sim arena already in use")
	}
	if size > uint32(len(p.mapping)) {
		return 0, nil, newErrorf(ErrNoMem, "host-sim mapping too small: need %d, have %d", size, len(p.mapping))
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
	unix.Mprotect(p.mapping, unix.PROT_READ|unix.PROT_WRITE)
	for i := range p.mapping {
		p.mapping[i] = 0
	}
	p.inUse = false
}

func (p *HostSimPort) ToExecAddr(ctx *PortMemContext, dataAddr uint32) uint32 {
	return dataAddr
}

// SyncCache is a no-op: host CPUs this module targets for simulation are
// cache-coherent between data and instruction fetch once the mprotect
// barrier below has executed, so there is no separate flush primitive to
// call.
func (p *HostSimPort) SyncCache(base, size uint32) error {
	return errCacheSyncUnsupported
}

// FinalizeExec flips the mapping from read-write to read-execute, the W^X
// transition real firmware performs implicitly by allocating
// execute-capable memory up front; doing it explicitly here means a bug
// that writes to the image after relocation faults immediately instead of
// silently succeeding.
func (p *HostSimPort) FinalizeExec(base uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := unix.Mprotect(p.mapping, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return newErrorf(ErrNoMem, "mprotect RX failed: %v", err)
	}
	return nil
}

func (p *HostSimPort) offset(addr uint32) (int64, error) {
	off := int64(addr) - int64(p.base)
	if off < 0 || off > int64(len(p.mapping)) {
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
	if off+int64(len(data)) > int64(len(p.mapping)) {
		return newErrorf(ErrInvalidArg, "write out of host-sim bounds at 0x%x", addr)
	}
	copy(p.mapping[off:], data)
	return nil
}

func (p *HostSimPort) ReadBytes(addr uint32, n uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	off, err := p.offset(addr)
	if err != nil {
		return nil, err
	}
	if off+int64(n) > int64(len(p.mapping)) {
		return nil, newErrorf(ErrInvalidArg, "read out of host-sim bounds at 0x%x", addr)
	}
	out := make([]byte, n)
	copy(out, p.mapping[off:off+int64(n)])
	return out, nil
}

// Close releases the mmap'd region entirely; unlike Free, it is not meant
// to be reused for a subsequent load.
func (p *HostSimPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return unix.Munmap(p.mapping)
}
