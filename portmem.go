package dynload

import "sync"

// arena is a simple bump allocator over a fixed-size, fixed-base byte
// buffer that backs every simulated Port variant below. It models the
// real firmware's single-outstanding-allocation-per-region behaviour: the
// orchestrator holds at most one live LoadContext at a time (§5), so each
// arena only ever needs to track whether its one region is currently in
// use, not a general free list. This keeps repeated load/unload cycles
// (§8.1 invariant 6) from leaking simulated address space.
type arena struct {
	mu    sync.Mutex
	base  uint32
	mem   []byte
	inUse bool
}

func newArena(base uint32, size uint32) *arena {
	return &arena{base: base, mem: make([]byte, size)}
}

func (a *arena) alloc(size uint32) (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inUse {
		return 0, newError(ErrNoMem, "simulated arena already in use")
	}
	aligned := (size + 3) &^ 3
	if aligned > uint32(len(a.mem)) {
		return 0, newErrorf(ErrNoMem, "simulated arena too small: need %d, have %d", aligned, len(a.mem))
	}
	a.inUse = true
	return a.base, nil
}

func (a *arena) free() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inUse = false
	for i := range a.mem {
		a.mem[i] = 0
	}
}

func (a *arena) writeBytes(addr uint32, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	off := int64(addr) - int64(a.base)
	if off < 0 || off+int64(len(data)) > int64(len(a.mem)) {
		return newErrorf(ErrInvalidArg, "write out of arena bounds at 0x%x", addr)
	}
	copy(a.mem[off:], data)
	return nil
}

func (a *arena) readBytes(addr uint32, n uint32) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	off := int64(addr) - int64(a.base)
	if off < 0 || off+int64(n) > int64(len(a.mem)) {
		return nil, newErrorf(ErrInvalidArg, "read out of arena bounds at 0x%x", addr)
	}
	out := make([]byte, n)
	copy(out, a.mem[off:off+int64(n)])
	return out, nil
}

// errCacheSyncUnsupported is returned by ports whose chip has no explicit
// cache-maintenance primitive for the instruction-fetch path. C7 (cache
// sync) treats it as success provided the port falls back to a memory
// barrier internally, per §4.7/§4.2's sync_cache contract.
var errCacheSyncUnsupported = newError(ErrInvalidState, "cache sync unsupported, barrier only")
