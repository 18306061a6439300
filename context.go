package dynload

// AllocMode records whether a LoadContext's memory lives in one unified
// region or split text/data regions, mirroring the Layout that produced it.
type AllocMode int

const (
	ModeUnified AllocMode = iota
	ModeSplit
)

// loadState is the per-context progression the orchestrator drives a
// LoadContext through (§5): Empty -> Validated -> LaidOut -> Allocated ->
// Loaded -> Fixed -> Relocated -> Ready. Any stage failure tears the
// context back down to Empty; there is no partially-loaded state a caller
// can observe.
type loadState int

const (
	stateEmpty loadState = iota
	stateValidated
	stateLaidOut
	stateAllocated
	stateLoaded
	stateFixed
	stateRelocated
	stateReady
)

func (s loadState) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateValidated:
		return "validated"
	case stateLaidOut:
		return "laid-out"
	case stateAllocated:
		return "allocated"
	case stateLoaded:
		return "loaded"
	case stateFixed:
		return "fixed"
	case stateRelocated:
		return "relocated"
	case stateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// unifiedRegion describes the single allocated region backing a
// ModeUnified LoadContext.
type unifiedRegion struct {
	RAMBase uint32
	VMABase uint32
	Size    uint32
	PortCtx *PortMemContext
}

// splitRegions describes the two allocated regions backing a ModeSplit
// LoadContext.
type splitRegions struct {
	TextBase  uint32
	TextVMALo uint32
	TextVMAHi uint32
	TextSize  uint32
	TextCtx   *PortMemContext

	DataBase  uint32
	DataVMALo uint32
	DataVMAHi uint32
	DataSize  uint32
	DataCtx   *PortMemContext
}

// LoadContext is the per-load working state the orchestrator (C9) drives
// through the pipeline (§3.1, §5). Exactly one LoadContext is ever active
// at a time; a second concurrent Load call is rejected with InvalidState.
type LoadContext struct {
	state loadState

	view   *ELFView
	port   Port
	arch   Arch
	layout Layout
	Mode   AllocMode

	Unified unifiedRegion
	Split   splitRegions

	symtab *SymbolTable

	// entry is the unadjusted e_entry VMA; callers needing a runnable
	// address should resolve the entry symbol instead, since the
	// orchestrator never invents one itself (§9 open question).
	entry uint32
}

// reset drives ctx back to Empty, releasing any memory the port handed
// out along the way (§5's "any stage failure tears the context back down
// to Empty").
func (ctx *LoadContext) reset() {
	if ctx.port != nil {
		switch ctx.Mode {
		case ModeUnified:
			if ctx.Unified.PortCtx != nil || ctx.Unified.RAMBase != 0 {
				ctx.port.Free(ctx.Unified.RAMBase, ctx.Unified.PortCtx)
			}
		case ModeSplit:
			if ctx.Split.TextCtx != nil || ctx.Split.TextBase != 0 {
				ctx.port.Free(ctx.Split.TextBase, ctx.Split.TextCtx)
			}
			if ctx.Split.DataCtx != nil || ctx.Split.DataBase != 0 {
				ctx.port.Free(ctx.Split.DataBase, ctx.Split.DataCtx)
			}
		}
	}
	*ctx = LoadContext{}
}
