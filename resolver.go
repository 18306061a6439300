package dynload

// SymbolTable is the exported-symbol view host firmware consults to call
// into a loaded image (C8, §3.2, §6.3). Slots and Names are parallel for
// callers that want to enumerate every export; index backs the name->slot
// lookup the stub trampoline mechanism uses at call time.
type SymbolTable struct {
	Names []string
	Slots []uint32
	index *symbolIndex
}

// BuildSymbolTable scans the image's symbol table for every named symbol
// with a non-zero value, whatever its binding, and resolves each to its
// final runtime address (C8, §4.8). Function symbols are routed through ToExecAddr so
// a caller dereferencing Slots[i] gets an address its own instruction
// fetch path can execute; data symbols are left as plain data addresses.
func BuildSymbolTable(ctx *LoadContext, port Port) (*SymbolTable, error) {
	symbols := ctx.view.Symbols()
	st := &SymbolTable{index: newSymbolIndex(len(symbols))}

	for _, sym := range symbols {
		if sym.Name == "" || sym.Value == 0 {
			continue
		}
		if _, exists := st.index.Get(sym.Name); exists {
			// First definition wins (§4.8): later duplicate names in the
			// same symbol table are shadowed, matching how a single
			// exported name can only route to one trampoline slot.
			continue
		}

		addr, err := loadBaseFor(ctx, sym.Value)
		if err != nil {
			return nil, err
		}
		if sym.IsFunc() {
			addr = execValue(ctx, addr)
		}

		st.Names = append(st.Names, sym.Name)
		st.Slots = append(st.Slots, addr)
		st.index.Set(sym.Name, addr)
	}

	return st, nil
}

// ResolveSymbol looks up name in st, returning NotFound if it isn't an
// exported symbol of the loaded image.
func ResolveSymbol(st *SymbolTable, name string) (uint32, error) {
	if addr, ok := st.index.Get(name); ok {
		return addr, nil
	}
	return 0, newErrorf(ErrNotFound, "symbol %q not exported by loaded image", name)
}
