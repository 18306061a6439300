package dynload

// Layout is the output of the layout planner (C3, §4.3): the VMA ranges
// and sizes the image writer and allocator need, already split into
// unified vs text/data depending on what the chip port requires.
type Layout struct {
	Split bool

	// Unified fields, valid when !Split.
	VMAMin, VMAMax uint32
	RAMSize        uint32

	// Split fields, valid when Split.
	TextVMALo, TextVMAHi, TextSize uint32
	DataVMALo, DataVMAHi, DataSize uint32
}

// PlanLayout walks PT_LOAD segments (§4.3). Segments, not sections, are
// authoritative for what must be in memory at runtime: this keeps ALLOC
// sections with addr != 0 but no containing PT_LOAD (§9's open question)
// informational only, never consulted here.
func PlanLayout(view *ELFView, port Port) (Layout, error) {
	var (
		haveAny                        bool
		vmaMin, vmaMax                 uint32
		haveText, haveData             bool
		textLo, textHi, dataLo, dataHi uint32
	)

	for _, seg := range view.Segments() {
		if !seg.IsLoadable() {
			continue
		}
		lo := seg.VMA
		hi := seg.VMA + seg.MemSz

		if !haveAny {
			vmaMin, vmaMax = lo, hi
		} else {
			if lo < vmaMin {
				vmaMin = lo
			}
			if hi > vmaMax {
				vmaMax = hi
			}
		}
		haveAny = true

		if seg.IsText() {
			if !haveText {
				textLo, textHi = lo, hi
				haveText = true
			} else {
				if lo < textLo {
					textLo = lo
				}
				if hi > textHi {
					textHi = hi
				}
			}
		} else {
			if !haveData {
				dataLo, dataHi = lo, hi
				haveData = true
			} else {
				if lo < dataLo {
					dataLo = lo
				}
				if hi > dataHi {
					dataHi = hi
				}
			}
		}
	}

	if !haveAny {
		return Layout{}, newError(ErrNotFound, "no loadable content")
	}

	if !port.RequiresSplitAlloc() {
		return Layout{
			Split:   false,
			VMAMin:  vmaMin,
			VMAMax:  vmaMax,
			RAMSize: vmaMax - vmaMin,
		}, nil
	}

	l := Layout{Split: true}
	if haveText {
		l.TextVMALo, l.TextVMAHi = textLo, textHi
		l.TextSize = textHi - textLo
	}
	if haveData {
		l.DataVMALo, l.DataVMAHi = dataLo, dataHi
		l.DataSize = dataHi - dataLo
	}
	return l, nil
}
