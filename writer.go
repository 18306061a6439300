package dynload

// WriteImage copies PT_LOAD segment bytes from the ELF image into the
// allocated regions and zero-fills the memsz-filesz BSS tail (§4.4).
// Destination addresses are computed per the three cases in §4.4, reusing
// ctx's already-computed layout and allocation.
func WriteImage(ctx *LoadContext, port Port) error {
	wordOnly := wordAlignedOnly(port)

	for _, seg := range ctx.view.Segments() {
		if !seg.IsLoadable() {
			continue
		}

		dest, err := destFor(ctx, seg)
		if err != nil {
			return err
		}

		if seg.FileSz > 0 {
			src, err := ctx.view.ReadAt(seg.Offset, seg.FileSz)
			if err != nil {
				return err
			}
			if wordOnly {
				if err := writeWordAligned(port, dest, src); err != nil {
					return err
				}
			} else if err := port.WriteBytes(dest, src); err != nil {
				return err
			}
		}

		if seg.MemSz > seg.FileSz {
			if wordOnly {
				// writeWordAligned already zero-extended any partial final
				// word of file data out to the next word boundary; only
				// the remaining, already word-aligned portion of the BSS
				// tail still needs zeroing.
				aligned := (seg.FileSz + 3) &^ 3
				if aligned > seg.MemSz {
					aligned = seg.MemSz
				}
				if aligned < seg.MemSz {
					if err := writeWordAlignedZero(port, dest+aligned, seg.MemSz-aligned); err != nil {
						return err
					}
				}
				continue
			}
			tail := seg.MemSz - seg.FileSz
			if err := port.WriteBytes(dest+seg.FileSz, make([]byte, tail)); err != nil {
				return err
			}
		}
	}
	return nil
}

// destFor computes the destination address for a PT_LOAD segment,
// per §4.4's three cases.
func destFor(ctx *LoadContext, seg Segment) (uint32, error) {
	if ctx.Mode == ModeSplit {
		if seg.IsText() {
			return ctx.Split.TextBase + (seg.VMA - ctx.Split.TextVMALo), nil
		}
		return ctx.Split.DataBase + (seg.VMA - ctx.Split.DataVMALo), nil
	}
	return ctx.Unified.RAMBase + (seg.VMA - ctx.Unified.VMABase), nil
}

// writeWordAligned synthesizes byte-loop source data into 32-bit-aligned
// destination stores (§4.4 "Word-aligned I/O"), for ports whose
// executable memory cannot accept byte stores. When len(src) isn't a
// multiple of 4, the final word is zero-extended so the store itself
// stays aligned; the caller is responsible for continuing any BSS
// zero-fill from that same word boundary onward.
func writeWordAligned(port Port, dest uint32, src []byte) error {
	full := len(src) / 4
	for i := 0; i < full; i++ {
		word := src[i*4 : i*4+4]
		if err := port.WriteBytes(dest+uint32(i*4), word); err != nil {
			return err
		}
	}
	rem := len(src) - full*4
	if rem == 0 {
		return nil
	}
	word := make([]byte, 4)
	copy(word, src[full*4:])
	return port.WriteBytes(dest+uint32(full*4), word)
}

// writeWordAlignedZero zero-fills n bytes at dest using only word-sized
// stores, as writeWordAligned does for segment data.
func writeWordAlignedZero(port Port, dest uint32, n uint32) error {
	full := n / 4
	zero := make([]byte, 4)
	for i := uint32(0); i < full; i++ {
		if err := port.WriteBytes(dest+i*4, zero); err != nil {
			return err
		}
	}
	rem := n - full*4
	if rem == 0 {
		return nil
	}
	return port.WriteBytes(dest+full*4, zero)
}
