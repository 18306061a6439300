package dynload

import "encoding/binary"

// ApplyFixups performs architecture-specific adjustments that must happen
// after the image bytes are in place but before relocation proper (§4.5).
// Xtensa has none: its PLT stubs are position-independent once relocated,
// so this is a no-op. RISC-V's PLT stub template embeds an AUIPC whose
// immediate was computed by the host toolchain against the *file's*
// load address; when the chip port's text bus views that same memory at
// a different address than the data bus (TextOffset != 0), the AUIPC
// immediate needs adjusting by the same delta before PLT entries are
// filled in by the relocator.
func ApplyFixups(ctx *LoadContext, port Port) error {
	switch ctx.arch {
	case ArchXtensa:
		return nil
	case ArchRiscv32:
		return applyRiscvPLTFixup(ctx, port)
	default:
		return newErrorf(ErrInvalidFormat, "unknown architecture for fixups")
	}
}

// applyRiscvPLTFixup patches the AUIPC in each .plt stub by the text/data
// bus delta, per §4.5. A missing .plt section is not an error: images
// with no PLT-routed calls simply have nothing to patch.
func applyRiscvPLTFixup(ctx *LoadContext, port Port) error {
	delta := textDelta(ctx)
	if delta == 0 {
		return nil
	}

	sec, ok := ctx.view.SectionByName(".plt")
	if !ok {
		warnf("no .plt section found, skipping RISC-V PLT fixup")
		return nil
	}
	if sec.Size == 0 {
		return nil
	}

	dest, err := destForVMA(ctx, sec.VMA)
	if err != nil {
		return err
	}

	raw, err := port.ReadBytes(dest, sec.Size)
	if err != nil {
		return err
	}

	// Each PLT entry is 16 bytes; the AUIPC instruction is the first word
	// of every entry (standard RISC-V PLT stub shape).
	const entrySize = 16
	for off := uint32(0); off+4 <= sec.Size; off += entrySize {
		word := binary.LittleEndian.Uint32(raw[off : off+4])
		if word&0x7f != 0x17 { // opcode for AUIPC
			continue
		}
		imm := int32(word) >> 12
		imm -= int32(delta) >> 12
		patched := (uint32(imm) << 12) | (word & 0xfff)
		binary.LittleEndian.PutUint32(raw[off:off+4], patched)
	}

	return port.WriteBytes(dest, raw)
}

// textDelta returns the data-to-instruction-bus offset in effect for
// ctx's allocation, 0 on unified-bus ports.
func textDelta(ctx *LoadContext) uint32 {
	switch ctx.Mode {
	case ModeSplit:
		if ctx.Split.TextCtx != nil {
			return ctx.Split.TextCtx.TextOffset
		}
	default:
		if ctx.Unified.PortCtx != nil {
			return ctx.Unified.PortCtx.TextOffset
		}
	}
	return 0
}

// destForVMA translates a section's VMA to its allocated destination
// address, reusing the same rule the image writer applies to segments:
// in split mode, a VMA in [text_vma_lo, text_vma_hi) routes through the
// text region, everything else through data (§4.6, §4.8).
func destForVMA(ctx *LoadContext, vma uint32) (uint32, error) {
	if ctx.Mode == ModeSplit {
		if vma >= ctx.Split.TextVMALo && vma < ctx.Split.TextVMAHi {
			return ctx.Split.TextBase + (vma - ctx.Split.TextVMALo), nil
		}
		return ctx.Split.DataBase + (vma - ctx.Split.DataVMALo), nil
	}
	return ctx.Unified.RAMBase + (vma - ctx.Unified.VMABase), nil
}
