package dynload

// relocateXtensa applies every RELA entry for an Xtensa image (§4.6.1).
// Xtensa's fixed 24-bit instruction words and literal-pool addressing mean
// relocation here never has to split a value across an instruction's
// immediate field the way RISC-V's PC-relative pair does; every supported
// type is a plain 32-bit store.
func relocateXtensa(ctx *LoadContext, port Port) error {
	for _, r := range ctx.view.Relocations() {
		dest, err := loadBaseFor(ctx, r.Offset)
		if err != nil {
			return err
		}

		switch r.Type {
		case rXtensaNone, rXtensaRtld:
			// No-ops: NONE carries no action, RTLD entries are runtime
			// loader bookkeeping the static image format doesn't use here.
			continue

		case rXtensaSlot0Op:
			// Always skipped (§4.6.1, §9): patching the literal operand
			// embedded in a SLOT0_OP instruction would require decoding
			// the 24-bit Xtensa instruction word, and doing so would only
			// be needed if the loader relocated code in place rather than
			// preserving the original VMA layout end to end.
			continue

		case rXtensaRelative:
			v, err := loadBaseFor(ctx, uint32(r.Addend))
			if err != nil {
				return err
			}
			if err := writeWord(port, dest, v); err != nil {
				return err
			}

		case rXtensa32, rXtensaGlobDat:
			v, err := loadBaseFor(ctx, r.SymValue+uint32(r.Addend))
			if err != nil {
				return err
			}
			if err := writeWord(port, dest, v); err != nil {
				return err
			}

		case rXtensaJmpSlot:
			if r.SymValue == 0 {
				warnf("unresolved JMP_SLOT for %q, writing zero", r.SymbolName)
				if err := writeWord(port, dest, 0); err != nil {
					return err
				}
				continue
			}
			// sym_value is already the host's resolved absolute address
			// for an external PLT target (§4.6.1): write it directly,
			// never through the region/ToExecAddr translation that
			// applies to addresses still inside this image.
			v := r.SymValue + uint32(r.Addend)
			if err := writeWord(port, dest, v); err != nil {
				return err
			}

		default:
			warnf("unknown Xtensa relocation type %d at 0x%x, skipping", r.Type, r.Offset)
		}
	}
	return nil
}
