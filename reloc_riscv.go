package dynload

// riscvPairTableSize bounds the PC-relative HI20/LO12 pair table (§9 open
// question: "how big a pair table is enough"). A single compilation unit's
// worth of outstanding AUIPC/addi pairs rarely exceeds a handful at once;
// 32 is generous headroom without an unbounded allocation per load.
const riscvPairTableSize = 32

// riscvPairTable records the low-12-bits complement computed by a
// PCREL_HI20 relocation, keyed by the VMA of the AUIPC instruction it
// patched, for a later PCREL_LO12_I/_S relocation in the same image to
// retrieve (§4.6.2). It is scoped to one relocation pass and discarded
// afterward.
type riscvPairTable struct {
	vma []uint32
	lo  []int32
	n   int
}

func (t *riscvPairTable) put(vma uint32, lo int32) {
	if t.n < len(t.vma) {
		t.vma[t.n] = vma
		t.lo[t.n] = lo
		t.n++
		return
	}
	// Table exhausted: overwrite the oldest entry rather than dropping the
	// new one, since a LO12 relocation almost always immediately follows
	// its HI20 pair in emission order.
	copy(t.vma, t.vma[1:])
	copy(t.lo, t.lo[1:])
	t.vma[len(t.vma)-1] = vma
	t.lo[len(t.lo)-1] = lo
}

func (t *riscvPairTable) lookup(vma uint32) (int32, bool) {
	for i := 0; i < t.n; i++ {
		if t.vma[i] == vma {
			return t.lo[i], true
		}
	}
	return 0, false
}

// relocateRiscv32 applies every RELA entry for a RISC-V image (§4.6.2).
func relocateRiscv32(ctx *LoadContext, port Port) error {
	pairs := &riscvPairTable{vma: make([]uint32, riscvPairTableSize), lo: make([]int32, riscvPairTableSize)}

	for _, r := range ctx.view.Relocations() {
		dest, err := loadBaseFor(ctx, r.Offset)
		if err != nil {
			return err
		}

		switch r.Type {
		case rRiscvNone:
			continue

		case rRiscvRelative:
			v, err := loadBaseFor(ctx, uint32(r.Addend))
			if err != nil {
				return err
			}
			if err := writeWord(port, dest, v); err != nil {
				return err
			}

		case rRiscv32:
			v, err := loadBaseFor(ctx, r.SymValue+uint32(r.Addend))
			if err != nil {
				return err
			}
			if err := writeWord(port, dest, v); err != nil {
				return err
			}

		case rRiscvJumpSlot:
			if r.SymValue == 0 {
				warnf("unresolved JUMP_SLOT for %q, writing zero", r.SymbolName)
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

		case rRiscvPCRelHi20:
			target := r.SymValue + uint32(r.Addend)
			delta := int32(target-r.Offset) - int32(textDelta(ctx))
			hi, lo := splitHiLo(delta)
			if err := patchU(port, dest, hi); err != nil {
				return err
			}
			pairs.put(r.Offset, lo)

		case rRiscvPCRelLo12I:
			lo, ok := pairs.lookup(r.SymValue)
			if !ok {
				warnf("PCREL_LO12_I at 0x%x has no matching HI20 pair, skipping", r.Offset)
				continue
			}
			if err := patchI(port, dest, lo); err != nil {
				return err
			}

		case rRiscvPCRelLo12S:
			lo, ok := pairs.lookup(r.SymValue)
			if !ok {
				warnf("PCREL_LO12_S at 0x%x has no matching HI20 pair, skipping", r.Offset)
				continue
			}
			if err := patchS(port, dest, lo); err != nil {
				return err
			}

		case rRiscvHi20, rRiscvLo12I, rRiscvLo12S,
			rRiscvRVCBranch, rRiscvRVCJump, rRiscvRelax,
			rRiscvAdd32, rRiscvSub32,
			rRiscvSet6, rRiscvSet8, rRiscvSet16, rRiscvSet32:
			// Link-time-only relocations (absolute %hi/%lo pairs without
			// PC-relative addressing, relaxation hints, and linker-private
			// range-reduction bookkeeping): the static toolchain already
			// resolved or discarded these before producing the final
			// image, so there is nothing left for the runtime loader to
			// do (§4.6.2).
			continue

		default:
			warnf("unknown RISC-V relocation type %d at 0x%x, skipping", r.Type, r.Offset)
		}
	}
	return nil
}

// splitHiLo splits a 32-bit PC-relative delta into the HI20 value, already
// positioned in bits 31:12 of an AUIPC's upper-immediate field, and the
// complementary LO12 signed offset, rounding so hi + lo == delta exactly.
func splitHiLo(delta int32) (hi uint32, lo int32) {
	hi = (uint32(delta) + 0x800) & 0xfffff000
	lo = delta - int32(hi)
	return hi, lo
}

// patchU rewrites a U-type instruction's upper-immediate field (bits
// 31:12), used for AUIPC/LUI, leaving the opcode and destination register
// untouched.
func patchU(port Port, addr uint32, hi uint32) error {
	word, err := readWord(port, addr)
	if err != nil {
		return err
	}
	word = (word & 0xfff) | hi
	return writeWord(port, addr, word)
}

// patchI rewrites an I-type instruction's 12-bit signed immediate (bits
// 31:20), used for the addi/lw/jalr that follow an AUIPC.
func patchI(port Port, addr uint32, lo int32) error {
	word, err := readWord(port, addr)
	if err != nil {
		return err
	}
	word = (word & 0xfffff) | (uint32(lo&0xfff) << 20)
	return writeWord(port, addr, word)
}

// patchS rewrites an S-type instruction's 12-bit signed immediate, which
// RISC-V splits across bits 31:25 and 11:7, used for the store that
// follows an AUIPC in a PC-relative store sequence.
func patchS(port Port, addr uint32, lo int32) error {
	word, err := readWord(port, addr)
	if err != nil {
		return err
	}
	imm := uint32(lo & 0xfff)
	hiBits := (imm >> 5) << 25
	loBits := (imm & 0x1f) << 7
	word = (word &^ (0x7f<<25 | 0x1f<<7)) | hiBits | loBits
	return writeWord(port, addr, word)
}
