package dynload

import "encoding/binary"

// Relocate walks every RELA entry in the image and applies it against the
// allocated, written-out memory (C6, §4.6). Dispatch is purely on Arch;
// the relocator never inspects chip identity (§9 "Polymorphic dispatch
// without inheritance").
func Relocate(ctx *LoadContext, port Port) error {
	switch ctx.arch {
	case ArchXtensa:
		return relocateXtensa(ctx, port)
	case ArchRiscv32:
		return relocateRiscv32(ctx, port)
	default:
		return newErrorf(ErrInvalidFormat, "unknown architecture for relocation")
	}
}

// loadBaseFor resolves the destination address a relocation's r_offset
// (a VMA) maps to, using the same region rule as the image writer and
// fixup stage.
func loadBaseFor(ctx *LoadContext, vma uint32) (uint32, error) {
	return destForVMA(ctx, vma)
}

func readWord(port Port, addr uint32) (uint32, error) {
	b, err := port.ReadBytes(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func writeWord(port Port, addr uint32, v uint32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return port.WriteBytes(addr, b)
}

// execValue routes a resolved data-bus address through the port's
// ToExecAddr translation, used by the symbol resolver for function
// symbols. JMP_SLOT entries do not go through it: they store the
// host-resolved address as-is.
func execValue(ctx *LoadContext, dataAddr uint32) uint32 {
	return ctx.port.ToExecAddr(portCtxFor(ctx, dataAddr), dataAddr)
}

// portCtxFor picks the PortMemContext matching whichever region dataAddr
// actually falls in, needed because split-bus ports may apply a different
// TextOffset per region.
func portCtxFor(ctx *LoadContext, dataAddr uint32) *PortMemContext {
	if ctx.Mode == ModeSplit {
		if dataAddr >= ctx.Split.DataBase && dataAddr < ctx.Split.DataBase+ctx.Split.DataSize {
			return ctx.Split.DataCtx
		}
		return ctx.Split.TextCtx
	}
	return ctx.Unified.PortCtx
}
