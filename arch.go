package dynload

import "strings"

// Arch identifies the target instruction-set architecture of a loaded
// image. The relocator and post-load-fixup stages are split into one
// implementation per architecture (reloc_xtensa.go, reloc_riscv.go),
// chosen here at load time rather than through runtime interface
// dispatch on the chip port.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchXtensa
	ArchRiscv32
)

func (a Arch) String() string {
	switch a {
	case ArchXtensa:
		return "xtensa"
	case ArchRiscv32:
		return "riscv32"
	case ArchUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ParseArch parses an architecture name as reported by a chip port.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "xtensa":
		return ArchXtensa, nil
	case "riscv32", "riscv", "rv32":
		return ArchRiscv32, nil
	default:
		return ArchUnknown, newError(ErrInvalidArg, "unsupported architecture: "+s)
	}
}

// emXtensa and emRiscV are the e_machine values used by the respective
// toolchains' ELF backends.
const (
	emXtensa = 94
	emRiscV  = 243
)

// archFromELFMachine maps the e_machine field read by the ELF view to an Arch.
func archFromELFMachine(machine uint16) Arch {
	switch machine {
	case emXtensa:
		return ArchXtensa
	case emRiscV:
		return ArchRiscv32
	default:
		return ArchUnknown
	}
}





