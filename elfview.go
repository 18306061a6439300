package dynload

import "encoding/binary"

// ReadFunc is the blocking read callback the ELF view is opened with
// (§4.1): read n bytes starting at offset into dest, returning the number
// of bytes actually read. A short read (n < len(dest)) is reported to
// OpenELFView as an IoShort failure.
type ReadFunc func(offset int64, dest []byte) (int, error)

// sliceReader adapts a plain byte slice (the common LoadFromBuffer case)
// to ReadFunc.
func sliceReader(image []byte) ReadFunc {
	return func(offset int64, dest []byte) (int, error) {
		if offset < 0 || offset > int64(len(image)) {
			return 0, nil
		}
		n := copy(dest, image[offset:])
		return n, nil
	}
}

// ELFView is the read-only, random-access view over an ELF image that the
// rest of the pipeline consumes (§4.1, C1). It never mutates the image.
type ELFView struct {
	read ReadFunc
	size int64

	machine  uint16
	etype    uint16
	entry    uint32
	phoff    uint32
	phentsz  uint16
	phnum    uint16
	shoff    uint32
	shentsz  uint16
	shnum    uint16
	shstrndx uint16

	sections []Section
	segments []Segment
	symtab   []Symbol // index 0 is the reserved null symbol
	relocs   []Rela
}

// OpenELFView validates the header and walks sections, segments, symbols
// and RELA relocations, per §4.1's contract and §7/§8.3's boundary cases.
func OpenELFView(read ReadFunc, size int64) (*ELFView, error) {
	if read == nil || size < elfHeaderSize32 {
		return nil, newError(ErrInvalidArg, "image shorter than ELF32 header")
	}

	hdr := make([]byte, elfHeaderSize32)
	n, err := read(0, hdr)
	if err != nil {
		return nil, newErrorf(ErrInvalidFormat, "reading ELF header: %v", err)
	}
	if n < len(hdr) {
		return nil, newError(ErrIoShort, "short read of ELF header")
	}

	if hdr[0] != 0x7f || hdr[1] != 'E' || hdr[2] != 'L' || hdr[3] != 'F' {
		return nil, newError(ErrInvalidFormat, "bad ELF magic")
	}
	if hdr[4] != 1 {
		return nil, newError(ErrInvalidFormat, "not a 32-bit ELF (EI_CLASS)")
	}
	if hdr[5] != 1 {
		return nil, newError(ErrInvalidFormat, "not little-endian (EI_DATA)")
	}
	if hdr[6] != 1 {
		return nil, newError(ErrInvalidFormat, "unsupported EI_VERSION")
	}

	v := &ELFView{read: read, size: size}
	v.etype = binary.LittleEndian.Uint16(hdr[16:18])
	if v.etype != etExec && v.etype != etDyn {
		return nil, newErrorf(ErrInvalidFormat, "unsupported e_type %d", v.etype)
	}
	v.machine = binary.LittleEndian.Uint16(hdr[18:20])
	v.entry = binary.LittleEndian.Uint32(hdr[24:28])
	v.phoff = binary.LittleEndian.Uint32(hdr[28:32])
	v.shoff = binary.LittleEndian.Uint32(hdr[32:36])
	v.phentsz = binary.LittleEndian.Uint16(hdr[42:44])
	v.phnum = binary.LittleEndian.Uint16(hdr[44:46])
	v.shentsz = binary.LittleEndian.Uint16(hdr[46:48])
	v.shnum = binary.LittleEndian.Uint16(hdr[48:50])
	v.shstrndx = binary.LittleEndian.Uint16(hdr[50:52])

	if err := v.readSegments(); err != nil {
		return nil, err
	}
	if err := v.readSections(); err != nil {
		return nil, err
	}
	if err := v.readSymbolsAndRelocs(); err != nil {
		return nil, err
	}

	return v, nil
}

// Machine returns the ELF e_machine value.
func (v *ELFView) Machine() uint16 { return v.machine }

// Arch derives the target Arch from the ELF e_machine field.
func (v *ELFView) Arch() Arch { return archFromELFMachine(v.machine) }

// Entry returns the raw e_entry VMA.
func (v *ELFView) Entry() uint32 { return v.entry }

func (v *ELFView) readRange(offset, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if int64(offset)+int64(length) > v.size {
		return nil, newError(ErrInvalidFormat, "structural offset out of range")
	}
	buf := make([]byte, length)
	n, err := v.read(int64(offset), buf)
	if err != nil {
		return nil, newErrorf(ErrInvalidFormat, "read failed: %v", err)
	}
	if n < len(buf) {
		return nil, newError(ErrIoShort, "short read")
	}
	return buf, nil
}

func (v *ELFView) readSegments() error {
	if v.phnum == 0 {
		return nil
	}
	buf, err := v.readRange(v.phoff, uint32(v.phentsz)*uint32(v.phnum))
	if err != nil {
		return err
	}
	v.segments = make([]Segment, 0, v.phnum)
	for i := 0; i < int(v.phnum); i++ {
		b := buf[i*int(v.phentsz):]
		v.segments = append(v.segments, Segment{
			Type:   binary.LittleEndian.Uint32(b[0:4]),
			Offset: binary.LittleEndian.Uint32(b[4:8]),
			VMA:    binary.LittleEndian.Uint32(b[8:12]),
			FileSz: binary.LittleEndian.Uint32(b[16:20]),
			MemSz:  binary.LittleEndian.Uint32(b[20:24]),
			Flags:  binary.LittleEndian.Uint32(b[24:28]),
			Align:  binary.LittleEndian.Uint32(b[28:32]),
		})
	}
	return nil
}

func (v *ELFView) readSections() error {
	if v.shnum == 0 {
		return nil
	}
	buf, err := v.readRange(v.shoff, uint32(v.shentsz)*uint32(v.shnum))
	if err != nil {
		return err
	}

	type raw struct {
		nameOff uint32
		typ     uint32
		flags   uint32
		addr    uint32
		offset  uint32
		size    uint32
		entsize uint32
		align   uint32
	}
	raws := make([]raw, v.shnum)
	for i := 0; i < int(v.shnum); i++ {
		b := buf[i*int(v.shentsz):]
		raws[i] = raw{
			nameOff: binary.LittleEndian.Uint32(b[0:4]),
			typ:     binary.LittleEndian.Uint32(b[4:8]),
			flags:   binary.LittleEndian.Uint32(b[8:12]),
			addr:    binary.LittleEndian.Uint32(b[12:16]),
			offset:  binary.LittleEndian.Uint32(b[16:20]),
			size:    binary.LittleEndian.Uint32(b[20:24]),
			entsize: binary.LittleEndian.Uint32(b[36:40]),
			align:   binary.LittleEndian.Uint32(b[32:36]),
		}
	}

	var strtab []byte
	if int(v.shstrndx) < len(raws) {
		strtab, _ = v.readRange(raws[v.shstrndx].offset, raws[v.shstrndx].size)
	}

	v.sections = make([]Section, 0, v.shnum)
	for i, r := range raws {
		v.sections = append(v.sections, Section{
			Index:   i,
			Name:    cstrAt(strtab, r.nameOff),
			VMA:     r.addr,
			Offset:  r.offset,
			Size:    r.size,
			Type:    r.typ,
			EntSize: r.entsize,
			Align:   r.align,
			Flags:   r.flags,
		})
	}
	return nil
}

func (v *ELFView) readSymbolsAndRelocs() error {
	symSecIdx, strSecIdx := -1, -1
	for _, s := range v.sections {
		if s.Type == shtSymtab || (symSecIdx == -1 && s.Type == shtDynsym) {
			symSecIdx = s.Index
		}
	}
	if symSecIdx == -1 {
		v.symtab = []Symbol{{}}
	} else {
		sec := v.sections[symSecIdx]
		strSecIdx = int(v.sectionLink(sec.Index))
		var strtab []byte
		if strSecIdx >= 0 && strSecIdx < len(v.sections) {
			var err error
			strtab, err = v.readRange(v.sections[strSecIdx].Offset, v.sections[strSecIdx].Size)
			if err != nil {
				return err
			}
		}
		buf, err := v.readRange(sec.Offset, sec.Size)
		if err != nil {
			return err
		}
		count := 0
		if sec.EntSize > 0 {
			count = len(buf) / int(sec.EntSize)
		}
		v.symtab = make([]Symbol, 0, count)
		for i := 0; i < count; i++ {
			b := buf[i*symEntSize32:]
			nameOff := binary.LittleEndian.Uint32(b[0:4])
			value := binary.LittleEndian.Uint32(b[4:8])
			size := binary.LittleEndian.Uint32(b[8:12])
			info := b[12]
			other := b[13]
			shndx := binary.LittleEndian.Uint16(b[14:16])
			secName := ""
			if int(shndx) < len(v.sections) {
				secName = v.sections[shndx].Name
			}
			v.symtab = append(v.symtab, Symbol{
				Name:    cstrAt(strtab, nameOff),
				Value:   value,
				Size:    size,
				Bind:    info >> 4,
				Type:    info & 0xf,
				Vis:     other & 0x3,
				Section: secName,
			})
		}
	}

	for _, s := range v.sections {
		if s.Type != shtRela {
			continue
		}
		buf, err := v.readRange(s.Offset, s.Size)
		if err != nil {
			return err
		}
		targetName := ""
		info := int(v.sectionInfo(s.Index))
		if info >= 0 && info < len(v.sections) {
			targetName = v.sections[info].Name
		}
		count := len(buf) / relaEntSize32
		for i := 0; i < count; i++ {
			b := buf[i*relaEntSize32:]
			offset := binary.LittleEndian.Uint32(b[0:4])
			rinfo := binary.LittleEndian.Uint32(b[4:8])
			addend := int32(binary.LittleEndian.Uint32(b[8:12]))
			symIdx := rinfo >> 8
			rtype := rinfo & 0xff
			var symVal uint32
			var symName string
			if int(symIdx) < len(v.symtab) {
				symVal = v.symtab[symIdx].Value
				symName = v.symtab[symIdx].Name
			}
			v.relocs = append(v.relocs, Rela{
				Offset:     offset,
				Info:       rinfo,
				Type:       rtype,
				SymValue:   symVal,
				Addend:     addend,
				TargetSect: targetName,
				SymbolName: symName,
			})
		}
	}
	return nil
}

// sectionLink and sectionInfo re-read the raw sh_link/sh_info fields,
// which Section doesn't carry (they're only meaningful for SYMTAB/RELA
// sections and would otherwise sit unused on every other Section value).
func (v *ELFView) sectionLink(idx int) uint32  { return v.rawShField(idx, 24) }
func (v *ELFView) sectionInfo(idx int) uint32  { return v.rawShField(idx, 28) }

func (v *ELFView) rawShField(idx int, fieldOff uint32) uint32 {
	off := v.shoff + uint32(idx)*uint32(v.shentsz) + fieldOff
	buf, err := v.readRange(off, 4)
	if err != nil || len(buf) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(buf)
}

func cstrAt(tab []byte, off uint32) string {
	if tab == nil || int(off) >= len(tab) {
		return ""
	}
	end := int(off)
	for end < len(tab) && tab[end] != 0 {
		end++
	}
	return string(tab[off:end])
}

// Sections returns sections in ELF file order.
func (v *ELFView) Sections() []Section { return v.sections }

// Segments returns program headers in ELF file order.
func (v *ELFView) Segments() []Segment { return v.segments }

// Symbols returns every symbol table entry except the reserved null entry
// at index 0.
func (v *ELFView) Symbols() []Symbol {
	if len(v.symtab) == 0 {
		return nil
	}
	return v.symtab[1:]
}

// Relocations returns every RELA entry across all SHT_RELA sections, in
// section-then-entry order.
func (v *ELFView) Relocations() []Rela { return v.relocs }

// SectionByName looks up a section by exact name (used by C5 to locate
// ".plt", §4.5).
func (v *ELFView) SectionByName(name string) (Section, bool) {
	for _, s := range v.sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// ReadAt reads filesz bytes of raw file content starting at a byte offset,
// used by the image writer (C4) to copy PT_LOAD segment contents.
func (v *ELFView) ReadAt(offset, n uint32) ([]byte, error) {
	return v.readRange(offset, n)
}
