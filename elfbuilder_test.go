package dynload

import (
	"bytes"
	"encoding/binary"
)

// elf32Builder assembles a minimal, well-formed ELF32 LE image byte by
// byte for use as a test fixture, mirroring the teacher's BufferWrapper
// pattern of small typed Write helpers over a single backing buffer.
type elf32Builder struct {
	machine uint16
	etype   uint16
	entry   uint32

	segments []elf32SegSpec
	symbols  []elf32SymSpec
	relocs   []elf32RelaSpec
}

type elf32SegSpec struct {
	vma    uint32
	flags  uint32
	data   []byte
	memSz  uint32
}

type elf32SymSpec struct {
	name  string
	value uint32
	info  byte // (bind<<4)|type
	shndx uint16
}

type elf32RelaSpec struct {
	offset  uint32
	symIdx  uint32
	rtype   uint32
	addend  int32
	section int // index into segments, -1 for "data" section generically
}

func newELF32Builder(machine uint16) *elf32Builder {
	return &elf32Builder{machine: machine, etype: 2} // ET_EXEC
}

func (b *elf32Builder) addSegment(vma uint32, flags uint32, data []byte, memSz uint32) int {
	b.segments = append(b.segments, elf32SegSpec{vma: vma, flags: flags, data: data, memSz: memSz})
	return len(b.segments) - 1
}

func (b *elf32Builder) addFuncSymbol(name string, value uint32) int {
	b.symbols = append(b.symbols, elf32SymSpec{name: name, value: value, info: (1 << 4) | 2, shndx: 1})
	return len(b.symbols)
}

func (b *elf32Builder) addRelative(offset uint32, addend int32) {
	b.relocs = append(b.relocs, elf32RelaSpec{offset: offset, rtype: rXtensaRelative, addend: addend})
}

// build lays the image out as: ELF header, program headers, then for each
// segment its raw bytes back to back, then (if any) a RELA section, a
// symtab+strtab pair, and a section header table describing all of it.
// It is not a general-purpose ELF writer — only enough of one to exercise
// OpenELFView and the pipeline stages against realistic structure.
func (b *elf32Builder) build() []byte {
	var buf bytes.Buffer

	const hdrSize = 52
	const phEntSize = 32
	phoff := uint32(hdrSize)
	phnum := len(b.segments)

	segOffsets := make([]uint32, len(b.segments))
	dataStart := phoff + uint32(phnum)*phEntSize
	cursor := dataStart
	for i, s := range b.segments {
		segOffsets[i] = cursor
		cursor += uint32(len(s.data))
	}

	var relaOff, relaSize uint32
	if len(b.relocs) > 0 {
		relaOff = cursor
		relaSize = uint32(len(b.relocs) * 12)
		cursor += relaSize
	}

	var symOff, symSize, strOff, strSize uint32
	var strtab bytes.Buffer
	strtab.WriteByte(0)
	nameOffsets := make([]uint32, len(b.symbols))
	for i, s := range b.symbols {
		nameOffsets[i] = uint32(strtab.Len())
		strtab.WriteString(s.name)
		strtab.WriteByte(0)
	}
	if len(b.symbols) > 0 {
		symOff = cursor
		symSize = uint32((len(b.symbols) + 1) * 16) // +1 null symbol
		cursor += symSize
		strOff = cursor
		strSize = uint32(strtab.Len())
		cursor += strSize
	}

	shstrtab := []byte{0}
	names := map[string]uint32{}
	addName := func(n string) uint32 {
		off := uint32(len(shstrtab))
		names[n] = off
		shstrtab = append(shstrtab, append([]byte(n), 0)...)
		return off
	}
	nullName := uint32(0)
	_ = nullName
	addName(".text")
	if len(b.relocs) > 0 {
		addName(".rela.dyn")
	}
	if len(b.symbols) > 0 {
		addName(".symtab")
		addName(".strtab")
	}
	addName(".shstrtab")

	shstrOff := cursor
	cursor += uint32(len(shstrtab))

	shoff := cursor
	var sections []elf32SectionWrite
	sections = append(sections, elf32SectionWrite{}) // SHN_UNDEF

	textVMA, textOff, textSize := uint32(0), uint32(0), uint32(0)
	if len(b.segments) > 0 {
		textVMA, textOff, textSize = b.segments[0].vma, segOffsets[0], uint32(len(b.segments[0].data))
	}
	sections = append(sections, elf32SectionWrite{
		name: names[".text"], typ: 1, flags: 0x6, addr: textVMA, offset: textOff, size: textSize, entsize: 0,
	})

	var symtabSecIdx uint32
	if len(b.relocs) > 0 {
		sections = append(sections, elf32SectionWrite{
			name: names[".rela.dyn"], typ: 4, offset: relaOff, size: relaSize, entsize: 12, info: 1,
		})
	}
	if len(b.symbols) > 0 {
		symtabSecIdx = uint32(len(sections))
		strtabSecIdx := symtabSecIdx + 1
		sections = append(sections, elf32SectionWrite{
			name: names[".symtab"], typ: 2, offset: symOff, size: symSize, entsize: 16, link: strtabSecIdx,
		})
		sections = append(sections, elf32SectionWrite{
			name: names[".strtab"], typ: 3, offset: strOff, size: strSize,
		})
	}
	shstrndx := uint32(len(sections))
	sections = append(sections, elf32SectionWrite{
		name: names[".shstrtab"], typ: 3, offset: shstrOff, size: uint32(len(shstrtab)),
	})

	// ELF header
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 1, 1, 1, 0})
	buf.Write(make([]byte, 8)) // padding
	binary.Write(&buf, binary.LittleEndian, b.etype)
	binary.Write(&buf, binary.LittleEndian, b.machine)
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // version
	binary.Write(&buf, binary.LittleEndian, b.entry)
	binary.Write(&buf, binary.LittleEndian, phoff)
	binary.Write(&buf, binary.LittleEndian, shoff)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // flags
	binary.Write(&buf, binary.LittleEndian, uint16(hdrSize))
	binary.Write(&buf, binary.LittleEndian, uint16(phEntSize))
	binary.Write(&buf, binary.LittleEndian, uint16(phnum))
	binary.Write(&buf, binary.LittleEndian, uint16(40))
	binary.Write(&buf, binary.LittleEndian, uint16(len(sections)))
	binary.Write(&buf, binary.LittleEndian, uint16(shstrndx))

	// Program headers
	for i, s := range b.segments {
		binary.Write(&buf, binary.LittleEndian, uint32(1)) // PT_LOAD
		binary.Write(&buf, binary.LittleEndian, segOffsets[i])
		binary.Write(&buf, binary.LittleEndian, s.vma)
		binary.Write(&buf, binary.LittleEndian, s.vma) // p_paddr
		binary.Write(&buf, binary.LittleEndian, uint32(len(s.data)))
		memSz := s.memSz
		if memSz == 0 {
			memSz = uint32(len(s.data))
		}
		binary.Write(&buf, binary.LittleEndian, memSz)
		binary.Write(&buf, binary.LittleEndian, s.flags)
		binary.Write(&buf, binary.LittleEndian, uint32(4))
	}

	for _, s := range b.segments {
		buf.Write(s.data)
	}

	for _, r := range b.relocs {
		binary.Write(&buf, binary.LittleEndian, r.offset)
		info := (r.symIdx << 8) | r.rtype
		binary.Write(&buf, binary.LittleEndian, info)
		binary.Write(&buf, binary.LittleEndian, r.addend)
	}

	if len(b.symbols) > 0 {
		buf.Write(make([]byte, 16)) // null symbol
		for i, s := range b.symbols {
			binary.Write(&buf, binary.LittleEndian, nameOffsets[i])
			binary.Write(&buf, binary.LittleEndian, s.value)
			binary.Write(&buf, binary.LittleEndian, uint32(0)) // size
			buf.WriteByte(s.info)
			buf.WriteByte(0)
			binary.Write(&buf, binary.LittleEndian, s.shndx)
		}
		buf.Write(strtab.Bytes())
	}

	buf.Write(shstrtab)

	for _, s := range sections {
		binary.Write(&buf, binary.LittleEndian, s.name)
		binary.Write(&buf, binary.LittleEndian, s.typ)
		binary.Write(&buf, binary.LittleEndian, s.flags)
		binary.Write(&buf, binary.LittleEndian, s.addr)
		binary.Write(&buf, binary.LittleEndian, s.offset)
		binary.Write(&buf, binary.LittleEndian, s.size)
		binary.Write(&buf, binary.LittleEndian, s.link)
		binary.Write(&buf, binary.LittleEndian, s.info)
		binary.Write(&buf, binary.LittleEndian, uint32(4))
		binary.Write(&buf, binary.LittleEndian, s.entsize)
	}

	return buf.Bytes()
}

type elf32SectionWrite struct {
	name, typ, flags, addr, offset, size, link, info, entsize uint32
}
