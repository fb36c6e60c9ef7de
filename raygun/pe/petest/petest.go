// Package petest builds small synthetic PE images for tests. The file
// layout equals the loaded layout: every section's file offset is its RVA.
package petest

import (
	"encoding/binary"
)

const (
	ImageSize   = 0x2000
	HeadersSize = 0x400

	// SignatureOffset is where "PE\0\0" is written (e_lfanew).
	SignatureOffset = 0x80
	// OptionalHeaderOffset follows the signature and the COFF header.
	OptionalHeaderOffset = SignatureOffset + 4 + 20

	SectionRVA = 0x1000
	// DebugDirectoryRVA is the start of the debug directory entries.
	DebugDirectoryRVA = SectionRVA
	// CodeViewRVA is where the RSDS record is written.
	CodeViewRVA = SectionRVA + 0x100

	ImageBase32 = 0x400000
	ImageBase64 = 0x140000000
)

// DebugEntry is one debug directory entry to emit. The CodeView record is
// referenced by entries whose Type is 2.
type DebugEntry struct {
	Type uint32
}

// Image describes a synthetic image.
type Image struct {
	Is64                 bool
	Magic                uint16 // overrides the magic implied by Is64
	SizeOfOptionalHeader uint16 // overrides the natural size when non-zero
	NumberOfRvaAndSizes  uint32
	NoDebugDirectory     bool
	Entries              []DebugEntry
	Signature            string
	GUID                 [16]byte
	Age                  uint32
	PDBFileName          string
	OmitNUL              bool
	SizeOfData           uint32 // overrides the computed record size when non-zero
	AddressOfRawData     uint32 // overrides CodeViewRVA when non-zero
}

// Option adjusts an Image.
type Option func(*Image)

func PE64() Option                    { return func(s *Image) { s.Is64 = true } }
func WithMagic(m uint16) Option       { return func(s *Image) { s.Magic = m } }
func WithRvaCount(n uint32) Option    { return func(s *Image) { s.NumberOfRvaAndSizes = n } }
func WithoutDebugDirectory() Option   { return func(s *Image) { s.NoDebugDirectory = true } }
func WithSignature(sig string) Option { return func(s *Image) { s.Signature = sig } }
func WithSizeOfData(n uint32) Option  { return func(s *Image) { s.SizeOfData = n } }

func WithPDBFileName(name string, nul bool) Option {
	return func(s *Image) { s.PDBFileName, s.OmitNUL = name, !nul }
}

func WithSizeOfOptionalHeader(n uint16) Option {
	return func(s *Image) { s.SizeOfOptionalHeader = n }
}

func WithAddressOfRawData(rva uint32) Option {
	return func(s *Image) { s.AddressOfRawData = rva }
}

func WithEntries(types ...uint32) Option {
	return func(s *Image) {
		s.Entries = s.Entries[:0]
		for _, t := range types {
			s.Entries = append(s.Entries, DebugEntry{Type: t})
		}
	}
}

// DefaultImage is a PE32 image with a single CodeView entry.
func DefaultImage() Image {
	s := Image{
		NumberOfRvaAndSizes: 16,
		Entries:             []DebugEntry{{Type: 2}},
		Signature:           "RSDS",
		Age:                 3,
		PDBFileName:         `C:\build\app.pdb`,
	}
	for i := range s.GUID {
		s.GUID[i] = byte(i + 1)
	}
	return s
}

// ImageBase returns the preferred base written into the optional header.
func (s Image) ImageBase() uint64 {
	if s.Is64 {
		return ImageBase64
	}
	return ImageBase32
}

// Build returns the image bytes for DefaultImage adjusted by opts.
func Build(opts ...Option) []byte {
	s := DefaultImage()
	for _, opt := range opts {
		opt(&s)
	}
	return s.Build()
}

func (s Image) Build() []byte {
	b := make([]byte, ImageSize)
	le := binary.LittleEndian

	// MS-DOS header
	b[0], b[1] = 'M', 'Z'
	le.PutUint32(b[0x3c:], SignatureOffset)
	copy(b[SignatureOffset:], "PE\x00\x00")

	// COFF file header
	fh := SignatureOffset + 4
	machine, magic, optSize := uint16(0x14c), uint16(0x10b), uint16(224)
	if s.Is64 {
		machine, magic, optSize = 0x8664, 0x20b, 240
	}
	sectionHeader := OptionalHeaderOffset + int(optSize)
	if s.Magic != 0 {
		magic = s.Magic
	}
	if s.SizeOfOptionalHeader != 0 {
		optSize = s.SizeOfOptionalHeader
	}
	le.PutUint16(b[fh:], machine)
	le.PutUint16(b[fh+2:], 1) // NumberOfSections
	le.PutUint32(b[fh+4:], 0x5f5e100)
	le.PutUint16(b[fh+16:], optSize)
	le.PutUint16(b[fh+18:], 0x22)

	// Optional header
	oh := OptionalHeaderOffset
	le.PutUint16(b[oh:], magic)
	le.PutUint32(b[oh+4:], 0x200)       // SizeOfCode
	le.PutUint32(b[oh+20:], SectionRVA) // BaseOfCode
	le.PutUint32(b[oh+32:], 0x1000)     // SectionAlignment
	le.PutUint32(b[oh+36:], 0x200)      // FileAlignment
	le.PutUint32(b[oh+56:], ImageSize)
	le.PutUint32(b[oh+60:], HeadersSize)
	debugSlot := oh + 144
	if s.Is64 {
		le.PutUint64(b[oh+24:], ImageBase64)
		le.PutUint32(b[oh+108:], s.NumberOfRvaAndSizes)
		debugSlot = oh + 160
	} else {
		le.PutUint32(b[oh+28:], ImageBase32)
		le.PutUint32(b[oh+92:], s.NumberOfRvaAndSizes)
	}
	if !s.NoDebugDirectory {
		le.PutUint32(b[debugSlot:], DebugDirectoryRVA)
		le.PutUint32(b[debugSlot+4:], uint32(28*len(s.Entries)))
	}

	// Section header
	copy(b[sectionHeader:], ".rdata")
	le.PutUint32(b[sectionHeader+8:], ImageSize-SectionRVA)  // VirtualSize
	le.PutUint32(b[sectionHeader+12:], SectionRVA)           // VirtualAddress
	le.PutUint32(b[sectionHeader+16:], ImageSize-SectionRVA) // SizeOfRawData
	le.PutUint32(b[sectionHeader+20:], SectionRVA)           // PointerToRawData
	le.PutUint32(b[sectionHeader+36:], 0x40000040)

	// CodeView record
	name := []byte(s.PDBFileName)
	if !s.OmitNUL {
		name = append(name, 0)
	}
	sizeOfData := uint32(24 + len(name))
	if s.SizeOfData != 0 {
		sizeOfData = s.SizeOfData
	}
	rawRVA := uint32(CodeViewRVA)
	if s.AddressOfRawData != 0 {
		rawRVA = s.AddressOfRawData
	}
	copy(b[CodeViewRVA:], s.Signature)
	copy(b[CodeViewRVA+4:], s.GUID[:])
	le.PutUint32(b[CodeViewRVA+20:], s.Age)
	copy(b[CodeViewRVA+24:], name)

	// Debug directory entries
	for i, e := range s.Entries {
		d := DebugDirectoryRVA + 28*i
		le.PutUint32(b[d+4:], 0x5f5e100) // TimeDateStamp
		le.PutUint32(b[d+12:], e.Type)
		le.PutUint32(b[d+16:], sizeOfData)
		le.PutUint32(b[d+20:], rawRVA)
		le.PutUint32(b[d+24:], rawRVA)
	}
	return b
}
