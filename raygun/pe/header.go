package pe

import (
	"fmt"

	"github.com/sthembisoo/raygun4go/raygun/memory"
)

// PE format (https://learn.microsoft.com/en-us/windows/win32/debug/pe-format):
//
//	MS-DOS stub, offset of the signature at 0x3c
//	Signature "PE\0\0" (4 bytes)
//	COFF file header (20 bytes)
//	Optional header
//	  standard + windows specific fields
//	  data directories at 96 (PE32) / 112 (PE32+)
//	    debug directory is slot 6, at 144 / 160
const (
	signatureOffsetOffset = 0x3c
	signatureSize         = 4
	coffFileHeaderSize    = 20

	// SizeOfOptionalHeader within the COFF file header.
	sizeOfOptionalHeaderOffset = 16

	debugDataDirectoryOffset32 = 144
	debugDataDirectoryOffset64 = 160

	numberOfRvaAndSizesOffset32 = 92
	numberOfRvaAndSizesOffset64 = 108

	sizeOfCodeOffset = 4
	baseOfCodeOffset = 20

	dataDirectorySize   = 8
	debugDirectoryIndex = 6

	// Anything further than this from the image base is not a header.
	maxSignatureOffset = 0x10000
)

// Optional header magic values.
const (
	Magic32 uint16 = 0x10b
	Magic64 uint16 = 0x20b
)

// "PE\0\0" read as a little-endian uint32.
const peSignature = 0x00004550

// Offsets are the header positions of one image, relative to its base.
// They do not change while the module stays loaded.
type Offsets struct {
	SignatureOffset          uint32
	OptionalHeaderOffset     uint32
	Magic                    uint16
	DebugDataDirectoryOffset uint32
	DebugVirtualAddress      uint32
	DebugSize                uint32
	SizeOfCode               uint32
	BaseOfCode               uint32
}

func at(imageBase uint64, offset uint32) uint64 {
	return imageBase + uint64(offset)
}

// ReadOffsets walks the header chain of the image loaded at imageBase.
func ReadOffsets(r memory.Reader, imageBase uint64) (Offsets, error) {
	var o Offsets

	sigOffset, err := memory.ReadUint32(r, at(imageBase, signatureOffsetOffset))
	if err != nil {
		return o, fmt.Errorf("failed to read signature offset: %w", err)
	}
	if sigOffset < signatureOffsetOffset+4 || sigOffset > maxSignatureOffset {
		return o, &HeaderError{Field: "e_lfanew", Offset: signatureOffsetOffset, Value: uint64(sigOffset)}
	}
	o.SignatureOffset = sigOffset

	sig, err := memory.ReadUint32(r, at(imageBase, sigOffset))
	if err != nil {
		return o, fmt.Errorf("failed to read PE signature: %w", err)
	}
	if sig != peSignature {
		return o, &HeaderError{Field: "Signature", Offset: uint64(sigOffset), Value: uint64(sig)}
	}

	sizeOfOptionalHeader, err := memory.ReadUint16(r, at(imageBase, sigOffset+signatureSize+sizeOfOptionalHeaderOffset))
	if err != nil {
		return o, fmt.Errorf("failed to read SizeOfOptionalHeader: %w", err)
	}

	o.OptionalHeaderOffset = sigOffset + signatureSize + coffFileHeaderSize
	o.Magic, err = memory.ReadUint16(r, at(imageBase, o.OptionalHeaderOffset))
	if err != nil {
		return o, fmt.Errorf("failed to read optional header magic: %w", err)
	}

	var rvaCountOffset uint32
	switch o.Magic {
	case Magic32:
		o.DebugDataDirectoryOffset = o.OptionalHeaderOffset + debugDataDirectoryOffset32
		rvaCountOffset = o.OptionalHeaderOffset + numberOfRvaAndSizesOffset32
	case Magic64:
		o.DebugDataDirectoryOffset = o.OptionalHeaderOffset + debugDataDirectoryOffset64
		rvaCountOffset = o.OptionalHeaderOffset + numberOfRvaAndSizesOffset64
	default:
		return o, &HeaderError{Field: "Magic", Offset: uint64(o.OptionalHeaderOffset), Value: uint64(o.Magic)}
	}

	// The debug slot must lie inside the declared optional header.
	if uint32(sizeOfOptionalHeader) < o.DebugDataDirectoryOffset-o.OptionalHeaderOffset+dataDirectorySize {
		return o, &HeaderError{Field: "SizeOfOptionalHeader", Offset: uint64(sigOffset + signatureSize + sizeOfOptionalHeaderOffset), Value: uint64(sizeOfOptionalHeader)}
	}
	numberOfRvaAndSizes, err := memory.ReadUint32(r, at(imageBase, rvaCountOffset))
	if err != nil {
		return o, fmt.Errorf("failed to read NumberOfRvaAndSizes: %w", err)
	}
	if numberOfRvaAndSizes <= debugDirectoryIndex {
		return o, &HeaderError{Field: "NumberOfRvaAndSizes", Offset: uint64(rvaCountOffset), Value: uint64(numberOfRvaAndSizes)}
	}

	if o.SizeOfCode, err = memory.ReadUint32(r, at(imageBase, o.OptionalHeaderOffset+sizeOfCodeOffset)); err != nil {
		return o, fmt.Errorf("failed to read SizeOfCode: %w", err)
	}
	if o.BaseOfCode, err = memory.ReadUint32(r, at(imageBase, o.OptionalHeaderOffset+baseOfCodeOffset)); err != nil {
		return o, fmt.Errorf("failed to read BaseOfCode: %w", err)
	}

	if o.DebugVirtualAddress, err = memory.ReadUint32(r, at(imageBase, o.DebugDataDirectoryOffset)); err != nil {
		return o, fmt.Errorf("failed to read debug directory address: %w", err)
	}
	if o.DebugSize, err = memory.ReadUint32(r, at(imageBase, o.DebugDataDirectoryOffset+4)); err != nil {
		return o, fmt.Errorf("failed to read debug directory size: %w", err)
	}
	return o, nil
}
