package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/sthembisoo/raygun4go/raygun/memory"
)

// IMAGE_DEBUG_DIRECTORY layout.
const (
	debugDirectorySize = 28

	debugStampOffset            = 4
	debugTypeOffset             = 12
	debugSizeOfDataOffset       = 16
	debugAddressOfRawDataOffset = 20
	debugPointerToRawDataOffset = 24

	// Real images carry a handful of entries; bound the walk on garbage sizes.
	maxDebugDirectories = 32
)

// DebugTypeCodeView is IMAGE_DEBUG_TYPE_CODEVIEW.
const DebugTypeCodeView uint32 = 2

// CodeView PDB 7.0 record: "RSDS", GUID, age, then the PDB path.
// Reference: http://www.godevtool.com/Other/pdb.htm
const (
	CodeViewSignatureRSDS uint32 = 0x53445352

	codeViewGUIDOffset = 4
	codeViewAgeOffset  = 20
	codeViewHeaderSize = 24

	// Longest record accepted; PDB paths are bounded well below this.
	maxCodeViewSize = 64 * 1024
)

// DebugDirectory is one IMAGE_DEBUG_DIRECTORY entry.
type DebugDirectory struct {
	Stamp            uint32
	Type             uint32
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
}

// CodeView is the symbol locator embedded by the linker.
type CodeView struct {
	Signature   uint32
	GUID        [16]byte
	Age         uint32
	PDBFileName string
}

// ReadDebugDirectory reads the debug directory entry at rva.
func ReadDebugDirectory(r memory.Reader, imageBase uint64, rva uint32) (DebugDirectory, error) {
	var d DebugDirectory

	raw, err := memory.ReadBytes(r, at(imageBase, rva), debugDirectorySize)
	if err != nil {
		return d, fmt.Errorf("failed to read debug directory at 0x%x: %w", rva, err)
	}
	d.Stamp = binary.LittleEndian.Uint32(raw[debugStampOffset:])
	d.Type = binary.LittleEndian.Uint32(raw[debugTypeOffset:])
	d.SizeOfData = binary.LittleEndian.Uint32(raw[debugSizeOfDataOffset:])
	d.AddressOfRawData = binary.LittleEndian.Uint32(raw[debugAddressOfRawDataOffset:])
	d.PointerToRawData = binary.LittleEndian.Uint32(raw[debugPointerToRawDataOffset:])
	return d, nil
}

// DecodeCodeView finds the CodeView entry of the debug directory at va and
// decodes its RSDS record. It returns nil without an error when the image
// has no usable record; only failed memory reads are reported.
func DecodeCodeView(r memory.Reader, imageBase uint64, va, size uint32) (*CodeView, error) {
	if va == 0 {
		return nil, nil
	}

	count := min(max(size/debugDirectorySize, 1), maxDebugDirectories)
	for i := uint32(0); i < count; i++ {
		dir, err := ReadDebugDirectory(r, imageBase, va+i*debugDirectorySize)
		if err != nil {
			return nil, err
		}
		if dir.Type != DebugTypeCodeView {
			continue
		}
		return decodeRSDS(r, imageBase, dir)
	}
	return nil, nil
}

func decodeRSDS(r memory.Reader, imageBase uint64, dir DebugDirectory) (*CodeView, error) {
	if dir.SizeOfData < codeViewHeaderSize || dir.SizeOfData > maxCodeViewSize || dir.AddressOfRawData == 0 {
		return nil, nil
	}

	base := at(imageBase, dir.AddressOfRawData)
	signature, err := memory.ReadUint32(r, base)
	if err != nil {
		return nil, fmt.Errorf("failed to read CodeView signature: %w", err)
	}
	if signature != CodeViewSignatureRSDS {
		// NB10 and older layouts are not decoded.
		return nil, nil
	}

	raw, err := memory.ReadBytes(r, base, int(dir.SizeOfData))
	if err != nil {
		return nil, fmt.Errorf("failed to read CodeView record: %w", err)
	}

	cv := &CodeView{
		Signature: signature,
		Age:       binary.LittleEndian.Uint32(raw[codeViewAgeOffset:]),
	}
	copy(cv.GUID[:], raw[codeViewGUIDOffset:codeViewAgeOffset])
	cv.PDBFileName = extractCString(raw[codeViewHeaderSize:])
	return cv, nil
}

// extractCString decodes a UTF-8 string cut at the first NUL, if any.
func extractCString(data []byte) string {
	if idx := bytes.IndexByte(data, 0); idx != -1 {
		data = data[:idx]
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
