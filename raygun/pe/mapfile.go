package pe

import (
	"debug/pe"
	"fmt"
	"io"
	"os"

	"github.com/sthembisoo/raygun4go/raygun/memory"
)

// Images bigger than this are refused instead of allocated.
const maxMappedImageSize = 1 << 30

// MapImage lays a PE file out the way the loader would, headers at offset
// zero and every section at its RVA, and returns it as a segment placed at
// the preferred image base.
func MapImage(r io.ReaderAt) (memory.Segment, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return memory.Segment{}, fmt.Errorf("failed to parse PE file: %w", err)
	}
	defer f.Close()

	var imageBase uint64
	var sizeOfImage, sizeOfHeaders uint32
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageBase = uint64(oh.ImageBase)
		sizeOfImage, sizeOfHeaders = oh.SizeOfImage, oh.SizeOfHeaders
	case *pe.OptionalHeader64:
		imageBase = oh.ImageBase
		sizeOfImage, sizeOfHeaders = oh.SizeOfImage, oh.SizeOfHeaders
	default:
		return memory.Segment{}, fmt.Errorf("PE file has no optional header")
	}
	if sizeOfImage == 0 || sizeOfImage > maxMappedImageSize {
		return memory.Segment{}, fmt.Errorf("invalid SizeOfImage: 0x%x", sizeOfImage)
	}
	if sizeOfHeaders > sizeOfImage {
		return memory.Segment{}, fmt.Errorf("invalid SizeOfHeaders: 0x%x", sizeOfHeaders)
	}

	image := make([]byte, sizeOfImage)
	if _, err := r.ReadAt(image[:sizeOfHeaders], 0); err != nil && err != io.EOF {
		return memory.Segment{}, fmt.Errorf("failed to read headers: %w", err)
	}

	for _, s := range f.Sections {
		if s.VirtualAddress >= sizeOfImage {
			return memory.Segment{}, fmt.Errorf("section %s at 0x%x is outside the image", s.Name, s.VirtualAddress)
		}
		data, err := s.Data()
		if err != nil {
			return memory.Segment{}, fmt.Errorf("failed to read section %s: %w", s.Name, err)
		}
		// Raw data beyond the virtual size is file alignment padding.
		if s.VirtualSize != 0 && uint32(len(data)) > s.VirtualSize {
			data = data[:s.VirtualSize]
		}
		copy(image[s.VirtualAddress:], data)
	}

	return memory.Segment{Addr: imageBase, Data: image}, nil
}

// OpenImage maps the PE file at path with MapImage.
func OpenImage(path string) (memory.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return memory.Segment{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	return MapImage(f)
}
