// Package memory reads fixed-width little-endian values from absolute
// addresses, either out of captured memory segments or out of the live
// process image.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrAccessViolation is matched by every read of unmapped or protected memory.
var ErrAccessViolation = errors.New("memory: access violation")

// FaultError describes a read that could not be satisfied.
type FaultError struct {
	Addr uint64 // first address of the failed read
	Size int    // number of bytes requested
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("memory: access violation reading %d bytes at 0x%x", e.Size, e.Addr)
}

func (e *FaultError) Is(target error) bool { return target == ErrAccessViolation }

// Reader reads len(p) bytes starting at addr. Implementations either fill p
// completely or return an error matching ErrAccessViolation.
type Reader interface {
	ReadAt(p []byte, addr uint64) error
}

// ReadBytes reads n bytes at addr into a new slice.
func ReadBytes(r Reader, addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, &FaultError{Addr: addr, Size: n}
	}
	buf := make([]byte, n)
	if err := r.ReadAt(buf, addr); err != nil {
		return nil, err
	}
	return buf, nil
}

func ReadUint16(r Reader, addr uint64) (uint16, error) {
	var buf [2]byte
	if err := r.ReadAt(buf[:], addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func ReadUint32(r Reader, addr uint64) (uint32, error) {
	var buf [4]byte
	if err := r.ReadAt(buf[:], addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func ReadInt16(r Reader, addr uint64) (int16, error) {
	v, err := ReadUint16(r, addr)
	return int16(v), err
}

func ReadInt32(r Reader, addr uint64) (int32, error) {
	v, err := ReadUint32(r, addr)
	return int32(v), err
}
