package memory

import (
	"runtime/debug"
	"unsafe"
)

// lowestMappedAddress guards the null page, which is never mapped.
const lowestMappedAddress = 0x1000

// Live reads the memory of the current process. A fault raised while
// copying is converted to a *FaultError instead of crashing the process.
type Live struct{}

func (Live) ReadAt(p []byte, addr uint64) (err error) {
	if len(p) == 0 {
		return nil
	}
	if addr < lowestMappedAddress || addr+uint64(len(p)) < addr || addr > uint64(^uintptr(0)) {
		return &FaultError{Addr: addr, Size: len(p)}
	}

	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = &FaultError{Addr: addr, Size: len(p)}
		}
	}()

	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(p))
	copy(p, src)
	return nil
}
