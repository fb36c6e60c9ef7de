package pe

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/elastic/go-freelru"

	"github.com/sthembisoo/raygun4go/raygun/memory"
)

const (
	// Maximum number of images whose header offsets are kept.
	offsetsCacheSize = 1024

	// Modules can be unloaded and another one mapped at the same base.
	offsetsCacheTTL = 10 * time.Minute
)

// Locator finds the CodeView record of images in one address space. It is
// safe for concurrent use.
type Locator struct {
	mem memory.Reader

	offsetsCacheHit  atomic.Uint64
	offsetsCacheMiss atomic.Uint64

	// offsetsCache keeps the header walk result per image base.
	offsetsCache *freelru.SyncedLRU[uint64, Offsets]
}

// LocatorStats reports offsets cache efficiency.
type LocatorStats struct {
	Hits   uint64
	Misses uint64
}

func hashImageBase(base uint64) uint32 {
	// Image bases are 64K aligned, fold the interesting bits together.
	return uint32(base>>16) ^ uint32(base>>32)
}

// NewLocator creates a Locator reading images through mem.
func NewLocator(mem memory.Reader) *Locator {
	cache, err := freelru.NewSynced[uint64, Offsets](offsetsCacheSize, hashImageBase)
	if err != nil {
		panic(fmt.Errorf("unable to create offsets cache: %v", err))
	}
	cache.SetLifetime(offsetsCacheTTL)
	return &Locator{mem: mem, offsetsCache: cache}
}

// Offsets returns the header offsets of the image at imageBase.
func (l *Locator) Offsets(imageBase uint64) (Offsets, error) {
	if o, ok := l.offsetsCache.Get(imageBase); ok {
		l.offsetsCacheHit.Add(1)
		return o, nil
	}
	l.offsetsCacheMiss.Add(1)

	o, err := ReadOffsets(l.mem, imageBase)
	if err != nil {
		return o, err
	}
	l.offsetsCache.Add(imageBase, o)
	return o, nil
}

// LocateDebugDirectory returns the virtual address and size of the debug
// data directory of the image at imageBase. A zero address means the image
// carries no debug data.
func (l *Locator) LocateDebugDirectory(imageBase uint64) (uint32, uint32, error) {
	o, err := l.Offsets(imageBase)
	if err != nil {
		return 0, 0, err
	}
	return o.DebugVirtualAddress, o.DebugSize, nil
}

// Locate returns the CodeView record of the image at imageBase, or nil if
// the image has none.
func (l *Locator) Locate(imageBase uint64) (*CodeView, error) {
	va, size, err := l.LocateDebugDirectory(imageBase)
	if err != nil {
		return nil, err
	}
	if va == 0 {
		return nil, nil
	}
	return DecodeCodeView(l.mem, imageBase, va, size)
}

func (l *Locator) Stats() LocatorStats {
	return LocatorStats{
		Hits:   l.offsetsCacheHit.Load(),
		Misses: l.offsetsCacheMiss.Load(),
	}
}
