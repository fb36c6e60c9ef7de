package memory

import (
	"fmt"
	"sort"
)

// Segment is a captured copy of the memory range [Addr, Addr+len(Data)).
type Segment struct {
	Addr uint64
	Data []byte
}

func (s Segment) String() string {
	return fmt.Sprintf("Segment{addr:0x%x, size:0x%x}", s.Addr, s.size())
}

func (s Segment) size() uint64 {
	return uint64(len(s.Data))
}

// contains reports whether the segment contains the given address.
func (s Segment) contains(addr uint64) bool {
	return s.Addr <= addr && addr-s.Addr < s.size()
}

// ReadAt implements Reader for a single segment.
func (s Segment) ReadAt(p []byte, addr uint64) error {
	if len(p) == 0 {
		return nil
	}
	if !s.contains(addr) {
		return &FaultError{Addr: addr, Size: len(p)}
	}
	offset := addr - s.Addr
	if uint64(len(p)) > s.size()-offset {
		return &FaultError{Addr: addr, Size: len(p)}
	}
	copy(p, s.Data[offset:])
	return nil
}

// Space is a sorted list of non-overlapping segments. A read must fall
// entirely inside one segment.
type Space []Segment

// NewSpace sorts segs by address. Overlapping segments are rejected.
func NewSpace(segs ...Segment) (Space, error) {
	ss := make(Space, 0, len(segs))
	for _, s := range segs {
		if s.size() == 0 {
			continue
		}
		if s.Addr+s.size() < s.Addr {
			return nil, fmt.Errorf("segment %s wraps the address space", s)
		}
		ss = append(ss, s)
	}
	sort.Slice(ss, func(i, k int) bool { return ss[i].Addr < ss[k].Addr })
	for i := 1; i < len(ss); i++ {
		if ss[i-1].Addr+ss[i-1].size() > ss[i].Addr {
			return nil, fmt.Errorf("segment %s overlaps %s", ss[i-1], ss[i])
		}
	}
	return ss, nil
}

// findSegment finds the segment that contains the given address.
func (ss Space) findSegment(addr uint64) (Segment, bool) {
	// Binary search for an upper-bound segment, then check
	// if the previous segment contains addr.
	k := sort.Search(len(ss), func(k int) bool {
		return addr < ss[k].Addr
	})
	k--
	if k >= 0 && ss[k].contains(addr) {
		return ss[k], true
	}
	return Segment{}, false
}

func (ss Space) ReadAt(p []byte, addr uint64) error {
	s, ok := ss.findSegment(addr)
	if !ok {
		return &FaultError{Addr: addr, Size: len(p)}
	}
	return s.ReadAt(p, addr)
}
