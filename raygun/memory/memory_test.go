package memory

import (
	"errors"
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaceReads(t *testing.T) {
	t.Parallel()

	space, err := NewSpace(
		Segment{Addr: 0x2000, Data: []byte{0xaa, 0xbb}},
		Segment{Addr: 0x1000, Data: []byte{0x34, 0x12, 0x78, 0x56, 0xff, 0xff, 0xff, 0xff}},
	)
	require.NoError(t, err)

	tests := []struct {
		name    string
		read    func() (any, error)
		want    any
		wantErr bool
	}{
		{
			name: "int16",
			read: func() (any, error) { return ReadInt16(space, 0x1000) },
			want: int16(0x1234),
		},
		{
			name: "int32",
			read: func() (any, error) { return ReadInt32(space, 0x1000) },
			want: int32(0x56781234),
		},
		{
			name: "negative_int32",
			read: func() (any, error) { return ReadInt32(space, 0x1004) },
			want: int32(-1),
		},
		{
			name: "bytes_second_segment",
			read: func() (any, error) { return ReadBytes(space, 0x2000, 2) },
			want: []byte{0xaa, 0xbb},
		},
		{
			name:    "past_segment_end",
			read:    func() (any, error) { return ReadInt32(space, 0x1006) },
			wantErr: true,
		},
		{
			name:    "unmapped_gap",
			read:    func() (any, error) { return ReadInt16(space, 0x1800) },
			wantErr: true,
		},
		{
			name:    "below_first_segment",
			read:    func() (any, error) { return ReadInt16(space, 0x10) },
			wantErr: true,
		},
		{
			name:    "negative_length",
			read:    func() (any, error) { return ReadBytes(space, 0x1000, -4) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.read()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrAccessViolation)
				var fault *FaultError
				assert.True(t, errors.As(err, &fault))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSpaceRejectsOverlap(t *testing.T) {
	t.Parallel()

	_, err := NewSpace(
		Segment{Addr: 0x1000, Data: make([]byte, 0x100)},
		Segment{Addr: 0x10ff, Data: make([]byte, 0x10)},
	)
	require.Error(t, err)
}

func TestNewSpaceSkipsEmpty(t *testing.T) {
	t.Parallel()

	space, err := NewSpace(Segment{Addr: 0x1000}, Segment{Addr: 0x1000, Data: []byte{1}})
	require.NoError(t, err)
	assert.Len(t, space, 1)
}

func TestLiveRead(t *testing.T) {
	t.Parallel()

	buf := []byte{0x52, 0x53, 0x44, 0x53, 0x01, 0x00}
	addr := uint64(uintptr(unsafe.Pointer(&buf[0])))

	v, err := ReadUint32(Live{}, addr)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x53445352), v)

	b, err := ReadBytes(Live{}, addr+4, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00}, b)
	runtime.KeepAlive(buf)
}

func TestLiveNullPage(t *testing.T) {
	t.Parallel()

	_, err := ReadInt32(Live{}, 0)
	require.ErrorIs(t, err, ErrAccessViolation)

	_, err = ReadInt32(Live{}, 60)
	require.ErrorIs(t, err, ErrAccessViolation)
}
