package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetBuffer(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"zero size", 0},
		{"small", 48},
		{"pool capacity", 4096},
		{"larger than pool", 8192},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := GetBuffer(tt.size)
			require.Len(t, buf, tt.size)
			for _, b := range buf {
				require.Zero(t, b)
			}
			ReleaseBuffer(buf)
		})
	}
}

func TestGetBuffer_ReturnsZeroedMemory(t *testing.T) {
	buf := GetBuffer(64)
	for i := range buf {
		buf[i] = 0xAB
	}
	ReleaseBuffer(buf)

	buf = GetBuffer(64)
	defer ReleaseBuffer(buf)
	require.Equal(t, make([]byte, 64), buf)
}

func TestBufferPoolConcurrency(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				size := 16 + i*40
				buf := GetBuffer(size)
				if len(buf) != size {
					t.Errorf("got len %d, want %d", len(buf), size)
				}
				ReleaseBuffer(buf)
			}
		}()
	}
	wg.Wait()
}
