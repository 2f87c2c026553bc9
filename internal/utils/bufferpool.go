// Package utils holds the byte-level helpers shared by the HDF5 engine:
// sized offset codecs, the lookup3 metadata checksum, a scratch buffer
// pool and the engine error sentinels.
package utils

import "sync"

const pooledCap = 4096

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, pooledCap)
		return &buf
	},
}

// GetBuffer returns a zeroed byte slice of the requested size.
// Buffers larger than the pooled capacity are allocated directly.
func GetBuffer(size int) []byte {
	if size > pooledCap {
		return make([]byte, size)
	}
	bp := bufferPool.Get().(*[]byte)
	buf := (*bp)[:size]
	clear(buf)
	return buf
}

// ReleaseBuffer returns a buffer obtained from GetBuffer to the pool.
func ReleaseBuffer(buf []byte) {
	if cap(buf) != pooledCap {
		return
	}
	buf = buf[:0]
	bufferPool.Put(&buf)
}
