//go:build wasip1

package wasi

import "unsafe"

// Byte handles let the host place a buffer in guest memory and hand back
// a stable token: the host calls the exported allocator, writes through
// the returned pointer, and the guest claims the buffer by handle.

var byteHandles = map[uint32][]byte{}
var nextByteHandle uint32 = 1

//go:wasmexport alloc_bytes
func allocBytes(size uint32) uint64 {
	bytes := make([]byte, size)
	handle := nextByteHandle
	byteHandles[handle] = bytes
	nextByteHandle++
	var ptr uintptr
	if size > 0 {
		ptr = uintptr(unsafe.Pointer(&bytes[0]))
	}
	return uint64(handle)<<32 | uint64(ptr)
}

//go:wasmexport free_bytes
func freeBytes(handle uint32) {
	delete(byteHandles, handle)
}

// TakeBytes claims and releases the buffer behind a host-issued handle.
func TakeBytes(handle uint32) []byte {
	b := byteHandles[handle]
	delete(byteHandles, handle)
	return b
}
