//go:build wasip1

// Package wasi holds the guest-side bindings to the quarryhost "env"
// module: the diagnostic log sink, the host entropy channel, and the
// database request handler.
package wasi

import (
	"fmt"
	"unsafe"
)

//go:wasmimport env log
func hostLog(ptr unsafe.Pointer, byteCount uint32)

//go:wasmimport env random_byte
func hostRandomByte() uint32

//go:wasmimport env quarry_host_handler
func hostHandler(reqPtr unsafe.Pointer, reqByteCount uint32) uint64

// Log sends a diagnostic message to the host. Fire and forget.
func Log(msg string) {
	b := []byte(msg)
	if len(b) == 0 {
		return
	}
	hostLog(unsafe.Pointer(&b[0]), uint32(len(b)))
}

// RandomByte draws one byte from the host entropy channel.
func RandomByte() byte {
	return byte(hostRandomByte())
}

// CallHost sends one request payload to the database host and returns the
// response payload. Bit 32 of the handler result flags an error payload.
func CallHost(payload []byte) ([]byte, error) {
	var ptr unsafe.Pointer
	if len(payload) > 0 {
		ptr = unsafe.Pointer(&payload[0])
	}
	res := hostHandler(ptr, uint32(len(payload)))
	handle := uint32(res)
	if res&(1<<32) != 0 {
		return nil, fmt.Errorf("wasi: host handler error: %s", TakeBytes(handle))
	}
	return TakeBytes(handle), nil
}
