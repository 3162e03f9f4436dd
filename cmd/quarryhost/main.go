// quarryhost runs a guest WebAssembly module against an in-process quarry
// database. The host module "env" provides the guest with a diagnostic
// log sink, a single-byte entropy channel, and the database request
// handler; buffers cross the boundary through the guest's exported
// alloc_bytes/free_bytes pair.
package main

import (
	"context"
	cryptorand "crypto/rand"
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/quarrydb/quarry"
	"github.com/quarrydb/quarry/host"
)

var cli struct {
	Guest string `arg:"" help:"Path to the guest WebAssembly module." type:"existingfile"`
	DB    string `name:"db" default:":memory:" help:"Database path. Only :memory: is supported."`
}

func readBytes(m api.Module, off, byteCount uint32) []byte {
	buf, ok := m.Memory().Read(off, byteCount)
	if !ok {
		log.Panicf("Memory.Read(%d, %d) out of range", off, byteCount)
	}
	return buf
}

// writeBytes copies data into guest memory through the guest's allocator
// and returns the handle the guest uses to claim it.
func writeBytes(ctx context.Context, m api.Module, data []byte) uint32 {
	alloc := m.ExportedFunction("alloc_bytes")
	if alloc == nil {
		log.Panicln("guest does not export alloc_bytes")
	}
	result, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		log.Panicln(err)
	}
	handle := uint32(result[0] >> 32)
	ptr := uint32(result[0])
	if len(data) > 0 && !m.Memory().Write(ptr, data) {
		log.Panicln("Memory.Write failed")
	}
	return handle
}

func randomByte() byte {
	var b [1]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		log.Panicf("entropy source failed: %v", err)
	}
	return b[0]
}

func main() {
	kong.Parse(&cli,
		kong.Name("quarryhost"),
		kong.Description("Run a WebAssembly guest against an embedded quarry database."))

	db, err := quarry.New(cli.DB,
		quarry.WithRandomBytes(randomByte),
		quarry.WithLogFunc(func(msg string) { log.Print(msg) }))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	h := host.New(db)

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	hostLog := func(ctx context.Context, m api.Module, off, byteCount uint32) {
		log.Printf("guest: %s", readBytes(m, off, byteCount))
	}
	hostRandomByte := func() uint32 {
		return uint32(randomByte())
	}
	// The low 32 bits carry the response byte handle; bit 32 flags an
	// error payload instead of a response.
	handleRequest := func(ctx context.Context, m api.Module, reqOff, reqByteCount uint32) uint64 {
		request := readBytes(m, reqOff, reqByteCount)
		response, err := h.HandleRequest(request)
		if err != nil {
			log.Printf("Error handling database request: %v", err)
			return uint64(writeBytes(ctx, m, []byte(err.Error()))) | (1 << 32)
		}
		return uint64(writeBytes(ctx, m, response))
	}

	_, err = r.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(hostLog).Export("log").
		NewFunctionBuilder().WithFunc(hostRandomByte).Export("random_byte").
		NewFunctionBuilder().WithFunc(handleRequest).Export("quarry_host_handler").
		Instantiate(ctx)
	if err != nil {
		log.Fatal(err)
	}

	guestWasm, err := os.ReadFile(cli.Guest)
	if err != nil {
		log.Fatalf("Failed to read guest module: %v", err)
	}

	_, err = r.InstantiateWithConfig(ctx, guestWasm,
		wazero.NewModuleConfig().
			WithStdout(os.Stdout).
			WithStderr(os.Stderr).
			WithArgs("guest"))
	if err != nil {
		log.Fatalf("Guest failed: %v", err)
	}
}
