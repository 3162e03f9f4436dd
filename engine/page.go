package engine

import (
	"encoding/binary"
	"fmt"
)

// Data pages hold a singly linked chain of row records per table.
// Layout: next page (u32, 0 terminates the chain), record count (u16),
// reserved (u16), free offset (u32), then length-prefixed records.
const dataPageHeaderSize = 12

func initDataPage(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint32(buf[8:], dataPageHeaderSize)
}

func pageNext(buf []byte) int {
	return int(binary.LittleEndian.Uint32(buf))
}

func setPageNext(buf []byte, next int) {
	binary.LittleEndian.PutUint32(buf, uint32(next))
}

func pageCount(buf []byte) int {
	return int(binary.LittleEndian.Uint16(buf[4:]))
}

func pageFree(buf []byte) int {
	return int(binary.LittleEndian.Uint32(buf[8:]))
}

// appendRecord places rec at the page's free offset, reporting false when
// the page has no room left for it.
func appendRecord(buf []byte, rec []byte) bool {
	free := pageFree(buf)
	if free+2+len(rec) > len(buf) {
		return false
	}
	binary.LittleEndian.PutUint16(buf[free:], uint16(len(rec)))
	copy(buf[free+2:], rec)
	binary.LittleEndian.PutUint16(buf[4:], uint16(pageCount(buf)+1))
	binary.LittleEndian.PutUint32(buf[8:], uint32(free+2+len(rec)))
	return true
}

// pageRecords returns the raw record payloads stored on the page, in
// insertion order.
func pageRecords(buf []byte) ([][]byte, error) {
	count := pageCount(buf)
	recs := make([][]byte, 0, count)
	off := dataPageHeaderSize
	for i := 0; i < count; i++ {
		if off+2 > len(buf) {
			return nil, fmt.Errorf("engine: page record %d out of bounds", i)
		}
		ln := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+ln > len(buf) {
			return nil, fmt.Errorf("engine: page record %d overruns page", i)
		}
		recs = append(recs, buf[off:off+ln])
		off += ln
	}
	return recs, nil
}
