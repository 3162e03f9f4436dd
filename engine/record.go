package engine

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Row records are encoded as a column count followed by one tagged cell
// per column. Integers and floats are fixed width little endian; text and
// blobs are length prefixed.
const (
	tagNull  = 0
	tagInt   = 1
	tagFloat = 2
	tagText  = 3
	tagBlob  = 4
)

func encodeRow(row []Value) []byte {
	buf := make([]byte, 2, 2+16*len(row))
	binary.LittleEndian.PutUint16(buf, uint16(len(row)))
	for _, v := range row {
		switch v.Kind {
		case KindNull:
			buf = append(buf, tagNull)
		case KindInteger:
			buf = append(buf, tagInt)
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v.Int))
		case KindFloat:
			buf = append(buf, tagFloat)
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float))
		case KindText:
			buf = append(buf, tagText)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Text)))
			buf = append(buf, v.Text...)
		case KindBlob:
			buf = append(buf, tagBlob)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Blob)))
			buf = append(buf, v.Blob...)
		}
	}
	return buf
}

func decodeRow(buf []byte) ([]Value, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("engine: record truncated: %d bytes", len(buf))
	}
	n := int(binary.LittleEndian.Uint16(buf))
	buf = buf[2:]
	row := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		if len(buf) < 1 {
			return nil, fmt.Errorf("engine: record truncated in column %d", i)
		}
		tag := buf[0]
		buf = buf[1:]
		switch tag {
		case tagNull:
			row = append(row, Null())
		case tagInt:
			if len(buf) < 8 {
				return nil, fmt.Errorf("engine: record truncated in column %d", i)
			}
			row = append(row, Integer(int64(binary.LittleEndian.Uint64(buf))))
			buf = buf[8:]
		case tagFloat:
			if len(buf) < 8 {
				return nil, fmt.Errorf("engine: record truncated in column %d", i)
			}
			row = append(row, Float(math.Float64frombits(binary.LittleEndian.Uint64(buf))))
			buf = buf[8:]
		case tagText, tagBlob:
			if len(buf) < 4 {
				return nil, fmt.Errorf("engine: record truncated in column %d", i)
			}
			ln := int(binary.LittleEndian.Uint32(buf))
			buf = buf[4:]
			if len(buf) < ln {
				return nil, fmt.Errorf("engine: record truncated in column %d", i)
			}
			if tag == tagText {
				row = append(row, Text(string(buf[:ln])))
			} else {
				b := make([]byte, ln)
				copy(b, buf[:ln])
				row = append(row, Blob(b))
			}
			buf = buf[ln:]
		default:
			return nil, fmt.Errorf("engine: unknown value tag %d in column %d", tag, i)
		}
	}
	return row, nil
}
