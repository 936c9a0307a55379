package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"time"
)

// Fingerprint returns a deterministic hex digest over the column names and every
// cell in row/column order. Each value is written with a type tag and a length
// prefix, so adjacent cells cannot run together and nil never equals "".
func Fingerprint(t *Table) string {
	h := sha256.New()
	if t == nil {
		return hex.EncodeToString(h.Sum(nil))
	}

	writeInt(h, int64(len(t.Columns)))
	for _, c := range t.Columns {
		writeString(h, 's', c)
	}

	writeInt(h, int64(len(t.Rows)))
	for _, row := range t.Rows {
		writeInt(h, int64(len(row)))
		for _, cell := range row {
			writeCell(h, cell)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RowFingerprint digests a single row the same way Fingerprint digests cells.
func RowFingerprint(row []any) string {
	h := sha256.New()
	writeInt(h, int64(len(row)))
	for _, cell := range row {
		writeCell(h, cell)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeCell(h hash.Hash, cell any) {
	switch v := NormalizeValue(cell).(type) {
	case nil:
		h.Write([]byte{'n'})
	case string:
		writeString(h, 's', v)
	case int64:
		h.Write([]byte{'i'})
		writeInt(h, v)
	case float64:
		h.Write([]byte{'f'})
		writeInt(h, int64(math.Float64bits(v)))
	case bool:
		if v {
			h.Write([]byte{'b', 1})
		} else {
			h.Write([]byte{'b', 0})
		}
	case time.Time:
		writeString(h, 't', v.Format(time.RFC3339Nano))
	default:
		writeString(h, 'o', fmt.Sprint(v))
	}
}

func writeString(h hash.Hash, tag byte, s string) {
	h.Write([]byte{tag})
	writeInt(h, int64(len(s)))
	h.Write([]byte(s))
}

func writeInt(h hash.Hash, n int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}
