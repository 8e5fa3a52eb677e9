package frame

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
)

// RowHash вычисляет XXH3 (64-bit) хеш строки по значениям всех столбцов.
// Используется для быстрого обнаружения изменённых строк между загрузками.
func (f *Frame) RowHash(row int) uint64 {
	var buf []byte
	for c := range f.cols {
		buf = appendValue(buf, f.cols[c].Values[row])
		buf = append(buf, 0x1f)
	}
	return xxh3.Hash(buf)
}

// Checksum вычисляет сводный XXH3 хеш всего фрейма (hex-строка).
// Хеш чувствителен к порядку строк и столбцов.
func (f *Frame) Checksum() string {
	var buf []byte
	for _, c := range f.cols {
		buf = append(buf, c.Name...)
		buf = append(buf, 0x1e)
	}
	for i := 0; i < f.NumRows(); i++ {
		var h [8]byte
		binary.LittleEndian.PutUint64(h[:], f.RowHash(i))
		buf = append(buf, h[:]...)
	}
	sum := xxh3.Hash(buf)
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], sum)
	return hex.EncodeToString(out[:])
}

// HashIndex строит отображение хеш строки -> номер строки.
// При совпадении хешей побеждает последняя строка.
func (f *Frame) HashIndex() map[uint64]int {
	idx := make(map[uint64]int, f.NumRows())
	for i := 0; i < f.NumRows(); i++ {
		idx[f.RowHash(i)] = i
	}
	return idx
}

func appendValue(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, 0x00)
	case bool:
		if x {
			return append(buf, 'b', 1)
		}
		return append(buf, 'b', 0)
	case int64:
		buf = append(buf, 'i')
		return binary.LittleEndian.AppendUint64(buf, uint64(x))
	case float64:
		buf = append(buf, 'f')
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	case decimal.Decimal:
		buf = append(buf, 'd')
		return append(buf, x.String()...)
	case string:
		buf = append(buf, 's')
		return append(buf, x...)
	case time.Time:
		buf = append(buf, 't')
		return binary.LittleEndian.AppendUint64(buf, uint64(x.UnixNano()))
	case time.Duration:
		buf = append(buf, 'D')
		return binary.LittleEndian.AppendUint64(buf, uint64(x))
	case []byte:
		buf = append(buf, 'B')
		return append(buf, x...)
	}
	return buf
}
