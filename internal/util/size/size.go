// Package size renders byte counts as short human-readable strings.
package size

import (
	"math"
	"strconv"
)

var (
	decimalUnits = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}
	binaryUnits  = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}
)

// Format selects the unit base and the largest unit index the formatter may use.
type Format struct {
	Base       uint64 // 1000 or 1024
	ClampIndex int    // largest unit index; negative is treated as 0
}

// Decimal uses powers of 1000 up to the largest unit in the table.
var Decimal = Format{Base: 1000, ClampIndex: len(decimalUnits) - 1}

// Binary uses powers of 1024 up to the largest unit in the table.
var Binary = Format{Base: 1024, ClampIndex: len(binaryUnits) - 1}

func (f Format) units() []string {
	if f.Base == 1000 {
		return decimalUnits
	}
	return binaryUnits
}

func (f Format) base() uint64 {
	if f.Base == 1000 {
		return 1000
	}
	return 1024
}

// Index returns clamp(floor(log_base(max(n,1))), 0, bound) where bound is the
// smaller of ClampIndex and the last unit in the table.
func (f Format) Index(n uint64) int {
	bound := f.ClampIndex
	if last := len(f.units()) - 1; bound > last {
		bound = last
	}
	if bound < 0 {
		bound = 0
	}

	base := f.base()
	if n < 1 {
		n = 1
	}
	idx := 0
	for n >= base && idx < bound {
		n /= base
		idx++
	}
	return idx
}

// String renders n as round(n / base^index) followed by the unit name.
func (f Format) String(n uint64) string {
	idx := f.Index(n)
	scaled := math.Round(float64(n) / math.Pow(float64(f.base()), float64(idx)))
	return strconv.FormatFloat(scaled, 'f', 0, 64) + f.Unit(idx)
}

// Unit returns the unit name at idx, clamped to the table.
func (f Format) Unit(idx int) string {
	units := f.units()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(units) {
		idx = len(units) - 1
	}
	return units[idx]
}

// ToReadableSize formats n with binary units and no index bound beyond the table.
func ToReadableSize(n uint64) string {
	return Binary.String(n)
}
