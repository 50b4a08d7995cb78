package fastcdc

import "math/bits"

const (
	// AutoMinAverage is the smallest average AutoAverageSize picks.
	AutoMinAverage = 128 << 10
	// AutoMaxAverage keeps round(log2(avg))+DefaultNormalization inside the
	// mask table.
	AutoMaxAverage = 8 << 20
)

// AutoAverageSize picks an average chunk size for a stream of the given
// length: size/32 truncated to its five most significant bits, clamped to
// [AutoMinAverage, AutoMaxAverage]. Small files get few chunks and huge
// files do not explode into millions of them.
func AutoAverageSize(size int64) int {
	if size < 0 {
		size = 0
	}
	box := uint64(size) / 32
	shift := max(bits.Len64(box)-5, 0)
	avg := (box >> shift) << shift
	return int(min(max(avg, AutoMinAverage), AutoMaxAverage))
}

// AutoOptions derives complete Options from AutoAverageSize.
func AutoOptions(size int64) Options {
	avg := AutoAverageSize(size)
	return Options{
		MinSize:       avg / 4,
		AverageSize:   avg,
		MaxSize:       avg * 4,
		Normalization: DefaultNormalization,
	}
}
