package core

import "math"

// AddU32 returns a+b or ErrArithmeticOverflow.
func AddU32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// SubU32 returns a-b or ErrArithmeticUnderflow.
func SubU32(a, b uint32) (uint32, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}

// AddU64 returns a+b or ErrArithmeticOverflow.
func AddU64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

// SubU64 returns a-b or ErrArithmeticUnderflow.
func SubU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}

// AddHeight returns h+n or ErrArithmeticOverflow.
func AddHeight(h, n int64) (int64, error) {
	if n > 0 && h > math.MaxInt64-n {
		return 0, ErrArithmeticOverflow
	}
	return h + n, nil
}

// ApplyDelta adds a signed delta to points. Negative deltas that would go
// below zero fail with ErrArithmeticUnderflow.
func ApplyDelta(points uint32, delta int32) (uint32, error) {
	if delta >= 0 {
		return AddU32(points, uint32(delta))
	}
	return SubU32(points, uint32(-int64(delta)))
}

// GuessDifference returns |(price-guess)*1000/price| using 32-bit signed
// arithmetic, so the result is the guess error in per-mille of the price.
func GuessDifference(price, guess uint32) (uint32, error) {
	if price > math.MaxInt32 || guess > math.MaxInt32 {
		return 0, ErrConversion
	}
	diff := int64(price) - int64(guess)
	if diff < math.MinInt32 || diff > math.MaxInt32 {
		return 0, ErrArithmeticUnderflow
	}
	scaled := diff * 1000
	if scaled < math.MinInt32 || scaled > math.MaxInt32 {
		return 0, ErrMultiply
	}
	if price == 0 {
		return 0, ErrDivision
	}
	q := scaled / int64(price)
	if q < 0 {
		q = -q
	}
	return uint32(q), nil
}
