package core

import (
	"errors"
	"math"
	"testing"
)

func TestGuessDifference(t *testing.T) {
	cases := []struct {
		price, guess uint32
		want         uint32
		err          error
	}{
		{220000, 220000, 0, nil},
		{220000, 192500, 125, nil},
		{220000, 247500, 125, nil},
		{1000, 0, 1000, nil},
		{100, 1000, 9000, nil},
		{3_000_000, 0, 0, ErrMultiply},
		{math.MaxUint32, 1, 0, ErrConversion},
		{0, 5, 0, ErrDivision},
	}
	for _, tc := range cases {
		got, err := GuessDifference(tc.price, tc.guess)
		if !errors.Is(err, tc.err) {
			t.Errorf("GuessDifference(%d, %d) err: got %v want %v", tc.price, tc.guess, err, tc.err)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("GuessDifference(%d, %d): got %d want %d", tc.price, tc.guess, got, tc.want)
		}
	}
}

func TestApplyDelta(t *testing.T) {
	if got, err := ApplyDelta(10, 25); err != nil || got != 35 {
		t.Errorf("10+25: got %d (%v)", got, err)
	}
	if got, err := ApplyDelta(50, -50); err != nil || got != 0 {
		t.Errorf("50-50: got %d (%v)", got, err)
	}
	if _, err := ApplyDelta(5, -10); !errors.Is(err, ErrArithmeticUnderflow) {
		t.Errorf("5-10: got %v want ErrArithmeticUnderflow", err)
	}
	if _, err := ApplyDelta(math.MaxUint32, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Errorf("max+1: got %v want ErrArithmeticOverflow", err)
	}
	if got, err := ApplyDelta(math.MaxUint32, math.MinInt32); err != nil || got != math.MaxUint32-1<<31 {
		t.Errorf("max+minint: got %d (%v)", got, err)
	}
}

func TestCheckedHeight(t *testing.T) {
	if _, err := AddHeight(math.MaxInt64-1, 5); !errors.Is(err, ErrArithmeticOverflow) {
		t.Errorf("got %v want ErrArithmeticOverflow", err)
	}
	if h, err := AddHeight(7, 5); err != nil || h != 12 {
		t.Errorf("7+5: got %d (%v)", h, err)
	}
}
