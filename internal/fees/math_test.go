package fees

import (
	"math/big"
	"testing"
)

func TestRoundHalfAway(t *testing.T) {
	cases := []struct {
		num, den int64
		want     int64
	}{
		{7, 2, 4},
		{-7, 2, -4},
		{5, 2, 3},
		{-5, 2, -3},
		{1, 3, 0},
		{-1, 3, 0},
		{2, 3, 1},
		{400, 9, 44},
		{99400, 19, 5232},
		{6, 2, 3},
		{0, 5, 0},
	}
	for _, c := range cases {
		got := roundHalfAway(big.NewRat(c.num, c.den))
		if got.Int64() != c.want {
			t.Fatalf("roundHalfAway(%d/%d) = %s, want %d", c.num, c.den, got, c.want)
		}
	}
}

func TestMulDivCeil(t *testing.T) {
	got := mulDivCeil(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Int64() != 11 {
		t.Fatalf("ceil(7*3/2) = %s, want 11", got)
	}

	got = mulDivCeil(big.NewInt(4), big.NewInt(3), big.NewInt(2))
	if got.Int64() != 6 {
		t.Fatalf("ceil(4*3/2) = %s, want 6", got)
	}
}

func TestMulDivTrunc(t *testing.T) {
	got := mulDivTrunc(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Int64() != 10 {
		t.Fatalf("trunc(7*3/2) = %s, want 10", got)
	}

	got = mulDivTrunc(big.NewInt(-7), big.NewInt(3), big.NewInt(2))
	if got.Int64() != -10 {
		t.Fatalf("trunc(-7*3/2) = %s, want -10", got)
	}
}

func TestScaleByFactor(t *testing.T) {
	grow := scaleByFactor(big.NewInt(1000), big.NewRat(1, 10), false)
	if grow.Int64() != 111 {
		t.Fatalf("grow fee = %s, want 111", grow)
	}

	reduce := scaleByFactor(big.NewInt(1000), big.NewRat(1, 10), true)
	if reduce.Int64() != 91 {
		t.Fatalf("reduce fee = %s, want 91", reduce)
	}
}
