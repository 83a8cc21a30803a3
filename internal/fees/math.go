package fees

import "math/big"

var (
	bigOne = big.NewInt(1)
	ratOne = big.NewRat(1, 1)
)

// roundHalfAway rounds an exact rational to the nearest integer, with
// halves rounded away from zero. Fee amounts depend on this exact
// convention; float arithmetic is never used.
func roundHalfAway(v *big.Rat) *big.Int {
	num, den := v.Num(), v.Denom()
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	doubled := new(big.Int).Abs(r)
	doubled.Lsh(doubled, 1)
	if doubled.Cmp(den) >= 0 {
		if num.Sign() >= 0 {
			q.Add(q, bigOne)
		} else {
			q.Sub(q, bigOne)
		}
	}
	return q
}

// mulDivCeil returns ceil(a*num/den). den must be positive.
func mulDivCeil(a, num, den *big.Int) *big.Int {
	product := new(big.Int).Mul(a, num)
	q, r := new(big.Int).QuoRem(product, den, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, bigOne)
	}
	return q
}

// mulDivTrunc returns a*num/den truncated toward zero. den must be
// positive.
func mulDivTrunc(a, num, den *big.Int) *big.Int {
	product := new(big.Int).Mul(a, num)
	return product.Quo(product, den)
}

// scaleByFactor returns round(amount * factor / (1 - factor)) when
// reduce is false, or round(amount * factor / (1 + factor)) when reduce
// is true. This is the shared shape of every fee reversal.
func scaleByFactor(amount *big.Int, factor *big.Rat, reduce bool) *big.Int {
	den := new(big.Rat)
	if reduce {
		den.Add(ratOne, factor)
	} else {
		den.Sub(ratOne, factor)
	}
	scaled := new(big.Rat).SetInt(amount)
	scaled.Mul(scaled, factor)
	scaled.Quo(scaled, den)
	return roundHalfAway(scaled)
}

// validFactor reports whether f lies in [0, 1). A factor of exactly 1
// would make the reversal denominator zero.
func validFactor(f *big.Rat) bool {
	return f != nil && f.Sign() >= 0 && f.Cmp(ratOne) < 0
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
