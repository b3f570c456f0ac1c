// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rational provides the exact fraction type used for every
// musical duration.
//
// A Rational is always stored in lowest terms with a strictly positive
// denominator. Every constructor and every arithmetic operation enforces
// this, so two equal values always compare equal with ==.
//
// Numerator and denominator fit in an int64 other than math.MinInt64.
// Intermediate products are computed exactly. An arithmetic result that
// does not fit panics with ErrOverflow; comparisons never overflow.
package rational

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Sentinel errors.
var (
	// ErrZeroDenominator is returned when a fraction would divide by zero.
	ErrZeroDenominator = errors.New("zero denominator")

	// ErrMalformedRational is returned when a string cannot be decoded or
	// a term is out of range.
	ErrMalformedRational = errors.New("malformed rational")

	// ErrOverflow is the panic value of an arithmetic result that does not
	// fit in an int64 fraction.
	ErrOverflow = errors.New("rational overflow")
)

// small bounds the terms whose products and sums stay within int64.
const small = 1 << 31

// Rational is an immutable exact fraction.
//
// The zero value is not valid; use Zero or New.
type Rational struct {
	num int64
	den int64
}

// Common values.
var (
	Zero    = Rational{0, 1}
	One     = Rational{1, 1}
	Half    = Rational{1, 2}
	Quarter = Rational{1, 4}
	Eighth  = Rational{1, 8}
	Max     = Rational{1<<62 - 1, 1}
)

// New returns num/den in lowest terms.
//
// Errors:
//
//	ErrZeroDenominator - den is zero
//	ErrMalformedRational - num or den is math.MinInt64
func New(num, den int64) (Rational, error) {
	if den == 0 {
		return Rational{}, fmt.Errorf("%w: %d/0", ErrZeroDenominator, num)
	}
	if num == math.MinInt64 || den == math.MinInt64 {
		return Rational{}, fmt.Errorf("%w: %d/%d out of range", ErrMalformedRational, num, den)
	}
	return normalize(num, den), nil
}

// MustNew is like New but panics on an error. Intended for constants.
func MustNew(num, den int64) Rational {
	r, err := New(num, den)
	if err != nil {
		panic(err)
	}
	return r
}

// Int returns n/1. It panics when n is math.MinInt64.
func Int(n int64) Rational {
	return MustNew(n, 1)
}

// normalize reduces num/den. Neither term may be math.MinInt64.
func normalize(num, den int64) Rational {
	if den < 0 {
		num, den = -num, -den
	}
	if num == 0 {
		return Rational{0, 1}
	}
	g := gcd(abs(num), den)
	return Rational{num / g, den / g}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func isSmall(vs ...int64) bool {
	for _, v := range vs {
		if v <= -small || v >= small {
			return false
		}
	}
	return true
}

// fromBig reduces n/d computed exactly and converts it back, panicking
// with ErrOverflow when a term does not fit.
func fromBig(n, d *big.Int) Rational {
	if d.Sign() < 0 {
		n.Neg(n)
		d.Neg(d)
	}
	if n.Sign() == 0 {
		return Zero
	}
	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(n), d)
	n.Quo(n, g)
	d.Quo(d, g)
	if !fits(n) || !fits(d) {
		panic(fmt.Errorf("%w: %s/%s", ErrOverflow, n, d))
	}
	return Rational{n.Int64(), d.Int64()}
}

func fits(v *big.Int) bool {
	return v.IsInt64() && v.Int64() != math.MinInt64
}

// product returns a*b exactly.
func product(a, b int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
}

// Num returns the numerator.
func (r Rational) Num() int64 { return r.num }

// Den returns the denominator, always > 0 for a valid value.
func (r Rational) Den() int64 {
	if r.den == 0 {
		return 1
	}
	return r.den
}

// Valid reports whether r was built through this package.
func (r Rational) Valid() bool {
	return r.den > 0 && r.num != math.MinInt64 && gcd(abs(r.num), r.den) == 1
}

// Plus returns r + o.
func (r Rational) Plus(o Rational) Rational {
	if o.num == 0 {
		return r.fix()
	}
	if r.num == 0 {
		return o.fix()
	}
	a, b, c, d := r.num, r.Den(), o.num, o.Den()
	if isSmall(a, b, c, d) {
		return normalize(a*d+c*b, b*d)
	}
	n := product(a, d)
	n.Add(n, product(c, b))
	return fromBig(n, product(b, d))
}

// Minus returns r - o.
func (r Rational) Minus(o Rational) Rational {
	return r.Plus(o.Opposite())
}

// Times returns r * o.
func (r Rational) Times(o Rational) Rational {
	if isSmall(r.num, r.Den(), o.num, o.Den()) {
		return normalize(r.num*o.num, r.Den()*o.Den())
	}
	return fromBig(product(r.num, o.num), product(r.Den(), o.Den()))
}

// TimesInt returns r * n.
func (r Rational) TimesInt(n int64) Rational {
	return r.times(n, 1)
}

func (r Rational) times(num, den int64) Rational {
	if isSmall(r.num, r.Den(), num, den) {
		return normalize(r.num*num, r.Den()*den)
	}
	return fromBig(product(r.num, num), product(r.Den(), den))
}

// Divides returns r / o.
//
// Errors:
//
//	ErrZeroDenominator - o is zero
func (r Rational) Divides(o Rational) (Rational, error) {
	if o.num == 0 {
		return Rational{}, fmt.Errorf("%w: division by zero", ErrZeroDenominator)
	}
	return r.times(o.Den(), o.num), nil
}

// DividesInt returns r / n.
//
// Errors:
//
//	ErrZeroDenominator - n is zero
func (r Rational) DividesInt(n int64) (Rational, error) {
	if n == 0 {
		return Rational{}, fmt.Errorf("%w: division by zero", ErrZeroDenominator)
	}
	return r.times(1, n), nil
}

// Opposite returns -r.
func (r Rational) Opposite() Rational {
	return Rational{-r.num, r.Den()}
}

// Abs returns |r|.
func (r Rational) Abs() Rational {
	return Rational{abs(r.num), r.Den()}
}

// Compare returns -1, 0 or +1.
func (r Rational) Compare(o Rational) int {
	if !isSmall(r.num, r.Den(), o.num, o.Den()) {
		return product(r.num, o.Den()).Cmp(product(o.num, r.Den()))
	}
	a := r.num * o.Den()
	b := o.num * r.Den()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports numeric equality.
func (r Rational) Equal(o Rational) bool {
	return r.Compare(o) == 0
}

// Less reports r < o.
func (r Rational) Less(o Rational) bool {
	return r.Compare(o) < 0
}

// Sign returns -1, 0 or +1.
func (r Rational) Sign() int {
	switch {
	case r.num < 0:
		return -1
	case r.num > 0:
		return 1
	default:
		return 0
	}
}

// IsZero reports r == 0.
func (r Rational) IsZero() bool {
	return r.num == 0
}

// Float64 returns the nearest float.
func (r Rational) Float64() float64 {
	return float64(r.num) / float64(r.Den())
}

// Maximum returns the larger of a and b.
func Maximum(a, b Rational) Rational {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

// Minimum returns the smaller of a and b.
func Minimum(a, b Rational) Rational {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}

// GCD returns the greatest common divisor of two non-negative fractions,
// the largest fraction that divides both exactly.
func GCD(a, b Rational) Rational {
	x := product(a.num, b.Den())
	y := product(b.num, a.Den())
	num := new(big.Int).GCD(nil, nil, x.Abs(x), y.Abs(y))
	return fromBig(num, product(a.Den(), b.Den()))
}

// fix maps the invalid zero value to Zero.
func (r Rational) fix() Rational {
	if r.den == 0 {
		return Zero
	}
	return r
}

// String returns "n" for whole values and "n/d" otherwise.
func (r Rational) String() string {
	if r.Den() == 1 {
		return strconv.FormatInt(r.num, 10)
	}
	return strconv.FormatInt(r.num, 10) + "/" + strconv.FormatInt(r.den, 10)
}

// Decode parses "n" or "n/d", tolerating surrounding spaces.
//
// Errors:
//
//	ErrMalformedRational - not a fraction
//	ErrZeroDenominator - d is zero
func Decode(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	numStr, denStr, found := strings.Cut(s, "/")
	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("%w: %q", ErrMalformedRational, s)
	}
	den := int64(1)
	if found {
		den, err = strconv.ParseInt(strings.TrimSpace(denStr), 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("%w: %q", ErrMalformedRational, s)
		}
	}
	return New(num, den)
}

// MarshalText encodes the value as "n/d".
func (r Rational) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes "n/d".
func (r *Rational) UnmarshalText(b []byte) error {
	v, err := Decode(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
