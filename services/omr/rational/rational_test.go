// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rational

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LowestTerms(t *testing.T) {
	tests := []struct {
		num, den int64
		wantNum  int64
		wantDen  int64
	}{
		{2, 4, 1, 2},
		{-2, 4, -1, 2},
		{2, -4, -1, 2},
		{-3, -9, 1, 3},
		{0, 7, 0, 1},
		{0, -7, 0, 1},
		{12, 8, 3, 2},
		{5, 1, 5, 1},
	}
	for _, tt := range tests {
		r, err := New(tt.num, tt.den)
		require.NoError(t, err)
		assert.Equal(t, tt.wantNum, r.Num(), "%d/%d", tt.num, tt.den)
		assert.Equal(t, tt.wantDen, r.Den(), "%d/%d", tt.num, tt.den)
		assert.True(t, r.Valid())
	}
}

func TestNew_ZeroDenominator(t *testing.T) {
	_, err := New(3, 0)
	assert.ErrorIs(t, err, ErrZeroDenominator)

	_, err = Half.Divides(Zero)
	assert.ErrorIs(t, err, ErrZeroDenominator)
}

func TestArithmetic_PreservesInvariant(t *testing.T) {
	values := []Rational{Zero, One, Half, Quarter, Eighth, MustNew(3, 4), MustNew(-5, 6), MustNew(7, 3)}
	for _, a := range values {
		for _, b := range values {
			for _, r := range []Rational{a.Plus(b), a.Minus(b), a.Times(b)} {
				assert.Greater(t, r.Den(), int64(0))
				assert.True(t, r.Valid(), "%s op %s = %s", a, b, r)
			}
			if !b.IsZero() {
				q, err := a.Divides(b)
				require.NoError(t, err)
				assert.True(t, q.Valid())
			}
		}
	}
}

func TestPlus(t *testing.T) {
	assert.Equal(t, MustNew(3, 4), Half.Plus(Quarter))
	assert.Equal(t, One, Half.Plus(Half))
	assert.Equal(t, Half, Half.Plus(Zero))
	assert.Equal(t, Half, Zero.Plus(Half))
	assert.Equal(t, Quarter, Half.Minus(Quarter))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Quarter.Compare(Half))
	assert.Equal(t, 1, One.Compare(Half))
	assert.Equal(t, 0, MustNew(2, 4).Compare(Half))
	assert.Equal(t, MustNew(3, 4), Maximum(MustNew(3, 4), Half))
	assert.Equal(t, Half, Minimum(MustNew(3, 4), Half))
}

func TestGCD(t *testing.T) {
	assert.Equal(t, Quarter, GCD(MustNew(3, 4), Half))
	assert.Equal(t, MustNew(1, 12), GCD(Quarter, MustNew(1, 6)))
}

func TestDecodeAndString(t *testing.T) {
	tests := []struct {
		in   string
		want Rational
		str  string
	}{
		{"3/4", MustNew(3, 4), "3/4"},
		{" 6 / 8 ", MustNew(3, 4), "3/4"},
		{"2", Int(2), "2"},
		{"4/2", Int(2), "2"},
		{"-1/3", MustNew(-1, 3), "-1/3"},
	}
	for _, tt := range tests {
		got, err := Decode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.str, got.String())
	}

	_, err := Decode("x/4")
	assert.ErrorIs(t, err, ErrMalformedRational)
	_, err = Decode("1/0")
	assert.ErrorIs(t, err, ErrZeroDenominator)
}

func TestJSON(t *testing.T) {
	type wrapper struct {
		D Rational `json:"d"`
	}
	b, err := json.Marshal(wrapper{D: MustNew(3, 8)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"3/8"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal(b, &w))
	assert.Equal(t, MustNew(3, 8), w.D)
}

func TestNew_Int64Edges(t *testing.T) {
	for _, tt := range []struct{ num, den int64 }{
		{1, math.MinInt64},
		{-1, math.MinInt64},
		{math.MinInt64, 1},
		{math.MinInt64, -1},
	} {
		_, err := New(tt.num, tt.den)
		assert.ErrorIs(t, err, ErrMalformedRational, "%d/%d", tt.num, tt.den)
	}

	_, err := Decode("-1/-9223372036854775808")
	assert.ErrorIs(t, err, ErrMalformedRational)

	r, err := New(math.MaxInt64, -math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, Int(-1), r)
	assert.True(t, r.Valid())

	assert.Panics(t, func() { Int(math.MinInt64) })
}

func TestArithmetic_LargeTerms(t *testing.T) {
	big := MustNew(1<<40, 3)
	huge := MustNew(math.MaxInt64, 1)

	t.Run("exact when the result fits", func(t *testing.T) {
		assert.Equal(t, Int(1<<40), big.Times(MustNew(3, 1)))
		assert.Equal(t, MustNew(1, 3), big.Times(MustNew(1, 1<<40)))
		assert.Equal(t, Int(math.MaxInt64-1), huge.Minus(One))
		q, err := huge.DividesInt(math.MaxInt64)
		require.NoError(t, err)
		assert.Equal(t, One, q)
		assert.Equal(t, MustNew(1<<41, 3), big.Plus(big))
	})

	t.Run("comparison never wraps", func(t *testing.T) {
		a := MustNew(math.MaxInt64, math.MaxInt64-1)
		b := MustNew(math.MaxInt64-1, math.MaxInt64-2)
		assert.Equal(t, -1, a.Compare(b))
		assert.Equal(t, 1, huge.Compare(MustNew(3, 4)))
		assert.True(t, MustNew(3, 4).Less(huge))
		assert.Equal(t, 1, MustNew(-1, math.MaxInt64).Compare(MustNew(-1, math.MaxInt64-1)))
	})

	t.Run("overflow panics", func(t *testing.T) {
		for name, op := range map[string]func(){
			"times": func() { MustNew(1<<40, 1).Times(MustNew(1<<40, 3)) },
			"plus":  func() { huge.Plus(huge) },
			"int":   func() { huge.TimesInt(2) },
		} {
			func() {
				defer func() {
					rec := recover()
					require.NotNil(t, rec, name)
					err, ok := rec.(error)
					require.True(t, ok, name)
					assert.True(t, errors.Is(err, ErrOverflow), name)
				}()
				op()
			}()
		}
	})
}
