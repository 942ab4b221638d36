// Package core defines the domain model shared by the HTTP layer, the
// service layer and storage: users, categories, transactions, money and
// reporting aggregates.
package core

import (
	"bytes"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the user's currency, held as integer cents to
// keep arithmetic exact. It marshals as a two-place decimal JSON number.
type Money struct {
	Cents int64
}

var errTooManyDecimals = errors.New("amount has more than two decimal places")

// ParseAmount converts a decimal string (as found in request payloads)
// to Money. At most two decimal places are accepted; more precision is
// an error rather than silently rounded, since client UIs only ever
// produce two places.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return Money{}, errTooManyDecimals
	}
	return Money{Cents: d.Round(2).Shift(2).IntPart()}, nil
}

// Decimal returns the amount as an exact two-place decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimal places, e.g. "123.45".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON emits the amount as a JSON number with two decimal places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts either a JSON number or a decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if string(data) == "null" {
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return ErrInvalidAmount
	}
	if !d.Equal(d.Round(2)) {
		return errTooManyDecimals
	}
	m.Cents = d.Shift(2).IntPart()
	return nil
}
