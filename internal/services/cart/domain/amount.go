package domain

import (
	"bytes"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/sharedcart/internal/platform/errors"
	"github.com/shopspring/decimal"
)

// Amount is an exact decimal monetary value.
//
// It encodes as a bare JSON number and decodes from either a JSON number or a
// numeric string, so clients that send "6.99" and 6.99 agree.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// Input bounds. Amounts are at most 1e9 in magnitude with at most four
// fractional digits; the text and exponent limits are checked before any
// arithmetic that could expand the coefficient.
const (
	maxAmountText     = 32
	maxAmountExponent = 9
	minAmountExponent = -maxAmountText
	amountPlaces      = 4
)

var maxAmount = decimal.New(1, maxAmountExponent)

// AmountFromString parses a decimal string such as "6.99". Values outside
// ±1e9 or with more than four fractional digits are rejected.
func AmountFromString(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxAmountText {
		return Amount{}, apperrors.New(apperrors.CodeInvalidArgument, "amount is out of range")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "amount must be a number", err)
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < minAmountExponent {
		return Amount{}, apperrors.New(apperrors.CodeInvalidArgument, "amount is out of range")
	}
	if d.Abs().GreaterThan(maxAmount) {
		return Amount{}, apperrors.New(apperrors.CodeInvalidArgument, "amount is out of range")
	}
	if !d.Equal(d.Round(amountPlaces)) {
		return Amount{}, apperrors.New(apperrors.CodeInvalidArgument, "amount has too many decimal places")
	}
	return Amount{d: d}, nil
}

// MustAmount parses s and panics on failure. Intended for literals.
func MustAmount(s string) Amount {
	a, err := AmountFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Times returns a multiplied by an integer quantity.
func (a Amount) Times(quantity int) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(int64(quantity)))}
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// Equal reports whether a and b are numerically equal.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// String returns the canonical decimal text, e.g. "13.98".
func (a Amount) String() string { return a.d.String() }

// MarshalJSON encodes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a string holding a number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return apperrors.New(apperrors.CodeInvalidArgument, "amount must be a number")
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidArgument, "amount must be a number", err)
		}
		text = unquoted
	}
	parsed, err := AmountFromString(text)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
