// Package deals computes the money side of a closed deal: the agreed amount,
// the commission rate in effect, and the resulting commission. All rounding
// goes through decimal arithmetic so the output is deterministic.
package deals

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// DefaultCommissionRate is used when neither an explicit override nor a
// previously stored rate exists.
const DefaultCommissionRate = 5.0

var (
	// ErrInvalidPrice is returned for amounts that are not non-negative
	// finite numbers.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidRate is returned for commission rates outside [0, 100].
	ErrInvalidRate = errors.New("invalid commission rate")

	// ErrInvalidCycles is returned when commission cycles are not a
	// non-negative integer.
	ErrInvalidCycles = errors.New("commission cycles must be a non-negative integer")
)

// ResolveDealAmount returns fallback when explicit is blank, otherwise the
// parsed value. Both "1234.56" and the pt-BR "1.234,56" forms are accepted;
// dot-grouped input without a decimal comma ("300.000") is ErrInvalidPrice.
func ResolveDealAmount(explicit string, fallback float64) (float64, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit == "" {
		return fallback, nil
	}
	v, err := parseAmount(explicit)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, ErrInvalidPrice
	}
	return v, nil
}

// CommissionAmount returns amount * ratePercent / 100 rounded half-up to
// two decimal places.
func CommissionAmount(amount, ratePercent float64) float64 {
	d := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(ratePercent)).
		Div(decimal.NewFromInt(100)).
		Round(2)
	f, _ := d.Float64()
	return f
}

// Round2 rounds v half-up to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// ResolveRate picks the commission rate for a deal: an explicit override,
// then the rate stored on the property, then DefaultCommissionRate.
func ResolveRate(override, stored *float64, def float64) (float64, error) {
	rate := def
	switch {
	case override != nil:
		rate = *override
	case stored != nil:
		rate = *stored
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 || rate > 100 {
		return 0, ErrInvalidRate
	}
	return rate, nil
}

// ParseRate parses an optional rate string. Blank input yields nil.
func ParseRate(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := parseAmount(raw)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
		return nil, ErrInvalidRate
	}
	return &v, nil
}

// ParseCycles parses the number of already-paid commission cycles. Blank
// input yields 0.
func ParseCycles(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, ErrInvalidCycles
	}
	return n, nil
}

// ParseRecurrence is domain.ParseRecurrence, re-exported next to the other
// deal parsers for callers that only import this package.
func ParseRecurrence(raw string) (domain.RecurrenceInterval, error) {
	return domain.ParseRecurrence(raw)
}

// dotGrouped matches pt-BR thousands grouping with no decimal part, such as
// "300.000" or "1.250.000".
var dotGrouped = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

var errAmbiguousAmount = errors.New("dot-grouped amount without decimal comma")

// parseAmount accepts "1234.56", "1234,56" and "1.234,56". A dot-grouped
// value with no comma ("300.000") is rejected: read as a decimal it would
// be off by a factor of a thousand.
func parseAmount(s string) (float64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "R$")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else if dotGrouped.MatchString(s) {
		return 0, errAmbiguousAmount
	}
	return strconv.ParseFloat(s, 64)
}
