package materialize

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/procflow/internal/condition"
	"github.com/roach88/procflow/internal/ir"
)

// moneyCtx does all monetary arithmetic: 34 significant digits, half-up
// rounding when quantizing to cents.
var moneyCtx = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// shareCtx rounds shares down so the remainder left for the last share
// is never negative.
var shareCtx = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundDown
	return c
}()

var hundred = apd.New(100, 0)

// MaxInstallments bounds the installments of one payment line.
const MaxInstallments = 360

// decimal parses decimal text from a template field. Empty text is zero.
func decimal(field, text string) (*apd.Decimal, error) {
	if text == "" {
		return apd.New(0, 0), nil
	}
	n, err := ir.ParseIRNumber(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return n.Decimal(), nil
}

// fieldNumber reads a numeric entity field (numeric text accepted).
func fieldNumber(fields ir.IRObject, name string) (*apd.Decimal, bool) {
	n, ok := condition.AsNumber(fields.Field(name))
	if !ok {
		return nil, false
	}
	return n.Decimal(), true
}

// cents rounds to two decimal places.
func cents(d *apd.Decimal) (*apd.Decimal, error) {
	var out apd.Decimal
	if _, err := moneyCtx.Quantize(&out, d, -2); err != nil {
		return nil, err
	}
	return &out, nil
}

// floorCents truncates a non-negative value to two decimal places.
func floorCents(d *apd.Decimal) (*apd.Decimal, error) {
	var out apd.Decimal
	if _, err := shareCtx.Quantize(&out, d, -2); err != nil {
		return nil, err
	}
	return &out, nil
}

// percentOf returns base × pct / 100, rounded half-up to cents.
func percentOf(base, pct *apd.Decimal) (*apd.Decimal, error) {
	quotient, err := exactPercentOf(base, pct)
	if err != nil {
		return nil, err
	}
	return cents(quotient)
}

// shareOf returns base × pct / 100 truncated to cents, for splits whose
// remainder goes to a later share.
func shareOf(base, pct *apd.Decimal) (*apd.Decimal, error) {
	quotient, err := exactPercentOf(base, pct)
	if err != nil {
		return nil, err
	}
	return floorCents(quotient)
}

func exactPercentOf(base, pct *apd.Decimal) (*apd.Decimal, error) {
	var product, quotient apd.Decimal
	if _, err := moneyCtx.Mul(&product, base, pct); err != nil {
		return nil, err
	}
	if _, err := moneyCtx.Quo(&quotient, &product, hundred); err != nil {
		return nil, err
	}
	return &quotient, nil
}

// splitInstallments divides a non-negative amount into n installments of
// equal value truncated to cents; the remainder goes to the last one, so they
// always sum to amount exactly and none is negative.
func splitInstallments(amount *apd.Decimal, n int) ([]*apd.Decimal, error) {
	if n < 1 || n > MaxInstallments {
		return nil, fmt.Errorf("installment count must be between 1 and %d, got %d", MaxInstallments, n)
	}
	var each apd.Decimal
	if _, err := moneyCtx.Quo(&each, amount, apd.New(int64(n), 0)); err != nil {
		return nil, err
	}
	base, err := floorCents(&each)
	if err != nil {
		return nil, err
	}

	parts := make([]*apd.Decimal, n)
	var allocated apd.Decimal
	for i := 0; i < n-1; i++ {
		parts[i] = base
		if _, err := moneyCtx.Add(&allocated, &allocated, base); err != nil {
			return nil, err
		}
	}
	var last apd.Decimal
	if _, err := moneyCtx.Sub(&last, amount, &allocated); err != nil {
		return nil, err
	}
	parts[n-1] = &last
	return parts, nil
}

func sum(values ...*apd.Decimal) (*apd.Decimal, error) {
	total := apd.New(0, 0)
	for _, v := range values {
		if _, err := moneyCtx.Add(total, total, v); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func number(d *apd.Decimal) ir.IRNumber {
	return ir.NewIRNumber(d)
}
