// Package condition evaluates process-node triggers against entity field values.
//
// Evaluate is pure and total: it never returns an error and never panics for
// any input. Anything that cannot match (a null or missing reference value,
// a non-numeric value under a numeric operator, a malformed operand) yields
// false. Malformed operands are reported separately by CheckOperand, which
// graph validation runs before a graph is ever executed.
package condition

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/procflow/internal/ir"
)

// Evaluate reports whether ref satisfies op with the given operand.
func Evaluate(op ir.OperatorKind, ref ir.IRValue, operand ir.IRValue) bool {
	if isNull(ref) {
		return false
	}

	switch op {
	case ir.OpEqualsText:
		return equalsText(ref, operand)
	case ir.OpEqualsNumber:
		return compareNumbers(ref, operand, func(c int) bool { return c == 0 })
	case ir.OpGreaterThan:
		return compareNumbers(ref, operand, func(c int) bool { return c > 0 })
	case ir.OpLessThan:
		return compareNumbers(ref, operand, func(c int) bool { return c < 0 })
	case ir.OpBetween:
		return between(ref, operand)
	case ir.OpInList:
		return inList(ref, operand)
	default:
		return false
	}
}

// equalsText is a case-sensitive comparison of NFC-normalized text.
func equalsText(ref, operand ir.IRValue) bool {
	a, ok := ref.(ir.IRString)
	if !ok {
		return false
	}
	b, ok := operand.(ir.IRString)
	if !ok {
		return false
	}
	return sameText(string(a), string(b))
}

func sameText(a, b string) bool {
	if a == b {
		return true
	}
	return norm.NFC.String(a) == norm.NFC.String(b)
}

func compareNumbers(ref, operand ir.IRValue, pred func(int) bool) bool {
	a, ok := AsNumber(ref)
	if !ok {
		return false
	}
	b, ok := AsNumber(operand)
	if !ok {
		return false
	}
	return pred(a.Cmp(b))
}

// between is inclusive on both bounds; min > max never matches.
func between(ref, operand ir.IRValue) bool {
	lo, hi, ok := Range(operand)
	if !ok {
		return false
	}
	v, ok := AsNumber(ref)
	if !ok {
		return false
	}
	return v.Cmp(lo) >= 0 && v.Cmp(hi) <= 0
}

// inList matches a scalar reference that is a member of the operand list, or
// a list reference sharing at least one element with it.
func inList(ref, operand ir.IRValue) bool {
	values, ok := operand.(ir.IRArray)
	if !ok || len(values) == 0 {
		return false
	}

	if refs, isList := ref.(ir.IRArray); isList {
		for _, r := range refs {
			if memberOf(r, values) {
				return true
			}
		}
		return false
	}
	return memberOf(ref, values)
}

func memberOf(v ir.IRValue, values ir.IRArray) bool {
	for _, candidate := range values {
		if sameValue(v, candidate) {
			return true
		}
	}
	return false
}

// sameValue compares scalars: text by NFC text, numbers numerically
// (numeric text included), booleans by value.
func sameValue(a, b ir.IRValue) bool {
	if isNull(a) || isNull(b) {
		return false
	}
	if sa, ok := a.(ir.IRString); ok {
		if sb, ok := b.(ir.IRString); ok {
			return sameText(string(sa), string(sb))
		}
	}
	if ba, ok := a.(ir.IRBool); ok {
		bb, ok := b.(ir.IRBool)
		return ok && ba == bb
	}
	na, okA := AsNumber(a)
	nb, okB := AsNumber(b)
	return okA && okB && na.Cmp(nb) == 0
}

// AsNumber interprets v as a number. Numeric text is accepted, since form
// inputs often store numbers as text; anything else is not a number.
func AsNumber(v ir.IRValue) (ir.IRNumber, bool) {
	switch val := v.(type) {
	case ir.IRNumber:
		return val, true
	case ir.IRString:
		s := strings.TrimSpace(string(val))
		if s == "" {
			return ir.IRNumber{}, false
		}
		n, err := ir.ParseIRNumber(s)
		if err != nil {
			return ir.IRNumber{}, false
		}
		return n, true
	default:
		return ir.IRNumber{}, false
	}
}

// Range extracts the {min, max} bounds of a BETWEEN operand.
func Range(operand ir.IRValue) (lo, hi ir.IRNumber, ok bool) {
	obj, isObj := operand.(ir.IRObject)
	if !isObj {
		return lo, hi, false
	}
	lo, okLo := AsNumber(obj.Field("min"))
	hi, okHi := AsNumber(obj.Field("max"))
	return lo, hi, okLo && okHi
}

func isNull(v ir.IRValue) bool {
	if v == nil {
		return true
	}
	_, null := v.(ir.IRNull)
	return null
}
