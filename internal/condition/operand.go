package condition

import (
	"errors"
	"fmt"

	"github.com/roach88/procflow/internal/ir"
)

// ErrMalformedOperand is wrapped by every CheckOperand failure.
var ErrMalformedOperand = errors.New("malformed operand")

// CheckOperand verifies the operand has the shape op expects:
//   - EQUALS_TEXT: text
//   - EQUALS_NUMBER, GREATER_THAN, LESS_THAN: a number (or numeric text)
//   - BETWEEN: an object with numeric min and max
//   - IN_LIST: a list of scalars (an empty list is allowed and never matches)
//
// A BETWEEN range with min > max is well-formed; it simply never matches.
func CheckOperand(op ir.OperatorKind, operand ir.IRValue) error {
	switch op {
	case ir.OpEqualsText:
		if _, ok := operand.(ir.IRString); !ok {
			return malformed(op, "expected text, got %s", describe(operand))
		}
	case ir.OpEqualsNumber, ir.OpGreaterThan, ir.OpLessThan:
		if _, ok := AsNumber(operand); !ok {
			return malformed(op, "expected a number, got %s", describe(operand))
		}
	case ir.OpBetween:
		obj, ok := operand.(ir.IRObject)
		if !ok {
			return malformed(op, "expected {min, max}, got %s", describe(operand))
		}
		for _, bound := range []string{"min", "max"} {
			if _, ok := AsNumber(obj.Field(bound)); !ok {
				return malformed(op, "%s must be a number, got %s", bound, describe(obj.Field(bound)))
			}
		}
		for k := range obj {
			if k != "min" && k != "max" {
				return malformed(op, "unexpected key %q in range", k)
			}
		}
	case ir.OpInList:
		values, ok := operand.(ir.IRArray)
		if !ok {
			return malformed(op, "expected a list, got %s", describe(operand))
		}
		for i, v := range values {
			switch v.(type) {
			case ir.IRString, ir.IRNumber, ir.IRBool:
			default:
				return malformed(op, "list element %d must be a scalar, got %s", i, describe(v))
			}
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrMalformedOperand, op)
	}
	return nil
}

func malformed(op ir.OperatorKind, format string, args ...any) error {
	return fmt.Errorf("%w for %s: %s", ErrMalformedOperand, op, fmt.Sprintf(format, args...))
}

func describe(v ir.IRValue) string {
	switch v.(type) {
	case nil, ir.IRNull:
		return "null"
	case ir.IRString:
		return "text"
	case ir.IRNumber:
		return "number"
	case ir.IRBool:
		return "bool"
	case ir.IRArray:
		return "list"
	case ir.IRObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
