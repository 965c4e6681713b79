package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procflow/internal/ir"
)

func TestCheckOperand_Valid(t *testing.T) {
	tests := []struct {
		op      ir.OperatorKind
		operand ir.IRValue
	}{
		{ir.OpEqualsText, ir.IRString("ASSINADO")},
		{ir.OpEqualsNumber, ir.NewIRInt(3)},
		{ir.OpGreaterThan, ir.IRString("30000")},
		{ir.OpLessThan, ir.MustNumber("0.01")},
		{ir.OpBetween, rangeOf("10", "20")},
		{ir.OpBetween, rangeOf("20", "10")},
		{ir.OpInList, ir.IRArray{ir.IRString("SP"), ir.NewIRInt(1), ir.IRBool(true)}},
		{ir.OpInList, ir.IRArray{}},
	}
	for _, tt := range tests {
		assert.NoError(t, CheckOperand(tt.op, tt.operand), "%s", tt.op)
	}
}

func TestCheckOperand_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		op      ir.OperatorKind
		operand ir.IRValue
		msg     string
	}{
		{"text operand number", ir.OpEqualsText, ir.NewIRInt(1), "expected text"},
		{"text operand null", ir.OpEqualsText, ir.IRNull{}, "got null"},
		{"number operand text", ir.OpGreaterThan, ir.IRString("muito"), "expected a number"},
		{"between not object", ir.OpBetween, ir.IRArray{}, "expected {min, max}"},
		{"between missing max", ir.OpBetween, ir.IRObject{"min": ir.NewIRInt(1)}, "max must be a number"},
		{"between extra key", ir.OpBetween, ir.IRObject{"min": ir.NewIRInt(1), "max": ir.NewIRInt(2), "step": ir.NewIRInt(1)}, `unexpected key "step"`},
		{"list not array", ir.OpInList, ir.IRString("SP"), "expected a list"},
		{"list nested", ir.OpInList, ir.IRArray{ir.IRArray{}}, "list element 0 must be a scalar"},
		{"unknown operator", ir.OperatorKind("LIKE"), ir.IRString("x"), "unknown operator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOperand(tt.op, tt.operand)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedOperand)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
