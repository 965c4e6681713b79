package materialize

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/procflow/internal/ir"
)

// composedLine is one payment method of a revenue after computation.
type composedLine struct {
	metodo       string
	percentual   *apd.Decimal
	valor        *apd.Decimal
	taxa         *apd.Decimal
	valorTaxa    *apd.Decimal
	installments []*apd.Decimal
}

type composition struct {
	lines        []composedLine
	total        *apd.Decimal
	totalFees    *apd.Decimal
	installments int
}

// buildRevenue derives the revenue composition. An explicit composicao in
// the template wins over the root's pagamento schedule; with neither, the
// whole sale value is a single undefined-method line.
func buildRevenue(in buildInput) (ir.IRObject, error) {
	var t revenueTemplate
	if err := decodeTemplate(in.node.Template, &t); err != nil {
		return nil, err
	}

	valorVenda, ok := fieldNumber(in.root.Fields, "valorVenda")
	if !ok {
		return nil, reject("root %s %q has no numeric valorVenda", in.root.Kind, in.root.ID)
	}
	if valorVenda.Sign() < 0 {
		return nil, reject("valorVenda must not be negative")
	}

	lines := t.Composicao
	if len(lines) == 0 {
		schedule, err := decodeSchedule(in.root.Fields.Field("pagamento"))
		if err != nil {
			return nil, err
		}
		lines = schedule
	}
	if len(lines) == 0 {
		lines = []paymentLine{{Metodo: UndefinedPaymentKind, Percentual: "100", Parcelas: 1}}
	}

	comp, err := compose(valorVenda, lines)
	if err != nil {
		return nil, err
	}

	descricao := t.Descricao
	if descricao == "" {
		descricao = fmt.Sprintf("Receita do projeto %s", in.root.ID)
	}
	return comp.payload(descricao), nil
}

// compose splits the sale value across payment lines. Each split is
// truncated to cents and the last split absorbs the remainder, so the splits
// always sum to the sale value and none is negative.
func compose(valorVenda *apd.Decimal, lines []paymentLine) (*composition, error) {
	total, err := cents(valorVenda)
	if err != nil {
		return nil, err
	}

	comp := &composition{total: total}
	pctSum := apd.New(0, 0)
	allocated := apd.New(0, 0)
	var fees []*apd.Decimal

	for i, line := range lines {
		metodo := line.Metodo
		if metodo == "" {
			metodo = UndefinedPaymentKind
		}
		pct, err := decimal(fmt.Sprintf("composicao[%d].percentual", i), line.Percentual)
		if err != nil {
			return nil, reject("%v", err)
		}
		if pct.Sign() <= 0 {
			return nil, reject("composicao[%d].percentual must be positive", i)
		}
		taxa, err := decimal(fmt.Sprintf("composicao[%d].taxa", i), line.Taxa)
		if err != nil {
			return nil, reject("%v", err)
		}
		if taxa.Sign() < 0 {
			return nil, reject("composicao[%d].taxa must not be negative", i)
		}
		parcelas := line.Parcelas
		if parcelas == 0 {
			parcelas = 1
		}
		if parcelas < 0 || parcelas > MaxInstallments {
			return nil, reject("composicao[%d].parcelas must be between 1 and %d", i, MaxInstallments)
		}

		if _, err := moneyCtx.Add(pctSum, pctSum, pct); err != nil {
			return nil, err
		}

		var valor *apd.Decimal
		if i == len(lines)-1 {
			valor = new(apd.Decimal)
			if _, err := moneyCtx.Sub(valor, total, allocated); err != nil {
				return nil, err
			}
		} else {
			if valor, err = shareOf(total, pct); err != nil {
				return nil, err
			}
			if _, err := moneyCtx.Add(allocated, allocated, valor); err != nil {
				return nil, err
			}
		}

		installments, err := splitInstallments(valor, parcelas)
		if err != nil {
			return nil, err
		}
		fee, err := percentOf(valor, taxa)
		if err != nil {
			return nil, err
		}
		fees = append(fees, fee)

		comp.lines = append(comp.lines, composedLine{
			metodo:       metodo,
			percentual:   pct,
			valor:        valor,
			taxa:         taxa,
			valorTaxa:    fee,
			installments: installments,
		})
		comp.installments += parcelas
	}

	if pctSum.Cmp(hundred) != 0 {
		return nil, reject("payment percentages must sum to 100, got %s", pctSum.Text('f'))
	}

	if comp.totalFees, err = sum(fees...); err != nil {
		return nil, err
	}
	return comp, nil
}

func (c *composition) payload(descricao string) ir.IRObject {
	lines := make(ir.IRArray, len(c.lines))
	for i, l := range c.lines {
		installments := make(ir.IRArray, len(l.installments))
		for j, v := range l.installments {
			installments[j] = ir.IRObject{
				"numero": ir.NewIRInt(int64(j + 1)),
				"valor":  number(v),
			}
		}
		lines[i] = ir.IRObject{
			"metodo":     ir.IRString(l.metodo),
			"percentual": number(l.percentual),
			"valor":      number(l.valor),
			"taxa":       number(l.taxa),
			"valorTaxa":  number(l.valorTaxa),
			"parcelas":   installments,
		}
	}
	return ir.IRObject{
		"composicao": lines,
		"total":      number(c.total),
		"totalTaxas": number(c.totalFees),
		"parcelas":   ir.NewIRInt(int64(c.installments)),
		"status":     ir.IRString(StatusRevenueForecast),
		"descricao":  ir.IRString(descricao),
	}
}
