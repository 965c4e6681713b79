package materialize

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/procflow/internal/ir"
)

// Status values written into new records.
const (
	StatusRevenueForecast = "PREVISTA"
	StatusPending         = "PENDENTE"
	StatusOpen            = "ABERTA"

	DefaultChannel       = "SISTEMA"
	DefaultPriority      = 3
	UndefinedPaymentKind = "A_DEFINIR"
)

// buildInput is what a builder sees: the node, the entity whose change
// satisfied the trigger, and the run's root entity.
type buildInput struct {
	node   ir.ProcessNode
	parent ir.EntitySnapshot
	root   ir.EntitySnapshot
}

// builder computes the payload of a generated record. Errors created with
// reject become Rejected failures.
type builder func(in buildInput) (ir.IRObject, error)

var builders = map[ir.EntityKind]builder{
	ir.KindRevenue:      buildRevenue,
	ir.KindActivity:     buildActivity,
	ir.KindNotification: buildNotification,
	ir.KindServiceOrder: buildServiceOrder,
	ir.KindPurchase:     buildPurchase,
	ir.KindCommission:   buildCommission,
}

func textList(list []string) ir.IRArray {
	out := make(ir.IRArray, len(list))
	for i, s := range list {
		out[i] = ir.IRString(s)
	}
	return out
}

func buildActivity(in buildInput) (ir.IRObject, error) {
	var t activityTemplate
	if err := decodeTemplate(in.node.Template, &t); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Titulo) == "" {
		return nil, reject("activity titulo is required")
	}
	if t.PrazoDias < 0 {
		return nil, reject("prazoDias must not be negative, got %d", t.PrazoDias)
	}

	payload := ir.IRObject{
		"titulo":       ir.IRString(t.Titulo),
		"descricao":    ir.IRString(t.Descricao),
		"responsaveis": textList(t.Responsaveis),
		"status":       ir.IRString(StatusPending),
	}
	if t.PrazoDias > 0 {
		payload["prazoDias"] = ir.NewIRInt(int64(t.PrazoDias))
	}
	return payload, nil
}

func buildNotification(in buildInput) (ir.IRObject, error) {
	var t notificationTemplate
	if err := decodeTemplate(in.node.Template, &t); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Mensagem) == "" {
		return nil, reject("notification mensagem is required")
	}
	canal := t.Canal
	if canal == "" {
		canal = DefaultChannel
	}
	return ir.IRObject{
		"mensagem":      ir.IRString(t.Mensagem),
		"destinatarios": textList(t.Destinatarios),
		"canal":         ir.IRString(canal),
	}, nil
}

func buildServiceOrder(in buildInput) (ir.IRObject, error) {
	var t serviceOrderTemplate
	if err := decodeTemplate(in.node.Template, &t); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Categoria) == "" {
		return nil, reject("service order categoria is required")
	}
	prioridade := t.Prioridade
	if prioridade == 0 {
		prioridade = DefaultPriority
	}
	if prioridade < 0 {
		return nil, reject("prioridade must be positive, got %d", prioridade)
	}
	return ir.IRObject{
		"categoria":    ir.IRString(t.Categoria),
		"descricao":    ir.IRString(t.Descricao),
		"responsaveis": textList(t.Responsaveis),
		"prioridade":   ir.NewIRInt(int64(prioridade)),
		"status":       ir.IRString(StatusOpen),
	}, nil
}

func buildPurchase(in buildInput) (ir.IRObject, error) {
	var t purchaseTemplate
	if err := decodeTemplate(in.node.Template, &t); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Fornecedor) == "" {
		return nil, reject("purchase fornecedor is required")
	}

	items := make(ir.IRArray, 0, len(t.Itens))
	var totals []*apd.Decimal
	for i, item := range t.Itens {
		qty, err := decimal(fmt.Sprintf("itens[%d].quantidade", i), item.Quantidade)
		if err != nil {
			return nil, reject("%v", err)
		}
		unit, err := decimal(fmt.Sprintf("itens[%d].valorUnitario", i), item.ValorUnitario)
		if err != nil {
			return nil, reject("%v", err)
		}
		if qty.Sign() <= 0 {
			return nil, reject("itens[%d].quantidade must be positive", i)
		}
		if unit.Sign() < 0 {
			return nil, reject("itens[%d].valorUnitario must not be negative", i)
		}

		var line apd.Decimal
		if _, err := moneyCtx.Mul(&line, qty, unit); err != nil {
			return nil, fmt.Errorf("itens[%d]: %w", i, err)
		}
		lineTotal, err := cents(&line)
		if err != nil {
			return nil, fmt.Errorf("itens[%d]: %w", i, err)
		}
		totals = append(totals, lineTotal)

		items = append(items, ir.IRObject{
			"descricao":     ir.IRString(item.Descricao),
			"quantidade":    number(qty),
			"valorUnitario": number(unit),
			"valorTotal":    number(lineTotal),
		})
	}

	total, err := sum(totals...)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{
		"fornecedor": ir.IRString(t.Fornecedor),
		"itens":      items,
		"valorTotal": number(total),
		"status":     ir.IRString(StatusPending),
	}, nil
}

func buildCommission(in buildInput) (ir.IRObject, error) {
	var t commissionTemplate
	if err := decodeTemplate(in.node.Template, &t); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Beneficiario) == "" {
		return nil, reject("commission beneficiario is required")
	}
	pct, err := decimal("percentual", t.Percentual)
	if err != nil {
		return nil, reject("%v", err)
	}
	if pct.Sign() <= 0 || pct.Cmp(hundred) > 0 {
		return nil, reject("percentual must be in (0, 100], got %s", pct.Text('f'))
	}

	// A commission under a revenue is computed on the revenue total;
	// anywhere else on the sale value of the root.
	var base *apd.Decimal
	var ok bool
	if in.parent.Kind == ir.KindRevenue {
		base, ok = fieldNumber(in.parent.Fields, "total")
		if !ok {
			return nil, reject("parent revenue %q has no numeric total", in.parent.ID)
		}
	} else {
		base, ok = fieldNumber(in.root.Fields, "valorVenda")
		if !ok {
			return nil, reject("root %s %q has no numeric valorVenda", in.root.Kind, in.root.ID)
		}
	}

	valor, err := percentOf(base, pct)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{
		"beneficiario": ir.IRString(t.Beneficiario),
		"percentual":   number(pct),
		"base":         number(base),
		"valor":        number(valor),
	}, nil
}
