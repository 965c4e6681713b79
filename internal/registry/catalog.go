package registry

import "github.com/roach88/procflow/internal/ir"

var (
	textOps   = []ir.OperatorKind{ir.OpEqualsText, ir.OpInList}
	numberOps = []ir.OperatorKind{ir.OpEqualsNumber, ir.OpGreaterThan, ir.OpLessThan, ir.OpBetween}
	listOps   = []ir.OperatorKind{ir.OpInList}
)

func text(name string) TriggerVariable {
	return TriggerVariable{Name: name, Type: ValueText, Operators: textOps}
}

func number(name string) TriggerVariable {
	return TriggerVariable{Name: name, Type: ValueNumber, Operators: numberOps}
}

func list(name string) TriggerVariable {
	return TriggerVariable{Name: name, Type: ValueList, Operators: listOps}
}

var kindOrder = []ir.EntityKind{
	ir.KindProject,
	ir.KindServiceOrder,
	ir.KindPurchase,
	ir.KindRevenue,
	ir.KindActivity,
	ir.KindNotification,
	ir.KindCommission,
}

var catalog = map[ir.EntityKind]EntityTypeSpec{
	ir.KindProject: {
		Kind:        ir.KindProject,
		Description: "Projeto (oportunidade) de instalação solar; inicia as automações do seu tipo de projeto",
		TriggerVariables: []TriggerVariable{
			text("status"),
			number("valorVenda"),
			text("tipoProjeto"),
			text("cidade"),
			text("uf"),
			number("potenciaKwp"),
			list("etiquetas"),
		},
		GeneratableKinds: []ir.EntityKind{
			ir.KindServiceOrder, ir.KindPurchase, ir.KindRevenue,
			ir.KindActivity, ir.KindNotification, ir.KindCommission,
		},
		ProjectTypeField: "tipoProjeto",
	},
	ir.KindServiceOrder: {
		Kind:        ir.KindServiceOrder,
		Description: "Ordem de serviço (vistoria, instalação, homologação)",
		TriggerVariables: []TriggerVariable{
			text("categoria"),
			text("status"),
			number("prioridade"),
		},
		Returnable:       true,
		Customizable:     true,
		GeneratableKinds: []ir.EntityKind{ir.KindActivity, ir.KindNotification, ir.KindPurchase},
	},
	ir.KindPurchase: {
		Kind:        ir.KindPurchase,
		Description: "Compra de equipamentos ou serviços",
		TriggerVariables: []TriggerVariable{
			text("status"),
			text("fornecedor"),
			number("valorTotal"),
		},
		Returnable:       true,
		Customizable:     true,
		GeneratableKinds: []ir.EntityKind{ir.KindActivity, ir.KindNotification},
	},
	ir.KindRevenue: {
		Kind:        ir.KindRevenue,
		Description: "Receita prevista, composta a partir do valor de venda e das formas de pagamento",
		TriggerVariables: []TriggerVariable{
			text("status"),
			number("total"),
			number("parcelas"),
		},
		Returnable:       true,
		Customizable:     true,
		GeneratableKinds: []ir.EntityKind{ir.KindCommission, ir.KindNotification, ir.KindActivity},
	},
	ir.KindActivity: {
		Kind:        ir.KindActivity,
		Description: "Atividade atribuída a responsáveis",
		TriggerVariables: []TriggerVariable{
			text("status"),
			{Name: "titulo", Type: ValueText, Operators: []ir.OperatorKind{ir.OpEqualsText}},
			list("responsaveis"),
		},
		Returnable:       true,
		Customizable:     true,
		GeneratableKinds: []ir.EntityKind{ir.KindActivity, ir.KindNotification},
	},
	ir.KindNotification: {
		Kind:        ir.KindNotification,
		Description: "Notificação para usuários do sistema",
		TriggerVariables: []TriggerVariable{
			text("canal"),
		},
		Returnable:   true,
		Customizable: true,
	},
	ir.KindCommission: {
		Kind:        ir.KindCommission,
		Description: "Comissão de venda",
		TriggerVariables: []TriggerVariable{
			text("beneficiario"),
			number("valor"),
		},
		Returnable:       true,
		Customizable:     true,
		GeneratableKinds: []ir.EntityKind{ir.KindNotification},
	},
}
