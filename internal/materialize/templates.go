package materialize

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/roach88/procflow/internal/ir"
)

// Typed customization templates, one per generated kind. Decimal fields are
// kept as text and parsed with apd; JSON numbers decode into them verbatim.

type paymentLine struct {
	Metodo     string `mapstructure:"metodo"`
	Percentual string `mapstructure:"percentual"`
	Parcelas   int    `mapstructure:"parcelas"`
	Taxa       string `mapstructure:"taxa"`
}

type revenueTemplate struct {
	Descricao  string        `mapstructure:"descricao"`
	Composicao []paymentLine `mapstructure:"composicao"`
}

type activityTemplate struct {
	Titulo       string   `mapstructure:"titulo"`
	Descricao    string   `mapstructure:"descricao"`
	Responsaveis []string `mapstructure:"responsaveis"`
	PrazoDias    int      `mapstructure:"prazoDias"`
}

type notificationTemplate struct {
	Mensagem      string   `mapstructure:"mensagem"`
	Destinatarios []string `mapstructure:"destinatarios"`
	Canal         string   `mapstructure:"canal"`
}

type serviceOrderTemplate struct {
	Categoria    string   `mapstructure:"categoria"`
	Descricao    string   `mapstructure:"descricao"`
	Responsaveis []string `mapstructure:"responsaveis"`
	Prioridade   int      `mapstructure:"prioridade"`
}

type purchaseItem struct {
	Descricao     string `mapstructure:"descricao"`
	Quantidade    string `mapstructure:"quantidade"`
	ValorUnitario string `mapstructure:"valorUnitario"`
}

type purchaseTemplate struct {
	Fornecedor string         `mapstructure:"fornecedor"`
	Itens      []purchaseItem `mapstructure:"itens"`
}

type commissionTemplate struct {
	Beneficiario string `mapstructure:"beneficiario"`
	Percentual   string `mapstructure:"percentual"`
}

// decodeTemplate decodes an IR object into a typed template. Unknown keys
// are an error so that a misspelled customization is rejected rather than
// silently ignored.
func decodeTemplate(obj ir.IRObject, out any) error {
	if obj == nil {
		return nil
	}
	if err := decodeNative(ir.ToNative(obj), out); err != nil {
		return reject("invalid template: %v", err)
	}
	return nil
}

func decodeNative(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return fmt.Errorf("template decoder: %w", err)
	}
	return dec.Decode(input)
}

// decodeSchedule reads a payment schedule (the root's pagamento field).
func decodeSchedule(v ir.IRValue) ([]paymentLine, error) {
	if _, isNull := v.(ir.IRNull); v == nil || isNull {
		return nil, nil
	}
	var lines []paymentLine
	if err := decodeNative(ir.ToNative(v), &lines); err != nil {
		return nil, reject("invalid pagamento: %v", err)
	}
	return lines, nil
}
