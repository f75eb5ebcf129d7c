package notify

import (
	"fmt"
	"strings"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

// Filter is a compiled boolean expression over a sale, for example
//
//	currency == "divine" && amount_value >= 5
type Filter struct {
	source  string
	program *vm.Program
}

func NewFilter(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression, expr.Env(filterEnv(core.Sale{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile notification filter: %w", err)
	}
	return &Filter{source: expression, program: program}, nil
}

func (f *Filter) String() string {
	return f.source
}

func (f *Filter) Match(sale core.Sale) (bool, error) {
	result, err := expr.Run(f.program, filterEnv(sale))
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("notification filter did not return bool")
	}
	return matched, nil
}

func filterEnv(sale core.Sale) map[string]interface{} {
	amountValue := 0.0
	if d, err := decimal.NewFromString(sale.Amount); err == nil {
		amountValue = d.InexactFloat64()
	}
	return map[string]interface{}{
		"id":           sale.ID,
		"item_name":    sale.ItemName,
		"amount":       sale.Amount,
		"amount_value": amountValue,
		"currency":     sale.Currency,
		"market":       sale.Market,
	}
}
