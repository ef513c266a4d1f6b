// internal/pkg/rule/stock_rule.go
package rule

import (
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// DefaultStockExpression 库存满足请求数量即视为可售
const DefaultStockExpression = "stock >= requested"

// Product 是规则可见的商品事实
type Product struct {
	ID       int64
	Category string
	Stock    int
}

// StockRule 使用 CEL 表达式判断一个订单行是否可售。
// 表达式可用变量：stock、requested、category、product_id。
type StockRule struct {
	expr    string
	program cel.Program
}

// NewStockRule 编译表达式，空表达式使用默认规则
func NewStockRule(expr string) (*StockRule, error) {
	if expr == "" {
		expr = DefaultStockExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("stock", cel.IntType),
		cel.Variable("requested", cel.IntType),
		cel.Variable("category", cel.StringType),
		cel.Variable("product_id", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile stock rule %q", expr)
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, errors.Errorf("stock rule %q must evaluate to bool, got %v", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "build program for %q", expr)
	}
	return &StockRule{expr: expr, program: prg}, nil
}

func (r *StockRule) Expression() string {
	return r.expr
}

// Allows 对单个订单行求值
func (r *StockRule) Allows(p Product, requested int) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		"stock":      int64(p.Stock),
		"requested":  int64(requested),
		"category":   p.Category,
		"product_id": p.ID,
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate stock rule for product %d", p.ID)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, errors.Errorf("stock rule returned %T", out.Value())
	}
	return ok, nil
}
