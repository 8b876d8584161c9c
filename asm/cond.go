package asm

import "github.com/halcyon6303/orgtool/expr"

// defsSymbols adapts a plain name->value map to expr.Symbols so #if/#elif
// conditions and EQU expressions can share the one evaluator.
type defsSymbols map[string]int64

func (d defsSymbols) Lookup(name string) (int64, bool) { v, ok := d[name]; return v, ok }
func (d defsSymbols) Here() int64                      { return 0 }

func parseWithDefs(text string, defs map[string]int64) (int64, error) {
	n, err := expr.Parse(text)
	if err != nil {
		return 0, err
	}
	return expr.Eval(n, defsSymbols(defs))
}
