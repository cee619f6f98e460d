package literal

import (
	"fmt"
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
)

// FromAST converts a parsed argument value, substituting variables. The
// second result is false when the value is a variable with no supplied value;
// such a variable inside a list becomes null and inside an object drops the field.
func FromAST(value ast.Value, variables map[string]any) (any, bool, error) {
	switch v := value.(type) {
	case *ast.Variable:
		val, ok := variables[v.Name.Value]
		return val, ok, nil
	case *ast.IntValue:
		i, err := Integer(v.Value)
		if err != nil {
			return nil, false, fmt.Errorf("invalid integer literal %s: %w", v.Value, err)
		}
		return i, true, nil
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, false, fmt.Errorf("invalid float literal %s: %w", v.Value, err)
		}
		return f, true, nil
	case *ast.StringValue:
		return v.Value, true, nil
	case *ast.BooleanValue:
		return v.Value, true, nil
	case *ast.EnumValue:
		return Enum(v.Value), true, nil
	case *ast.ListValue:
		list := make([]any, 0, len(v.Values))
		for _, item := range v.Values {
			val, _, err := FromAST(item, variables)
			if err != nil {
				return nil, false, err
			}
			list = append(list, val)
		}
		return list, true, nil
	case *ast.ObjectValue:
		obj := make(Object, 0, len(v.Fields))
		for _, f := range v.Fields {
			val, ok, err := FromAST(f.Value, variables)
			if err != nil {
				return nil, false, err
			}
			if ok {
				obj = append(obj, Field{Name: f.Name.Value, Value: val})
			}
		}
		return obj, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported argument literal %T", value)
	}
}
