package odata

import (
	"fmt"
	"strings"
)

// Placeholder selects the bound-parameter syntax the target driver expects.
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota // MySQL/SQLite style: ?
	PlaceholderDollar                      // Postgres style: $1, $2, ...
)

// Compiled is the SQL fragments produced from a Query, ready to be spliced
// into a SELECT statement by the caller. Every literal from the original
// query appears only in Args, never interpolated into the SQL strings.
type Compiled struct {
	SelectColumns []string // db column names, aliased back via AS in the caller
	Where         string   // "" if no filter; never includes the word WHERE
	Args          []any
	OrderBy       string // "" if none; never includes the words ORDER BY
	Limit         *int
	Offset        *int
}

type compiler struct {
	aliasToColumn map[string]string
	placeholder   Placeholder
	args          []any
}

// Compile resolves q's aliases against aliasToColumn (from
// endpoint.SQLSpec.AliasMap) and emits parameterized SQL fragments.
// orderedAliases gives the endpoint's declared column order (from
// AllowedColumns), used for the default projection so the emitted column
// list is deterministic rather than following Go's map iteration order.
// primaryKeyColumn, if non-empty, becomes the default ORDER BY when q has
// none, so paginated results stay stable.
func Compile(q *Query, aliasToColumn map[string]string, orderedAliases []string, primaryKeyColumn string, ph Placeholder) (*Compiled, error) {
	c := &compiler{aliasToColumn: aliasToColumn, placeholder: ph}

	out := &Compiled{}

	if len(q.Select) == 0 {
		for _, alias := range orderedAliases {
			if col, ok := aliasToColumn[alias]; ok {
				out.SelectColumns = append(out.SelectColumns, col)
			}
		}
	} else {
		for _, alias := range q.Select {
			col, ok := aliasToColumn[alias]
			if !ok {
				return nil, fmt.Errorf("odata: $select references unknown column %q", alias)
			}
			out.SelectColumns = append(out.SelectColumns, col)
		}
	}

	if q.Filter != nil {
		where, err := c.emit(q.Filter)
		if err != nil {
			return nil, err
		}
		out.Where = where
		out.Args = c.args
	}

	if len(q.OrderBy) > 0 {
		var parts []string
		for _, term := range q.OrderBy {
			col, ok := aliasToColumn[term.Alias]
			if !ok {
				return nil, fmt.Errorf("odata: $orderby references unknown column %q", term.Alias)
			}
			dir := "ASC"
			if term.Descending {
				dir = "DESC"
			}
			parts = append(parts, fmt.Sprintf("%s %s", col, dir))
		}
		out.OrderBy = strings.Join(parts, ", ")
	} else if primaryKeyColumn != "" {
		out.OrderBy = primaryKeyColumn + " ASC"
	}

	if q.Top != nil {
		top := *q.Top
		if top > MaxTop {
			top = MaxTop
		}
		out.Limit = &top
	}
	out.Offset = q.Skip

	return out, nil
}

func (c *compiler) placeholderFor(arg any) string {
	c.args = append(c.args, arg)
	if c.placeholder == PlaceholderDollar {
		return fmt.Sprintf("$%d", len(c.args))
	}
	return "?"
}

func (c *compiler) emit(e Expr) (string, error) {
	switch v := e.(type) {
	case *Literal:
		return c.placeholderFor(v.Value), nil
	case *FieldRef:
		col, ok := c.aliasToColumn[v.Alias]
		if !ok {
			return "", fmt.Errorf("odata: $filter references unknown column %q", v.Alias)
		}
		return col, nil
	case *UnaryExpr:
		operand, err := c.emit(v.Operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", operand), nil
	case *BinaryExpr:
		left, err := c.emit(v.Left)
		if err != nil {
			return "", err
		}
		right, err := c.emit(v.Right)
		if err != nil {
			return "", err
		}
		op := strings.ToUpper(v.Op)
		switch v.Op {
		case "and", "or":
			return fmt.Sprintf("(%s %s %s)", left, op, right), nil
		default:
			return fmt.Sprintf("(%s %s %s)", left, v.Op, right), nil
		}
	case *FuncCall:
		return c.emitFunc(v)
	default:
		return "", fmt.Errorf("odata: unsupported expression node %T", e)
	}
}

func (c *compiler) emitFunc(f *FuncCall) (string, error) {
	switch f.Name {
	case "contains", "startswith", "endswith":
		if len(f.Args) != 2 {
			return "", fmt.Errorf("odata: %s requires 2 arguments", f.Name)
		}
		field, err := c.emit(f.Args[0])
		if err != nil {
			return "", err
		}
		lit, ok := f.Args[1].(*Literal)
		if !ok {
			return "", fmt.Errorf("odata: %s requires a string literal argument", f.Name)
		}
		s, _ := lit.Value.(string)
		var pattern string
		switch f.Name {
		case "contains":
			pattern = "%" + s + "%"
		case "startswith":
			pattern = s + "%"
		case "endswith":
			pattern = "%" + s
		}
		return fmt.Sprintf("%s LIKE %s", field, c.placeholderFor(pattern)), nil
	case "tolower", "toupper":
		if len(f.Args) != 1 {
			return "", fmt.Errorf("odata: %s requires 1 argument", f.Name)
		}
		field, err := c.emit(f.Args[0])
		if err != nil {
			return "", err
		}
		fn := "LOWER"
		if f.Name == "toupper" {
			fn = "UPPER"
		}
		return fmt.Sprintf("%s(%s)", fn, field), nil
	default:
		return "", fmt.Errorf("odata: unsupported function %q", f.Name)
	}
}
