package sqlhandler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
)

// ParamValues supplies the raw string values a request carried for a TVF's
// declared parameters, keyed by parameter name.
type ParamValues map[string]string

// InvokeTVF calls a table-valued function, binding declared parameters
// positionally in declaration order.
func (h *Handler) InvokeTVF(ctx context.Context, params ParamValues) ([]map[string]any, error) {
	s := h.spec()
	bound, err := bindParameters(s.Parameters, params)
	if err != nil {
		return nil, err
	}
	placeholders, args := renderBoundArgs(bound)
	sqlStr := fmt.Sprintf("SELECT * FROM %s(%s)", h.qualifiedName(), strings.Join(placeholders, ", "))

	rows, err := h.Conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	_, columnToAlias := s.AliasMap()
	return rowsToMaps(rows, columnToAlias)
}

// CallProcedure invokes a stored procedure by descriptor-declared name with
// positionally bound parameters.
func (h *Handler) CallProcedure(ctx context.Context, params ParamValues) error {
	s := h.spec()
	name := s.Procedure
	if name == "" {
		name = s.ObjectName
	}
	bound, err := bindParameters(s.Parameters, params)
	if err != nil {
		return err
	}
	placeholders, args := renderBoundArgs(bound)
	sqlStr := fmt.Sprintf("CALL %s(%s)", name, strings.Join(placeholders, ", "))
	_, err = h.Conn.Exec(ctx, sqlStr, args...)
	if err != nil {
		return classify(err)
	}
	return nil
}

// boundArg is one resolved TVF/procedure parameter: either a value bound to
// a positional placeholder, or the literal SQL token "DEFAULT" when the
// descriptor's default is exactly that keyword rather than a value.
type boundArg struct {
	isDefault bool
	value     any
}

// renderBoundArgs splits bound into the placeholder list passed to the
// query text and the args slice passed to the driver: literal DEFAULT
// tokens are inlined directly and never consume a placeholder or arg slot.
func renderBoundArgs(bound []boundArg) (placeholders []string, args []any) {
	placeholders = make([]string, len(bound))
	for i, b := range bound {
		if b.isDefault {
			placeholders[i] = "DEFAULT"
			continue
		}
		args = append(args, b.value)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	return placeholders, args
}

func bindParameters(decl []endpoint.TVFParameter, values ParamValues) ([]boundArg, error) {
	ordered := make([]endpoint.TVFParameter, len(decl))
	copy(ordered, decl)
	// Path-sourced parameters keep their declared 1-based position; others
	// are appended after, in descriptor order.
	var byPosition []endpoint.TVFParameter
	var rest []endpoint.TVFParameter
	for _, p := range ordered {
		if p.Source == endpoint.ParamSourcePath {
			byPosition = append(byPosition, p)
		} else {
			rest = append(rest, p)
		}
	}
	all := append(byPosition, rest...)

	var details []apierrors.Detail
	bound := make([]boundArg, 0, len(all))
	for _, p := range all {
		raw, present := values[p.Name]
		if !present || raw == "" {
			if p.Required {
				details = append(details, apierrors.Detail{Field: p.Name, Message: "is required"})
				continue
			}
			if p.Default == "DEFAULT" {
				bound = append(bound, boundArg{isDefault: true})
				continue
			}
			if p.Default != "" {
				bound = append(bound, boundArg{value: p.Default})
				continue
			}
			bound = append(bound, boundArg{value: nil})
			continue
		}
		if p.Pattern != "" {
			re, err := regexp.Compile(p.Pattern)
			if err == nil && !re.MatchString(raw) {
				details = append(details, apierrors.Detail{Field: p.Name, Message: fmt.Sprintf("does not match pattern %s", p.Pattern)})
				continue
			}
		}
		val, err := convertSQLType(raw, p.SQLType)
		if err != nil {
			details = append(details, apierrors.Detail{Field: p.Name, Message: err.Error()})
			continue
		}
		bound = append(bound, boundArg{value: val})
	}
	if len(details) > 0 {
		return nil, apierrors.New(apierrors.BadRequest, "invalid parameters").WithDetails(details...)
	}
	return bound, nil
}

func convertSQLType(raw, sqlType string) (any, error) {
	switch strings.ToLower(sqlType) {
	case "int", "integer", "bigint", "smallint":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer")
		}
		return n, nil
	case "float", "double", "numeric", "decimal":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected number")
		}
		return f, nil
	case "bool", "boolean":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean")
		}
		return b, nil
	default:
		return raw, nil
	}
}
