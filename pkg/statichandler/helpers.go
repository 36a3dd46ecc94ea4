package statichandler

import (
	"bytes"
	"hash"
	"io"
	"net/url"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/odata"
)

type readCloser = io.ReadCloser

type teeCounter struct {
	r io.Reader
	h hash.Hash
}

func (t *teeCounter) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.h.Write(p[:n])
	}
	return n, err
}

func readAllCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	limited := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Internal, "read upload", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, apierrors.Newf(apierrors.PayloadTooLarge, "file exceeds maximum size of %d bytes", maxBytes)
	}
	return data, nil
}

func newByteReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

func urlValues(m map[string][]string) url.Values {
	return url.Values(m)
}

// evalFilter evaluates a parsed $filter expression tree against a single
// decoded JSON row, for client-side static-payload filtering.
func evalFilter(e odata.Expr, row map[string]any) bool {
	switch v := e.(type) {
	case *odata.BinaryExpr:
		switch v.Op {
		case "and":
			return evalFilter(v.Left, row) && evalFilter(v.Right, row)
		case "or":
			return evalFilter(v.Left, row) || evalFilter(v.Right, row)
		default:
			left := evalValue(v.Left, row)
			right := evalValue(v.Right, row)
			return compare(left, right, v.Op)
		}
	case *odata.UnaryExpr:
		return !evalFilter(v.Operand, row)
	case *odata.FuncCall:
		return evalFuncBool(v, row)
	default:
		return true
	}
}

func evalValue(e odata.Expr, row map[string]any) any {
	switch v := e.(type) {
	case *odata.FieldRef:
		return row[v.Alias]
	case *odata.Literal:
		return v.Value
	default:
		return nil
	}
}

func compare(left, right any, op string) bool {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch op {
		case "=":
			return lf == rf
		case "!=":
			return lf != rf
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		}
	}
	ls, _ := left.(string)
	rs, _ := right.(string)
	switch op {
	case "=":
		return ls == rs
	case "!=":
		return ls != rs
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func evalFuncBool(f *odata.FuncCall, row map[string]any) bool {
	if len(f.Args) != 2 {
		return false
	}
	field, _ := evalValue(f.Args[0], row).(string)
	lit, ok := f.Args[1].(*odata.Literal)
	if !ok {
		return false
	}
	needle, _ := lit.Value.(string)
	switch f.Name {
	case "contains":
		return contains(field, needle)
	case "startswith":
		return len(field) >= len(needle) && field[:len(needle)] == needle
	case "endswith":
		return len(field) >= len(needle) && field[len(field)-len(needle):] == needle
	default:
		return false
	}
}

func contains(haystack, needle string) bool {
	return bytes.Contains([]byte(haystack), []byte(needle))
}
