// Package sqlhandler executes SQL endpoints against an
// operator-configured environment: tables/views via generated
// parameterized CRUD, stored procedures and table-valued functions via
// positional/named parameter binding. No caller-supplied value is ever
// concatenated into a SQL string; only descriptor-declared identifiers
// (schema, object, column names) are, since those come from the operator's
// own descriptor tree rather than the request.
package sqlhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
	"github.com/melosso/portway/pkg/odata"
)

// Handler executes SQL operations for one endpoint against one acquired
// connection. A Handler is created per-request; it holds no state beyond
// its inputs.
type Handler struct {
	Endpoint *endpoint.Definition
	Conn     *pgxpool.Conn
}

func (h *Handler) spec() *endpoint.SQLSpec { return h.Endpoint.SQL }

func (h *Handler) qualifiedName() string {
	s := h.spec()
	if s.Schema == "" {
		return s.ObjectName
	}
	return s.Schema + "." + s.ObjectName
}

// List runs a $select/$filter/$orderby/$top/$skip query against a
// table/view.
func (h *Handler) List(ctx context.Context, query *odata.Query) ([]map[string]any, error) {
	s := h.spec()
	aliasToColumn, columnToAlias := s.AliasMap()

	compiled, err := odata.Compile(query, aliasToColumn, s.OrderedAliases(), s.PrimaryKey, odata.PlaceholderDollar)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.BadRequest, "invalid query", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(compiled.SelectColumns, ", "), h.qualifiedName())
	if compiled.Where != "" {
		fmt.Fprintf(&sb, " WHERE %s", compiled.Where)
	}
	if compiled.OrderBy != "" {
		fmt.Fprintf(&sb, " ORDER BY %s", compiled.OrderBy)
	}
	if compiled.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *compiled.Limit)
	}
	if compiled.Offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *compiled.Offset)
	}

	rows, err := h.Conn.Query(ctx, sb.String(), compiled.Args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	return rowsToMaps(rows, columnToAlias)
}

// Get runs a single-row lookup by primary key.
func (h *Handler) Get(ctx context.Context, key string, query *odata.Query) (map[string]any, error) {
	s := h.spec()
	if s.PrimaryKey == "" {
		return nil, apierrors.New(apierrors.BadRequest, "endpoint has no primary key configured")
	}
	aliasToColumn, columnToAlias := s.AliasMap()
	compiled, err := odata.Compile(query, aliasToColumn, s.OrderedAliases(), "", odata.PlaceholderDollar)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.BadRequest, "invalid query", err)
	}

	sqlStr := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", strings.Join(compiled.SelectColumns, ", "), h.qualifiedName(), s.PrimaryKey)
	rows, err := h.Conn.Query(ctx, sqlStr, key)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	results, err := rowsToMaps(rows, columnToAlias)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, apierrors.New(apierrors.NotFound, "resource not found")
	}
	return results[0], nil
}

// Create inserts a row from body (alias -> value), after required/pattern
// validation, returning the inserted row.
func (h *Handler) Create(ctx context.Context, body map[string]any) (map[string]any, error) {
	s := h.spec()
	aliasToColumn, columnToAlias := s.AliasMap()
	if err := validateBody(s, body, true); err != nil {
		return nil, err
	}

	var cols []string
	var placeholders []string
	var args []any
	i := 1
	for alias, val := range body {
		col, ok := aliasToColumn[alias]
		if !ok {
			continue // validateBody already rejected unknown fields above
		}
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, val)
		i++
	}
	if len(cols) == 0 {
		return nil, apierrors.New(apierrors.BadRequest, "no recognised columns in request body")
	}

	sqlStr := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		h.qualifiedName(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	rows, err := h.Conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	results, err := rowsToMaps(rows, columnToAlias)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, apierrors.New(apierrors.Internal, "insert returned no row")
	}
	return results[0], nil
}

// Update applies a full (PUT) or partial (PATCH) update to the row
// identified by key.
func (h *Handler) Update(ctx context.Context, key string, body map[string]any, partial bool) (map[string]any, error) {
	s := h.spec()
	if s.PrimaryKey == "" {
		return nil, apierrors.New(apierrors.BadRequest, "endpoint has no primary key configured")
	}
	aliasToColumn, columnToAlias := s.AliasMap()
	if err := validateBody(s, body, !partial); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	i := 1
	for alias, val := range body {
		col, ok := aliasToColumn[alias]
		if !ok || col == s.PrimaryKey {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	if len(sets) == 0 {
		return nil, apierrors.New(apierrors.BadRequest, "no recognised columns in request body")
	}
	args = append(args, key)

	sqlStr := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING *",
		h.qualifiedName(), strings.Join(sets, ", "), s.PrimaryKey, i)
	rows, err := h.Conn.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	results, err := rowsToMaps(rows, columnToAlias)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, apierrors.New(apierrors.NotFound, "resource not found")
	}
	return results[0], nil
}

// Delete removes the row identified by key.
func (h *Handler) Delete(ctx context.Context, key string) error {
	s := h.spec()
	if s.PrimaryKey == "" {
		return apierrors.New(apierrors.BadRequest, "endpoint has no primary key configured")
	}
	tag, err := h.Conn.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", h.qualifiedName(), s.PrimaryKey), key)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apierrors.New(apierrors.NotFound, "resource not found")
	}
	return nil
}

func validateBody(s *endpoint.SQLSpec, body map[string]any, requireAll bool) error {
	aliasToColumn, _ := s.AliasMap()
	var details []apierrors.Detail
	for alias := range body {
		if _, ok := aliasToColumn[alias]; !ok {
			details = append(details, apierrors.Detail{Field: alias, Message: "unknown field"})
		}
	}
	if requireAll {
		for _, req := range s.RequiredColumns {
			if v, ok := body[req]; !ok || v == nil || v == "" {
				details = append(details, apierrors.Detail{Field: req, Message: "required"})
			}
		}
	}
	for field, rule := range s.ColumnValidation {
		v, ok := body[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			continue
		}
		if !re.MatchString(s) {
			msg := rule.Message
			if msg == "" {
				msg = fmt.Sprintf("does not match pattern %s", rule.Pattern)
			}
			details = append(details, apierrors.Detail{Field: field, Message: msg})
		}
	}
	if len(details) > 0 {
		return apierrors.New(apierrors.UnprocessableEntity, "Validation failed").WithDetails(details...)
	}
	return nil
}

func rowsToMaps(rows pgx.Rows, columnToAlias map[string]string) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, apierrors.Wrap(apierrors.Internal, "scan row", err)
		}
		m := make(map[string]any, len(vals))
		for i, v := range vals {
			col := string(fields[i].Name)
			key := col
			if alias, ok := columnToAlias[col]; ok {
				key = alias
			}
			m[key] = normalizeValue(v)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.Wrap(apierrors.Internal, "read rows", err)
	}
	return out, nil
}

// normalizeValue ensures values pgx returns as driver-specific types
// (numeric, json-ish) marshal cleanly to JSON.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		var js any
		if json.Unmarshal(t, &js) == nil {
			return js
		}
		return string(t)
	default:
		return v
	}
}

// classify maps a pgx/Postgres driver error onto the gateway's error
// taxonomy, so a unique-constraint violation reaches the client
// as 409 rather than a generic 500.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apierrors.Wrap(apierrors.Conflict, "constraint violation", err)
		case "23503", "23502", "23514": // fk/not-null/check violation
			return apierrors.Wrap(apierrors.UnprocessableEntity, "constraint violation", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierrors.Wrap(apierrors.Unavailable, "database query timed out", err)
	}
	return apierrors.Wrap(apierrors.Internal, "database query failed", err)
}
