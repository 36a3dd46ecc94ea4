package sqlhandler

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
)

func TestQualifiedNameWithAndWithoutSchema(t *testing.T) {
	h := &Handler{Endpoint: &endpoint.Definition{SQL: &endpoint.SQLSpec{Schema: "sales", ObjectName: "orders"}}}
	if got := h.qualifiedName(); got != "sales.orders" {
		t.Errorf("qualifiedName() = %q, want sales.orders", got)
	}

	h2 := &Handler{Endpoint: &endpoint.Definition{SQL: &endpoint.SQLSpec{ObjectName: "orders"}}}
	if got := h2.qualifiedName(); got != "orders" {
		t.Errorf("qualifiedName() (no schema) = %q, want orders", got)
	}
}

func TestValidateBodyRequiresAllOnCreate(t *testing.T) {
	s := &endpoint.SQLSpec{
		AllowedColumns:  []endpoint.AllowedColumn{{Alias: "name", Column: "name"}, {Alias: "email", Column: "email"}},
		RequiredColumns: []string{"name", "email"},
	}
	err := validateBody(s, map[string]any{"name": "a"}, true)
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.UnprocessableEntity {
		t.Fatalf("validateBody(missing required) = %v, want UnprocessableEntity", err)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Field != "email" || apiErr.Details[0].Message != "required" {
		t.Errorf("Details = %v, want a single {email, required} detail", apiErr.Details)
	}
}

func TestValidateBodyPartialSkipsRequiredCheck(t *testing.T) {
	s := &endpoint.SQLSpec{
		AllowedColumns:  []endpoint.AllowedColumn{{Alias: "name", Column: "name"}, {Alias: "email", Column: "email"}},
		RequiredColumns: []string{"name", "email"},
	}
	if err := validateBody(s, map[string]any{"name": "a"}, false); err != nil {
		t.Errorf("validateBody(partial) = %v, want nil", err)
	}
}

func TestValidateBodyRejectsUnknownField(t *testing.T) {
	s := &endpoint.SQLSpec{AllowedColumns: []endpoint.AllowedColumn{{Alias: "name", Column: "name"}}}
	err := validateBody(s, map[string]any{"name": "a", "ghost": "x"}, false)
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.UnprocessableEntity {
		t.Fatalf("validateBody(unknown field) = %v, want UnprocessableEntity", err)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Field != "ghost" {
		t.Errorf("Details = %v, want a single unknown-field detail for ghost", apiErr.Details)
	}
}

func TestValidateBodyEnforcesColumnPattern(t *testing.T) {
	s := &endpoint.SQLSpec{
		AllowedColumns: []endpoint.AllowedColumn{{Alias: "email", Column: "email"}},
		ColumnValidation: map[string]endpoint.ColumnValidation{
			"email": {Pattern: `^[^@]+@[^@]+$`, Message: "must be a valid email"},
		},
	}
	err := validateBody(s, map[string]any{"email": "not-an-email"}, false)
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.UnprocessableEntity {
		t.Fatalf("validateBody(bad pattern) = %v, want UnprocessableEntity", err)
	}
	if apiErr.Details[0].Message != "must be a valid email" {
		t.Errorf("Details[0].Message = %q", apiErr.Details[0].Message)
	}
}

func TestValidateBodyAcceptsMatchingPattern(t *testing.T) {
	s := &endpoint.SQLSpec{
		AllowedColumns: []endpoint.AllowedColumn{{Alias: "email", Column: "email"}},
		ColumnValidation: map[string]endpoint.ColumnValidation{
			"email": {Pattern: `^[^@]+@[^@]+$`},
		},
	}
	if err := validateBody(s, map[string]any{"email": "a@b.com"}, false); err != nil {
		t.Errorf("validateBody(valid email) = %v, want nil", err)
	}
}

func TestNormalizeValueDecodesJSONBytes(t *testing.T) {
	got := normalizeValue([]byte(`{"a":1}`))
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("normalizeValue(json bytes) = %T, want map[string]any", got)
	}
	if m["a"] != float64(1) {
		t.Errorf("m[a] = %v, want 1", m["a"])
	}
}

func TestNormalizeValueFallsBackToStringForNonJSONBytes(t *testing.T) {
	got := normalizeValue([]byte("not json"))
	if got != "not json" {
		t.Errorf("normalizeValue(non-json bytes) = %v, want string", got)
	}
}

func TestNormalizeValuePassesThroughOtherTypes(t *testing.T) {
	if got := normalizeValue(42); got != 42 {
		t.Errorf("normalizeValue(int) = %v, want 42", got)
	}
}

func TestClassifyMapsUniqueViolationToConflict(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	got := classify(err)
	apiErr, ok := apierrors.As(got)
	if !ok || apiErr.Kind != apierrors.Conflict {
		t.Errorf("classify(unique violation) = %v, want Conflict", got)
	}
}

func TestClassifyMapsForeignKeyViolationToUnprocessableEntity(t *testing.T) {
	err := &pgconn.PgError{Code: "23503", Message: "fk violation"}
	got := classify(err)
	apiErr, ok := apierrors.As(got)
	if !ok || apiErr.Kind != apierrors.UnprocessableEntity {
		t.Errorf("classify(fk violation) = %v, want UnprocessableEntity", got)
	}
}

func TestClassifyMapsDeadlineExceededToUnavailable(t *testing.T) {
	got := classify(fmt.Errorf("query: %w", context.DeadlineExceeded))
	apiErr, ok := apierrors.As(got)
	if !ok || apiErr.Kind != apierrors.Unavailable {
		t.Errorf("classify(deadline exceeded) = %v, want Unavailable", got)
	}
}

func TestClassifyDefaultsToInternal(t *testing.T) {
	got := classify(context.Canceled)
	apiErr, ok := apierrors.As(got)
	if !ok || apiErr.Kind != apierrors.Internal {
		t.Errorf("classify(unrecognised error) = %v, want Internal", got)
	}
}
